// Package notify defines the collaborator receiving monitor notifications.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/agrolink/core/model"
)

// Sink receives notifications. Storage and delivery belong to the sink.
type Sink interface {
	Notify(ctx context.Context, n model.Notification) error
}

// NopSink discards notifications.
type NopSink struct{}

func (NopSink) Notify(context.Context, model.Notification) error { return nil }

// MultiSink forwards a notification to every sink. All sinks are tried;
// their errors are joined.
type MultiSink []Sink

func (m MultiSink) Notify(ctx context.Context, n model.Notification) error {
	var errs []error
	for _, s := range m {
		if err := s.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// New builds a notification with a fresh id.
func New(typ model.NotificationType, sev model.Severity, deviceID, title, message string, meta map[string]any, at time.Time) model.Notification {
	return model.Notification{
		ID:        uuid.NewString(),
		Type:      typ,
		Severity:  sev,
		Title:     title,
		Message:   message,
		Metadata:  meta,
		DeviceID:  deviceID,
		CreatedAt: at,
	}
}

package notify

import (
	"context"

	"github.com/kilianp07/agrolink/core/model"
	"github.com/kilianp07/agrolink/infra/logger"
)

// LogSink writes notifications to the structured log.
type LogSink struct {
	log logger.Logger
}

func NewLogSink(log logger.Logger) *LogSink {
	return &LogSink{log: logger.OrNop(log)}
}

func (s *LogSink) Notify(_ context.Context, n model.Notification) error {
	fields := map[string]any{
		"id":       n.ID,
		"type":     string(n.Type),
		"severity": string(n.Severity),
		"device":   n.DeviceID,
		"title":    n.Title,
	}
	for k, v := range n.Metadata {
		fields["meta_"+k] = v
	}
	l := s.log.With(fields)
	switch n.Severity {
	case model.SeverityCritical:
		l.Errorf("%s", n.Message)
	case model.SeverityWarning:
		l.Warnf("%s", n.Message)
	default:
		l.Infof("%s", n.Message)
	}
	return nil
}

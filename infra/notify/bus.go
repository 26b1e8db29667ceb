package notify

import (
	"context"

	"github.com/kilianp07/agrolink/core/model"
	"github.com/kilianp07/agrolink/internal/eventbus"
)

// BusSink publishes notifications on a typed bus for in-process consumers.
type BusSink struct {
	bus *eventbus.TypedBus[model.Notification]
}

func NewBusSink(bus *eventbus.TypedBus[model.Notification]) *BusSink {
	return &BusSink{bus: bus}
}

func (s *BusSink) Notify(_ context.Context, n model.Notification) error {
	s.bus.Publish(n)
	return nil
}

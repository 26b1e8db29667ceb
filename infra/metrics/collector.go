package metrics

import (
	"context"
	"time"

	"github.com/kilianp07/agrolink/core/events"
	"github.com/kilianp07/agrolink/core/logger"
	coremetrics "github.com/kilianp07/agrolink/core/metrics"
	"github.com/kilianp07/agrolink/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records metrics for
// events. It stops when the context is canceled or the bus is closed. The
// returned channel is closed once the collector goroutine has exited.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink, log logger.Logger) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || sink == nil {
		close(done)
		return done
	}
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if err := record(sink, ev); err != nil && log != nil {
					log.Warnf("record %T: %v", ev, err)
				}
			}
		}
	}()
	return done
}

func record(sink coremetrics.MetricsSink, ev eventbus.Event) error {
	switch e := ev.(type) {
	case events.CommandOutcomeEvent:
		return sink.RecordCommandOutcome(coremetrics.CommandRecord{
			DispatchID: e.DispatchID,
			DeviceID:   e.DeviceID,
			Method:     e.Method,
			Outcome:    e.Outcome,
			Message:    e.Message,
			Latency:    e.Latency,
			Time:       time.Now(),
		})
	case events.DeviceTransitionEvent:
		if r, ok := sink.(coremetrics.TransitionRecorder); ok {
			return r.RecordDeviceTransition(coremetrics.TransitionRecord{
				DeviceID:   e.DeviceID,
				TenantID:   e.TenantID,
				Online:     e.Online,
				OfflineFor: e.OfflineFor,
				Time:       e.At,
			})
		}
	case events.AlertEvent:
		if r, ok := sink.(coremetrics.AlertRecorder); ok {
			return r.RecordAlert(coremetrics.AlertRecord{
				RuleID:   e.RuleID,
				DeviceID: e.DeviceID,
				Key:      e.Key,
				Value:    e.Value,
				Severity: e.Severity,
				Time:     e.At,
			})
		}
	}
	return nil
}

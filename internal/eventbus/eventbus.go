// Package eventbus fans domain events out to in-process subscribers. The
// monitors and the command dispatcher publish; the metrics collector and the
// notification watchers subscribe.
package eventbus

// Event is any value published on a Bus, typically one of the types of
// core/events.
type Event interface{}

// EventBus is the publish side and subscription surface shared by producers
// and consumers.
type EventBus interface {
	Publish(Event)
	Subscribe() <-chan Event
	Unsubscribe(<-chan Event)
	Close()
}

// Bus carries events of mixed types.
type Bus struct {
	*TypedBus[Event]
}

func New(opts ...Option) *Bus { return &Bus{TypedBus: NewTyped[Event](opts...)} }

var _ EventBus = (*Bus)(nil)

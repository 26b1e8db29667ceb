package notify

import (
	"fmt"

	"github.com/kilianp07/agrolink/core/factory"
)

var sinkRegistry = factory.NewRegistry[Sink]()

// RegisterSink makes a sink constructor available under name.
func RegisterSink(name string, f factory.Factory[Sink]) error {
	return sinkRegistry.Register(name, f)
}

// NewSink builds the configured sinks, combined in a MultiSink when there
// are several.
func NewSink(cfgs []factory.ModuleConfig) (Sink, error) {
	sinks := make(MultiSink, 0, len(cfgs))
	for i, c := range cfgs {
		s, err := sinkRegistry.Create(c)
		if err != nil {
			return nil, fmt.Errorf("notification sink %d: %w", i, err)
		}
		sinks = append(sinks, s)
	}
	switch len(sinks) {
	case 0:
		return NopSink{}, nil
	case 1:
		return sinks[0], nil
	}
	return sinks, nil
}

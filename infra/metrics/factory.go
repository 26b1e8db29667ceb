package metrics

import (
	"fmt"

	"github.com/kilianp07/agrolink/core/factory"
	coremetrics "github.com/kilianp07/agrolink/core/metrics"
	"github.com/kilianp07/agrolink/infra/logger"
)

type influxConf struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
	// Strict fails startup when the server is unhealthy instead of
	// falling back to a NopSink.
	Strict bool `json:"strict"`
}

func init() {
	_ = coremetrics.RegisterMetricsSink("nop", func(map[string]any) (coremetrics.MetricsSink, error) {
		return coremetrics.NopSink{}, nil
	})
	_ = coremetrics.RegisterMetricsSink("log", func(map[string]any) (coremetrics.MetricsSink, error) {
		return NewLogSink(logger.New("metrics")), nil
	})
	_ = coremetrics.RegisterMetricsSink("prometheus", func(map[string]any) (coremetrics.MetricsSink, error) {
		return NewPromSink()
	})
	_ = coremetrics.RegisterMetricsSink("influx", newInfluxFromConf)
}

func newInfluxFromConf(conf map[string]any) (coremetrics.MetricsSink, error) {
	var c influxConf
	if err := factory.Decode(conf, &c); err != nil {
		return nil, err
	}
	if c.URL == "" || c.Bucket == "" {
		return nil, fmt.Errorf("influx: url and bucket are required")
	}
	if !c.Strict {
		return NewInfluxSinkWithFallback(c.URL, c.Token, c.Org, c.Bucket), nil
	}
	sink := NewInfluxSink(c.URL, c.Token, c.Org, c.Bucket)
	if err := sink.Ping(); err != nil {
		sink.Close()
		return nil, err
	}
	return sink, nil
}

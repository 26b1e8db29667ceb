package metrics

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/agrolink/core/metrics"
	"github.com/kilianp07/agrolink/infra/logger"
)

const writeTimeout = 5 * time.Second

// InfluxSink writes command outcomes, device transitions and alerts to an
// InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: writeTimeout}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback returns a NopSink when the InfluxDB instance
// fails its health check.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	if err := sink.Ping(); err != nil {
		sink.log.Errorf("influx unavailable, metrics disabled: %v", err)
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// Ping runs the server health check.
func (s *InfluxSink) Ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	health, err := s.client.Health(ctx)
	if err != nil {
		return fmt.Errorf("influx health check: %w", err)
	}
	if health.Status != "pass" {
		return fmt.Errorf("influx health status: %s", health.Status)
	}
	return nil
}

// Close releases the underlying client.
func (s *InfluxSink) Close() { s.client.Close() }

// RecordCommandOutcome writes a command_outcome point.
func (s *InfluxSink) RecordCommandOutcome(rec coremetrics.CommandRecord) error {
	p := write.NewPointWithMeasurement("command_outcome").
		AddTag("device_id", rec.DeviceID).
		AddTag("method", rec.Method).
		AddTag("outcome", rec.Outcome).
		AddTag("dispatch_id", rec.DispatchID).
		AddField("latency_ms", round3(rec.Latency.Seconds()*1000))
	if rec.Message != "" {
		p = p.AddField("message", rec.Message)
	}
	return s.write(p.SetTime(rec.Time))
}

// RecordDeviceTransition writes a device_status point.
func (s *InfluxSink) RecordDeviceTransition(rec coremetrics.TransitionRecord) error {
	p := write.NewPointWithMeasurement("device_status").
		AddTag("device_id", rec.DeviceID).
		AddTag("tenant_id", rec.TenantID).
		AddTag("online", strconv.FormatBool(rec.Online)).
		AddField("offline_seconds", int64(rec.OfflineFor/time.Second)).
		SetTime(rec.Time)
	return s.write(p)
}

// RecordAlert writes a sensor_alert point.
func (s *InfluxSink) RecordAlert(rec coremetrics.AlertRecord) error {
	p := write.NewPointWithMeasurement("sensor_alert").
		AddTag("device_id", rec.DeviceID).
		AddTag("rule_id", rec.RuleID).
		AddTag("sensor", rec.Key).
		AddTag("severity", string(rec.Severity)).
		AddField("value", round3(rec.Value)).
		SetTime(rec.Time)
	return s.write(p)
}

func (s *InfluxSink) write(p *write.Point) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}

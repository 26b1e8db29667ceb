// Package alerting evaluates threshold rules against the latest sensor
// readings and emits cooldown-gated alerts.
package alerting

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kilianp07/agrolink/core/events"
	"github.com/kilianp07/agrolink/core/logger"
	"github.com/kilianp07/agrolink/core/model"
	coremon "github.com/kilianp07/agrolink/core/monitoring"
	"github.com/kilianp07/agrolink/core/notify"
	"github.com/kilianp07/agrolink/core/platform"
	"github.com/kilianp07/agrolink/core/store"
	"github.com/kilianp07/agrolink/internal/eventbus"
)

const defaultFetchTimeout = 10 * time.Second

// DeviceResolver resolves the device a rule is bound to.
type DeviceResolver interface {
	Device(id string) (model.Device, error)
}

// TelemetryReader reads the latest samples of a remote device.
// platform.Client satisfies it.
type TelemetryReader interface {
	LatestTelemetry(ctx context.Context, tenantID, deviceID string, keys []string) (platform.Telemetry, error)
}

// Monitor periodically evaluates every active alert rule.
type Monitor struct {
	rules        store.RuleStore
	devices      DeviceResolver
	telemetry    TelemetryReader
	sink         notify.Sink
	log          logger.Logger
	bus          eventbus.EventBus
	fetchTimeout time.Duration
	now          func() time.Time

	// lastFired mirrors the trigger times written to the rule store so a
	// store lagging behind cannot re-open the cooldown window.
	mu        sync.Mutex
	lastFired map[string]time.Time

	stopped atomic.Bool
	running atomic.Bool

	lifecycle sync.Mutex
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// New creates a sensor threshold monitor.
func New(rules store.RuleStore, devices DeviceResolver, telemetry TelemetryReader, sink notify.Sink, log logger.Logger) (*Monitor, error) {
	if rules == nil || devices == nil || telemetry == nil || sink == nil || log == nil {
		return nil, fmt.Errorf("alerting: nil parameter provided to New")
	}
	return &Monitor{
		rules:        rules,
		devices:      devices,
		telemetry:    telemetry,
		sink:         sink,
		log:          log,
		fetchTimeout: defaultFetchTimeout,
		now:          time.Now,
		lastFired:    make(map[string]time.Time),
	}, nil
}

// SetEventBus configures the bus receiving AlertEvent.
func (m *Monitor) SetEventBus(bus eventbus.EventBus) { m.bus = bus }

// SetFetchTimeout bounds each telemetry read.
func (m *Monitor) SetFetchTimeout(d time.Duration) {
	if d > 0 {
		m.fetchTimeout = d
	}
}

// Start evaluates immediately and then every interval until ctx is done or
// Stop is called.
func (m *Monitor) Start(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("alerting: interval must be positive")
	}
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()
	if m.cancel != nil {
		return fmt.Errorf("alerting: monitor already started")
	}
	if m.stopped.Load() {
		return fmt.Errorf("alerting: monitor stopped")
	}
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.sweep(ctx)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.sweep(ctx)
			}
		}
	}()
	m.log.Infof("sensor monitor started, interval %s", interval)
	return nil
}

// Stop ends the loop and waits for the running sweep.
func (m *Monitor) Stop() {
	m.stopped.Store(true)
	m.lifecycle.Lock()
	if m.cancel != nil {
		m.cancel()
	}
	m.lifecycle.Unlock()
	m.wg.Wait()
}

func (m *Monitor) sweep(ctx context.Context) {
	if err := m.CheckAll(ctx); err != nil {
		m.log.Errorf("sensor sweep: %v", err)
	}
}

type ruleGroup struct {
	device model.Device
	rules  []model.AlertRule
}

// CheckAll evaluates every active rule whose device is ready. Telemetry is
// read once per device. A failing rule or device is logged and skipped.
func (m *Monitor) CheckAll(ctx context.Context) error {
	if m.stopped.Load() {
		return nil
	}
	if !m.running.CompareAndSwap(false, true) {
		m.log.Debugf("previous sensor sweep still running, skipping")
		return nil
	}
	defer m.running.Store(false)

	rules, err := m.rules.ActiveRules(ctx)
	if err != nil {
		coremon.CaptureException(err, map[string]string{"module": "alerting"})
		return fmt.Errorf("load rules: %w", err)
	}
	now := m.now()
	groups := make(map[string]*ruleGroup)
	for _, r := range rules {
		if !r.Active {
			continue
		}
		if m.coolingDown(r, now) {
			rulesCoolingDown.Inc()
			continue
		}
		g, ok := groups[r.DeviceID]
		if !ok {
			d, err := m.devices.Device(r.DeviceID)
			if err != nil {
				m.log.Warnf("rule %s: %v", r.ID, err)
				continue
			}
			if !d.Ready() || !d.Monitored() {
				continue
			}
			g = &ruleGroup{device: d}
			groups[r.DeviceID] = g
		}
		g.rules = append(g.rules, r)
	}

	var wg sync.WaitGroup
	for _, g := range groups {
		wg.Add(1)
		go func(g *ruleGroup) {
			defer wg.Done()
			m.checkDevice(ctx, g)
		}(g)
	}
	wg.Wait()
	return nil
}

// coolingDown reports whether r fired less than its cooldown ago.
func (m *Monitor) coolingDown(r model.AlertRule, now time.Time) bool {
	last := r.LastTriggeredAt
	m.mu.Lock()
	if t, ok := m.lastFired[r.ID]; ok && t.After(last) {
		last = t
	}
	m.mu.Unlock()
	return !last.IsZero() && now.Sub(last) < r.Cooldown()
}

func (m *Monitor) checkDevice(ctx context.Context, g *ruleGroup) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic evaluating rules of %s: %v", g.device.ID, r)
			m.log.Errorf("%v", err)
			coremon.CaptureDeviceError(err, "alerting", g.device.ID)
		}
	}()

	keys := sensorKeys(g.rules)
	fctx, cancel := context.WithTimeout(ctx, m.fetchTimeout)
	tel, err := m.telemetry.LatestTelemetry(fctx, g.device.TenantID, g.device.RemoteID, keys)
	cancel()
	if err != nil {
		if ctx.Err() == nil {
			m.log.Warnf("telemetry of %s unavailable: %v", g.device.ID, err)
			coremon.CaptureDeviceError(err, "alerting", g.device.ID)
		}
		return
	}
	for _, r := range g.rules {
		if err := m.evaluate(ctx, g.device, r, tel); err != nil {
			ruleErrors.Inc()
			m.log.Errorf("rule %s: %v", r.ID, err)
			if errors.Is(err, ErrRuleEvaluation) {
				coremon.CaptureException(err, map[string]string{"module": "alerting", "rule_id": r.ID})
			}
		}
	}
}

func (m *Monitor) evaluate(ctx context.Context, d model.Device, r model.AlertRule, tel platform.Telemetry) error {
	p, ok := tel.Latest(r.SensorKey)
	if !ok {
		return nil
	}
	value, err := p.Float()
	if err != nil {
		return fmt.Errorf("%w: %s value %q is not numeric", ErrRuleEvaluation, r.SensorKey, p.Value)
	}
	matched, err := Evaluate(r, value)
	if err != nil || !matched {
		return err
	}
	if m.stopped.Load() {
		return nil
	}
	now := m.now()
	m.mu.Lock()
	m.lastFired[r.ID] = now
	m.mu.Unlock()

	sev := r.Severity
	if sev == "" {
		sev = model.SeverityWarning
	}
	n := notify.New(model.NotificationSensorAlert, sev, d.ID,
		fmt.Sprintf("%s alert: %s on %s", titleCase(string(sev)), r.SensorKey, d.DisplayName()),
		Message(r, value),
		map[string]any{
			"rule_id":   r.ID,
			"sensor":    r.SensorKey,
			"value":     value,
			"condition": string(r.Condition),
			"threshold": r.Threshold,
		}, now)
	alertsFired.WithLabelValues(string(sev)).Inc()
	m.log.Infof("rule %s fired on %s: %s", r.ID, d.ID, n.Message)
	if err := m.sink.Notify(ctx, n); err != nil {
		m.log.Errorf("notify alert %s: %v", r.ID, err)
		coremon.CaptureException(err, map[string]string{"module": "alerting", "rule_id": r.ID})
	}
	if m.bus != nil {
		m.bus.Publish(events.AlertEvent{RuleID: r.ID, DeviceID: d.ID, Key: r.SensorKey, Value: value, Severity: sev, At: now})
	}
	if err := m.rules.MarkTriggered(ctx, r.ID, now); err != nil {
		return fmt.Errorf("persist trigger time: %w", err)
	}
	return nil
}

func sensorKeys(rules []model.AlertRule) []string {
	seen := make(map[string]struct{}, len(rules))
	keys := make([]string, 0, len(rules))
	for _, r := range rules {
		if _, ok := seen[r.SensorKey]; ok {
			continue
		}
		seen[r.SensorKey] = struct{}{}
		keys = append(keys, r.SensorKey)
	}
	sort.Strings(keys)
	return keys
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

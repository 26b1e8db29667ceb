package alerting

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/agrolink/core/events"
	"github.com/kilianp07/agrolink/core/model"
	"github.com/kilianp07/agrolink/core/platform"
	"github.com/kilianp07/agrolink/core/store"
	"github.com/kilianp07/agrolink/infra/logger"
	"github.com/kilianp07/agrolink/internal/eventbus"
)

func ptr(f float64) *float64 { return &f }

type deviceMap map[string]model.Device

func (d deviceMap) Device(id string) (model.Device, error) {
	dev, ok := d[id]
	if !ok {
		return model.Device{}, fmt.Errorf("device %s not found", id)
	}
	return dev, nil
}

type fakeTelemetry struct {
	mu     sync.Mutex
	values map[string]platform.Telemetry
	fail   map[string]error
	calls  map[string]int
	keys   map[string][]string
}

func newFakeTelemetry() *fakeTelemetry {
	return &fakeTelemetry{
		values: map[string]platform.Telemetry{},
		fail:   map[string]error{},
		calls:  map[string]int{},
		keys:   map[string][]string{},
	}
}

func (f *fakeTelemetry) set(remote, key, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.values[remote] == nil {
		f.values[remote] = platform.Telemetry{}
	}
	f.values[remote][key] = []platform.Point{{TS: time.Unix(1700000000, 0), Value: value}}
}

func (f *fakeTelemetry) LatestTelemetry(_ context.Context, _, remote string, keys []string) (platform.Telemetry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[remote]++
	f.keys[remote] = keys
	if err := f.fail[remote]; err != nil {
		return nil, err
	}
	return f.values[remote], nil
}

type recordSink struct {
	mu  sync.Mutex
	got []model.Notification
}

func (r *recordSink) Notify(_ context.Context, n model.Notification) error {
	r.mu.Lock()
	r.got = append(r.got, n)
	r.mu.Unlock()
	return nil
}

func (r *recordSink) all() []model.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Notification(nil), r.got...)
}

// rawRules serves rules without validation.
type rawRules struct {
	mu        sync.Mutex
	rules     []model.AlertRule
	triggered map[string]time.Time
}

func (r *rawRules) ActiveRules(context.Context) ([]model.AlertRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.AlertRule(nil), r.rules...), nil
}

func (r *rawRules) MarkTriggered(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.triggered == nil {
		r.triggered = map[string]time.Time{}
	}
	r.triggered[id] = at
	return nil
}

var devices = deviceMap{
	"greenhouse": {ID: "greenhouse", Name: "Greenhouse 1", TenantID: "farm", RemoteID: "r-gh"},
	"silo":       {ID: "silo", TenantID: "farm", RemoteID: "r-silo", Status: model.DeviceMaintenance},
	"local":      {ID: "local", TenantID: "farm"},
}

type testEnv struct {
	m     *Monitor
	sink  *recordSink
	tel   *fakeTelemetry
	clock time.Time
}

func newEnv(t *testing.T, rules store.RuleStore) *testEnv {
	t.Helper()
	ResetMetrics(nil)
	env := &testEnv{sink: &recordSink{}, tel: newFakeTelemetry(), clock: time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)}
	m, err := New(rules, devices, env.tel, env.sink, logger.NopLogger{})
	require.NoError(t, err)
	m.now = func() time.Time { return env.clock }
	env.m = m
	return env
}

func TestEvaluateConditions(t *testing.T) {
	cases := []struct {
		name  string
		rule  model.AlertRule
		value float64
		want  bool
	}{
		{"above", model.AlertRule{Condition: model.ConditionAbove, Threshold: 30}, 35.2, true},
		{"above equal", model.AlertRule{Condition: model.ConditionAbove, Threshold: 30}, 30, false},
		{"below", model.AlertRule{Condition: model.ConditionBelow, Threshold: 10}, 9.9, true},
		{"below not", model.AlertRule{Condition: model.ConditionBelow, Threshold: 10}, 10, false},
		{"equal tolerance", model.AlertRule{Condition: model.ConditionEqual, Threshold: 0.3}, 0.1 + 0.2, true},
		{"equal not", model.AlertRule{Condition: model.ConditionEqual, Threshold: 1}, 1.001, false},
		{"between inclusive", model.AlertRule{Condition: model.ConditionBetween, Min: ptr(10), Max: ptr(20)}, 20, true},
		{"between out", model.AlertRule{Condition: model.ConditionBetween, Min: ptr(10), Max: ptr(20)}, 21, false},
		{"outside", model.AlertRule{Condition: model.ConditionOutside, Min: ptr(10), Max: ptr(20)}, 9, true},
		{"outside bound", model.AlertRule{Condition: model.ConditionOutside, Min: ptr(10), Max: ptr(20)}, 10, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Evaluate(tc.rule, tc.value)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := Evaluate(model.AlertRule{ID: "r", Condition: model.ConditionBetween, Max: ptr(1)}, 0)
	assert.ErrorIs(t, err, ErrRuleEvaluation)
	_, err = Evaluate(model.AlertRule{ID: "r", Condition: "sideways"}, 0)
	assert.ErrorIs(t, err, ErrRuleEvaluation)
}

func TestMessage(t *testing.T) {
	r := model.AlertRule{SensorKey: "temperature", Condition: model.ConditionAbove, Threshold: 30}
	assert.Equal(t, "temperature is 35.2, above the threshold of 30", Message(r, 35.2))
	r = model.AlertRule{SensorKey: "humidity", Condition: model.ConditionOutside, Min: ptr(40), Max: ptr(70.5)}
	assert.Equal(t, "humidity is 80, outside the range 40 to 70.5", Message(r, 80))
}

func TestCheckAll_CooldownGatesRepeats(t *testing.T) {
	st := store.NewMemoryStore()
	require.NoError(t, st.UpsertRule(context.Background(), model.AlertRule{
		ID: "hot", DeviceID: "greenhouse", SensorKey: "temperature", Condition: model.ConditionAbove,
		Threshold: 30, Severity: model.SeverityCritical, CooldownSeconds: 300, Active: true,
	}))
	env := newEnv(t, st)
	env.tel.set("r-gh", "temperature", "35.2")
	bus := eventbus.New()
	sub := bus.Subscribe()
	env.m.SetEventBus(bus)

	start := env.clock
	for i := 0; i < 5; i++ {
		env.clock = start.Add(time.Duration(i) * time.Minute)
		require.NoError(t, env.m.CheckAll(context.Background()))
	}
	got := env.sink.all()
	require.Len(t, got, 1)
	n := got[0]
	assert.Equal(t, model.NotificationSensorAlert, n.Type)
	assert.Equal(t, model.SeverityCritical, n.Severity)
	assert.Equal(t, "Critical alert: temperature on Greenhouse 1", n.Title)
	assert.Equal(t, "temperature is 35.2, above the threshold of 30", n.Message)
	assert.Equal(t, "hot", n.Metadata["rule_id"])
	assert.Equal(t, 35.2, n.Metadata["value"])
	assert.Equal(t, "greenhouse", n.DeviceID)

	rules, err := st.ActiveRules(context.Background())
	require.NoError(t, err)
	assert.Equal(t, start, rules[0].LastTriggeredAt)

	ev := (<-sub).(events.AlertEvent)
	assert.Equal(t, "hot", ev.RuleID)
	assert.Equal(t, model.SeverityCritical, ev.Severity)

	env.clock = start.Add(5 * time.Minute)
	require.NoError(t, env.m.CheckAll(context.Background()))
	assert.Len(t, env.sink.all(), 2)
}

func TestCheckAll_StoredTriggerTimeIsHonoured(t *testing.T) {
	env := newEnv(t, &rawRules{})
	rules := &rawRules{rules: []model.AlertRule{{
		ID: "dry", DeviceID: "greenhouse", SensorKey: "moisture", Condition: model.ConditionBelow,
		Threshold: 20, CooldownSeconds: 600, Active: true, LastTriggeredAt: env.clock.Add(-time.Minute),
	}}}
	env.m.rules = rules
	env.tel.set("r-gh", "moisture", "12")

	require.NoError(t, env.m.CheckAll(context.Background()))
	assert.Empty(t, env.sink.all())
	assert.Zero(t, env.tel.calls["r-gh"])
}

func TestCheckAll_RuleErrorsAreIsolated(t *testing.T) {
	rules := &rawRules{rules: []model.AlertRule{
		{ID: "broken", DeviceID: "greenhouse", SensorKey: "ph", Condition: model.ConditionBetween, Active: true},
		{ID: "garbled", DeviceID: "greenhouse", SensorKey: "status", Condition: model.ConditionAbove, Active: true},
		{ID: "cold", DeviceID: "greenhouse", SensorKey: "temperature", Condition: model.ConditionBelow, Threshold: 5, Active: true},
		{ID: "missing", DeviceID: "greenhouse", SensorKey: "co2", Condition: model.ConditionAbove, Active: true},
		{ID: "ghost", DeviceID: "unknown", SensorKey: "temperature", Condition: model.ConditionAbove, Active: true},
		{ID: "maint", DeviceID: "silo", SensorKey: "level", Condition: model.ConditionAbove, Active: true},
		{ID: "unbound", DeviceID: "local", SensorKey: "level", Condition: model.ConditionAbove, Active: true},
	}}
	env := newEnv(t, rules)
	env.tel.set("r-gh", "ph", "6.5")
	env.tel.set("r-gh", "status", "open")
	env.tel.set("r-gh", "temperature", "2")
	env.tel.set("r-silo", "level", "99")

	require.NoError(t, env.m.CheckAll(context.Background()))

	got := env.sink.all()
	require.Len(t, got, 1)
	assert.Equal(t, "cold", got[0].Metadata["rule_id"])
	assert.Equal(t, model.SeverityWarning, got[0].Severity)
	assert.Contains(t, rules.triggered, "cold")
	assert.Len(t, rules.triggered, 1)

	// one batched read for the greenhouse, none for skipped devices
	assert.Equal(t, 1, env.tel.calls["r-gh"])
	assert.Equal(t, []string{"co2", "ph", "status", "temperature"}, env.tel.keys["r-gh"])
	assert.Zero(t, env.tel.calls["r-silo"])
}

func TestCheckAll_TelemetryFailureSkipsDevice(t *testing.T) {
	rules := &rawRules{rules: []model.AlertRule{
		{ID: "hot", DeviceID: "greenhouse", SensorKey: "temperature", Condition: model.ConditionAbove, Threshold: 30, Active: true},
	}}
	env := newEnv(t, rules)
	env.tel.fail["r-gh"] = fmt.Errorf("%w: boom", platform.ErrConnection)

	require.NoError(t, env.m.CheckAll(context.Background()))
	assert.Empty(t, env.sink.all())

	env.tel.fail["r-gh"] = nil
	env.tel.set("r-gh", "temperature", "31")
	require.NoError(t, env.m.CheckAll(context.Background()))
	assert.Len(t, env.sink.all(), 1)
}

type failingRules struct{ rawRules }

func (f *failingRules) ActiveRules(context.Context) ([]model.AlertRule, error) {
	return nil, errors.New("db closed")
}

func TestCheckAll_RuleStoreFailure(t *testing.T) {
	env := newEnv(t, &failingRules{})
	assert.Error(t, env.m.CheckAll(context.Background()))
}

func TestStartStop(t *testing.T) {
	rules := &rawRules{rules: []model.AlertRule{
		{ID: "hot", DeviceID: "greenhouse", SensorKey: "temperature", Condition: model.ConditionAbove, Threshold: 30, Active: true, CooldownSeconds: 3600},
	}}
	env := newEnv(t, rules)
	env.tel.set("r-gh", "temperature", "40")

	require.Error(t, env.m.Start(context.Background(), 0))
	require.NoError(t, env.m.Start(context.Background(), time.Hour))
	require.Error(t, env.m.Start(context.Background(), time.Hour))
	require.Eventually(t, func() bool { return len(env.sink.all()) == 1 }, time.Second, 10*time.Millisecond)

	env.m.Stop()
	env.m.lastFired = map[string]time.Time{}
	rules.rules[0].CooldownSeconds = 0
	require.NoError(t, env.m.CheckAll(context.Background()))
	assert.Len(t, env.sink.all(), 1)
	assert.Error(t, env.m.Start(context.Background(), time.Hour))
}

func TestNewRejectsNil(t *testing.T) {
	_, err := New(nil, devices, newFakeTelemetry(), &recordSink{}, logger.NopLogger{})
	assert.Error(t, err)
}

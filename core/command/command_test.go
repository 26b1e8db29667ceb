package command

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/agrolink/core/events"
	"github.com/kilianp07/agrolink/core/platform"
	"github.com/kilianp07/agrolink/infra/logger"
	"github.com/kilianp07/agrolink/internal/eventbus"
)

type sentRPC struct {
	method string
	params any
}

type fakeTarget struct {
	mu     sync.Mutex
	rpcErr error
	sent   []sentRPC
	reads  int
	attrs  func(read int) platform.Attributes
}

func (f *fakeTarget) ID() string { return "dev-1" }

func (f *fakeTarget) SendRPC(ctx context.Context, method string, params any, _ time.Duration) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentRPC{method: method, params: params})
	return nil, f.rpcErr
}

func (f *fakeTarget) Attributes(ctx context.Context, keys []string) (platform.Attributes, error) {
	f.mu.Lock()
	f.reads++
	n := f.reads
	fn := f.attrs
	f.mu.Unlock()
	if fn == nil {
		return platform.Attributes{}, nil
	}
	return fn(n), nil
}

func (f *fakeTarget) readCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

func (f *fakeTarget) sentRPCs() []sentRPC {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentRPC(nil), f.sent...)
}

type recorder struct {
	mu       sync.Mutex
	success  []string
	timeouts []string
	errs     []string
	done     chan Outcome
}

func newRecorder() *recorder { return &recorder{done: make(chan Outcome, 16)} }

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnSuccess: func(m string) {
			r.mu.Lock()
			r.success = append(r.success, m)
			r.mu.Unlock()
			r.done <- OutcomeConfirmed
		},
		OnTimeout: func(m string) {
			r.mu.Lock()
			r.timeouts = append(r.timeouts, m)
			r.mu.Unlock()
			r.done <- OutcomeTimedOut
		},
		OnError: func(m, msg string) {
			r.mu.Lock()
			r.errs = append(r.errs, m+": "+msg)
			r.mu.Unlock()
			r.done <- OutcomeDispatchFailed
		},
	}
}

func (r *recorder) counts() (int, int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.success), len(r.timeouts), len(r.errs)
}

func (r *recorder) await(t *testing.T, within time.Duration) Outcome {
	t.Helper()
	select {
	case o := <-r.done:
		return o
	case <-time.After(within):
		t.Fatalf("no outcome within %s", within)
		return ""
	}
}

func fastPolicy() Policy {
	return Policy{
		CheckOffsets: []time.Duration{20 * time.Millisecond, 60 * time.Millisecond},
		TTL: map[ActuatorClass]time.Duration{
			ClassSimple:   200 * time.Millisecond,
			ClassCompound: 300 * time.Millisecond,
		},
		SettleDelay:  10 * time.Millisecond,
		RPCTimeout:   time.Second,
		CheckTimeout: 50 * time.Millisecond,
	}
}

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := NewCatalog(
		Descriptor{Method: "set_fan_1_cmd", Class: ClassSimple, Confirmable: true, Attribute: "fan_1_cmd"},
		Descriptor{Method: "set_motor_1", Class: ClassCompound, Confirmable: true, ForwardAttribute: "motor_1_fw", ReverseAttribute: "motor_1_re"},
	)
	require.NoError(t, err)
	return c
}

func newTestDispatcher(t *testing.T, target *fakeTarget, rec *recorder) *Dispatcher {
	t.Helper()
	ResetMetrics(nil)
	d, err := NewDispatcher(target, testCatalog(t), fastPolicy(), rec.callbacks(), logger.NopLogger{})
	require.NoError(t, err)
	t.Cleanup(d.Close)
	return d
}

func TestEqual(t *testing.T) {
	cases := []struct {
		a, b any
		want bool
	}{
		{1, true, true},
		{"1", true, true},
		{float64(0), false, true},
		{"0", false, true},
		{json.Number("1"), true, true},
		{"true", 1, true},
		{"07:00", "07:00", true},
		{"07:00", "18:00", false},
		{float64(2), "2", true},
		{2.5, "2.5", true},
		{1, false, false},
		{"on", true, false},
		{nil, "", true},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Equal(c.a, c.b), "Equal(%#v, %#v)", c.a, c.b)
	}
}

func TestParseDirection(t *testing.T) {
	for in, want := range map[any]Direction{0: Stop, 1: Forward, float64(2): Reverse, "1": Forward, json.Number("2"): Reverse} {
		got, err := ParseDirection(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	for _, in := range []any{3, -1, 1.5, "fw", true, nil} {
		_, err := ParseDirection(in)
		assert.ErrorIs(t, err, ErrInvalidParams, "%#v", in)
	}
	fw, re := Forward.Flags()
	assert.True(t, fw)
	assert.False(t, re)
	fw, re = Reverse.Flags()
	assert.False(t, fw)
	assert.True(t, re)
}

func TestSendCommand_ConfirmedOnSecondCheck(t *testing.T) {
	target := &fakeTarget{attrs: func(n int) platform.Attributes {
		return platform.Attributes{"fan_1_cmd": n >= 2}
	}}
	rec := newRecorder()
	d := newTestDispatcher(t, target, rec)

	ok := d.SendCommand(context.Background(), Command{Method: "set_fan_1_cmd", Params: 1, Expected: true})
	require.True(t, ok)
	assert.True(t, d.IsPending("set_fan_1_cmd"))

	assert.Equal(t, OutcomeConfirmed, rec.await(t, time.Second))
	time.Sleep(300 * time.Millisecond)

	s, to, e := rec.counts()
	assert.Equal(t, 1, s)
	assert.Zero(t, to)
	assert.Zero(t, e)
	assert.Equal(t, 2, target.readCount())
	assert.False(t, d.IsPending("set_fan_1_cmd"))
	assert.Equal(t, []sentRPC{{method: "set_fan_1_cmd", params: 1}}, target.sentRPCs())
}

func TestSendCommand_MotorTimesOutAfterCompoundDeadline(t *testing.T) {
	target := &fakeTarget{attrs: func(int) platform.Attributes {
		return platform.Attributes{"motor_1_fw": false, "motor_1_re": false}
	}}
	rec := newRecorder()
	d := newTestDispatcher(t, target, rec)

	start := time.Now()
	require.True(t, d.SendCommand(context.Background(), Command{Method: "set_motor_1", Params: 1}))

	assert.Equal(t, OutcomeTimedOut, rec.await(t, time.Second))
	assert.GreaterOrEqual(t, time.Since(start), 300*time.Millisecond)
	s, to, _ := rec.counts()
	assert.Zero(t, s)
	assert.Equal(t, 1, to)
	// two scheduled checks plus the one at the deadline
	assert.Equal(t, 3, target.readCount())
}

func TestSendCommand_MotorConfirmedWhenBothFlagsAgree(t *testing.T) {
	target := &fakeTarget{attrs: func(n int) platform.Attributes {
		if n == 1 {
			return platform.Attributes{"motor_1_fw": true, "motor_1_re": true}
		}
		return platform.Attributes{"motor_1_fw": "0", "motor_1_re": float64(1)}
	}}
	rec := newRecorder()
	d := newTestDispatcher(t, target, rec)

	require.True(t, d.SendCommand(context.Background(), Command{Method: "set_motor_1", Params: 2}))
	assert.Equal(t, OutcomeConfirmed, rec.await(t, time.Second))
	assert.Equal(t, 2, target.readCount())
}

func TestSendCommand_InvalidMotorParamsAreNotSent(t *testing.T) {
	target := &fakeTarget{}
	rec := newRecorder()
	d := newTestDispatcher(t, target, rec)

	assert.False(t, d.SendCommand(context.Background(), Command{Method: "set_motor_1", Params: 7}))
	assert.Equal(t, OutcomeDispatchFailed, rec.await(t, time.Second))
	assert.Empty(t, target.sentRPCs())
	assert.False(t, d.IsPending("set_motor_1"))
}

func TestSendCommand_SupersedeCancelsPreviousDispatch(t *testing.T) {
	target := &fakeTarget{attrs: func(int) platform.Attributes {
		return platform.Attributes{"fan_1_cmd": false}
	}}
	rec := newRecorder()
	d := newTestDispatcher(t, target, rec)

	require.True(t, d.SendCommand(context.Background(), Command{Method: "set_fan_1_cmd", Params: true}))
	require.True(t, d.SendCommand(context.Background(), Command{Method: "set_fan_1_cmd", Params: false}))

	d.mu.Lock()
	assert.LessOrEqual(t, len(d.pending), 1)
	d.mu.Unlock()

	assert.Equal(t, OutcomeConfirmed, rec.await(t, time.Second))
	time.Sleep(300 * time.Millisecond)

	s, to, e := rec.counts()
	assert.Equal(t, 1, s)
	assert.Zero(t, to, "superseded dispatch must not time out")
	assert.Zero(t, e)
}

func TestSendCommand_FireAndForgetSettles(t *testing.T) {
	target := &fakeTarget{}
	rec := newRecorder()
	d := newTestDispatcher(t, target, rec)

	require.True(t, d.SendCommand(context.Background(), Command{Method: "reboot", Params: nil}))
	assert.Equal(t, OutcomeConfirmed, rec.await(t, time.Second))
	assert.Zero(t, target.readCount())
}

func TestSendCommand_DispatchFailure(t *testing.T) {
	target := &fakeTarget{rpcErr: platform.ErrConnection}
	rec := newRecorder()
	d := newTestDispatcher(t, target, rec)

	assert.False(t, d.SendCommand(context.Background(), Command{Method: "set_fan_1_cmd", Params: 1}))
	assert.Equal(t, OutcomeDispatchFailed, rec.await(t, time.Second))
	assert.False(t, d.IsPending("set_fan_1_cmd"))

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.errs, 1)
	assert.Contains(t, rec.errs[0], platform.ErrConnection.Error())
}

func TestClose_SuppressesPendingCallbacks(t *testing.T) {
	target := &fakeTarget{attrs: func(int) platform.Attributes {
		return platform.Attributes{"fan_1_cmd": false}
	}}
	rec := newRecorder()
	d := newTestDispatcher(t, target, rec)

	require.True(t, d.SendCommand(context.Background(), Command{Method: "set_fan_1_cmd", Params: true}))
	d.Close()
	assert.False(t, d.IsPending("set_fan_1_cmd"))
	assert.False(t, d.SendCommand(context.Background(), Command{Method: "set_fan_1_cmd", Params: true}))

	time.Sleep(300 * time.Millisecond)
	s, to, e := rec.counts()
	assert.Zero(t, s+to+e)
}

func TestSendCommand_PublishesOutcome(t *testing.T) {
	target := &fakeTarget{attrs: func(int) platform.Attributes {
		return platform.Attributes{"fan_1_cmd": "1"}
	}}
	rec := newRecorder()
	d := newTestDispatcher(t, target, rec)
	bus := eventbus.New()
	ch := bus.Subscribe()
	d.SetEventBus(bus)

	require.True(t, d.SendCommand(context.Background(), Command{Method: "set_fan_1_cmd", Params: 1}))
	select {
	case ev := <-ch:
		out, ok := ev.(events.CommandOutcomeEvent)
		require.True(t, ok)
		assert.Equal(t, "set_fan_1_cmd", out.Method)
		assert.Equal(t, "dev-1", out.DeviceID)
		assert.Equal(t, string(OutcomeConfirmed), out.Outcome)
		assert.NotEmpty(t, out.DispatchID)
	case <-time.After(time.Second):
		t.Fatal("no outcome event")
	}
}

func TestOutcomeErr(t *testing.T) {
	assert.NoError(t, OutcomeConfirmed.Err())
	assert.True(t, errors.Is(OutcomeTimedOut.Err(), ErrConfirmationTimeout))
	assert.True(t, errors.Is(OutcomeDispatchFailed.Err(), ErrDispatchFailed))
}

func TestCatalogAndPolicyValidation(t *testing.T) {
	_, err := NewCatalog(Descriptor{Method: "x", Confirmable: true})
	assert.Error(t, err)
	_, err = NewCatalog(Descriptor{Method: "m", Class: ClassCompound, Confirmable: true, ForwardAttribute: "fw"})
	assert.Error(t, err)
	blind, err := NewCatalog(Descriptor{Method: "setFan", Class: ClassCompound})
	require.NoError(t, err, "unconfirmed compound actuators need no reported attributes")
	assert.Equal(t, ClassCompound, blind.Lookup("setFan").Class)
	_, err = NewCatalog(Descriptor{Method: "a"}, Descriptor{Method: "a"})
	assert.Error(t, err)

	c := testCatalog(t)
	unknown := c.Lookup("reboot")
	assert.False(t, unknown.Confirmable)
	assert.Equal(t, ClassSimple, unknown.Class)

	assert.NoError(t, DefaultPolicy().Validate())
	p := DefaultPolicy()
	p.TTL[ClassSimple] = time.Second
	assert.Error(t, p.Validate())
	p = DefaultPolicy()
	p.CheckOffsets = []time.Duration{2 * time.Second, time.Second}
	assert.Error(t, p.Validate())
}

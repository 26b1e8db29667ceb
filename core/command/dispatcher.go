package command

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/agrolink/core/events"
	"github.com/kilianp07/agrolink/core/logger"
	"github.com/kilianp07/agrolink/core/platform"
	"github.com/kilianp07/agrolink/internal/eventbus"
)

// Target is the device a Dispatcher controls. *platform.Device satisfies it.
type Target interface {
	ID() string
	SendRPC(ctx context.Context, method string, params any, timeout time.Duration) (json.RawMessage, error)
	Attributes(ctx context.Context, keys []string) (platform.Attributes, error)
}

// Command is a control request. Params are sent verbatim. Expected
// overrides the value a simple actuator must report; it defaults to Params.
type Command struct {
	Method   string
	Params   any
	Expected any
}

// Callbacks receive the outcome of each dispatch. Exactly one of them is
// invoked per accepted dispatch, and none once the dispatch is superseded or
// the dispatcher is closed. Nil functions are skipped.
type Callbacks struct {
	OnSuccess func(method string)
	OnTimeout func(method string)
	OnError   func(method, message string)
}

type pendingCommand struct {
	id       string
	method   string
	desc     Descriptor
	expected expectation
	started  time.Time
	ctx      context.Context
	cancel   context.CancelFunc
}

// Dispatcher sends commands to one device and tracks their confirmation.
type Dispatcher struct {
	target  Target
	catalog *Catalog
	policy  Policy
	cb      Callbacks
	log     logger.Logger
	bus     eventbus.EventBus

	mu      sync.Mutex
	pending map[string]*pendingCommand
	closed  bool
	root    context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
}

// NewDispatcher creates a dispatcher for target.
func NewDispatcher(target Target, catalog *Catalog, policy Policy, cb Callbacks, log logger.Logger) (*Dispatcher, error) {
	if target == nil || log == nil {
		return nil, fmt.Errorf("command: nil parameter provided to NewDispatcher")
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	root, stop := context.WithCancel(context.Background())
	return &Dispatcher{
		target:  target,
		catalog: catalog,
		policy:  policy,
		cb:      cb,
		log:     log,
		pending: make(map[string]*pendingCommand),
		root:    root,
		stop:    stop,
	}, nil
}

// SetEventBus configures the bus receiving CommandOutcomeEvent.
func (d *Dispatcher) SetEventBus(bus eventbus.EventBus) {
	d.mu.Lock()
	d.bus = bus
	d.mu.Unlock()
}

// SendCommand sends cmd and starts tracking it. It blocks only for the RPC
// send and reports whether the platform accepted the command. A rejected
// or undeliverable command is reported through OnError.
func (d *Dispatcher) SendCommand(ctx context.Context, cmd Command) bool {
	desc := d.catalog.Lookup(cmd.Method)
	exp, err := desc.expect(cmd)
	if err != nil {
		if d.alive() {
			d.log.Warnf("command %s rejected: %v", cmd.Method, err)
			commandOutcomes.WithLabelValues(cmd.Method, string(OutcomeDispatchFailed)).Inc()
			d.callback(cmd.Method, OutcomeDispatchFailed, err.Error())
		}
		return false
	}
	p, ok := d.begin(desc, exp)
	if !ok {
		return false
	}

	rpcCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(p.ctx, cancel)
	_, err = d.target.SendRPC(rpcCtx, cmd.Method, cmd.Params, d.policy.RPCTimeout)
	stop()
	cancel()
	if err != nil {
		d.finish(p, OutcomeDispatchFailed, err.Error())
		d.wg.Done()
		return false
	}
	d.log.Debugw("command sent", map[string]any{
		"device": d.target.ID(), "method": cmd.Method, "dispatch_id": p.id, "confirmable": desc.Confirmable,
	})
	go func() {
		defer d.wg.Done()
		d.track(p, time.Now())
	}()
	return true
}

// IsPending reports whether a dispatch of method awaits its outcome.
func (d *Dispatcher) IsPending(method string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pending[method]
	return ok
}

// Close cancels every pending dispatch without invoking callbacks and waits
// for the tracking goroutines to exit.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for method, p := range d.pending {
		p.cancel()
		delete(d.pending, method)
		commandsPending.Dec()
	}
	d.mu.Unlock()
	d.stop()
	d.wg.Wait()
}

func (d *Dispatcher) alive() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.closed
}

// begin registers a new pending entry, superseding any entry for the same
// method.
func (d *Dispatcher) begin(desc Descriptor, exp expectation) (*pendingCommand, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, false
	}
	if prev, ok := d.pending[desc.Method]; ok {
		prev.cancel()
		commandsSuperseded.Inc()
		commandsPending.Dec()
		d.log.Infof("command %s superseded dispatch %s", desc.Method, prev.id)
	}
	ctx, cancel := context.WithCancel(d.root)
	p := &pendingCommand{
		id:       uuid.NewString(),
		method:   desc.Method,
		desc:     desc,
		expected: exp,
		started:  time.Now(),
		ctx:      ctx,
		cancel:   cancel,
	}
	d.pending[desc.Method] = p
	commandsPending.Inc()
	d.wg.Add(1)
	return p, true
}

// track drives a sent command to its terminal state.
func (d *Dispatcher) track(p *pendingCommand, sentAt time.Time) {
	if !p.desc.Confirmable {
		t := time.NewTimer(d.policy.SettleDelay)
		defer t.Stop()
		select {
		case <-p.ctx.Done():
		case <-t.C:
			d.finish(p, OutcomeConfirmed, "")
		}
		return
	}
	d.confirm(p, sentAt)
}

// confirm reads the reported state at each check offset, one read at a
// time, until it matches or the class deadline passes. A last read is made
// at the deadline.
func (d *Dispatcher) confirm(p *pendingCommand, sentAt time.Time) {
	deadlineAt := sentAt.Add(d.policy.ttl(p.desc.Class))
	deadline := time.NewTimer(time.Until(deadlineAt))
	defer deadline.Stop()

	for _, off := range d.policy.CheckOffsets {
		next := time.NewTimer(time.Until(sentAt.Add(off)))
		select {
		case <-p.ctx.Done():
			next.Stop()
			return
		case <-deadline.C:
			next.Stop()
			d.expire(p)
			return
		case <-next.C:
		}
		if !time.Now().Before(deadlineAt) {
			d.expire(p)
			return
		}
		if d.check(p, deadlineAt) {
			d.finish(p, OutcomeConfirmed, "")
			return
		}
	}
	select {
	case <-p.ctx.Done():
	case <-deadline.C:
		d.expire(p)
	}
}

func (d *Dispatcher) expire(p *pendingCommand) {
	if d.check(p, time.Now().Add(d.policy.CheckTimeout)) {
		d.finish(p, OutcomeConfirmed, "")
		return
	}
	d.finish(p, OutcomeTimedOut, ErrConfirmationTimeout.Error())
}

// check reads the expected attributes once, bounded by the check timeout and
// by limit.
func (d *Dispatcher) check(p *pendingCommand, limit time.Time) bool {
	if until := time.Now().Add(d.policy.CheckTimeout); until.Before(limit) {
		limit = until
	}
	ctx, cancel := context.WithDeadline(p.ctx, limit)
	defer cancel()
	attrs, err := d.target.Attributes(ctx, p.expected.keys())
	if err != nil {
		if p.ctx.Err() == nil {
			d.log.Debugf("confirmation read for %s failed: %v", p.method, err)
		}
		return false
	}
	return p.ctx.Err() == nil && p.expected.matches(attrs)
}

// finish resolves p. Callbacks run only while p is still the current entry
// for its method and the dispatcher is open.
func (d *Dispatcher) finish(p *pendingCommand, outcome Outcome, msg string) {
	d.mu.Lock()
	current := d.pending[p.method] == p
	if current {
		delete(d.pending, p.method)
		commandsPending.Dec()
	}
	live := current && !d.closed
	bus := d.bus
	d.mu.Unlock()
	p.cancel()
	if !live {
		return
	}

	latency := time.Since(p.started)
	commandOutcomes.WithLabelValues(p.method, string(outcome)).Inc()
	if outcome == OutcomeConfirmed && p.desc.Confirmable {
		confirmationLatency.WithLabelValues(string(p.desc.Class)).Observe(latency.Seconds())
	}
	switch outcome {
	case OutcomeConfirmed:
		d.log.Infof("command %s confirmed in %s", p.method, latency.Round(time.Millisecond))
	case OutcomeTimedOut:
		d.log.Warnf("command %s unconfirmed after %s", p.method, latency.Round(time.Millisecond))
	default:
		d.log.Errorf("command %s failed: %s", p.method, msg)
	}
	if bus != nil {
		bus.Publish(events.CommandOutcomeEvent{
			DispatchID: p.id,
			DeviceID:   d.target.ID(),
			Method:     p.method,
			Outcome:    string(outcome),
			Message:    msg,
			Latency:    latency,
		})
	}
	d.callback(p.method, outcome, msg)
}

func (d *Dispatcher) callback(method string, outcome Outcome, msg string) {
	switch outcome {
	case OutcomeConfirmed:
		if d.cb.OnSuccess != nil {
			d.cb.OnSuccess(method)
		}
	case OutcomeTimedOut:
		if d.cb.OnTimeout != nil {
			d.cb.OnTimeout(method)
		}
	default:
		if d.cb.OnError != nil {
			d.cb.OnError(method, msg)
		}
	}
}

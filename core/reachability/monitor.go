// Package reachability tracks whether registered devices are reachable
// through the platform and reports online/offline transitions.
package reachability

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kilianp07/agrolink/core/events"
	"github.com/kilianp07/agrolink/core/logger"
	"github.com/kilianp07/agrolink/core/model"
	coremon "github.com/kilianp07/agrolink/core/monitoring"
	"github.com/kilianp07/agrolink/core/notify"
	"github.com/kilianp07/agrolink/core/store"
	"github.com/kilianp07/agrolink/internal/eventbus"
)

const defaultCheckTimeout = 10 * time.Second

// DeviceLister lists the registered devices.
type DeviceLister interface {
	Devices(ctx context.Context) ([]model.Device, error)
}

// StatusChecker reads the reachability attribute of a remote device.
// platform.Client satisfies it.
type StatusChecker interface {
	IsOnline(ctx context.Context, tenantID, deviceID string) (bool, error)
}

// Snapshot is the last observed status of a device. OfflineSince is zero
// while the device is online.
type Snapshot struct {
	DeviceID     string
	Online       bool
	LastChecked  time.Time
	OfflineSince time.Time
}

// Monitor periodically checks every device with a remote identifier.
type Monitor struct {
	devices      DeviceLister
	checker      StatusChecker
	store        store.StatusStore
	sink         notify.Sink
	log          logger.Logger
	bus          eventbus.EventBus
	checkTimeout time.Duration
	now          func() time.Time

	mu        sync.Mutex
	snapshots map[string]Snapshot

	stopped atomic.Bool
	running atomic.Bool

	lifecycle sync.Mutex
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// New creates a reachability monitor.
func New(devices DeviceLister, checker StatusChecker, st store.StatusStore, sink notify.Sink, log logger.Logger) (*Monitor, error) {
	if devices == nil || checker == nil || st == nil || sink == nil || log == nil {
		return nil, fmt.Errorf("reachability: nil parameter provided to New")
	}
	return &Monitor{
		devices:      devices,
		checker:      checker,
		store:        st,
		sink:         sink,
		log:          log,
		checkTimeout: defaultCheckTimeout,
		now:          time.Now,
		snapshots:    make(map[string]Snapshot),
	}, nil
}

// SetEventBus configures the bus receiving DeviceTransitionEvent.
func (m *Monitor) SetEventBus(bus eventbus.EventBus) { m.bus = bus }

// SetCheckTimeout bounds each device check.
func (m *Monitor) SetCheckTimeout(d time.Duration) {
	if d > 0 {
		m.checkTimeout = d
	}
}

// Start sweeps immediately and then every interval until ctx is done or
// Stop is called.
func (m *Monitor) Start(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("reachability: interval must be positive")
	}
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()
	if m.cancel != nil {
		return fmt.Errorf("reachability: monitor already started")
	}
	if m.stopped.Load() {
		return fmt.Errorf("reachability: monitor stopped")
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
	m.log.Infof("reachability monitor started, interval %s", interval)
	return nil
}

// Stop ends the loop and waits for the running sweep. No status is written
// and no event is emitted afterwards.
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
		m.log.Errorf("reachability sweep: %v", err)
	}
}

// CheckAll checks every monitored device concurrently. Device failures are
// logged and leave the device in its last known state. A call made while a
// sweep is running returns immediately.
func (m *Monitor) CheckAll(ctx context.Context) error {
	if m.stopped.Load() {
		return nil
	}
	if !m.running.CompareAndSwap(false, true) {
		m.log.Debugf("previous reachability sweep still running, skipping")
		return nil
	}
	defer m.running.Store(false)
	start := time.Now()
	defer func() { sweepDuration.Observe(time.Since(start).Seconds()) }()

	devs, err := m.devices.Devices(ctx)
	if err != nil {
		coremon.CaptureException(err, map[string]string{"module": "reachability"})
		return fmt.Errorf("list devices: %w", err)
	}
	var wg sync.WaitGroup
	for _, d := range devs {
		if !d.Monitored() {
			continue
		}
		wg.Add(1)
		go func(d model.Device) {
			defer wg.Done()
			m.checkDevice(ctx, d)
		}(d)
	}
	wg.Wait()
	return nil
}

// Snapshot returns the cached status of a device.
func (m *Monitor) Snapshot(deviceID string) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.snapshots[deviceID]
	return s, ok
}

// Snapshots returns every cached status ordered by device.
func (m *Monitor) Snapshots() []Snapshot {
	m.mu.Lock()
	res := make([]Snapshot, 0, len(m.snapshots))
	for _, s := range m.snapshots {
		res = append(res, s)
	}
	m.mu.Unlock()
	sort.Slice(res, func(i, j int) bool { return res[i].DeviceID < res[j].DeviceID })
	return res
}

func (m *Monitor) checkDevice(ctx context.Context, d model.Device) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic checking device %s: %v", d.ID, r)
			m.log.Errorf("%v", err)
			coremon.CaptureDeviceError(err, "reachability", d.ID)
		}
	}()

	cctx, cancel := context.WithTimeout(ctx, m.checkTimeout)
	online, err := m.checker.IsOnline(cctx, d.TenantID, d.RemoteID)
	cancel()
	if err != nil {
		deviceChecks.WithLabelValues("error").Inc()
		if ctx.Err() == nil {
			m.log.Warnf("reachability check for %s failed: %v", d.ID, err)
			coremon.CaptureDeviceError(err, "reachability", d.ID)
		}
		return
	}
	deviceChecks.WithLabelValues("ok").Inc()
	if m.stopped.Load() {
		return
	}
	m.observe(ctx, d, online)
}

// observe applies one status reading to the snapshot of d.
func (m *Monitor) observe(ctx context.Context, d model.Device, online bool) {
	now := m.now()
	m.mu.Lock()
	prev, seen := m.snapshots[d.ID]
	next := Snapshot{DeviceID: d.ID, Online: online, LastChecked: now, OfflineSince: prev.OfflineSince}
	if seen && prev.Online == online {
		m.snapshots[d.ID] = next
		m.mu.Unlock()
		return
	}
	var offlineFor time.Duration
	switch {
	case !online:
		next.OfflineSince = now
	case seen && !prev.OfflineSince.IsZero():
		offlineFor = now.Sub(prev.OfflineSince)
		next.OfflineSince = time.Time{}
	default:
		next.OfflineSince = time.Time{}
	}
	m.snapshots[d.ID] = next
	m.mu.Unlock()

	deviceOnline.WithLabelValues(d.ID).Set(boolGauge(online))
	if m.stopped.Load() {
		return
	}
	if err := m.store.SaveStatus(ctx, store.DeviceStatus(next)); err != nil {
		m.log.Errorf("persist status of %s: %v", d.ID, err)
		coremon.CaptureDeviceError(err, "reachability", d.ID)
	}
	if !seen {
		m.log.Debugf("baseline for %s: online=%t", d.ID, online)
		return
	}
	m.emit(ctx, d, prev, next, offlineFor)
}

func (m *Monitor) emit(ctx context.Context, d model.Device, prev, next Snapshot, offlineFor time.Duration) {
	if m.stopped.Load() {
		return
	}
	deviceTransitions.WithLabelValues(statusLabel(next.Online)).Inc()
	meta := map[string]any{
		"previous_status": statusLabel(prev.Online),
		"new_status":      statusLabel(next.Online),
	}
	name := d.DisplayName()
	var n model.Notification
	if next.Online {
		msg := fmt.Sprintf("%s is reachable again", name)
		if offlineFor > 0 {
			meta["offline_duration_seconds"] = int64(offlineFor.Seconds())
			msg = fmt.Sprintf("%s is reachable again after %s", name, offlineFor.Round(time.Second))
		}
		n = notify.New(model.NotificationDeviceOnline, model.SeverityInfo, d.ID, "Device back online: "+name, msg, meta, next.LastChecked)
	} else {
		n = notify.New(model.NotificationDeviceOffline, model.SeverityWarning, d.ID, "Device offline: "+name,
			fmt.Sprintf("%s is no longer reachable", name), meta, next.LastChecked)
	}
	m.log.Infof("device %s is now %s", d.ID, statusLabel(next.Online))
	if err := m.sink.Notify(ctx, n); err != nil {
		m.log.Errorf("notify transition of %s: %v", d.ID, err)
		coremon.CaptureDeviceError(err, "reachability", d.ID)
	}
	if m.bus != nil {
		m.bus.Publish(events.DeviceTransitionEvent{
			DeviceID:   d.ID,
			TenantID:   d.TenantID,
			Online:     next.Online,
			OfflineFor: offlineFor,
			At:         next.LastChecked,
		})
	}
}

func statusLabel(online bool) string {
	if online {
		return "online"
	}
	return "offline"
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

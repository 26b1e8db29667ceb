package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/agrolink/api/devices"
	"github.com/kilianp07/agrolink/config"
	"github.com/kilianp07/agrolink/core/alerting"
	"github.com/kilianp07/agrolink/core/command"
	coremetrics "github.com/kilianp07/agrolink/core/metrics"
	"github.com/kilianp07/agrolink/core/model"
	coremon "github.com/kilianp07/agrolink/core/monitoring"
	"github.com/kilianp07/agrolink/core/notify"
	"github.com/kilianp07/agrolink/core/platform"
	"github.com/kilianp07/agrolink/core/reachability"
	"github.com/kilianp07/agrolink/core/registry"
	"github.com/kilianp07/agrolink/core/store"
	"github.com/kilianp07/agrolink/infra/logger"
	"github.com/kilianp07/agrolink/infra/metrics"
	"github.com/kilianp07/agrolink/infra/monitoring"
	"github.com/kilianp07/agrolink/infra/mqtt"
	infranotify "github.com/kilianp07/agrolink/infra/notify"
	infraplatform "github.com/kilianp07/agrolink/infra/platform"
	infrastore "github.com/kilianp07/agrolink/infra/store"
	"github.com/kilianp07/agrolink/internal/eventbus"
)

// StateStore persists device statuses and alert rules.
type StateStore interface {
	store.StatusStore
	store.RuleStore
	UpsertRule(ctx context.Context, r model.AlertRule) error
}

// Service wires the platform client, the monitors and their sinks.
type Service struct {
	Registry     *registry.StaticRegistry
	Platform     *infraplatform.HTTPClient
	Store        StateStore
	Reachability *reachability.Monitor
	Alerts       *alerting.Monitor

	cfg           *config.Config
	catalog       *command.Catalog
	policy        command.Policy
	bus           *eventbus.Bus
	notifications *eventbus.TypedBus[model.Notification]
	metrics       coremetrics.MetricsSink
	log           logger.Logger

	mu      sync.Mutex
	closed  bool
	closers []func() error
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")
	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	svc := &Service{
		cfg:           cfg,
		bus:           eventbus.New(),
		notifications: eventbus.NewTyped[model.Notification](),
		log:           logg,
		policy:        cfg.Commands.Policy(),
	}
	if err := svc.init(); err != nil {
		_ = svc.Close()
		return nil, err
	}
	return svc, nil
}

func (s *Service) init() error {
	cfg := s.cfg
	tenants, devices := cfg.Registry()
	reg, err := registry.NewStatic(tenants, devices)
	if err != nil {
		return fmt.Errorf("registry: %w", err)
	}
	s.Registry = reg
	s.Platform = infraplatform.NewHTTPClient(cfg.Platform, reg, logger.New("platform"))

	if s.catalog, err = cfg.Commands.Catalog(); err != nil {
		return fmt.Errorf("command catalog: %w", err)
	}
	if s.Store, err = s.openStore(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	for _, r := range cfg.Alerting.Rules {
		if err := s.Store.UpsertRule(context.Background(), r); err != nil {
			return fmt.Errorf("rule %s: %w", r.ID, err)
		}
	}

	sink, err := s.notifySink()
	if err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	if s.metrics, err = coremetrics.NewMetricsSink(cfg.Metrics.Sinks); err != nil {
		return fmt.Errorf("metrics sink: %w", err)
	}

	if s.Reachability, err = reachability.New(reg, s.Platform, s.Store, sink, logger.New("reachability")); err != nil {
		return err
	}
	s.Reachability.SetEventBus(s.bus)
	s.Reachability.SetCheckTimeout(cfg.Reachability.CheckTimeout())

	if s.Alerts, err = alerting.New(s.Store, reg, s.Platform, sink, logger.New("alerting")); err != nil {
		return err
	}
	s.Alerts.SetEventBus(s.bus)
	s.Alerts.SetFetchTimeout(cfg.Alerting.FetchTimeout())
	return nil
}

func (s *Service) openStore() (StateStore, error) {
	switch s.cfg.Store.Backend {
	case "sqlite":
		st, err := infrastore.NewSQLiteStore(s.cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		s.addCloser(st.Close)
		return st, nil
	default:
		return store.NewMemoryStore(), nil
	}
}

// notifySink combines the configured sinks, the in-process notification
// bus and, when a broker is configured, the MQTT sink.
func (s *Service) notifySink() (notify.Sink, error) {
	base, err := notify.NewSink(s.cfg.Notify.Sinks)
	if err != nil {
		return nil, err
	}
	sinks := notify.MultiSink{base, infranotify.NewBusSink(s.notifications)}
	if s.cfg.MQTT.Broker != "" {
		cli, err := mqtt.NewPahoClient(s.cfg.MQTT, logger.New("mqtt"))
		if err != nil {
			return nil, fmt.Errorf("mqtt client: %w", err)
		}
		s.addCloser(func() error { cli.Disconnect(); return nil })
		sinks = append(sinks, infranotify.NewMQTTSink(cli, s.cfg.Notify.TopicPrefix))
	}
	return sinks, nil
}

// Bus returns the domain event bus.
func (s *Service) Bus() eventbus.EventBus { return s.bus }

// Notifications subscribes to every notification emitted by the monitors.
func (s *Service) Notifications() <-chan model.Notification { return s.notifications.Subscribe() }

// Device returns the platform handle of a registered device.
func (s *Service) Device(id string) (*platform.Device, error) {
	d, err := s.Registry.Device(id)
	if err != nil {
		return nil, err
	}
	if !d.Monitored() {
		return nil, fmt.Errorf("device %s has no remote identifier", id)
	}
	return platform.Bind(s.Platform, d.TenantID, d.RemoteID), nil
}

func (s *Service) addCloser(f func() error) {
	s.mu.Lock()
	s.closers = append(s.closers, f)
	s.mu.Unlock()
}

// NewDispatcher returns a command dispatcher bound to a registered device.
// The service closes it on Close if the caller has not done so.
func (s *Service) NewDispatcher(deviceID string, cb command.Callbacks) (*command.Dispatcher, *platform.Device, error) {
	dev, err := s.Device(deviceID)
	if err != nil {
		return nil, nil, err
	}
	log := logger.New("command").With(map[string]any{"device": deviceID})
	disp, err := command.NewDispatcher(dev, s.catalog, s.policy, cb, log)
	if err != nil {
		return nil, nil, err
	}
	disp.SetEventBus(s.bus)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		disp.Close()
		return nil, nil, errors.New("service closed")
	}
	s.closers = append(s.closers, func() error { disp.Close(); return nil })
	return disp, dev, nil
}

// Run starts the monitors and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	collected := metrics.StartEventCollector(ctx, s.bus, s.metrics, s.log)
	if port := s.cfg.Metrics.PrometheusPort; port != "" {
		go func() {
			status := metrics.Route{Pattern: "/api/devices/status", Handler: devices.NewStatusHandler(s.Registry, s.Store)}
			if err := metrics.StartPromServer(ctx, port, nil, s.log, status); err != nil {
				s.log.Errorf("prom server: %v", err)
				coremon.CaptureException(err, map[string]string{"module": "metrics"})
			}
		}()
	}
	if err := s.Reachability.Start(ctx, s.cfg.Reachability.Interval()); err != nil {
		return err
	}
	if err := s.Alerts.Start(ctx, s.cfg.Alerting.Interval()); err != nil {
		s.Reachability.Stop()
		return err
	}
	s.log.Infof("agrolink running with %d tenants", len(s.cfg.Tenants))
	<-ctx.Done()
	s.Reachability.Stop()
	s.Alerts.Stop()
	<-collected
	return nil
}

// Close stops the monitors and releases resources held by the service.
func (s *Service) Close() error {
	if s.Reachability != nil {
		s.Reachability.Stop()
	}
	if s.Alerts != nil {
		s.Alerts.Stop()
	}
	s.mu.Lock()
	s.closed = true
	closers := s.closers
	s.closers = nil
	s.mu.Unlock()

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.bus.Close()
	s.notifications.Close()
	coremon.Flush(2 * time.Second)
	return errors.Join(errs...)
}

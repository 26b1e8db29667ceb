// Package registry resolves devices and tenant credentials. The project
// registry is owned by an external admin service; StaticRegistry serves the
// subset loaded from configuration.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/kilianp07/agrolink/core/model"
)

// ErrNotFound is returned for unknown devices or tenants.
var ErrNotFound = errors.New("not found")

// Registry lists the devices known to the project registry.
type Registry interface {
	Devices(ctx context.Context) ([]model.Device, error)
	Device(id string) (model.Device, error)
	Tenant(id string) (model.Tenant, error)
}

// StaticRegistry is an in-memory Registry.
type StaticRegistry struct {
	mu      sync.RWMutex
	tenants map[string]model.Tenant
	devices map[string]model.Device
}

// NewStatic validates and indexes tenants and devices.
func NewStatic(tenants []model.Tenant, devices []model.Device) (*StaticRegistry, error) {
	r := &StaticRegistry{
		tenants: make(map[string]model.Tenant, len(tenants)),
		devices: make(map[string]model.Device, len(devices)),
	}
	for _, t := range tenants {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.tenants[t.ID]; dup {
			return nil, fmt.Errorf("tenant %s declared twice", t.ID)
		}
		r.tenants[t.ID] = t
	}
	for _, d := range devices {
		if err := r.add(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *StaticRegistry) add(d model.Device) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if _, ok := r.tenants[d.TenantID]; !ok {
		return fmt.Errorf("device %s: tenant %s: %w", d.ID, d.TenantID, ErrNotFound)
	}
	if _, dup := r.devices[d.ID]; dup {
		return fmt.Errorf("device %s declared twice", d.ID)
	}
	r.devices[d.ID] = d
	return nil
}

// Put adds or replaces a device.
func (r *StaticRegistry) Put(d model.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, had := r.devices[d.ID]
	delete(r.devices, d.ID)
	if err := r.add(d); err != nil {
		if had {
			r.devices[d.ID] = prev
		}
		return err
	}
	return nil
}

// Devices returns every device ordered by id.
func (r *StaticRegistry) Devices(_ context.Context) ([]model.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]model.Device, 0, len(r.devices))
	for _, d := range r.devices {
		res = append(res, d)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (r *StaticRegistry) Device(id string) (model.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[id]
	if !ok {
		return model.Device{}, fmt.Errorf("device %s: %w", id, ErrNotFound)
	}
	return d, nil
}

func (r *StaticRegistry) Tenant(id string) (model.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tenants[id]
	if !ok {
		return model.Tenant{}, fmt.Errorf("tenant %s: %w", id, ErrNotFound)
	}
	return t, nil
}

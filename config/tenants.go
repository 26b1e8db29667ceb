package config

import (
	"fmt"

	"github.com/kilianp07/agrolink/core/model"
)

// TenantConfig holds the credentials of one platform account and the
// devices registered under it.
type TenantConfig struct {
	ID       string         `json:"id"`
	BaseURL  string         `json:"base_url"`
	Username string         `json:"username"`
	Password string         `json:"password"`
	Devices  []model.Device `json:"devices"`
}

// SetDefaults binds devices to the tenant.
func (c *TenantConfig) SetDefaults() {
	for i := range c.Devices {
		if c.Devices[i].TenantID == "" {
			c.Devices[i].TenantID = c.ID
		}
	}
}

func (c TenantConfig) Validate() error {
	if err := c.Tenant().Validate(); err != nil {
		return err
	}
	for _, d := range c.Devices {
		if d.TenantID != c.ID {
			return fmt.Errorf("tenant %s: device %s belongs to tenant %s", c.ID, d.ID, d.TenantID)
		}
		if err := d.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Tenant returns the credentials as a model value.
func (c TenantConfig) Tenant() model.Tenant {
	return model.Tenant{ID: c.ID, BaseURL: c.BaseURL, Username: c.Username, Password: c.Password}
}

// Registry splits the tenant list into the values a static registry needs.
func (c Config) Registry() ([]model.Tenant, []model.Device) {
	var (
		tenants []model.Tenant
		devices []model.Device
	)
	for _, t := range c.Tenants {
		tenants = append(tenants, t.Tenant())
		devices = append(devices, t.Devices...)
	}
	return tenants, devices
}

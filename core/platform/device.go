package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Device binds a Client to one tenant and one remote device.
type Device struct {
	client   Client
	tenantID string
	remoteID string
}

// Bind returns a Device handle.
func Bind(c Client, tenantID, remoteID string) *Device {
	return &Device{client: c, tenantID: tenantID, remoteID: remoteID}
}

// ID returns the remote identifier of the device.
func (d *Device) ID() string { return d.remoteID }

// Tenant returns the tenant the device belongs to.
func (d *Device) Tenant() string { return d.tenantID }

func (d *Device) LatestTelemetry(ctx context.Context, keys []string) (Telemetry, error) {
	return d.client.LatestTelemetry(ctx, d.tenantID, d.remoteID, keys)
}

func (d *Device) TelemetrySeries(ctx context.Context, q SeriesQuery) (Telemetry, error) {
	return d.client.TelemetrySeries(ctx, d.tenantID, d.remoteID, q)
}

func (d *Device) Attributes(ctx context.Context, keys []string) (Attributes, error) {
	return d.client.Attributes(ctx, d.tenantID, d.remoteID, keys)
}

// SendRPC sends a one-way RPC. The platform acknowledges the call without
// guaranteeing the actuator changed state.
func (d *Device) SendRPC(ctx context.Context, method string, params any, timeout time.Duration) (json.RawMessage, error) {
	return d.client.SendRPC(ctx, d.tenantID, d.remoteID, RPC{Method: method, Params: params, Timeout: timeout})
}

func (d *Device) IsOnline(ctx context.Context) (bool, error) {
	return d.client.IsOnline(ctx, d.tenantID, d.remoteID)
}

// RequireOnline returns ErrDeviceUnreachable when the device reports offline.
func (d *Device) RequireOnline(ctx context.Context) error {
	online, err := d.IsOnline(ctx)
	if err != nil {
		return err
	}
	if !online {
		return fmt.Errorf("%w: %s", ErrDeviceUnreachable, d.remoteID)
	}
	return nil
}

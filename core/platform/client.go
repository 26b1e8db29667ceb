package platform

import (
	"context"
	"encoding/json"
)

// Client is the tenant-aware surface of the remote platform.
type Client interface {
	Token(ctx context.Context, tenantID string) (Token, error)
	LatestTelemetry(ctx context.Context, tenantID, deviceID string, keys []string) (Telemetry, error)
	TelemetrySeries(ctx context.Context, tenantID, deviceID string, q SeriesQuery) (Telemetry, error)
	Attributes(ctx context.Context, tenantID, deviceID string, keys []string) (Attributes, error)
	SendRPC(ctx context.Context, tenantID, deviceID string, rpc RPC) (json.RawMessage, error)
	IsOnline(ctx context.Context, tenantID, deviceID string) (bool, error)
}

// TenantSource resolves tenant credentials. It is implemented by the
// project registry.
type TenantSource interface {
	Tenant(id string) (Tenant, error)
}

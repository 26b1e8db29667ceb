// Package platform defines the contract with the remote device-management
// platform: telemetry, attribute and RPC access for registered devices,
// authenticated per tenant.
//
// The HTTP implementation lives in infra/platform. Consumers depend on the
// narrow interfaces they need, or on Device which binds a client to one
// tenant and one remote device.
package platform

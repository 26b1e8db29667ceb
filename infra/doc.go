// Package infra holds the adapters behind the core interfaces: the HTTP
// platform client, the SQLite store, notification sinks and metrics
// exporters. Core packages never import infra.
package infra

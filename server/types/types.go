// Package types provides shared types for the server package and its subpackages.
package types

import (
	"time"

	"github.com/nomis52/vetflow/buildinfo"
)

// ServerProperties describes a running vetflow server.
type ServerProperties struct {
	Build     buildinfo.Properties `json:"build"`
	StartedAt time.Time            `json:"started_at"`
	Hostname  string               `json:"hostname"`
	// Addr is the configured listen address
	Addr string `json:"addr"`
	TLS  bool   `json:"tls"`
	// StoreBackend names the object store in use
	StoreBackend string `json:"store_backend"`
}

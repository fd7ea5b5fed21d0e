// Package control wires the reconciler's components together and manages
// their lifecycle. Chain readers and the custody gateway are constructed
// here and injected; nothing holds process-global client state.
package control

import (
	"github.com/velia-labs/settler/internal/core/config"
	"github.com/velia-labs/settler/internal/custody"
	redisclient "github.com/velia-labs/settler/internal/infra/redis"
	"github.com/velia-labs/settler/internal/infra/storage/postgres"
)

// Config holds the application configuration.
type Config struct {
	Port     int
	Chains   []config.ChainConfig
	Custody  custody.Config
	Redis    redisclient.Config
	Database postgres.Config

	// MigrationsDir overrides the default goose migrations location.
	MigrationsDir string
}

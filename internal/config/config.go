// Package config loads process configuration from the environment, the
// fallback the teacher's TOML loader uses whenever no config file is given.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// ErrConfigMissing is returned when a required environment variable is unset.
// It is a distinct, matchable error kind, not a generic fmt.Errorf string.
type ErrConfigMissing struct {
	Var string
}

func (e *ErrConfigMissing) Error() string {
	return fmt.Sprintf("config: required environment variable %s is not set", e.Var)
}

// Config holds every value the process needs to start. It is read once,
// at startup, before any goroutine runs — a missing required variable
// aborts the process before any work begins.
type Config struct {
	// DBConnectionString is the Postgres DSN for the block store.
	DBConnectionString string
	// NodeConnectionString is the JSON-RPC endpoint of the upstream chain node.
	NodeConnectionString string
	// RouterEndpoint is the host:port the HTTP surface listens on.
	RouterEndpoint string
	// DBMaxConns bounds the Postgres connection pool. Also used as the
	// default fan-out window size for update mode when --loopsize is unset.
	DBMaxConns int
	// MMRStorePath is the bbolt file backing the MMR accumulator.
	MMRStorePath string
	// Verbosity is the go-ethereum/log verbosity level (0=crit .. 5=trace).
	Verbosity int
}

const (
	envDBConnectionString   = "DB_CONNECTION_STRING"
	envNodeConnectionString = "NODE_CONNECTION_STRING"
	envRouterEndpoint       = "ROUTER_ENDPOINT"
	envDBMaxConns           = "FOSSIL_DB_MAX_CONNS"
	envMMRStorePath         = "FOSSIL_MMR_STORE_PATH"
	envVerbosity            = "FOSSIL_VERBOSITY"

	defaultDBMaxConns   = 1000
	defaultMMRStorePath = "mmr_db"
	defaultVerbosity    = 3 // log.LvlInfo
)

// Load reads the required and optional environment variables. Required
// variables missing from the environment produce *ErrConfigMissing, the
// first one encountered, matching the "ConfigMissing aborts startup before
// any work" policy.
func Load() (*Config, error) {
	cfg := &Config{
		DBMaxConns:   defaultDBMaxConns,
		MMRStorePath: defaultMMRStorePath,
		Verbosity:    defaultVerbosity,
	}

	var ok bool
	if cfg.DBConnectionString, ok = os.LookupEnv(envDBConnectionString); !ok {
		return nil, &ErrConfigMissing{Var: envDBConnectionString}
	}
	if cfg.NodeConnectionString, ok = os.LookupEnv(envNodeConnectionString); !ok {
		return nil, &ErrConfigMissing{Var: envNodeConnectionString}
	}
	if cfg.RouterEndpoint, ok = os.LookupEnv(envRouterEndpoint); !ok {
		return nil, &ErrConfigMissing{Var: envRouterEndpoint}
	}

	if v := os.Getenv(envDBMaxConns); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("config: invalid %s: %w", envDBMaxConns, err)
		}
		cfg.DBMaxConns = n
	}
	if v := os.Getenv(envMMRStorePath); v != "" {
		cfg.MMRStorePath = v
	}
	if v := os.Getenv(envVerbosity); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("config: invalid %s: %w", envVerbosity, err)
		}
		cfg.Verbosity = n
	}

	return cfg, nil
}

package main

import (
	"errors"
	"fmt"
	"time"
)

// Config holds all configuration for the gateway binary, following the
// teacher's node/config.go style: a struct of plain fields, a
// DefaultConfig, and a Validate that returns wrapped errors.
type Config struct {
	// StoreDir is where the pebble-backed store persists its data;
	// unused when StoreBackend is "memory".
	StoreDir string

	// StoreBackend selects the KVStore implementation ("memory" or
	// "pebble").
	StoreBackend string

	// ListenAddr is the JSON-RPC HTTP server's listen address.
	ListenAddr string

	// MetricsAddr is the /metrics HTTP server's listen address.
	MetricsAddr string

	// RelayURL is the relay's base URL the constraint scheduler posts to.
	RelayURL string

	// GenesisUnixSec anchors slot/epoch arithmetic.
	GenesisUnixSec int64

	// SchedulerPollInterval is how often the constraint scheduler checks
	// whether the next slot is due for release.
	SchedulerPollInterval time.Duration

	// DelegateBLSSeedHex derives the delegate BLS key this gateway signs
	// ConstraintsMessages with; must match the GatewayDelegatePubKey the
	// proposer binary is configured with.
	DelegateBLSSeedHex string

	// CommitterECDSAKeyHex is the hex-encoded secp256k1 private key this
	// gateway signs Commitments with; its derived address must match the
	// GatewayCommitterAddress the proposer binary is configured with.
	CommitterECDSAKeyHex string

	// ReceiverPubKeysHex lists the hex-encoded BLS pubkeys authorized to
	// read pre-slot constraints.
	ReceiverPubKeysHex []string

	// LogLevel controls log verbosity (debug, info, warn, error).
	LogLevel string
}

// DefaultConfig returns sensible defaults for local development.
func DefaultConfig() Config {
	return Config{
		StoreDir:              "gateway-data",
		StoreBackend:          "memory",
		ListenAddr:            "127.0.0.1:9090",
		MetricsAddr:           "127.0.0.1:9091",
		SchedulerPollInterval: 250 * time.Millisecond,
		LogLevel:              "info",
	}
}

// Validate checks configuration values for correctness.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case "memory", "pebble":
	default:
		return fmt.Errorf("config: unknown store backend %q", c.StoreBackend)
	}
	if c.StoreBackend == "pebble" && c.StoreDir == "" {
		return errors.New("config: store-dir must not be empty for the pebble backend")
	}
	if c.DelegateBLSSeedHex == "" {
		return errors.New("config: delegate-bls-seed must be set")
	}
	if c.CommitterECDSAKeyHex == "" {
		return errors.New("config: committer-ecdsa-key must be set")
	}
	if c.RelayURL == "" {
		return errors.New("config: relay-url must be set")
	}
	if c.SchedulerPollInterval <= 0 {
		return fmt.Errorf("config: invalid scheduler poll interval: %s", c.SchedulerPollInterval)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.LogLevel)
	}
	return nil
}

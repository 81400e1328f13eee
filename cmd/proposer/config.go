package main

import (
	"errors"
	"fmt"
	"time"
)

// Config holds all configuration for the proposer binary, following the
// teacher's node/config.go style.
type Config struct {
	StoreDir     string
	StoreBackend string // "memory" or "pebble"

	BeaconPrimaryURL   string
	BeaconFallbackURLs []string
	BeaconTimeout      time.Duration

	RelayURL string

	// RegistryURL, if set, is queried over HTTP to decide which proposer
	// pubkeys are "ours". If empty, OursPubKeysHex is used instead.
	RegistryURL    string
	OursPubKeysHex []string

	// ValidatorBLSSeedsHex derives the local signer's validator keys,
	// each of which must also be provisioned as a validator whose duties
	// the beacon endpoint reports.
	ValidatorBLSSeedsHex []string

	GatewayDelegatePubKeyHex   string
	GatewayCommitterAddressHex string

	PollInterval   time.Duration
	GenesisUnixSec int64
	MetricsAddr    string
	LogLevel       string
}

// DefaultConfig returns sensible defaults for local development.
func DefaultConfig() Config {
	return Config{
		StoreDir:      "proposer-data",
		StoreBackend:  "memory",
		BeaconTimeout: 5 * time.Second,
		PollInterval:  4 * time.Second,
		MetricsAddr:   "127.0.0.1:9092",
		LogLevel:      "info",
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
	if c.BeaconPrimaryURL == "" {
		return errors.New("config: beacon-primary-url must be set")
	}
	if c.RelayURL == "" {
		return errors.New("config: relay-url must be set")
	}
	if c.RegistryURL == "" && len(c.OursPubKeysHex) == 0 {
		return errors.New("config: either registry-url or at least one ours-pubkey must be set")
	}
	if len(c.ValidatorBLSSeedsHex) == 0 {
		return errors.New("config: at least one validator-bls-seed must be set")
	}
	if c.GatewayDelegatePubKeyHex == "" {
		return errors.New("config: gateway-delegate-pubkey must be set")
	}
	if c.GatewayCommitterAddressHex == "" {
		return errors.New("config: gateway-committer-address must be set")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("config: invalid poll interval: %s", c.PollInterval)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.LogLevel)
	}
	return nil
}

package main

import (
	"errors"
	"fmt"
	"time"
)

// Config holds all configuration for the relay binary, following the
// teacher's node/config.go style.
type Config struct {
	StoreDir     string
	StoreBackend string // "memory" or "pebble"

	BeaconPrimaryURL   string
	BeaconFallbackURLs []string
	BeaconTimeout      time.Duration

	ListenAddr  string
	MetricsAddr string

	// DownstreamRelayURL is both the fallback-proxy target for unmatched
	// routes and the base URL for forwarded block submissions.
	DownstreamRelayURL  string
	SubmissionPath      string
	ForwardTimeout      time.Duration

	LookaheadPollInterval time.Duration
	GenesisUnixSec        int64
	LogLevel              string
}

// DefaultConfig returns sensible defaults for local development.
func DefaultConfig() Config {
	return Config{
		StoreDir:              "relay-data",
		StoreBackend:          "memory",
		BeaconTimeout:         5 * time.Second,
		ListenAddr:            "127.0.0.1:9100",
		MetricsAddr:           "127.0.0.1:9101",
		SubmissionPath:        "/relay/v1/builder/blocks",
		ForwardTimeout:        5 * time.Second,
		LookaheadPollInterval: 6 * time.Second,
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
	if c.BeaconPrimaryURL == "" {
		return errors.New("config: beacon-primary-url must be set")
	}
	if c.DownstreamRelayURL == "" {
		return errors.New("config: downstream-relay-url must be set")
	}
	if c.SubmissionPath == "" {
		return errors.New("config: submission-path must not be empty")
	}
	if c.LookaheadPollInterval <= 0 {
		return fmt.Errorf("config: invalid lookahead poll interval: %s", c.LookaheadPollInterval)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.LogLevel)
	}
	return nil
}

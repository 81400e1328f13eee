// Command proposer runs the proposer delegation manager (spec §4.4): it
// polls upcoming proposer duties and issues at-most-one BLS-signed
// delegation per future slot.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli/v2"

	"github.com/eth-fabric/fabric/internal/beacon"
	"github.com/eth-fabric/fabric/internal/log"
	"github.com/eth-fabric/fabric/internal/obsmetrics"
	"github.com/eth-fabric/fabric/internal/relayclient"
	"github.com/eth-fabric/fabric/internal/signing"
	"github.com/eth-fabric/fabric/internal/store"
	"github.com/eth-fabric/fabric/internal/svc"
	"github.com/eth-fabric/fabric/internal/types"
	"github.com/eth-fabric/fabric/internal/urc"
	"github.com/eth-fabric/fabric/proposer"
)

var (
	version = "v0.1.0-dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	cfg := DefaultConfig()
	app := newApp(&cfg)
	app.Action = func(c *cli.Context) error {
		cfg.BeaconFallbackURLs = c.StringSlice("beacon-fallback-url")
		cfg.OursPubKeysHex = c.StringSlice("ours-pubkey")
		cfg.ValidatorBLSSeedsHex = c.StringSlice("validator-bls-seed")
		return startProposer(&cfg)
	}
	if err := app.Run(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newApp(cfg *Config) *cli.App {
	return &cli.App{
		Name:    "proposer",
		Usage:   "proposer delegation manager",
		Version: fmt.Sprintf("%s (commit %s)", version, commit),
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "store-dir", EnvVars: []string{"PROPOSER_STORE_DIR"}, Value: cfg.StoreDir, Destination: &cfg.StoreDir},
			&cli.StringFlag{Name: "store-backend", EnvVars: []string{"PROPOSER_STORE_BACKEND"}, Value: cfg.StoreBackend, Destination: &cfg.StoreBackend},
			&cli.StringFlag{Name: "beacon-primary-url", EnvVars: []string{"PROPOSER_BEACON_PRIMARY_URL"}, Destination: &cfg.BeaconPrimaryURL},
			&cli.StringSliceFlag{Name: "beacon-fallback-url", EnvVars: []string{"PROPOSER_BEACON_FALLBACK_URLS"}},
			&cli.DurationFlag{Name: "beacon-timeout", EnvVars: []string{"PROPOSER_BEACON_TIMEOUT"}, Value: cfg.BeaconTimeout, Destination: &cfg.BeaconTimeout},
			&cli.StringFlag{Name: "relay-url", EnvVars: []string{"PROPOSER_RELAY_URL"}, Destination: &cfg.RelayURL},
			&cli.StringFlag{Name: "registry-url", EnvVars: []string{"PROPOSER_REGISTRY_URL"}, Destination: &cfg.RegistryURL},
			&cli.StringSliceFlag{Name: "ours-pubkey", EnvVars: []string{"PROPOSER_OURS_PUBKEYS"}, Usage: "hex BLS pubkey treated as ours absent a registry-url (repeatable)"},
			&cli.StringSliceFlag{Name: "validator-bls-seed", EnvVars: []string{"PROPOSER_VALIDATOR_BLS_SEEDS"}, Usage: "hex seed for a local validator BLS signing key (repeatable)"},
			&cli.StringFlag{Name: "gateway-delegate-pubkey", EnvVars: []string{"PROPOSER_GATEWAY_DELEGATE_PUBKEY"}, Destination: &cfg.GatewayDelegatePubKeyHex},
			&cli.StringFlag{Name: "gateway-committer-address", EnvVars: []string{"PROPOSER_GATEWAY_COMMITTER_ADDRESS"}, Destination: &cfg.GatewayCommitterAddressHex},
			&cli.DurationFlag{Name: "poll-interval", EnvVars: []string{"PROPOSER_POLL_INTERVAL"}, Value: cfg.PollInterval, Destination: &cfg.PollInterval},
			&cli.Int64Flag{Name: "genesis-unix-sec", EnvVars: []string{"PROPOSER_GENESIS_UNIX_SEC"}, Destination: &cfg.GenesisUnixSec},
			&cli.StringFlag{Name: "metrics-addr", EnvVars: []string{"PROPOSER_METRICS_ADDR"}, Value: cfg.MetricsAddr, Destination: &cfg.MetricsAddr},
			&cli.StringFlag{Name: "log-level", EnvVars: []string{"PROPOSER_LOG_LEVEL"}, Value: cfg.LogLevel, Destination: &cfg.LogLevel},
		},
	}
}

func startProposer(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := log.New(level)
	logger.Info("proposer starting", "version", version, "beacon_primary", cfg.BeaconPrimaryURL, "relay_url", cfg.RelayURL)

	var st store.KVStore
	if cfg.StoreBackend == "pebble" {
		st, err = store.OpenPebbleStore(cfg.StoreDir)
		if err != nil {
			return fmt.Errorf("opening pebble store: %w", err)
		}
	} else {
		st = store.NewMemoryStore()
	}
	defer st.Close()

	dutiesClient := beacon.NewHTTPClient(cfg.BeaconPrimaryURL, cfg.BeaconFallbackURLs, cfg.BeaconTimeout)

	var registry urc.RegistryReader
	if cfg.RegistryURL != "" {
		registry = urc.NewHTTPRegistryReader(cfg.RegistryURL, cfg.BeaconTimeout)
	} else {
		ours, err := decodeBLSPubKeys(cfg.OursPubKeysHex)
		if err != nil {
			return err
		}
		registry = urc.NewStaticRegistryReader(ours)
	}

	blsKeys := signing.NewBLSKeyStore()
	for _, seedHex := range cfg.ValidatorBLSSeedsHex {
		seed, err := hex.DecodeString(strings.TrimPrefix(seedHex, "0x"))
		if err != nil {
			return fmt.Errorf("decoding validator-bls-seed: %w", err)
		}
		if _, err := blsKeys.AddFromSeed(seed); err != nil {
			return fmt.Errorf("deriving validator BLS key: %w", err)
		}
	}
	signer := signing.NewLocalBLSSigner(blsKeys)

	relay := relayclient.New(cfg.RelayURL)

	delegatePubRaw, err := hex.DecodeString(strings.TrimPrefix(cfg.GatewayDelegatePubKeyHex, "0x"))
	if err != nil || len(delegatePubRaw) != 48 {
		return fmt.Errorf("invalid gateway-delegate-pubkey")
	}
	var delegatePub types.BLSPubKey
	copy(delegatePub[:], delegatePubRaw)

	proposerCfg := proposer.Config{
		GatewayDelegatePubKey:   delegatePub,
		GatewayCommitterAddress: common.HexToAddress(cfg.GatewayCommitterAddressHex),
		PollInterval:            cfg.PollInterval,
		GenesisUnixSec:          cfg.GenesisUnixSec,
	}
	svcInstance := proposer.New(st, dutiesClient, signer, relay, registry, proposerCfg, logger)

	metrics := obsmetrics.NewRegistry("proposer")
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: metrics.Handler()}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group := svc.NewGroup(ctx)
	group.Go("duty-poller", svcInstance.Run)
	group.Go("metrics-server", func(ctx context.Context) error { return serveUntilCancelled(ctx, metricsServer) })

	logger.Info("proposer ready")
	err = group.Wait()
	logger.Info("proposer shut down")
	return err
}

func decodeBLSPubKeys(hexKeys []string) ([]types.BLSPubKey, error) {
	out := make([]types.BLSPubKey, 0, len(hexKeys))
	for _, hexStr := range hexKeys {
		raw, err := hex.DecodeString(strings.TrimPrefix(hexStr, "0x"))
		if err != nil || len(raw) != 48 {
			return nil, fmt.Errorf("invalid pubkey %q", hexStr)
		}
		var pub types.BLSPubKey
		copy(pub[:], raw)
		out = append(out, pub)
	}
	return out, nil
}

// serveUntilCancelled runs srv until ctx is cancelled, then shuts it down
// gracefully.
func serveUntilCancelled(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

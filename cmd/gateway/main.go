// Command gateway runs the gateway commitment/constraint engine (spec
// §4.5): a JSON-RPC commitment handler plus a background constraint
// scheduler, sharing the slot-keyed store.
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

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/urfave/cli/v2"

	"github.com/eth-fabric/fabric/gateway"
	"github.com/eth-fabric/fabric/internal/log"
	"github.com/eth-fabric/fabric/internal/obsmetrics"
	"github.com/eth-fabric/fabric/internal/relayclient"
	"github.com/eth-fabric/fabric/internal/signing"
	"github.com/eth-fabric/fabric/internal/store"
	"github.com/eth-fabric/fabric/internal/svc"
	"github.com/eth-fabric/fabric/internal/types"
)

// Build-time version info, overridable with ldflags:
//
//	go build -ldflags "-X main.version=v0.2.0 -X main.commit=abc1234"
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
		cfg.ReceiverPubKeysHex = c.StringSlice("receiver-pubkey")
		return startGateway(&cfg)
	}
	if err := app.Run(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newApp(cfg *Config) *cli.App {
	return &cli.App{
		Name:    "gateway",
		Usage:   "commitment/constraint engine",
		Version: fmt.Sprintf("%s (commit %s)", version, commit),
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "store-dir", EnvVars: []string{"GATEWAY_STORE_DIR"}, Value: cfg.StoreDir, Destination: &cfg.StoreDir},
			&cli.StringFlag{Name: "store-backend", EnvVars: []string{"GATEWAY_STORE_BACKEND"}, Value: cfg.StoreBackend, Destination: &cfg.StoreBackend, Usage: "memory or pebble"},
			&cli.StringFlag{Name: "listen-addr", EnvVars: []string{"GATEWAY_LISTEN_ADDR"}, Value: cfg.ListenAddr, Destination: &cfg.ListenAddr},
			&cli.StringFlag{Name: "metrics-addr", EnvVars: []string{"GATEWAY_METRICS_ADDR"}, Value: cfg.MetricsAddr, Destination: &cfg.MetricsAddr},
			&cli.StringFlag{Name: "relay-url", EnvVars: []string{"GATEWAY_RELAY_URL"}, Destination: &cfg.RelayURL},
			&cli.Int64Flag{Name: "genesis-unix-sec", EnvVars: []string{"GATEWAY_GENESIS_UNIX_SEC"}, Destination: &cfg.GenesisUnixSec},
			&cli.DurationFlag{Name: "scheduler-poll-interval", EnvVars: []string{"GATEWAY_SCHEDULER_POLL_INTERVAL"}, Value: cfg.SchedulerPollInterval, Destination: &cfg.SchedulerPollInterval},
			&cli.StringFlag{Name: "delegate-bls-seed", EnvVars: []string{"GATEWAY_DELEGATE_BLS_SEED"}, Destination: &cfg.DelegateBLSSeedHex, Usage: "hex seed for this gateway's BLS delegate key"},
			&cli.StringFlag{Name: "committer-ecdsa-key", EnvVars: []string{"GATEWAY_COMMITTER_ECDSA_KEY"}, Destination: &cfg.CommitterECDSAKeyHex, Usage: "hex secp256k1 private key for the committer address"},
			&cli.StringSliceFlag{Name: "receiver-pubkey", EnvVars: []string{"GATEWAY_RECEIVER_PUBKEYS"}, Usage: "hex BLS pubkey authorized to read pre-slot constraints (repeatable)"},
			&cli.StringFlag{Name: "log-level", EnvVars: []string{"GATEWAY_LOG_LEVEL"}, Value: cfg.LogLevel, Destination: &cfg.LogLevel},
		},
	}
}

func startGateway(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := log.New(level)
	logger.Info("gateway starting", "version", version, "listen_addr", cfg.ListenAddr, "relay_url", cfg.RelayURL, "store_backend", cfg.StoreBackend)

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

	blsKeys := signing.NewBLSKeyStore()
	seed, err := hex.DecodeString(strings.TrimPrefix(cfg.DelegateBLSSeedHex, "0x"))
	if err != nil {
		return fmt.Errorf("decoding delegate-bls-seed: %w", err)
	}
	delegatePub, err := blsKeys.AddFromSeed(seed)
	if err != nil {
		return fmt.Errorf("deriving delegate BLS key: %w", err)
	}

	ecdsaKeys := signing.NewECDSAKeyStore()
	committerKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.CommitterECDSAKeyHex, "0x"))
	if err != nil {
		return fmt.Errorf("decoding committer-ecdsa-key: %w", err)
	}
	ecdsaKeys.Add(committerKey)

	signer := signing.NewSigner(signing.NewLocalBLSSigner(blsKeys), signing.NewLocalECDSASigner(ecdsaKeys))
	relay := relayclient.New(cfg.RelayURL)

	receivers := make([]types.BLSPubKey, 0, len(cfg.ReceiverPubKeysHex))
	for _, hexStr := range cfg.ReceiverPubKeysHex {
		raw, err := hex.DecodeString(strings.TrimPrefix(hexStr, "0x"))
		if err != nil || len(raw) != 48 {
			return fmt.Errorf("invalid receiver pubkey %q", hexStr)
		}
		var pub types.BLSPubKey
		copy(pub[:], raw)
		receivers = append(receivers, pub)
	}

	gwCfg := gateway.Config{
		DelegatePubKey:        delegatePub,
		Receivers:             receivers,
		GenesisUnixSec:        cfg.GenesisUnixSec,
		SchedulerPollInterval: cfg.SchedulerPollInterval,
	}
	svcInstance := gateway.New(st, signer, relay, gwCfg, logger)

	metrics := obsmetrics.NewRegistry("gateway")
	handler := gateway.NewHandler(svcInstance, metrics, logger)

	rpcServer := &http.Server{Addr: cfg.ListenAddr, Handler: handler}
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: metrics.Handler()}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group := svc.NewGroup(ctx)
	group.Go("constraint-scheduler", svcInstance.Run)
	group.Go("rpc-server", func(ctx context.Context) error { return serveUntilCancelled(ctx, rpcServer) })
	group.Go("metrics-server", func(ctx context.Context) error { return serveUntilCancelled(ctx, metricsServer) })

	logger.Info("gateway ready")
	err = group.Wait()
	logger.Info("gateway shut down")
	return err
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

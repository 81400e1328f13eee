// Command relay runs the relay constraints service (spec §4.6): it serves
// signed constraints and delegations to builders, verifies submitted
// blocks' inclusion proofs, and proxies everything else to a downstream
// MEV-Boost relay.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/eth-fabric/fabric/internal/beacon"
	"github.com/eth-fabric/fabric/internal/chrono"
	"github.com/eth-fabric/fabric/internal/log"
	"github.com/eth-fabric/fabric/internal/lookahead"
	"github.com/eth-fabric/fabric/internal/obsmetrics"
	"github.com/eth-fabric/fabric/internal/relayproxy"
	"github.com/eth-fabric/fabric/internal/signing"
	"github.com/eth-fabric/fabric/internal/store"
	"github.com/eth-fabric/fabric/internal/svc"
	"github.com/eth-fabric/fabric/relay"
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
		return startRelay(&cfg)
	}
	if err := app.Run(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newApp(cfg *Config) *cli.App {
	return &cli.App{
		Name:    "relay",
		Usage:   "relay constraints service",
		Version: fmt.Sprintf("%s (commit %s)", version, commit),
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "store-dir", EnvVars: []string{"RELAY_STORE_DIR"}, Value: cfg.StoreDir, Destination: &cfg.StoreDir},
			&cli.StringFlag{Name: "store-backend", EnvVars: []string{"RELAY_STORE_BACKEND"}, Value: cfg.StoreBackend, Destination: &cfg.StoreBackend},
			&cli.StringFlag{Name: "beacon-primary-url", EnvVars: []string{"RELAY_BEACON_PRIMARY_URL"}, Destination: &cfg.BeaconPrimaryURL},
			&cli.StringSliceFlag{Name: "beacon-fallback-url", EnvVars: []string{"RELAY_BEACON_FALLBACK_URLS"}},
			&cli.DurationFlag{Name: "beacon-timeout", EnvVars: []string{"RELAY_BEACON_TIMEOUT"}, Value: cfg.BeaconTimeout, Destination: &cfg.BeaconTimeout},
			&cli.StringFlag{Name: "listen-addr", EnvVars: []string{"RELAY_LISTEN_ADDR"}, Value: cfg.ListenAddr, Destination: &cfg.ListenAddr},
			&cli.StringFlag{Name: "metrics-addr", EnvVars: []string{"RELAY_METRICS_ADDR"}, Value: cfg.MetricsAddr, Destination: &cfg.MetricsAddr},
			&cli.StringFlag{Name: "downstream-relay-url", EnvVars: []string{"RELAY_DOWNSTREAM_URL"}, Destination: &cfg.DownstreamRelayURL},
			&cli.StringFlag{Name: "submission-path", EnvVars: []string{"RELAY_SUBMISSION_PATH"}, Value: cfg.SubmissionPath, Destination: &cfg.SubmissionPath},
			&cli.DurationFlag{Name: "forward-timeout", EnvVars: []string{"RELAY_FORWARD_TIMEOUT"}, Value: cfg.ForwardTimeout, Destination: &cfg.ForwardTimeout},
			&cli.DurationFlag{Name: "lookahead-poll-interval", EnvVars: []string{"RELAY_LOOKAHEAD_POLL_INTERVAL"}, Value: cfg.LookaheadPollInterval, Destination: &cfg.LookaheadPollInterval},
			&cli.Int64Flag{Name: "genesis-unix-sec", EnvVars: []string{"RELAY_GENESIS_UNIX_SEC"}, Destination: &cfg.GenesisUnixSec},
			&cli.StringFlag{Name: "log-level", EnvVars: []string{"RELAY_LOG_LEVEL"}, Value: cfg.LogLevel, Destination: &cfg.LogLevel},
		},
	}
}

func startRelay(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := log.New(level)
	logger.Info("relay starting", "version", version, "listen_addr", cfg.ListenAddr, "downstream_relay_url", cfg.DownstreamRelayURL)

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
	clock := chrono.NewClock(cfg.GenesisUnixSec)
	la := lookahead.NewManager(clock, dutiesClient, logger)

	verifier := signing.NewVerifier()

	proxy := relayproxy.New(cfg.DownstreamRelayURL, &http.Client{Timeout: cfg.ForwardTimeout})
	forwarder := relayproxy.NewHTTPForwarder(cfg.DownstreamRelayURL, cfg.SubmissionPath, cfg.ForwardTimeout)

	relayCfg := relay.Config{
		GenesisUnixSec:        cfg.GenesisUnixSec,
		LookaheadPollInterval: cfg.LookaheadPollInterval,
	}
	svcInstance := relay.New(st, verifier, la, forwarder, relayCfg, logger)

	metrics := obsmetrics.NewRegistry("relay")
	server := relay.NewServer(svcInstance, proxy, metrics, logger)

	restServer := &http.Server{Addr: cfg.ListenAddr, Handler: server}
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: metrics.Handler()}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group := svc.NewGroup(ctx)
	group.Go("lookahead-updater", svcInstance.RunLookaheadUpdater)
	group.Go("rest-server", func(ctx context.Context) error { return serveUntilCancelled(ctx, restServer) })
	group.Go("metrics-server", func(ctx context.Context) error { return serveUntilCancelled(ctx, metricsServer) })

	logger.Info("relay ready")
	err = group.Wait()
	logger.Info("relay shut down")
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

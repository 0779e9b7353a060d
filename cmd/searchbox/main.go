package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/searchbox/searchbox/internal/config"
	"github.com/searchbox/searchbox/internal/document"
	"github.com/searchbox/searchbox/internal/elastic"
	"github.com/searchbox/searchbox/internal/logging"
	"github.com/searchbox/searchbox/internal/metrics"
	"github.com/searchbox/searchbox/internal/monitor"
	"github.com/searchbox/searchbox/internal/server"
	"github.com/searchbox/searchbox/internal/stack"
	"github.com/searchbox/searchbox/internal/state"
)

func main() {
	// 1. Define ALL flags at the top
	cfgFile := flag.String("config", "", "Path to config file")
	listen := flag.String("listen", "", "HTTP listen address (overrides config)")
	esURL := flag.String("es-url", "", "Elasticsearch URL (overrides config)")

	// Mode flags
	check := flag.Bool("check", false, "ping the cluster once and exit")
	stackUp := flag.Bool("stack-up", false, "start the local Elasticsearch container and exit")
	stackDown := flag.Bool("stack-down", false, "stop and remove the local Elasticsearch container and exit")

	// 2. Parse ONCE
	flag.Parse()

	cfg := config.DefaultConfig()
	// load from file if provided (overrides defaults)
	if *cfgFile != "" {
		c, err := config.LoadConfigFromFile(*cfgFile)
		if err != nil {
			log.Fatalf("failed loading config: %v", err)
		}
		cfg = c
	}

	// apply env var overrides (overrides file/defaults)
	if err := config.ApplyEnvOverrides(cfg); err != nil {
		log.Fatalf("invalid environment configuration: %v", err)
	}

	// CLI flags have highest precedence (override env/file/defaults)
	if *listen != "" {
		cfg.ListenAddr = *listen
	}
	if *esURL != "" {
		cfg.ESURL = *esURL
	}

	cleanup := initLogging()
	defer cleanup()

	// 3. Handle mode flags before the daemon path
	if *stackUp || *stackDown {
		runStackMode(cfg, *stackUp)
		return
	}
	if *check {
		runCheckMode(cfg)
		return
	}

	initMetrics(cfg)

	store := createStoreOrFatal(cfg)
	ctx := context.Background()

	// Block until the cluster answers. The service has nothing useful to
	// serve without it.
	waitForCluster(ctx, cfg, store)
	ensureIndex(ctx, cfg, store)

	runServerAndWait(ctx, cfg, store)
}

// initLogging initializes the log subsystem from env and returns a cleanup func
func initLogging() func() {
	logLevel := os.Getenv("SEARCHBOX_LOG_LEVEL")
	logFile := os.Getenv("SEARCHBOX_LOG_FILE")
	cleanup, err := logging.Init(logFile, logLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	return cleanup
}

// initMetrics starts the optional metrics server
func initMetrics(cfg *config.Config) {
	if !cfg.MetricsEnabled {
		return
	}
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.PromHandler())
		mux.Handle("/status", metrics.JSONHandler())
		addr := fmt.Sprintf(":%d", cfg.MetricsPort)
		logging.Get().Info().Str("addr", addr).Msg("starting metrics server")
		_ = http.ListenAndServe(addr, mux)
	}()
}

// runStackMode starts or tears down the local cluster container and exits
func runStackMode(cfg *config.Config, up bool) {
	s, err := stack.New(cfg)
	if err != nil {
		logging.Get().Fatal().Err(err).Msg("failed to create docker client")
	}
	ctx := context.Background()
	if up {
		if err := s.Up(ctx); err != nil {
			logging.Get().Fatal().Err(err).Msg("stack up failed")
		}
		logging.Get().Info().Str("url", cfg.ESURL).Msg("cluster is up")
		return
	}
	if err := s.Down(ctx); err != nil {
		logging.Get().Fatal().Err(err).Msg("stack down failed")
	}
}

// runCheckMode performs a single cluster ping and exits non-zero on failure
func runCheckMode(cfg *config.Config) {
	store := createStoreOrFatal(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), cfg.WaitTimeout)
	defer cancel()
	if err := store.Ping(ctx); err != nil {
		logging.Get().Error().Err(err).Str("url", cfg.ESURL).Msg("cluster check failed")
		os.Exit(1)
	}
	logging.Get().Info().Str("url", cfg.ESURL).Msg("cluster check ok")
}

// createStoreOrFatal creates the search client or exits
func createStoreOrFatal(cfg *config.Config) elastic.Store {
	store, err := elastic.NewClient(cfg.ESURL)
	if err != nil {
		logging.Get().Fatal().Err(err).Str("url", cfg.ESURL).Msg("failed to create search client")
	}
	return store
}

// waitForCluster blocks until the cluster answers or the retry budget runs out
func waitForCluster(ctx context.Context, cfg *config.Config, store elastic.Store) {
	opts := elastic.WaitOptions{
		Attempts: cfg.WaitAttempts,
		Interval: cfg.WaitInterval,
		Timeout:  cfg.WaitTimeout,
	}
	if err := elastic.Wait(ctx, store, opts); err != nil {
		logging.Get().Fatal().Err(err).Str("url", cfg.ESURL).Msg("cluster did not become ready")
	}
}

// ensureIndex creates the document index with its mapping unless the state
// file records that the current mapping version is already in place.
func ensureIndex(ctx context.Context, cfg *config.Config, store elastic.Store) {
	rec, ok, err := state.GetIndexRecord(cfg.ESIndex)
	if err != nil {
		logging.Get().Warn().Err(err).Msg("could not read index state, ensuring index anyway")
	}
	if ok && rec.MappingVersion == document.MappingVersion {
		logging.Get().Debug().Str("index", cfg.ESIndex).Msg("index mapping already ensured")
		return
	}
	if err := store.EnsureIndex(ctx, cfg.ESIndex, document.Mapping()); err != nil {
		logging.Get().Fatal().Err(err).Str("index", cfg.ESIndex).Msg("failed to ensure index")
	}
	err = state.PutIndexRecord(state.IndexRecord{
		Index:          cfg.ESIndex,
		MappingVersion: document.MappingVersion,
		EnsuredAt:      time.Now().UTC(),
	})
	if err != nil {
		logging.Get().Warn().Err(err).Msg("failed to record index state")
	}
}

// runServerAndWait starts the monitor and HTTP server, then waits for a
// shutdown signal
func runServerAndWait(ctx context.Context, cfg *config.Config, store elastic.Store) {
	mon := monitor.New(cfg, store)
	go mon.Start()

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.New(cfg, store, mon).Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Get().Info().Str("addr", cfg.ListenAddr).Msg("starting document API")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logging.Get().Fatal().Err(err).Msg("http server failed")
	case s := <-sig:
		logging.Get().Info().Str("signal", s.String()).Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Get().Error().Err(err).Msg("http shutdown did not complete cleanly")
	}
	mon.Stop(shutdownCtx)
}

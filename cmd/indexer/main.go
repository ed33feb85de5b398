// Command indexer replays a block event log through the order book engine and
// persists order books, snapshots and progress to the configured stores.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"orderbook-lab/internal/config"
	"orderbook-lab/internal/indexer"
	"orderbook-lab/internal/logging"
	"orderbook-lab/internal/observability"
	"orderbook-lab/internal/replay"
	"orderbook-lab/internal/stores"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	eventsPath := flag.String("events", "", "Block event log (JSON lines); overrides driver.events_path, - for stdin")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(2)
	}
	if *eventsPath != "" {
		cfg.Driver.EventsPath = *eventsPath
	}

	logger, syncLog, err := logging.New(cfg.IsProduction(), cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(2)
	}
	defer syncLog()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("interrupted")
			return
		}
		logger.Error("indexer failed", "error", err)
		syncLog()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	resolutions, err := cfg.Engine.ParsedResolutions()
	if err != nil {
		return err
	}

	events, closeEvents, err := openEvents(cfg.Driver.EventsPath)
	if err != nil {
		return err
	}
	defer closeEvents()

	set, err := stores.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer set.Close()

	srv := startHTTPServer(cfg.Metrics.Addr, logger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	proc, _ := indexer.Build(set.Stores, indexer.NewPeers(), indexer.Settings{
		Resolutions:     resolutions,
		FlushThreshold:  cfg.Engine.FlushThresholdBlocks,
		SS58Prefix:      cfg.Engine.SS58Prefix,
		DailyStatsEvery: cfg.Engine.DailyStatsEveryBlocks,
		Logger:          logger,
	})

	runner := replay.NewRunner(set.Progress, cfg.Driver.SyncEveryBlocks, logger)

	start := time.Now()
	res, err := runner.Run(ctx, replay.NewReader(events), proc)
	if err != nil {
		return err
	}

	attrs := []any{
		"blocks", res.Blocks,
		"events", res.Events,
		"skipped", res.Skipped,
		"elapsed", time.Since(start).Round(time.Millisecond),
	}
	if res.Confirmed != nil {
		attrs = append(attrs, "last_block", res.Confirmed.Height)
	}
	logger.Info("replay complete", attrs...)
	return nil
}

func openEvents(path string) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open event log: %w", err)
	}
	return f, func() { f.Close() }, nil
}

// startHTTPServer serves /health and /metrics until shut down.
func startHTTPServer(addr string, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("http server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", "error", err)
		}
	}()
	return srv
}

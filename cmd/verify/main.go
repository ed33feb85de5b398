// Command verify checks that restarting the indexer mid-log yields the same
// persisted state as an uninterrupted run over the same event log.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"orderbook-lab/internal/config"
	"orderbook-lab/internal/indexer"
	"orderbook-lab/internal/logging"
	"orderbook-lab/internal/replay"
	"orderbook-lab/internal/verification"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (engine settings only)")
	eventsPath := flag.String("events", "", "Block event log (JSON lines, required)")
	restartAfter := flag.Int64("restart-after", -1, "Last block before the restart (default: middle of the log)")
	syncEvery := flag.Int64("sync-every", 0, "Sync cadence in blocks (default: driver.sync_every_blocks)")
	outputJSON := flag.Bool("json", false, "Output report as JSON")
	flag.Parse()

	if *eventsPath == "" {
		fmt.Fprintln(os.Stderr, "--events is required")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(2)
	}
	logger, syncLog, err := logging.New(cfg.IsProduction(), cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(2)
	}
	defer syncLog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	f, err := os.Open(*eventsPath)
	if err != nil {
		logger.Error("open event log", "error", err)
		os.Exit(1)
	}
	blocks, err := replay.ReadBlocks(f)
	f.Close()
	if err != nil {
		logger.Error("read event log", "error", err)
		os.Exit(1)
	}
	if len(blocks) < 2 {
		logger.Error("event log needs at least two blocks", "blocks", len(blocks))
		os.Exit(1)
	}

	if *restartAfter < 0 {
		*restartAfter = blocks[(len(blocks)-1)/2].Height
	}
	if *syncEvery <= 0 {
		*syncEvery = cfg.Driver.SyncEveryBlocks
	}
	resolutions, err := cfg.Engine.ParsedResolutions()
	if err != nil {
		logger.Error("resolutions", "error", err)
		os.Exit(2)
	}

	report, err := verification.CheckDeterminism(ctx, blocks, verification.MemoryStores, verification.DeterminismOptions{
		RestartAfter: *restartAfter,
		SyncEvery:    *syncEvery,
		Settings: indexer.Settings{
			Resolutions:     resolutions,
			FlushThreshold:  cfg.Engine.FlushThresholdBlocks,
			SS58Prefix:      cfg.Engine.SS58Prefix,
			DailyStatsEvery: cfg.Engine.DailyStatsEveryBlocks,
			Logger:          logger,
		},
	})
	if err != nil {
		logger.Error("determinism check failed", "error", err)
		os.Exit(1)
	}

	if *outputJSON {
		output, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(output))
	} else {
		printReport(report)
	}

	if !report.Match() {
		os.Exit(1)
	}
}

func printReport(r *verification.DeterminismReport) {
	fmt.Printf("\n=== Determinism Report ===\n")
	fmt.Printf("Blocks:         %d\n", r.Blocks)
	fmt.Printf("Restart After:  %d\n", r.RestartAfter)
	fmt.Printf("Order Books:    %d\n", r.OrderBooks)
	fmt.Printf("Snapshots:      %d\n", r.Snapshots)
	if r.Match() {
		fmt.Printf("Result:         MATCH\n")
		return
	}
	fmt.Printf("Result:         DIVERGED (%d entities)\n", len(r.Divergences))
	for _, d := range r.Divergences {
		fmt.Printf("  %s %s\n", d.Kind, d.ID)
		for _, f := range d.Fields {
			fmt.Printf("    %-24s expected=%v actual=%v\n", f.Field, f.Expected, f.Actual)
		}
	}
}

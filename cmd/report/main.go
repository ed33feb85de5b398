// Command report writes a Markdown and CSV summary of the persisted order books.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"orderbook-lab/internal/config"
	"orderbook-lab/internal/logging"
	"orderbook-lab/internal/reporting"
	"orderbook-lab/internal/stores"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	outputDir := flag.String("output-dir", "docs", "Output directory for generated files")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(2)
	}
	if cfg.Storage.OrderBooks == config.BackendMemory || cfg.Storage.Snapshots == config.BackendMemory {
		fmt.Fprintln(os.Stderr, "Warning: memory storage selected, report will be empty")
	}

	logger, syncLog, err := logging.New(cfg.IsProduction(), cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(2)
	}
	defer syncLog()

	ctx := context.Background()

	set, err := stores.Open(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening stores: %v\n", err)
		os.Exit(1)
	}
	defer set.Close()

	report, err := reporting.NewGenerator(set.OrderBooks, set.Snapshots).Generate(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating report: %v\n", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}

	mdPath := filepath.Join(*outputDir, "ORDER_BOOKS.md")
	if err := os.WriteFile(mdPath, []byte(reporting.RenderMarkdown(report)), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", mdPath, err)
		os.Exit(1)
	}
	csvPath := filepath.Join(*outputDir, "order_books.csv")
	if err := os.WriteFile(csvPath, []byte(reporting.RenderCSV(report.OrderBooks)), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", csvPath, err)
		os.Exit(1)
	}

	fmt.Printf("Generated %s and %s (%d order books, %d snapshots)\n",
		mdPath, csvPath, report.Summary.OrderBooks, report.Summary.Snapshots)
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"social_monitor/internal/config"
	"social_monitor/internal/logging"
	"social_monitor/internal/report"
	"social_monitor/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	dbPath := flag.String("db", cfg.DatabasePath, "path to sqlite database")
	campaignID := flag.Int64("campaign", 0, "campaign id to export")
	out := flag.String("out", "", "output file (default campaign_<id>_report.xlsx)")
	flag.Parse()

	log, closer := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	defer func() { _ = closer.Close() }()

	if *campaignID <= 0 {
		fmt.Fprintln(os.Stderr, "Usage: export -campaign <id> [-db path] [-out file]")
		_ = closer.Close()
		os.Exit(2)
	}

	if err := export(context.Background(), *dbPath, *campaignID, *out); err != nil {
		log.Error("export failed", "campaign_id", *campaignID, "error", err)
		_ = closer.Close()
		os.Exit(1)
	}
}

func export(ctx context.Context, dbPath string, campaignID int64, out string) error {
	store, err := storage.NewSQLite(dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	c, err := store.GetCampaign(ctx, campaignID)
	if err != nil {
		return fmt.Errorf("get campaign: %w", err)
	}
	if c == nil {
		return fmt.Errorf("campaign %d not found", campaignID)
	}

	results, err := store.ListResults(ctx, campaignID)
	if err != nil {
		return fmt.Errorf("list results: %w", err)
	}

	if out == "" {
		out = report.Filename(c)
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create %s: %w", out, err)
	}
	if err := report.WriteXLSX(f, c, results); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", out, err)
	}

	fmt.Printf("wrote %d results to %s\n", len(results), out)
	return nil
}

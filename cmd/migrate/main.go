package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"social_monitor/internal/config"
	"social_monitor/internal/logging"
	"social_monitor/migrations"
)

type command struct {
	name  string
	usage string
	run   func(db *sql.DB, args []string) error
}

var commands = []command{
	{"up", "Migrate to the latest version", func(db *sql.DB, _ []string) error { return goose.Up(db, ".") }},
	{"up-one", "Migrate one version up", func(db *sql.DB, _ []string) error { return goose.UpByOne(db, ".") }},
	{"down", "Roll back one version", func(db *sql.DB, _ []string) error { return goose.Down(db, ".") }},
	{"down-to", "Roll back to the given version", downTo},
	{"redo", "Roll back and reapply the latest version", func(db *sql.DB, _ []string) error { return goose.Redo(db, ".") }},
	{"status", "Show migration status", func(db *sql.DB, _ []string) error { return goose.Status(db, ".") }},
	{"version", "Show current version", func(db *sql.DB, _ []string) error { return goose.Version(db, ".") }},
	{"reset", "Roll back all migrations", func(db *sql.DB, _ []string) error { return goose.Reset(db, ".") }},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	dbPath := flag.String("db", cfg.DatabasePath, "path to sqlite database")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	log, closer := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	defer func() { _ = closer.Close() }()

	cmd, ok := lookup(args[0])
	if !ok {
		log.Error("unknown command", "command", args[0])
		_ = closer.Close()
		os.Exit(2)
	}

	if err := migrate(*dbPath, cmd, args[1:]); err != nil {
		log.Error("migrate failed", "command", cmd.name, "database", *dbPath, "error", err)
		_ = closer.Close()
		os.Exit(1)
	}
}

func migrate(dbPath string, cmd command, args []string) error {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := migrations.Prepare(); err != nil {
		return err
	}
	return cmd.run(db, args)
}

func downTo(db *sql.DB, args []string) error {
	if len(args) != 1 {
		return errors.New("down-to requires a version")
	}
	version, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("parse version %q: %w", args[0], err)
	}
	return goose.DownTo(db, ".", version)
}

func lookup(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: migrate [-db path] <command> [args]")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Commands:")
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-10s  %s\n", c.name, c.usage)
	}
}

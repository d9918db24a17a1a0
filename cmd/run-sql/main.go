package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"fusionbi/internal/config"
	"fusionbi/internal/infrastructure"
	"fusionbi/internal/store"
)

// run executes the script named by args against the configured database.
func run(ctx context.Context, cfg *config.Config, args []string, stdout, stderr io.Writer, logger *slog.Logger) error {
	fs := flag.NewFlagSet("run-sql", flag.ContinueOnError)
	fs.SetOutput(stderr)
	database := fs.String("database", "", "database to run against (defaults to the configured one)")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: run-sql [-database name] script.sql")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errors.New("exactly one script file is required")
	}

	path := fs.Arg(0)
	script, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read script: %w", err)
	}

	db, err := store.Open(ctx, cfg.Database, *database, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	logger.Info("running script",
		slog.String("file", path),
		slog.String("database", db.Name()),
		slog.Int("batches", len(store.SplitBatches(string(script)))),
	)

	n, err := db.ExecScript(ctx, string(script))
	fmt.Fprintf(stdout, "%d batch(es) executed from %s\n", n, path)
	return err
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Warn("Failed to initialize logger, using default", slog.String("error", err.Error()))
		logger = slog.Default()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Args[1:], os.Stdout, os.Stderr, logger); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		logger.Error("Script failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

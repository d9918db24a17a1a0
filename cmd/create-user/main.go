package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"fusionbi/internal/auth"
	"fusionbi/internal/config"
	"fusionbi/internal/infrastructure"
	"fusionbi/internal/store"
	"fusionbi/pkg/contracts/domain"
)

// options holds the parsed command line.
type options struct {
	username string
	email    string
	first    string
	last     string
	role     string
	inactive bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("create-user", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.username, "username", "", "login name (required)")
	fs.StringVar(&opts.email, "email", "", "email address (required)")
	fs.StringVar(&opts.first, "first", "", "first name")
	fs.StringVar(&opts.last, "last", "", "last name")
	fs.StringVar(&opts.role, "role", domain.DefaultRole, "portal role")
	fs.BoolVar(&opts.inactive, "inactive", false, "create the account disabled")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	opts.username = strings.TrimSpace(opts.username)
	opts.email = strings.TrimSpace(opts.email)
	if opts.username == "" || opts.email == "" {
		return opts, errors.New("-username and -email are required")
	}
	return opts, nil
}

// readPassword reads the password and its confirmation, one per line.
func readPassword(in io.Reader, prompt io.Writer) (string, error) {
	scanner := bufio.NewScanner(in)
	read := func(label string) (string, error) {
		fmt.Fprint(prompt, label)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return "", err
			}
			return "", io.ErrUnexpectedEOF
		}
		return strings.TrimRight(scanner.Text(), "\r"), nil
	}

	password, err := read("Password: ")
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	confirm, err := read("Confirm password: ")
	if err != nil {
		return "", fmt.Errorf("read password confirmation: %w", err)
	}
	if password == "" {
		return "", errors.New("password must not be empty")
	}
	if password != confirm {
		return "", errors.New("passwords do not match")
	}
	return password, nil
}

// run creates the account described by args and returns its id.
func run(ctx context.Context, cfg *config.Config, args []string, stdin io.Reader, stdout, stderr io.Writer, logger *slog.Logger) (int64, error) {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return 0, err
	}

	password, err := readPassword(stdin, stderr)
	if err != nil {
		return 0, err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return 0, err
	}

	db, err := store.Open(ctx, cfg.Database, "", logger)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	id, err := store.NewPortalRepository(db, logger).CreateUser(ctx, domain.NewUser{
		Username:     opts.username,
		Email:        opts.email,
		PasswordHash: hash,
		FirstName:    opts.first,
		LastName:     opts.last,
		Role:         opts.role,
		IsActive:     !opts.inactive,
	})
	if err != nil {
		return 0, err
	}

	fmt.Fprintf(stdout, "created user %s (id %d)\n", opts.username, id)
	return id, nil
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

	if _, err := run(context.Background(), cfg, os.Args[1:], os.Stdin, os.Stdout, os.Stderr, logger); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		logger.Error("Failed to create user", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

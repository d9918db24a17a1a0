package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"fusionbi/internal/auth"
)

// run reads one password line from in and writes its bcrypt hash to out.
func run(in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		return errors.New("no password on stdin")
	}

	hash, err := auth.HashPassword(strings.TrimRight(scanner.Text(), "\r"))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, hash)
	return err
}

func main() {
	if err := run(os.Stdin, os.Stdout); err != nil {
		slog.Error("Failed to hash password", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

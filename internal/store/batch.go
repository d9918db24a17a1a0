package store

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

var batchSeparator = regexp.MustCompile(`(?im)^\s*GO\s*$`)

// SplitBatches splits a T-SQL script on GO lines and drops empty batches.
func SplitBatches(script string) []string {
	var batches []string
	for _, part := range batchSeparator.Split(script, -1) {
		if part = strings.TrimSpace(part); part != "" {
			batches = append(batches, part)
		}
	}
	return batches
}

// ExecScript runs the batches of script in order and stops at the first
// failure. It returns how many batches succeeded.
func (db *DB) ExecScript(ctx context.Context, script string) (int, error) {
	batches := SplitBatches(script)
	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if _, err := db.ExecContext(ctx, batch); err != nil {
			return i, fmt.Errorf("batch %d of %d: %w", i+1, len(batches), err)
		}
	}
	return len(batches), nil
}

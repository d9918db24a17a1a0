package reporting

import (
	"context"
	"database/sql"
	"sync"
	"sync/atomic"
	"time"
)

// fakeSource is an in-memory MovementSource that counts calls.
type fakeSource struct {
	mu        sync.Mutex
	movements map[string][]RawMovement
	expected  []ExpectedMovement
	months    []string

	movementErr error
	expectedErr error
	gate        chan struct{}

	movementCalls atomic.Int32
	expectedCalls atomic.Int32
}

func newFakeSource() *fakeSource {
	return &fakeSource{movements: make(map[string][]RawMovement)}
}

func (f *fakeSource) FetchMovements(ctx context.Context, start, end time.Time) ([]RawMovement, error) {
	f.movementCalls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.movementErr != nil {
		return nil, f.movementErr
	}
	return f.movements[start.Format("2006-01")], nil
}

func (f *fakeSource) FetchActiveExpected(ctx context.Context) ([]ExpectedMovement, error) {
	f.expectedCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.expectedErr != nil {
		return nil, f.expectedErr
	}
	return f.expected, nil
}

func (f *fakeSource) FetchMonths(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.movementErr != nil {
		return nil, f.movementErr
	}
	return f.months, nil
}

func (f *fakeSource) setMovementErr(err error) {
	f.mu.Lock()
	f.movementErr = err
	f.mu.Unlock()
}

func expectedRow(principal, iface, code string) ExpectedMovement {
	return ExpectedMovement{PrincipalCode: principal, InterfaceCode: iface, MovementCode: code, Active: true}
}

func rawRow(id int64, run, principal, iface, code, status string, start time.Time, took time.Duration) RawMovement {
	r := RawMovement{
		DetailID:      id,
		RunID:         run,
		PrincipalCode: principal,
		InterfaceCode: iface,
		MovementCode:  code,
		Status:        status,
		StartTime:     TimeOf(start),
		FileSizeBytes: NumberOf(1024),
	}
	if took >= 0 {
		r.EndTime = TimeOf(start.Add(took))
	}
	return r
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: true}
}

func record(run, principal, iface, code string) MovementRecord {
	return MovementRecord{
		RunID:         run,
		PrincipalCode: principal,
		PrincipalName: principal,
		InterfaceCode: iface,
		InterfaceName: iface,
		MovementCode:  code,
	}
}

func day(d int) time.Time {
	return time.Date(2025, time.January, d, 8, 0, 0, 0, time.UTC)
}

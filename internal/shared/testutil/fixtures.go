package testutil

import (
	"database/sql"
	"time"

	"fusionbi/internal/reporting"
)

// Movement builds a raw movement row. A negative took leaves the row in progress.
func Movement(id int64, run, principal, iface, code, status string, start time.Time, took time.Duration) reporting.RawMovement {
	row := reporting.RawMovement{
		DetailID:      id,
		RunID:         run,
		PrincipalCode: principal,
		PrincipalName: sql.NullString{String: principal + " Corp", Valid: true},
		InterfaceCode: iface,
		InterfaceName: sql.NullString{String: iface + " feed", Valid: true},
		MovementCode:  code,
		FileName:      code + ".csv",
		FileSizeBytes: reporting.NumberOf(1024),
		Status:        status,
		StartTime:     reporting.TimeOf(start),
	}
	if took >= 0 {
		row.EndTime = reporting.TimeOf(start.Add(took))
	}
	if !reporting.IsSuccessStatus(status) {
		row.ErrorMessage = sql.NullString{String: "transfer refused", Valid: true}
	}
	return row
}

// Expected builds an active movement configuration row.
func Expected(principal, iface, code string) reporting.ExpectedMovement {
	return reporting.ExpectedMovement{
		PrincipalCode: principal,
		InterfaceCode: iface,
		MovementCode:  code,
		InterfaceName: iface + " feed",
		Active:        true,
	}
}

// Snapshot assembles a month snapshot the same way the month cache does.
func Snapshot(monthKey string, rows []reporting.RawMovement, expected []reporting.ExpectedMovement) *reporting.MonthSnapshot {
	rng, err := reporting.ParseMonthKey(monthKey)
	if err != nil {
		panic(err)
	}
	records := reporting.Normalize(rows)
	idx := reporting.BuildExpectedIndex(expected)
	return &reporting.MonthSnapshot{
		MonthKey:      rng.Key,
		Start:         rng.Start,
		End:           rng.End,
		Records:       records,
		ExpectedRows:  expected,
		ExpectedIndex: idx,
		Completeness:  reporting.Classify(records, idx),
		LoadedAt:      rng.Start,
	}
}

// SampleSnapshot returns a small January 2025 month with one complete route,
// one incomplete route, one unknown route and a failed transfer.
func SampleSnapshot() *reporting.MonthSnapshot {
	day := time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC)
	rows := []reporting.RawMovement{
		Movement(1, "R1", "P1", "I1", "M1", "SUCCESS", day, time.Minute),
		Movement(2, "R1", "P1", "I1", "M2", "SUCCESS", day.Add(time.Hour), 2*time.Minute),
		Movement(3, "R1", "P1", "I2", "M3", "FAILED", day.Add(2*time.Hour), time.Minute),
		Movement(4, "R2", "P2", "I3", "M9", "SUCCESS", day.AddDate(0, 0, 1), -1),
	}
	expected := []reporting.ExpectedMovement{
		Expected("P1", "I1", "M1"),
		Expected("P1", "I1", "M2"),
		Expected("P1", "I2", "M3"),
		Expected("P1", "I2", "M4"),
	}
	return Snapshot("2025-01", rows, expected)
}

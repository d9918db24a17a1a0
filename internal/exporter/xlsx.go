package exporter

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"fusionbi/internal/reporting"
)

// Sheet names, in workbook order.
const (
	SheetSummary      = "Summary"
	SheetRecords      = "Records"
	SheetCompleteness = "Completeness"
)

// ContentType is the media type of the workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const timeLayout = "2006-01-02 15:04:05"

var recordHeaders = []interface{}{
	"Detail ID", "Run ID", "Principal Code", "Principal", "Interface Code", "Interface",
	"Movement Code", "File Name", "File Size (bytes)", "Status", "Success", "Error",
	"Start Time", "End Time", "Duration (s)", "In Progress",
}

var completenessHeaders = []interface{}{
	"Run ID", "Principal Code", "Principal", "Interface Code", "Interface",
	"Actual Movements", "Expected Movements", "Completeness", "Route Status",
}

// MonthReport is one month narrowed to a filter, ready to be written.
type MonthReport struct {
	Month        string
	Filter       reporting.Filter
	Summary      *reporting.AggregateResult
	Completeness []reporting.RouteCompleteness
	Records      []reporting.MovementRecord
	GeneratedAt  time.Time
}

// NewMonthReport applies filter to snap.
func NewMonthReport(snap *reporting.MonthSnapshot, filter reporting.Filter, opts reporting.AggregateOptions) *MonthReport {
	return &MonthReport{
		Month:        snap.MonthKey,
		Filter:       filter.Normalized(),
		Summary:      reporting.Aggregate(snap, filter, opts),
		Completeness: reporting.FilterCompleteness(snap, filter),
		Records:      reporting.FilterRecords(snap, filter),
		GeneratedAt:  time.Now().UTC(),
	}
}

// FileName returns the download name, e.g. movements-2025-01-P1.xlsx.
func (r *MonthReport) FileName() string {
	parts := []string{"movements", r.Month}
	for _, v := range []string{r.Filter.Principal, r.Filter.Interface} {
		if v != "" {
			parts = append(parts, safeName(v))
		}
	}
	return strings.Join(parts, "-") + ".xlsx"
}

func safeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		}
		return '_'
	}, s)
}

// WriteTo builds the workbook and writes it to w.
func (r *MonthReport) WriteTo(w io.Writer) (int64, error) {
	f, err := r.Workbook()
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return f.WriteTo(w)
}

// Workbook builds the workbook in memory. The caller closes it.
func (r *MonthReport) Workbook() (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		f.Close()
		return nil, err
	}
	for _, name := range []string{SheetRecords, SheetCompleteness} {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, err
	}

	steps := []struct {
		sheet string
		write func(*excelize.StreamWriter, int) error
	}{
		{SheetSummary, r.writeSummary},
		{SheetRecords, r.writeRecords},
		{SheetCompleteness, r.writeCompleteness},
	}
	for _, step := range steps {
		sw, err := f.NewStreamWriter(step.sheet)
		if err != nil {
			f.Close()
			return nil, err
		}
		if err := step.write(sw, bold); err != nil {
			f.Close()
			return nil, fmt.Errorf("write %s sheet: %w", step.sheet, err)
		}
		if err := sw.Flush(); err != nil {
			f.Close()
			return nil, err
		}
	}

	f.SetActiveSheet(0)
	return f, nil
}

// rowWriter numbers rows as they are appended to a stream.
type rowWriter struct {
	sw  *excelize.StreamWriter
	row int
}

func (rw *rowWriter) add(values []interface{}, opts ...excelize.RowOpts) error {
	rw.row++
	cell, err := excelize.CoordinatesToCellName(1, rw.row)
	if err != nil {
		return err
	}
	return rw.sw.SetRow(cell, values, opts...)
}

func (rw *rowWriter) skip() { rw.row++ }

func (r *MonthReport) writeSummary(sw *excelize.StreamWriter, bold int) error {
	if err := sw.SetColWidth(1, 1, 28); err != nil {
		return err
	}
	if err := sw.SetColWidth(2, 2, 60); err != nil {
		return err
	}

	k := r.Summary.KPIs
	rw := &rowWriter{sw: sw}
	rows := [][]interface{}{
		{"Month", r.Month},
		{"Principal", filterLabel(r.Filter.Principal)},
		{"Interface", filterLabel(r.Filter.Interface)},
		{"Generated", r.GeneratedAt.Format(timeLayout)},
		{"Total Movements", k.Total},
		{"Successes", k.Successes},
		{"Failures", k.Failures},
		{"Success Rate", optional(k.SuccessRate)},
		{"Distinct Runs", k.DistinctRuns},
		{"Total GB", k.TotalGB},
		{"Avg Duration (s)", optional(k.AvgDurationSeconds)},
		{"In Progress", k.InProgress},
		{"Route Completion Rate", optional(k.RouteCompletionRate)},
		{"Incomplete Runs", k.IncompleteRuns},
		{"Known Routes", k.KnownRoutes},
		{"Unknown Routes", k.UnknownRoutes},
	}
	if err := rw.add([]interface{}{"Metric", "Value"}, excelize.RowOpts{StyleID: bold}); err != nil {
		return err
	}
	for _, row := range rows {
		if err := rw.add(row); err != nil {
			return err
		}
	}

	rw.skip()
	if err := rw.add([]interface{}{"Top Errors", "Count"}, excelize.RowOpts{StyleID: bold}); err != nil {
		return err
	}
	for _, e := range r.Summary.TopErrors {
		if err := rw.add([]interface{}{e.Message, e.Count}); err != nil {
			return err
		}
	}
	return nil
}

func (r *MonthReport) writeRecords(sw *excelize.StreamWriter, bold int) error {
	rw := &rowWriter{sw: sw}
	if err := rw.add(recordHeaders, excelize.RowOpts{StyleID: bold}); err != nil {
		return err
	}
	for i := range r.Records {
		m := &r.Records[i]
		row := []interface{}{
			m.DetailID, m.RunID, m.PrincipalCode, m.PrincipalName, m.InterfaceCode, m.InterfaceName,
			m.MovementCode, m.FileName, m.FileSizeBytes, m.Status, m.IsSuccess, m.ErrorMessage,
			timestamp(m.StartTime), timestamp(m.EndTime), floatOrBlank(m.DurationSeconds), m.InProgress,
		}
		if err := rw.add(row); err != nil {
			return err
		}
	}
	return nil
}

func (r *MonthReport) writeCompleteness(sw *excelize.StreamWriter, bold int) error {
	rw := &rowWriter{sw: sw}
	if err := rw.add(completenessHeaders, excelize.RowOpts{StyleID: bold}); err != nil {
		return err
	}
	for _, c := range r.Completeness {
		var expected interface{} = ""
		if c.ExpectedMovementCount != nil {
			expected = *c.ExpectedMovementCount
		}
		row := []interface{}{
			c.RunID, c.PrincipalCode, c.PrincipalName, c.InterfaceCode, c.InterfaceName,
			c.ActualMovementCount, expected, floatOrBlank(c.CompletenessRatio), string(c.Status),
		}
		if err := rw.add(row); err != nil {
			return err
		}
	}
	return nil
}

func filterLabel(v string) string {
	if v == "" {
		return "All"
	}
	return v
}

func optional(o reporting.Optional) interface{} {
	return floatOrBlank(o.Ptr())
}

func floatOrBlank(v *float64) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

func timestamp(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(timeLayout)
}

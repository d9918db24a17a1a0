// Package exporter writes a filtered reporting month as an XLSX workbook.
//
// A workbook has three sheets:
//
//	Summary       KPIs of the filtered scope followed by the top errors
//	Records       one row per movement, streamed
//	Completeness  one row per (run, principal, interface) route
//
// Example usage:
//
//	report := exporter.NewMonthReport(snap, filter, reporting.DefaultAggregateOptions())
//	w.Header().Set("Content-Disposition", "attachment; filename="+report.FileName())
//	_, err := report.WriteTo(w)
package exporter

// Package reporting turns one month of file-movement log rows into dashboard
// figures.
//
// Raw rows are normalized into MovementRecords, joined against the configured
// expected movement codes per route and classified as COMPLETE, INCOMPLETE or
// UNKNOWN. MonthCache memoizes the resulting MonthSnapshot per "YYYY-MM" key
// and Aggregate computes KPIs and breakdowns for a principal/interface filter.
package reporting

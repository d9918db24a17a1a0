package reporting

import (
	"sort"
	"strings"
)

// FilterAll selects every principal or interface. The empty string does too.
const FilterAll = "__ALL__"

// BytesPerGB converts byte totals to gigabytes.
const BytesPerGB = 1073741824.0

// Filter narrows an aggregation to one principal and/or one interface.
type Filter struct {
	Principal string `json:"principal,omitempty"`
	Interface string `json:"interface,omitempty"`
}

// Normalized returns the filter with "all" sentinels collapsed to "".
func (f Filter) Normalized() Filter {
	return Filter{Principal: filterValue(f.Principal), Interface: filterValue(f.Interface)}
}

func filterValue(v string) string {
	v = strings.TrimSpace(v)
	if v == FilterAll {
		return ""
	}
	return v
}

func (f Filter) matchPrincipal(code string) bool {
	return f.Principal == "" || f.Principal == code
}

func (f Filter) match(principal, iface string) bool {
	return f.matchPrincipal(principal) && (f.Interface == "" || f.Interface == iface)
}

// AggregateOptions sizes the ranked breakdowns.
type AggregateOptions struct {
	TopInterfaces int
	TopErrors     int
	TopCompletion int
}

// DefaultAggregateOptions returns the breakdown sizes used by the dashboard.
func DefaultAggregateOptions() AggregateOptions {
	return AggregateOptions{TopInterfaces: 12, TopErrors: 12, TopCompletion: 15}
}

// KPIs are the headline figures for the filtered scope.
type KPIs struct {
	Total               int      `json:"total"`
	Successes           int      `json:"successes"`
	Failures            int      `json:"failures"`
	SuccessRate         Optional `json:"success_rate"`
	DistinctRuns        int      `json:"distinct_runs"`
	TotalBytes          float64  `json:"total_bytes"`
	TotalGB             float64  `json:"total_gb"`
	AvgDurationSeconds  Optional `json:"avg_duration_seconds"`
	InProgress          int      `json:"in_progress"`
	RouteCompletionRate Optional `json:"route_completion_rate"`
	IncompleteRuns      int      `json:"incomplete_runs"`
	KnownRoutes         int      `json:"known_routes"`
	UnknownRoutes       int      `json:"unknown_routes"`
}

// UnknownDay buckets records that have no start time.
const UnknownDay = "unknown"

// DayBucket summarizes one calendar day. Records without a start time share
// the UnknownDay bucket, which sorts after every dated one.
type DayBucket struct {
	Date        string   `json:"date"`
	Count       int      `json:"count"`
	Successes   int      `json:"successes"`
	SuccessRate Optional `json:"success_rate"`
	InProgress  int      `json:"in_progress"`
}

// InterfaceFailures counts failed movements of one interface. Interfaces
// without failures are ranked too, with Failures zero.
type InterfaceFailures struct {
	InterfaceCode string `json:"interface_code"`
	InterfaceName string `json:"interface_name"`
	Label         string `json:"label"`
	Failures      int    `json:"failures"`
}

// ErrorCount is one cleaned error message and how often it occurred.
type ErrorCount struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// InterfaceCompletion is the share of complete runs for one interface.
type InterfaceCompletion struct {
	InterfaceCode  string  `json:"interface_code"`
	InterfaceName  string  `json:"interface_name"`
	Label          string  `json:"label"`
	Runs           int     `json:"runs"`
	Complete       int     `json:"complete"`
	Incomplete     int     `json:"incomplete"`
	CompletionRate float64 `json:"completion_rate"`
}

// AggregateResult is everything the dashboard renders for one month and filter.
type AggregateResult struct {
	Month                 string                `json:"month"`
	Filter                Filter                `json:"filter"`
	KPIs                  KPIs                  `json:"kpis"`
	PerDay                []DayBucket           `json:"per_day"`
	TopFailingInterfaces  []InterfaceFailures   `json:"top_failing_interfaces"`
	TopErrors             []ErrorCount          `json:"top_errors"`
	CompletionByInterface []InterfaceCompletion `json:"route_completion_by_interface"`
}

// Aggregate computes KPIs and breakdowns for a snapshot.
//
// Record-level figures use the full filter. The failing-interface and
// completion-by-interface breakdowns only honor the principal filter, so
// picking an interface narrows the tiles but not those two charts.
func Aggregate(snap *MonthSnapshot, filter Filter, opts AggregateOptions) *AggregateResult {
	f := filter.Normalized()
	res := &AggregateResult{
		Filter:                f,
		PerDay:                []DayBucket{},
		TopFailingInterfaces:  []InterfaceFailures{},
		TopErrors:             []ErrorCount{},
		CompletionByInterface: []InterfaceCompletion{},
	}
	if snap == nil {
		return res
	}
	res.Month = snap.MonthKey

	var (
		runs        = make(map[string]struct{})
		days        = make(map[string]*DayBucket)
		errorCounts = make(map[string]int)
		failing     = make(map[string]*InterfaceFailures)
		durSum      float64
		durN        int
	)

	for i := range snap.Records {
		r := &snap.Records[i]
		if !f.matchPrincipal(r.PrincipalCode) {
			continue
		}

		fi, ok := failing[r.InterfaceCode]
		if !ok {
			fi = &InterfaceFailures{
				InterfaceCode: r.InterfaceCode,
				InterfaceName: r.InterfaceName,
				Label:         Label(r.InterfaceName, r.InterfaceCode),
			}
			failing[r.InterfaceCode] = fi
		}
		if !r.IsSuccess {
			fi.Failures++
		}

		if !f.match(r.PrincipalCode, r.InterfaceCode) {
			continue
		}

		k := &res.KPIs
		k.Total++
		if r.IsSuccess {
			k.Successes++
		} else {
			errorCounts[r.ErrorMessage]++
		}
		if r.InProgress {
			k.InProgress++
		}
		runs[r.RunID] = struct{}{}
		k.TotalBytes += r.FileSizeBytes
		if r.DurationSeconds != nil {
			durSum += *r.DurationSeconds
			durN++
		}

		date := r.StartDate
		if date == "" {
			date = UnknownDay
		}
		d, ok := days[date]
		if !ok {
			d = &DayBucket{Date: date}
			days[date] = d
		}
		d.Count++
		if r.IsSuccess {
			d.Successes++
		}
		if r.InProgress {
			d.InProgress++
		}
	}

	k := &res.KPIs
	k.Failures = k.Total - k.Successes
	k.DistinctRuns = len(runs)
	k.TotalGB = k.TotalBytes / BytesPerGB
	if k.Total > 0 {
		k.SuccessRate = Some(float64(k.Successes) / float64(k.Total))
	}
	if durN > 0 {
		k.AvgDurationSeconds = Some(durSum / float64(durN))
	}

	for _, d := range days {
		d.SuccessRate = Some(float64(d.Successes) / float64(d.Count))
		res.PerDay = append(res.PerDay, *d)
	}
	sort.Slice(res.PerDay, func(i, j int) bool {
		a, b := res.PerDay[i].Date, res.PerDay[j].Date
		if (a == UnknownDay) != (b == UnknownDay) {
			return b == UnknownDay
		}
		return a < b
	})

	for _, fi := range failing {
		res.TopFailingInterfaces = append(res.TopFailingInterfaces, *fi)
	}
	sort.Slice(res.TopFailingInterfaces, func(i, j int) bool {
		a, b := res.TopFailingInterfaces[i], res.TopFailingInterfaces[j]
		if a.Failures != b.Failures {
			return a.Failures > b.Failures
		}
		return a.InterfaceCode < b.InterfaceCode
	})
	res.TopFailingInterfaces = topN(res.TopFailingInterfaces, opts.TopInterfaces)

	for msg, n := range errorCounts {
		res.TopErrors = append(res.TopErrors, ErrorCount{Message: msg, Count: n})
	}
	sort.Slice(res.TopErrors, func(i, j int) bool {
		a, b := res.TopErrors[i], res.TopErrors[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Message < b.Message
	})
	res.TopErrors = topN(res.TopErrors, opts.TopErrors)

	completion := make(map[string]*InterfaceCompletion)
	var known, complete int
	for i := range snap.Completeness {
		rc := &snap.Completeness[i]
		if !f.matchPrincipal(rc.PrincipalCode) {
			continue
		}
		inScope := f.match(rc.PrincipalCode, rc.InterfaceCode)
		if !rc.Status.Known() {
			if inScope {
				k.UnknownRoutes++
			}
			continue
		}

		ic, ok := completion[rc.InterfaceCode]
		if !ok {
			ic = &InterfaceCompletion{
				InterfaceCode: rc.InterfaceCode,
				InterfaceName: rc.InterfaceName,
				Label:         Label(rc.InterfaceName, rc.InterfaceCode),
			}
			completion[rc.InterfaceCode] = ic
		}
		ic.Runs++
		if rc.Status == RouteComplete {
			ic.Complete++
		} else {
			ic.Incomplete++
		}

		if inScope {
			known++
			if rc.Status == RouteComplete {
				complete++
			} else {
				k.IncompleteRuns++
			}
		}
	}
	k.KnownRoutes = known
	if known > 0 {
		k.RouteCompletionRate = Some(float64(complete) / float64(known))
	}

	for _, ic := range completion {
		ic.CompletionRate = float64(ic.Complete) / float64(ic.Runs)
		res.CompletionByInterface = append(res.CompletionByInterface, *ic)
	}
	sort.Slice(res.CompletionByInterface, func(i, j int) bool {
		a, b := res.CompletionByInterface[i], res.CompletionByInterface[j]
		if a.CompletionRate != b.CompletionRate {
			return a.CompletionRate < b.CompletionRate
		}
		if a.Runs != b.Runs {
			return a.Runs > b.Runs
		}
		return a.InterfaceCode < b.InterfaceCode
	})
	res.CompletionByInterface = topN(res.CompletionByInterface, opts.TopCompletion)

	return res
}

// FilterCompleteness returns the completeness rows inside the filter scope.
func FilterCompleteness(snap *MonthSnapshot, filter Filter) []RouteCompleteness {
	f := filter.Normalized()
	out := []RouteCompleteness{}
	if snap == nil {
		return out
	}
	for _, rc := range snap.Completeness {
		if f.match(rc.PrincipalCode, rc.InterfaceCode) {
			out = append(out, rc)
		}
	}
	return out
}

// FilterRecords returns the records inside the filter scope.
func FilterRecords(snap *MonthSnapshot, filter Filter) []MovementRecord {
	f := filter.Normalized()
	out := []MovementRecord{}
	if snap == nil {
		return out
	}
	for _, r := range snap.Records {
		if f.match(r.PrincipalCode, r.InterfaceCode) {
			out = append(out, r)
		}
	}
	return out
}

// Choice is one selectable filter value.
type Choice struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// FilterOptions lists the principals of a month and the interfaces under the
// selected principal.
type FilterOptions struct {
	Principals []Choice `json:"principals"`
	Interfaces []Choice `json:"interfaces"`
}

// Options returns the filter choices for a snapshot. The interface list is
// narrowed to principal unless it selects all.
func Options(snap *MonthSnapshot, principal string) FilterOptions {
	opts := FilterOptions{Principals: []Choice{}, Interfaces: []Choice{}}
	if snap == nil {
		return opts
	}
	f := Filter{Principal: principal}.Normalized()

	principals := make(map[string]string)
	interfaces := make(map[string]string)
	for i := range snap.Records {
		r := &snap.Records[i]
		if _, ok := principals[r.PrincipalCode]; !ok {
			principals[r.PrincipalCode] = r.PrincipalName
		}
		if !f.matchPrincipal(r.PrincipalCode) {
			continue
		}
		if _, ok := interfaces[r.InterfaceCode]; !ok {
			interfaces[r.InterfaceCode] = r.InterfaceName
		}
	}

	opts.Principals = choices(principals)
	opts.Interfaces = choices(interfaces)
	return opts
}

func choices(m map[string]string) []Choice {
	out := make([]Choice, 0, len(m))
	for code, name := range m {
		out = append(out, Choice{Value: code, Label: Label(name, code)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	return out
}

func topN[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}

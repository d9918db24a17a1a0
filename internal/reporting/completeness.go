package reporting

import (
	"sort"
)

type runRoute struct {
	run       string
	principal string
	iface     string
}

// Classify produces one RouteCompleteness per observed (run, principal,
// interface) triple. A route is complete when its run shows at least as many
// distinct movement codes as the route expects; the codes themselves are not
// compared. Routes without configuration are UNKNOWN.
func Classify(records []MovementRecord, idx ExpectedIndex) []RouteCompleteness {
	type group struct {
		first int
		codes map[string]struct{}
	}

	groups := make(map[runRoute]*group)
	for i := range records {
		r := &records[i]
		k := runRoute{run: r.RunID, principal: r.PrincipalCode, iface: r.InterfaceCode}
		g, ok := groups[k]
		if !ok {
			g = &group{first: i, codes: make(map[string]struct{})}
			groups[k] = g
		}
		g.codes[r.MovementCode] = struct{}{}
	}

	out := make([]RouteCompleteness, 0, len(groups))
	for k, g := range groups {
		first := &records[g.first]
		rc := RouteCompleteness{
			RunID:               k.run,
			PrincipalCode:       k.principal,
			InterfaceCode:       k.iface,
			PrincipalName:       first.PrincipalName,
			InterfaceName:       first.InterfaceName,
			ActualMovementCount: len(g.codes),
			Status:              RouteUnknown,
		}

		if entry, ok := idx.Lookup(k.principal, k.iface); ok && entry.Count > 0 {
			expected := entry.Count
			ratio := float64(rc.ActualMovementCount) / float64(expected)
			rc.ExpectedMovementCount = &expected
			rc.CompletenessRatio = &ratio
			if rc.ActualMovementCount >= expected {
				rc.Status = RouteComplete
			} else {
				rc.Status = RouteIncomplete
			}
		}
		out = append(out, rc)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.RunID != b.RunID {
			return a.RunID < b.RunID
		}
		if a.PrincipalCode != b.PrincipalCode {
			return a.PrincipalCode < b.PrincipalCode
		}
		return a.InterfaceCode < b.InterfaceCode
	})
	return out
}

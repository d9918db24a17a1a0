package reporting

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MonthRange is the half-open window [Start, End) covered by one month key.
type MonthRange struct {
	Key   string    `json:"month"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ParseMonthKey turns "YYYY-MM" into its window. The returned Key is the
// canonical zero-padded form, so "2025-1" and "2025-01" share a cache slot.
func ParseMonthKey(key string) (MonthRange, error) {
	trimmed := strings.TrimSpace(key)
	parts := strings.Split(trimmed, "-")
	if len(parts) != 2 {
		return MonthRange{}, &InvalidMonthKeyError{Key: key, Reason: "expected YYYY-MM"}
	}

	if len(parts[0]) != 4 || !allDigits(parts[0]) {
		return MonthRange{}, &InvalidMonthKeyError{Key: key, Reason: "year must be four digits"}
	}
	year, _ := strconv.Atoi(parts[0])
	if year < 1 {
		return MonthRange{}, &InvalidMonthKeyError{Key: key, Reason: "year must be 0001 or later"}
	}
	if len(parts[1]) < 1 || len(parts[1]) > 2 || !allDigits(parts[1]) {
		return MonthRange{}, &InvalidMonthKeyError{Key: key, Reason: "month must be between 01 and 12"}
	}
	month, _ := strconv.Atoi(parts[1])
	if month < 1 || month > 12 {
		return MonthRange{}, &InvalidMonthKeyError{Key: key, Reason: "month must be between 01 and 12"}
	}

	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	// AddDate normalizes December into January of the next year.
	end := start.AddDate(0, 1, 0)

	return MonthRange{
		Key:   fmt.Sprintf("%04d-%02d", year, month),
		Start: start,
		End:   end,
	}, nil
}

// allDigits reports whether s is made only of ASCII digits. strconv.Atoi
// alone would also accept a leading sign.
func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

package reporting

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// timeLayouts are tried in order when a timestamp arrives as text.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.9999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// LooseTime is a nullable timestamp whose Scan never fails. Values that cannot
// be understood leave it invalid.
type LooseTime struct {
	Time  time.Time
	Valid bool
}

// Scan implements sql.Scanner.
func (t *LooseTime) Scan(src any) error {
	*t = LooseTime{}
	switch v := src.(type) {
	case time.Time:
		if !v.IsZero() {
			t.Time, t.Valid = v.UTC(), true
		}
	case string:
		t.Time, t.Valid = parseLooseTime(v)
	case []byte:
		t.Time, t.Valid = parseLooseTime(string(v))
	}
	return nil
}

// Ptr returns a pointer to the time, or nil when the value is absent.
func (t LooseTime) Ptr() *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// TimeOf builds a valid LooseTime.
func TimeOf(v time.Time) LooseTime {
	return LooseTime{Time: v.UTC(), Valid: true}
}

func parseLooseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if v, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return v.UTC(), true
		}
	}
	return time.Time{}, false
}

// LooseNumber is a nullable number whose Scan never fails.
type LooseNumber struct {
	Float64 float64
	Valid   bool
}

// Scan implements sql.Scanner.
func (n *LooseNumber) Scan(src any) error {
	*n = LooseNumber{}
	switch v := src.(type) {
	case int64:
		n.Float64, n.Valid = float64(v), true
	case int32:
		n.Float64, n.Valid = float64(v), true
	case int:
		n.Float64, n.Valid = float64(v), true
	case float64:
		n.Float64, n.Valid = v, true
	case float32:
		n.Float64, n.Valid = float64(v), true
	case string:
		n.Float64, n.Valid = parseLooseNumber(v)
	case []byte:
		n.Float64, n.Valid = parseLooseNumber(string(v))
	}
	return nil
}

// NumberOf builds a valid LooseNumber.
func NumberOf(v float64) LooseNumber {
	return LooseNumber{Float64: v, Valid: true}
}

func parseLooseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Optional is a float that may be absent. Absent values serialize as null
// and stand for "no data" rather than zero.
type Optional struct {
	Value float64
	Valid bool
}

// Some wraps v as a present value.
func Some(v float64) Optional {
	return Optional{Value: v, Valid: true}
}

// Ptr returns a pointer to the value, or nil when absent.
func (o Optional) Ptr() *float64 {
	if !o.Valid {
		return nil
	}
	v := o.Value
	return &v
}

// MarshalJSON implements json.Marshaler.
func (o Optional) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *Optional) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*o = Optional{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}

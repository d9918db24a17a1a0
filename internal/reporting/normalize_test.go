package reporting

import (
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeRow(t *testing.T) {
	start := time.Date(2025, 1, 15, 13, 30, 0, 0, time.UTC)

	t.Run("derives fields from a finished movement", func(t *testing.T) {
		raw := RawMovement{
			DetailID:      7,
			RunID:         " R1 ",
			PrincipalCode: "P1",
			PrincipalName: nullString("Acme"),
			InterfaceCode: "IF1",
			InterfaceName: nullString("Orders"),
			MovementCode:  "M1",
			Status:        " succeeded ",
			FileSizeBytes: NumberOf(2048),
			ErrorMessage:  nullString("   "),
			StartTime:     TimeOf(start),
			EndTime:       TimeOf(start.Add(90 * time.Second)),
		}

		rec := NormalizeRow(raw)

		assert.Equal(t, "R1", rec.RunID)
		assert.Equal(t, "SUCCEEDED", rec.Status)
		assert.True(t, rec.IsSuccess)
		assert.Equal(t, "Acme", rec.PrincipalName)
		assert.Equal(t, "Orders", rec.InterfaceName)
		assert.Equal(t, 2048.0, rec.FileSizeBytes)
		assert.Equal(t, NoErrorText, rec.ErrorMessage)
		assert.False(t, rec.InProgress)
		assert.Equal(t, "2025-01-15", rec.StartDate)
		require.NotNil(t, rec.StartHour)
		assert.Equal(t, 13, *rec.StartHour)
		require.NotNil(t, rec.DurationSeconds)
		assert.Equal(t, 90.0, *rec.DurationSeconds)
	})

	t.Run("missing end means in progress without duration", func(t *testing.T) {
		rec := NormalizeRow(RawMovement{Status: "RUNNING", StartTime: TimeOf(start)})

		assert.True(t, rec.InProgress)
		assert.Nil(t, rec.EndTime)
		assert.Nil(t, rec.DurationSeconds)
		assert.False(t, rec.IsSuccess)
	})

	t.Run("end before start leaves duration unknown", func(t *testing.T) {
		rec := NormalizeRow(RawMovement{
			StartTime: TimeOf(start),
			EndTime:   TimeOf(start.Add(-time.Minute)),
		})

		assert.False(t, rec.InProgress)
		assert.Nil(t, rec.DurationSeconds)
	})

	t.Run("names fall back to codes", func(t *testing.T) {
		rec := NormalizeRow(RawMovement{
			PrincipalCode: "P9",
			InterfaceCode: "IF9",
			PrincipalName: sql.NullString{},
			InterfaceName: nullString(""),
		})

		assert.Equal(t, "P9", rec.PrincipalName)
		assert.Equal(t, "IF9", rec.InterfaceName)
	})

	t.Run("bad size and missing start degrade", func(t *testing.T) {
		var size LooseNumber
		require.NoError(t, size.Scan("not-a-number"))
		var badStart LooseTime
		require.NoError(t, badStart.Scan("yesterday-ish"))

		rec := NormalizeRow(RawMovement{FileSizeBytes: size, StartTime: badStart, ErrorMessage: nullString(" timeout ")})

		assert.Equal(t, 0.0, rec.FileSizeBytes)
		assert.Nil(t, rec.StartTime)
		assert.Equal(t, "", rec.StartDate)
		assert.Nil(t, rec.StartHour)
		assert.Equal(t, "timeout", rec.ErrorMessage)
	})

	t.Run("negative size clamps to zero", func(t *testing.T) {
		rec := NormalizeRow(RawMovement{FileSizeBytes: NumberOf(-5)})
		assert.Equal(t, 0.0, rec.FileSizeBytes)
	})
}

func TestSuccessStatuses(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{"SUCCESS", true},
		{"success", true},
		{" Ok ", true},
		{"COMPLETED", true},
		{"Successful", true},
		{"SUCCEEDED", true},
		{"FAILED", false},
		{"ERROR", false},
		{"", false},
		{"DONE", false},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			assert.Equal(t, tt.want, IsSuccessStatus(tt.status))
			assert.Equal(t, tt.want, NormalizeRow(RawMovement{Status: tt.status}).IsSuccess)
		})
	}
}

func TestLooseScanners(t *testing.T) {
	ts := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)

	timeTests := []struct {
		name  string
		src   any
		valid bool
	}{
		{"time value", ts, true},
		{"zero time", time.Time{}, false},
		{"sql text", "2025-03-04 05:06:07", true},
		{"fractional text", []byte("2025-03-04 05:06:07.1234567"), true},
		{"rfc3339", "2025-03-04T05:06:07Z", true},
		{"garbage", "n/a", false},
		{"nil", nil, false},
		{"number", int64(5), false},
	}
	for _, tt := range timeTests {
		t.Run("time/"+tt.name, func(t *testing.T) {
			var v LooseTime
			require.NoError(t, v.Scan(tt.src))
			assert.Equal(t, tt.valid, v.Valid)
			if tt.valid {
				assert.Equal(t, ts, v.Time.Truncate(time.Second))
			}
		})
	}

	numberTests := []struct {
		name  string
		src   any
		want  float64
		valid bool
	}{
		{"int64", int64(12), 12, true},
		{"float64", 1.5, 1.5, true},
		{"text", " 42 ", 42, true},
		{"bytes", []byte("7.25"), 7.25, true},
		{"garbage", "lots", 0, false},
		{"nil", nil, 0, false},
	}
	for _, tt := range numberTests {
		t.Run("number/"+tt.name, func(t *testing.T) {
			var v LooseNumber
			require.NoError(t, v.Scan(tt.src))
			assert.Equal(t, tt.valid, v.Valid)
			assert.Equal(t, tt.want, v.Float64)
		})
	}
}

func TestOptionalJSON(t *testing.T) {
	data, err := json.Marshal(struct {
		A Optional `json:"a"`
		B Optional `json:"b"`
	}{A: Some(0.5)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":0.5,"b":null}`, string(data))

	var o Optional
	require.NoError(t, json.Unmarshal([]byte("null"), &o))
	assert.False(t, o.Valid)
	require.NoError(t, json.Unmarshal([]byte("2"), &o))
	assert.Equal(t, Some(2), o)
	assert.Nil(t, Optional{}.Ptr())
}

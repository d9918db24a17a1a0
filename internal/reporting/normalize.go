package reporting

import (
	"strings"
)

// NoErrorText replaces blank error messages so they group under one label.
const NoErrorText = "(none)"

// SuccessStatuses lists the status values counted as a successful movement,
// compared after trimming and upper-casing. Other values count as failures.
var SuccessStatuses = map[string]struct{}{
	"SUCCESS":    {},
	"SUCCEEDED":  {},
	"OK":         {},
	"COMPLETED":  {},
	"SUCCESSFUL": {},
}

// IsSuccessStatus reports whether status is one of SuccessStatuses.
func IsSuccessStatus(status string) bool {
	_, ok := SuccessStatuses[strings.ToUpper(strings.TrimSpace(status))]
	return ok
}

// Normalize derives analysis-ready records from raw rows. It never fails:
// unusable values degrade to placeholders.
func Normalize(rows []RawMovement) []MovementRecord {
	out := make([]MovementRecord, 0, len(rows))
	for i := range rows {
		out = append(out, NormalizeRow(rows[i]))
	}
	return out
}

// NormalizeRow derives one MovementRecord.
func NormalizeRow(r RawMovement) MovementRecord {
	rec := MovementRecord{
		DetailID:         r.DetailID,
		RunID:            strings.TrimSpace(r.RunID),
		MovementCode:     strings.TrimSpace(r.MovementCode),
		InterfaceCode:    strings.TrimSpace(r.InterfaceCode),
		PrincipalCode:    strings.TrimSpace(r.PrincipalCode),
		InterfaceType:    r.InterfaceType,
		InterfaceProfile: r.InterfaceProfile,
		ConfigDirection:  r.ConfigDirection,
		RunDirection:     r.RunDirection,
		FileName:         r.FileName,
		SourcePath:       r.SourcePath,
		DestinationPath:  r.DestinationPath,
		Status:           strings.ToUpper(strings.TrimSpace(r.Status)),
		StartTime:        r.StartTime.Ptr(),
		EndTime:          r.EndTime.Ptr(),
	}

	rec.PrincipalName = nameOrCode(r.PrincipalName.String, r.PrincipalName.Valid, rec.PrincipalCode)
	rec.InterfaceName = nameOrCode(r.InterfaceName.String, r.InterfaceName.Valid, rec.InterfaceCode)

	if r.FileSizeBytes.Valid && r.FileSizeBytes.Float64 > 0 {
		rec.FileSizeBytes = r.FileSizeBytes.Float64
	}

	_, rec.IsSuccess = SuccessStatuses[rec.Status]

	rec.ErrorMessage = NoErrorText
	if r.ErrorMessage.Valid {
		if msg := strings.TrimSpace(r.ErrorMessage.String); msg != "" {
			rec.ErrorMessage = msg
		}
	}

	rec.InProgress = rec.EndTime == nil

	if rec.StartTime != nil {
		rec.StartDate = rec.StartTime.Format("2006-01-02")
		hour := rec.StartTime.Hour()
		rec.StartHour = &hour

		if rec.EndTime != nil {
			// Negative deltas stay unknown.
			if d := rec.EndTime.Sub(*rec.StartTime).Seconds(); d >= 0 {
				rec.DurationSeconds = &d
			}
		}
	}

	return rec
}

func nameOrCode(name string, valid bool, code string) string {
	if valid {
		if n := strings.TrimSpace(name); n != "" {
			return n
		}
	}
	return code
}

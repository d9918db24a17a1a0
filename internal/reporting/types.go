package reporting

import (
	"database/sql"
	"time"
)

// RouteStatus classifies one observed (run, principal, interface) triple.
type RouteStatus string

const (
	RouteComplete   RouteStatus = "COMPLETE"
	RouteIncomplete RouteStatus = "INCOMPLETE"
	RouteUnknown    RouteStatus = "UNKNOWN"
)

// Known reports whether the status participates in completion rates.
func (s RouteStatus) Known() bool {
	return s == RouteComplete || s == RouteIncomplete
}

// RawMovement is one row of the movement log as returned by the data source,
// before any derivation. Loose fields absorb messy values without failing.
type RawMovement struct {
	DetailID         int64
	RunID            string
	MovementCode     string
	InterfaceCode    string
	PrincipalCode    string
	PrincipalName    sql.NullString
	InterfaceName    sql.NullString
	InterfaceType    string
	InterfaceProfile string
	ConfigDirection  string
	RunDirection     string
	FileName         string
	SourcePath       string
	DestinationPath  string
	FileSizeBytes    LooseNumber
	Status           string
	ErrorMessage     sql.NullString
	StartTime        LooseTime
	EndTime          LooseTime
}

// MovementRecord is an analysis-ready movement with derived fields filled in.
type MovementRecord struct {
	DetailID         int64      `json:"detail_id"`
	RunID            string     `json:"run_id"`
	MovementCode     string     `json:"movement_code"`
	InterfaceCode    string     `json:"interface_code"`
	PrincipalCode    string     `json:"principal_code"`
	PrincipalName    string     `json:"principal_name"`
	InterfaceName    string     `json:"interface_name"`
	InterfaceType    string     `json:"interface_type,omitempty"`
	InterfaceProfile string     `json:"interface_profile,omitempty"`
	ConfigDirection  string     `json:"config_direction,omitempty"`
	RunDirection     string     `json:"run_direction,omitempty"`
	FileName         string     `json:"file_name,omitempty"`
	SourcePath       string     `json:"source_path,omitempty"`
	DestinationPath  string     `json:"destination_path,omitempty"`
	FileSizeBytes    float64    `json:"file_size_bytes"`
	Status           string     `json:"status"`
	IsSuccess        bool       `json:"is_success"`
	ErrorMessage     string     `json:"error_message"`
	StartTime        *time.Time `json:"start_time"`
	EndTime          *time.Time `json:"end_time"`
	StartDate        string     `json:"start_date"`
	StartHour        *int       `json:"start_hour"`
	DurationSeconds  *float64   `json:"duration_seconds"`
	InProgress       bool       `json:"in_progress"`
}

// ExpectedMovement is one row of the movement configuration table.
type ExpectedMovement struct {
	PrincipalCode string `json:"principal_code"`
	InterfaceCode string `json:"interface_code"`
	MovementCode  string `json:"movement_code"`
	Variant       string `json:"variant,omitempty"`
	Type          string `json:"type,omitempty"`
	Profile       string `json:"profile,omitempty"`
	InterfaceName string `json:"interface_name,omitempty"`
	Direction     string `json:"direction,omitempty"`
	FilePattern   string `json:"file_pattern,omitempty"`
	FileMask      string `json:"file_mask,omitempty"`
	Source        string `json:"source,omitempty"`
	Destination   string `json:"destination,omitempty"`
	Active        bool   `json:"active"`
}

// InterfaceLabel renders "Name (Code)", using the code when no name is configured.
func (e ExpectedMovement) InterfaceLabel() string {
	return Label(e.InterfaceName, e.InterfaceCode)
}

// RouteCompleteness is the classification of one (run, principal, interface) triple.
type RouteCompleteness struct {
	RunID                 string      `json:"run_id"`
	PrincipalCode         string      `json:"principal_code"`
	InterfaceCode         string      `json:"interface_code"`
	PrincipalName         string      `json:"principal_name"`
	InterfaceName         string      `json:"interface_name"`
	ActualMovementCount   int         `json:"actual_movement_count"`
	ExpectedMovementCount *int        `json:"expected_movement_count"`
	CompletenessRatio     *float64    `json:"completeness_ratio"`
	Status                RouteStatus `json:"route_status"`
}

// MonthSnapshot is the immutable result of loading one calendar month.
// Nothing in a snapshot may be mutated once it has been handed out.
type MonthSnapshot struct {
	MonthKey      string              `json:"month"`
	Start         time.Time           `json:"start"`
	End           time.Time           `json:"end"`
	Records       []MovementRecord    `json:"records"`
	ExpectedRows  []ExpectedMovement  `json:"-"`
	ExpectedIndex ExpectedIndex       `json:"-"`
	Completeness  []RouteCompleteness `json:"completeness"`
	LoadedAt      time.Time           `json:"loaded_at"`
}

// Label renders "Name (Code)" with the code standing in for a blank name.
func Label(name, code string) string {
	if name == "" {
		name = code
	}
	return name + " (" + code + ")"
}

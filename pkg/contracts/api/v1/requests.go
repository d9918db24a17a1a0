// Package api contains the request contracts of the HTTP API.
package api

// LoginRequest is accepted as a form or as JSON.
type LoginRequest struct {
	Login    string `json:"login" validate:"required,max=256"`
	Password string `json:"password" validate:"required,max=1024"`
}

// DashboardQuery carries the optional dashboard filters. Empty or "__ALL__"
// means no filter.
type DashboardQuery struct {
	Principal string `json:"principal" validate:"max=128"`
	Interface string `json:"interface" validate:"max=128"`
}

// CacheInvalidateRequest drops one month, or everything when Month is empty.
type CacheInvalidateRequest struct {
	Month string `json:"month" validate:"omitempty,monthkey"`
}

// TopTablesRequest limits the largest-tables listing.
type TopTablesRequest struct {
	Limit int `json:"limit" validate:"min=1,max=100"`
}

// TablePreviewRequest selects a Core table by its schema.table name.
type TablePreviewRequest struct {
	Table string `json:"table" validate:"required,max=256,tablename"`
	Limit int    `json:"limit" validate:"min=1,max=500"`
}

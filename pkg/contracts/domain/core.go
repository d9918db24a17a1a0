package domain

// ObjectCounts counts the user objects of the Core database.
type ObjectCounts struct {
	Tables     int `json:"tables"`
	Views      int `json:"views"`
	Procedures int `json:"procs"`
}

// TableRowCount is one entry of the largest-tables listing.
type TableRowCount struct {
	Table string `json:"table"`
	Rows  int64  `json:"rows"`
}

// TablePreview holds the first rows of a Core table, columns in select order.
type TablePreview struct {
	Table   string                   `json:"table"`
	Columns []string                 `json:"columns"`
	Rows    []map[string]interface{} `json:"rows"`
}

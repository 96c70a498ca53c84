package model

import (
	"fmt"
	"strings"
)

// Row is a schema-agnostic record decoded from one CSV line. Line is 1-based
// counting data rows only, so warnings can point back at the source file.
type Row struct {
	Line   int                    `json:"line"`
	Fields map[string]interface{} `json:"fields"`
}

// String returns the trimmed string form of a field, "" when absent.
func (r Row) String(key string) string {
	v, ok := r.Fields[key]
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprintf("%v", v))
}

// Float returns a field as float64 when it holds a numeric value.
func (r Row) Float(key string) (float64, bool) {
	switch v := r.Fields[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// Int returns a field as int when it holds an integer value.
func (r Row) Int(key string) (int, bool) {
	switch v := r.Fields[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

// Empty reports whether a field is absent or blank after trimming.
func (r Row) Empty(key string) bool {
	return r.String(key) == ""
}

// Table is one decoded CSV table from the export archive.
type Table struct {
	Name    string   `json:"name"`    // file name inside the archive
	Role    string   `json:"role"`    // projects, cameras, deployments, images
	Columns []string `json:"columns"` // cleaned header, source order
	Rows    []Row    `json:"rows"`
}

// HasColumn reports whether the table header contains the given column.
func (t Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// First returns the first row of the table, useful for single-row metadata
// tables such as the project table.
func (t Table) First() (Row, bool) {
	if len(t.Rows) == 0 {
		return Row{}, false
	}
	return t.Rows[0], true
}

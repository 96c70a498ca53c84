// Package conformance checks a written package against its table-schema
// profiles. It is purely diagnostic: it never mutates the package, and the
// pipeline surfaces its report unchanged.
package conformance

import (
	"embed"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Violation is one structured conformance finding.
type Violation struct {
	Resource string `json:"resource"`
	Field    string `json:"field,omitempty"`
	Row      int    `json:"row,omitempty"` // 1-based data row
	Message  string `json:"message"`
}

func (v Violation) String() string {
	s := v.Resource
	if v.Row > 0 {
		s += fmt.Sprintf(" row %d", v.Row)
	}
	if v.Field != "" {
		s += fmt.Sprintf(" field %q", v.Field)
	}
	return s + ": " + v.Message
}

// Report is the outcome of one conformance check.
type Report struct {
	Valid      bool        `json:"valid"`
	CheckedAt  time.Time   `json:"checkedAt"`
	Violations []Violation `json:"violations,omitempty"`
}

// Checker validates an assembled package directory and returns a structured
// report. Implementations must treat the package as read-only.
type Checker interface {
	Check(packageDir string) (*Report, error)
}

// tableSchema mirrors the subset of the table-schema vocabulary the profiles
// use.
type tableSchema struct {
	Name        string       `json:"name"`
	PrimaryKey  string       `json:"primaryKey"`
	ForeignKeys []foreignKey `json:"foreignKeys"`
	Fields      []field      `json:"fields"`
}

type field struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Constraints constraints `json:"constraints"`
}

type constraints struct {
	Required bool     `json:"required"`
	Unique   bool     `json:"unique"`
	Enum     []string `json:"enum"`
	Minimum  *float64 `json:"minimum"`
	Maximum  *float64 `json:"maximum"`
}

type foreignKey struct {
	Field     string `json:"field"`
	Reference struct {
		Resource string `json:"resource"`
		Field    string `json:"field"`
	} `json:"reference"`
}

// manifest is the slice of datapackage.json the checker needs.
type manifest struct {
	Resources []struct {
		Name string `json:"name"`
		Path string `json:"path"`
	} `json:"resources"`
}

// SchemaChecker validates each resource of the package against the embedded
// table-schema profile of the same name.
type SchemaChecker struct{}

// New returns the default checker.
func New() *SchemaChecker {
	return &SchemaChecker{}
}

// Check reads datapackage.json in packageDir, validates every resource it
// declares, and cross-checks referential integrity between the tables.
func (c *SchemaChecker) Check(packageDir string) (*Report, error) {
	report := &Report{Valid: true, CheckedAt: time.Now().UTC()}

	data, err := os.ReadFile(filepath.Join(packageDir, "datapackage.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read package manifest: %w", err)
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode package manifest: %w", err)
	}
	if len(m.Resources) == 0 {
		report.add(Violation{Resource: "datapackage", Message: "manifest declares no resources"})
		return report, nil
	}

	// First pass: per-resource checks, collecting key sets for the second.
	keys := map[string]map[string]bool{}
	tables := map[string]*csvTable{}
	for _, res := range m.Resources {
		schema, err := loadSchema(res.Name)
		if err != nil {
			report.add(Violation{Resource: res.Name, Message: err.Error()})
			continue
		}
		table, err := readCSVTable(filepath.Join(packageDir, res.Path))
		if err != nil {
			report.add(Violation{Resource: res.Name, Message: err.Error()})
			continue
		}
		tables[res.Name] = table
		keys[res.Name] = checkResource(report, res.Name, schema, table)
	}

	// Second pass: foreign keys.
	for _, res := range m.Resources {
		schema, err := loadSchema(res.Name)
		if err != nil {
			continue
		}
		table := tables[res.Name]
		if table == nil {
			continue
		}
		for _, fk := range schema.ForeignKeys {
			ref := keys[fk.Reference.Resource]
			if ref == nil {
				continue
			}
			col := table.column(fk.Field)
			if col < 0 {
				continue
			}
			for i, row := range table.rows {
				v := cell(row, col)
				if v != "" && !ref[v] {
					report.add(Violation{
						Resource: res.Name,
						Field:    fk.Field,
						Row:      i + 1,
						Message:  fmt.Sprintf("value %q not found in %s.%s", v, fk.Reference.Resource, fk.Reference.Field),
					})
				}
			}
		}
	}

	return report, nil
}

func (r *Report) add(v Violation) {
	r.Valid = false
	r.Violations = append(r.Violations, v)
}

// SchemaJSON returns the embedded table-schema document for a resource, so
// the package writer can ship the schemas its manifest references.
func SchemaJSON(resource string) ([]byte, error) {
	data, err := schemaFS.ReadFile("schemas/" + resource + "-table-schema.json")
	if err != nil {
		return nil, fmt.Errorf("no table schema for resource %q", resource)
	}
	return data, nil
}

func loadSchema(resource string) (*tableSchema, error) {
	data, err := SchemaJSON(resource)
	if err != nil {
		return nil, err
	}
	var schema tableSchema
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("malformed table schema for %q: %w", resource, err)
	}
	return &schema, nil
}

type csvTable struct {
	header []string
	rows   [][]string
}

func (t *csvTable) column(name string) int {
	for i, h := range t.header {
		if h == name {
			return i
		}
	}
	return -1
}

func cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return row[col]
}

func readCSVTable(path string) (*csvTable, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open resource file: %v", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("resource file has no header row")
	}
	table := &csvTable{header: header}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read resource row: %v", err)
		}
		table.rows = append(table.rows, row)
	}
	return table, nil
}

// checkResource validates one table against its schema and returns the set of
// primary-key values for referential checks.
func checkResource(report *Report, resource string, schema *tableSchema, table *csvTable) map[string]bool {
	for _, f := range schema.Fields {
		if table.column(f.Name) < 0 {
			report.add(Violation{Resource: resource, Field: f.Name, Message: "declared column missing from table"})
		}
	}

	seen := map[string]map[string]int{}
	primaryKeys := map[string]bool{}
	pkCol := table.column(schema.PrimaryKey)

	for i, row := range table.rows {
		rowNum := i + 1
		for _, f := range schema.Fields {
			col := table.column(f.Name)
			if col < 0 {
				continue
			}
			v := cell(row, col)
			if v == "" {
				if f.Constraints.Required {
					report.add(Violation{Resource: resource, Field: f.Name, Row: rowNum, Message: "required value is missing"})
				}
				continue
			}
			checkFieldValue(report, resource, f, rowNum, v)
			if f.Constraints.Unique {
				if seen[f.Name] == nil {
					seen[f.Name] = map[string]int{}
				}
				if prev, dup := seen[f.Name][v]; dup {
					report.add(Violation{Resource: resource, Field: f.Name, Row: rowNum,
						Message: fmt.Sprintf("duplicate value %q, first seen at row %d", v, prev)})
				} else {
					seen[f.Name][v] = rowNum
				}
			}
		}
		if pkCol >= 0 {
			if v := cell(row, pkCol); v != "" {
				primaryKeys[v] = true
			}
		}
	}
	return primaryKeys
}

func checkFieldValue(report *Report, resource string, f field, rowNum int, v string) {
	switch f.Type {
	case "number", "integer":
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			report.add(Violation{Resource: resource, Field: f.Name, Row: rowNum,
				Message: fmt.Sprintf("value %q is not numeric", v)})
			return
		}
		if f.Type == "integer" && parsed != float64(int64(parsed)) {
			report.add(Violation{Resource: resource, Field: f.Name, Row: rowNum,
				Message: fmt.Sprintf("value %q is not an integer", v)})
			return
		}
		if f.Constraints.Minimum != nil && parsed < *f.Constraints.Minimum {
			report.add(Violation{Resource: resource, Field: f.Name, Row: rowNum,
				Message: fmt.Sprintf("value %v below minimum %v", parsed, *f.Constraints.Minimum)})
		}
		if f.Constraints.Maximum != nil && parsed > *f.Constraints.Maximum {
			report.add(Violation{Resource: resource, Field: f.Name, Row: rowNum,
				Message: fmt.Sprintf("value %v above maximum %v", parsed, *f.Constraints.Maximum)})
		}
	case "datetime":
		if _, err := time.Parse("2006-01-02T15:04:05Z", v); err != nil {
			report.add(Violation{Resource: resource, Field: f.Name, Row: rowNum,
				Message: fmt.Sprintf("value %q is not a UTC ISO 8601 timestamp", v)})
		}
	}
	if len(f.Constraints.Enum) > 0 {
		for _, allowed := range f.Constraints.Enum {
			if v == allowed {
				return
			}
		}
		report.add(Violation{Resource: resource, Field: f.Name, Row: rowNum,
			Message: fmt.Sprintf("value %q not in allowed set %v", v, f.Constraints.Enum)})
	}
}

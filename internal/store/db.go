package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"camtrap-pipeline/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

var db *sql.DB

// Initialize DB connection
func InitDB(dbPath string) error {
	var err error
	db, err = sql.Open("sqlite3", dbPath)
	if err != nil {
		return err
	}

	// Create tables if not exists
	runTable := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		spec TEXT,
		status TEXT,
		output_dir TEXT,
		warnings INTEGER,
		dropped INTEGER,
		error_message TEXT,
		created_at DATETIME,
		updated_at DATETIME
	);
	`
	issueTable := `
	CREATE TABLE IF NOT EXISTS run_issues (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT,
		severity TEXT,
		tbl TEXT,
		line INTEGER,
		field TEXT,
		value TEXT,
		message TEXT,
		created_at DATETIME
	);
	`

	if _, err := db.Exec(runTable); err != nil {
		return err
	}
	if _, err := db.Exec(issueTable); err != nil {
		return err
	}

	return nil
}

// CloseDB closes the connection held by the package
func CloseDB() error {
	if db == nil {
		return nil
	}
	err := db.Close()
	db = nil
	return err
}

// SaveRun stores a new conversion run
func SaveRun(runID string, spec model.ConversionSpec) error {
	specJSON, err := json.Marshal(spec)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err = db.Exec(`INSERT INTO runs (id, spec, status, output_dir, warnings, dropped, error_message, created_at, updated_at) VALUES (?, ?, ?, '', 0, 0, '', ?, ?)`,
		runID, specJSON, "running", now, now)
	return err
}

// FinishRun marks a run as completed and records its outcome
func FinishRun(runID, outputDir string, report *model.ConversionReport) error {
	now := time.Now().UTC()
	warnings := 0
	dropped := 0
	if report != nil {
		warnings = report.WarningCount()
		dropped = report.Dropped
	}
	_, err := db.Exec(`UPDATE runs SET status = ?, output_dir = ?, warnings = ?, dropped = ?, updated_at = ? WHERE id = ?`,
		"completed", outputDir, warnings, dropped, now, runID)
	return err
}

// SaveRunError marks a run as failed and records the error
func SaveRunError(runID string, runErr error) error {
	if runErr == nil {
		return nil
	}
	now := time.Now().UTC()
	_, err := db.Exec(`UPDATE runs SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		"failed", runErr.Error(), now, runID)
	return err
}

// SaveRunIssues records the warnings accumulated during a run
func SaveRunIssues(runID string, issues []model.Issue) error {
	if len(issues) == 0 {
		return nil
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	for _, issue := range issues {
		if _, err := tx.Exec(`INSERT INTO run_issues (run_id, severity, tbl, line, field, value, message, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, "warning", issue.Table, issue.Line, issue.Field, issue.Value, issue.Message, now); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// ListRuns returns all runs with basic info
func ListRuns() ([]map[string]interface{}, error) {
	rows, err := db.Query(`SELECT id, status, output_dir, warnings, dropped, error_message, created_at, updated_at FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []map[string]interface{}
	for rows.Next() {
		var id, status, outputDir, errorMessage string
		var warnings, dropped int
		var createdAt, updatedAt time.Time
		if err := rows.Scan(&id, &status, &outputDir, &warnings, &dropped, &errorMessage, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, map[string]interface{}{
			"id":        id,
			"status":    status,
			"outputDir": outputDir,
			"warnings":  warnings,
			"dropped":   dropped,
			"error":     errorMessage,
			"createdAt": createdAt,
			"updatedAt": updatedAt,
		})
	}
	return runs, rows.Err()
}

// GetRun fetches full run spec and outcome
func GetRun(runID string) (map[string]interface{}, error) {
	var specJSON, status, outputDir, errorMessage string
	var warnings, dropped int
	var createdAt, updatedAt time.Time

	err := db.QueryRow(`SELECT spec, status, output_dir, warnings, dropped, error_message, created_at, updated_at FROM runs WHERE id = ?`, runID).
		Scan(&specJSON, &status, &outputDir, &warnings, &dropped, &errorMessage, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	var spec model.ConversionSpec
	if err := json.Unmarshal([]byte(specJSON), &spec); err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"id":        runID,
		"spec":      spec,
		"status":    status,
		"outputDir": outputDir,
		"warnings":  warnings,
		"dropped":   dropped,
		"error":     errorMessage,
		"createdAt": createdAt,
		"updatedAt": updatedAt,
	}, nil
}

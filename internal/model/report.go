package model

import (
	"fmt"
	"time"
)

// Issue pinpoints one problem in the source data with enough context to
// reproduce the decision: table, row, field and the raw value seen.
type Issue struct {
	Table   string `json:"table"`
	Line    int    `json:"line,omitempty"`
	Field   string `json:"field,omitempty"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	s := i.Table
	if i.Line > 0 {
		s += fmt.Sprintf(" row %d", i.Line)
	}
	if i.Field != "" {
		s += fmt.Sprintf(" field %q", i.Field)
	}
	if i.Value != "" {
		s += fmt.Sprintf(" value %q", i.Value)
	}
	return s + ": " + i.Message
}

// ConversionReport accumulates the non-blocking warnings of one run. It is
// threaded through the stages as plain state and returned to the caller; it is
// never shared across runs.
type ConversionReport struct {
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt,omitempty"`
	Warnings   []Issue   `json:"warnings"`
	Dropped    int       `json:"dropped"` // source rows dropped after an unrecoverable warning
}

// NewConversionReport starts an empty report for a run.
func NewConversionReport() *ConversionReport {
	return &ConversionReport{StartedAt: time.Now().UTC()}
}

// Warn records a non-blocking issue and continues.
func (r *ConversionReport) Warn(table string, line int, field, value, message string) {
	r.Warnings = append(r.Warnings, Issue{Table: table, Line: line, Field: field, Value: value, Message: message})
}

// Drop records that a source row was discarded, with the warning explaining why.
func (r *ConversionReport) Drop(table string, line int, field, value, message string) {
	r.Warn(table, line, field, value, message)
	r.Dropped++
}

// WarningCount returns the number of recorded warnings.
func (r *ConversionReport) WarningCount() int {
	return len(r.Warnings)
}

// Reporter receives progress and log events from the pipeline. Implementations
// render them however they like (console, GUI, nothing); the pipeline never
// blocks on the sink and owns no UI state.
type Reporter interface {
	Progress(pct int, msg string)
	Log(msg string)
}

// NopReporter discards all events.
type NopReporter struct{}

func (NopReporter) Progress(int, string) {}
func (NopReporter) Log(string)           {}

// Progress reports progress through an optional sink.
func Progress(r Reporter, pct int, msg string) {
	if r != nil {
		r.Progress(pct, msg)
	}
}

// Log emits a log line through an optional sink.
func Log(r Reporter, format string, args ...interface{}) {
	if r != nil {
		r.Log(fmt.Sprintf(format, args...))
	}
}

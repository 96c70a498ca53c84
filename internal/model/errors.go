package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrOutputExists is returned when the destination directory already exists
// and the overwrite flag is not set.
var ErrOutputExists = errors.New("output destination already exists")

// StructuralError marks a malformed or unsupported input shape, such as a
// multi-project export or a missing required table. Always fatal, detected
// before any row processing.
type StructuralError struct {
	Reason string
}

func (e *StructuralError) Error() string {
	return "structural error: " + e.Reason
}

// NewStructuralError builds a StructuralError from a format string.
func NewStructuralError(format string, args ...interface{}) *StructuralError {
	return &StructuralError{Reason: fmt.Sprintf(format, args...)}
}

// BlockingDataError aborts the run and carries every offending row, so the
// caller can fix the source data in one pass rather than one error at a time.
type BlockingDataError struct {
	Issues []Issue
}

func (e *BlockingDataError) Error() string {
	if len(e.Issues) == 0 {
		return "blocking data error"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "blocking data error: %d issue(s)", len(e.Issues))
	max := len(e.Issues)
	if max > 8 {
		max = 8
	}
	for _, issue := range e.Issues[:max] {
		b.WriteString("\n  - ")
		b.WriteString(issue.String())
	}
	if len(e.Issues) > max {
		fmt.Fprintf(&b, "\n  ... and %d more", len(e.Issues)-max)
	}
	return b.String()
}

// AsBlocking unwraps a BlockingDataError from err, if any.
func AsBlocking(err error) (*BlockingDataError, bool) {
	var be *BlockingDataError
	ok := errors.As(err, &be)
	return be, ok
}

// AsStructural unwraps a StructuralError from err, if any.
func AsStructural(err error) (*StructuralError, bool) {
	var se *StructuralError
	ok := errors.As(err, &se)
	return se, ok
}

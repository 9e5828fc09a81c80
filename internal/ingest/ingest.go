// Package ingest loads financial transactions and tax documents from
// external files. JSON is the primary exchange format; bank statement
// exports additionally come in as CSV with bank-specific column layouts
// and German number formatting.
package ingest

import (
	"fmt"
	"strings"
)

// ParseError reports a problem with one line of an input file. Lines
// with errors are skipped; the surrounding parse continues.
type ParseError struct {
	Line    int
	Field   string
	Value   string
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("line %d, field %s='%s': %s: %v", e.Line, e.Field, e.Value, e.Message, e.Err)
	}
	return fmt.Sprintf("line %d, field %s='%s': %s", e.Line, e.Field, e.Value, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ParseStats summarizes one ingestion run.
type ParseStats struct {
	TotalLines int
	Parsed     int
	Skipped    int
	Errors     []*ParseError
}

// maxRecordedErrors caps how many line errors are kept on the stats so
// a thoroughly broken file does not balloon memory.
const maxRecordedErrors = 100

func (s *ParseStats) recordError(err *ParseError) {
	s.Skipped++
	if len(s.Errors) < maxRecordedErrors {
		s.Errors = append(s.Errors, err)
	}
}

// ErrorSummary renders the collected line errors for display.
func (s *ParseStats) ErrorSummary() string {
	if len(s.Errors) == 0 {
		return ""
	}
	msgs := make([]string, 0, len(s.Errors))
	for _, err := range s.Errors {
		msgs = append(msgs, err.Error())
	}
	if s.Skipped > len(s.Errors) {
		msgs = append(msgs, fmt.Sprintf("... and %d more", s.Skipped-len(s.Errors)))
	}
	return strings.Join(msgs, "\n")
}

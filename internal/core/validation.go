package core

// validation.go defines the error taxonomy of the reconciliation workflow.
//
// Errors surface at three levels:
//  1. ValidationError: the CSV structure is unusable (missing columns, no data rows)
//  2. RowError: a single data row is missing a value; collected into RowErrors
//  3. RemoteError: a create/update call failed; recorded per item in SyncResult
//
// Structural and row errors stop the workflow before any remote mutation.
// Remote errors never abort the remaining batch.

import (
	"fmt"
	"strings"
)

// Required CSV columns, matched case-insensitively.
const (
	ColumnCode = "code"
	ColumnName = "name"
)

// ValidationError reports a malformed CSV structure.
type ValidationError struct {
	Field   string // Column name, if the problem is column specific
	Message string // Human-readable error message
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid csv: %s: %s", e.Field, e.Message)
	}
	return "invalid csv: " + e.Message
}

// RowError reports a data row that was excluded from the parse output.
type RowError struct {
	Line    int    `json:"line"` // 1-indexed; the header is line 1
	Code    string `json:"code"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("Row %d: %s - Code: %q, Name: %q", e.Line, e.Message, e.Code, e.Name)
}

// RowErrors is the complete list of row errors from one parse.
type RowErrors []RowError

func (e RowErrors) Error() string {
	if len(e) == 1 {
		return "invalid rows: " + e[0].Error()
	}
	msgs := make([]string, len(e))
	for i, re := range e {
		msgs[i] = re.Error()
	}
	return fmt.Sprintf("invalid rows (%d): %s", len(e), strings.Join(msgs, "; "))
}

// RemoteError wraps a failed course service call for a single record.
type RemoteError struct {
	Op     string // "create" or "update"
	Record CourseRecord
	Err    error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Record.Code, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// HeaderIndex maps lowercase column names to their position in a row.
type HeaderIndex map[string]int

// MakeHeaderIndex builds a HeaderIndex from a header row.
// The first occurrence of a duplicated column wins.
func MakeHeaderIndex(header []string) HeaderIndex {
	idx := make(HeaderIndex, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, exists := idx[key]; !exists {
			idx[key] = i
		}
	}
	return idx
}

// ValidateHeaders checks that the code and name columns are present.
func ValidateHeaders(header []string) (HeaderIndex, error) {
	idx := MakeHeaderIndex(header)

	var missing []string
	for _, col := range []string{ColumnCode, ColumnName} {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}

	if len(missing) > 0 {
		return nil, &ValidationError{
			Message: fmt.Sprintf("missing required column: %s (file must have %q and %q columns)",
				strings.Join(missing, ", "), ColumnCode, ColumnName),
		}
	}

	return idx, nil
}

// cell returns the trimmed value at pos, or "" if the row is too short.
func cell(row []string, pos int) string {
	if pos < 0 || pos >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[pos])
}

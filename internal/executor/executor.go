// Package executor provides read-only SQL execution against the source
// database. It is the only component that talks to the database: both the
// shape probe and the final rewritten query go through it.
package executor

import (
	"context"
	"fmt"
	"strings"
)

// Queryer runs a single read-only SELECT statement and returns the ordered
// column names together with the row set.
type Queryer interface {
	Query(ctx context.Context, sql string) (columns []string, rows [][]any, err error)
}

// NotReadOnlyError indicates a statement was rejected before reaching the
// database because it is not a single SELECT.
type NotReadOnlyError struct {
	Reason string
}

func (e *NotReadOnlyError) Error() string {
	return "statement rejected: " + e.Reason
}

// ExecutionError wraps a database-side failure of an accepted statement.
// It is propagated unchanged to the caller; there are no retries, since a
// failure here is a data or query problem that retrying cannot fix.
type ExecutionError struct {
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("query execution failed: %v", e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// ValidateReadOnly checks that the statement is a single SELECT (optionally
// introduced by WITH). It rejects multi-statement input by scanning for
// semicolons outside of string literals; a single trailing semicolon is
// tolerated.
func ValidateReadOnly(sqlText string) error {
	trimmed := strings.TrimSpace(sqlText)
	if trimmed == "" {
		return &NotReadOnlyError{Reason: "empty statement"}
	}
	trimmed = strings.TrimSuffix(trimmed, ";")

	first := firstKeyword(trimmed)
	if first != "SELECT" && first != "WITH" {
		return &NotReadOnlyError{Reason: fmt.Sprintf("only SELECT statements are allowed, got %s", first)}
	}

	inString := false
	for _, r := range trimmed {
		switch {
		case r == '\'':
			inString = !inString
		case r == ';' && !inString:
			return &NotReadOnlyError{Reason: "multiple statements are not allowed"}
		}
	}
	return nil
}

func firstKeyword(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}

package fsh

import "fmt"

// ConfigurationError reports a required role without a column mapping.
type ConfigurationError struct {
	Role Role
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("required role %q unmapped", e.Role)
}

// UnknownColumnError reports a mapped column, or a requested sheet, that the
// input source does not contain.
type UnknownColumnError struct {
	Role   Role
	Column string
	Sheet  string
}

func (e *UnknownColumnError) Error() string {
	if e.Sheet != "" {
		return fmt.Sprintf("sheet %q not found in input", e.Sheet)
	}
	return fmt.Sprintf("column %q mapped to role %q not found in input", e.Column, e.Role)
}

// RowSkipped is returned for a row that lacks a code or a primary display.
// It is never fatal.
type RowSkipped struct {
	Row    int
	Reason string
}

func (e *RowSkipped) Error() string {
	return fmt.Sprintf("row %d skipped: %s", e.Row, e.Reason)
}

// SourceReadError wraps failures to open or parse the tabular input.
type SourceReadError struct {
	Source string
	Err    error
}

func (e *SourceReadError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("read input: %v", e.Err)
	}
	return fmt.Sprintf("read input %s: %v", e.Source, e.Err)
}

func (e *SourceReadError) Unwrap() error {
	return e.Err
}

package table

import (
	"errors"
	"fmt"
)

// ErrMissingInput is matched by every *MissingInputError via errors.Is.
var ErrMissingInput = errors.New("missing input")

// MissingInputError reports that a builder's source table was not supplied.
// It is not fatal: the dependent output is skipped.
type MissingInputError struct {
	Output string
	Inputs []string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("%s: missing input %v", e.Output, e.Inputs)
}

// Is lets errors.Is(err, ErrMissingInput) match.
func (e *MissingInputError) Is(target error) bool { return target == ErrMissingInput }

// MissingColumnError reports that a required column is absent after
// normalization. It aborts the builder that needed it.
type MissingColumnError struct {
	Table  string
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("table %q: missing column %q", e.Table, e.Column)
}

// DuplicateColumnError reports that two source headers map onto the same
// column name, e.g. "ID" and "id" after normalization. Headers are the
// names as read.
type DuplicateColumnError struct {
	Table   string
	Column  string
	Headers []string
}

func (e *DuplicateColumnError) Error() string {
	return fmt.Sprintf("table %q: headers %q both map to column %q", e.Table, e.Headers, e.Column)
}

// ParseError reports a cell that could not be converted to its target type.
// Row is the zero-based data row index, or -1 when unknown.
type ParseError struct {
	Table  string
	Column string
	Row    int
	Value  any
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("table %q column %q row %d: cannot parse %q: %v",
		e.Table, e.Column, e.Row, fmt.Sprint(e.Value), e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

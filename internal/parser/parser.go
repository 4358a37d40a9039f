// Package parser turns raw source bytes into in-memory tables. The format
// implementations live in subpackages.
package parser

import (
	"errors"
	"io"

	"github.com/znumunz/pram2/internal/table"
)

// ErrEmpty is returned when the input has no header row.
var ErrEmpty = errors.New("parser: empty input")

// Parser reads one table from r. It returns the table and the number of data
// rows that were skipped as malformed.
type Parser interface {
	Parse(r io.Reader) (*table.Table, int, error)
}

// Nulls is the set of cell texts read as null. The empty string is always a
// member.
type Nulls map[string]struct{}

// NewNulls builds a Nulls set from tokens.
func NewNulls(tokens []string) Nulls {
	n := Nulls{"": {}}
	for _, t := range tokens {
		n[t] = struct{}{}
	}
	return n
}

// Value returns nil when s is a null token, s otherwise.
func (n Nulls) Value(s string) any {
	if _, ok := n[s]; ok {
		return nil
	}
	return s
}

// Package datasource abstracts where raw table bytes come from.
package datasource

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by Open when the underlying object does not exist.
var ErrNotFound = errors.New("datasource: not found")

// Source yields the bytes of one raw table.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
	// Location describes the source for logs (a path or URL).
	Location() string
}

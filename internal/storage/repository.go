// Package storage contains the backend-agnostic warehouse contracts: the
// Repository interface, the registry backends add themselves to, and the
// loaders that write built tables through any Repository.
//
// Backends live in subpackages and register from init. Import
// internal/storage/all to enable every built-in backend.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/znumunz/pram2/internal/ddl"
)

// Repository is the minimal surface the loaders need from a backend.
type Repository interface {
	// CopyFrom bulk-inserts rows into table. Values are aligned to columns.
	CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)

	// Exec runs a single statement, typically DDL.
	Exec(ctx context.Context, sql string) error

	Close()
}

// TxExecer is implemented by repositories that can run several statements
// in one transaction. The warehouse swaps staged tables through it.
type TxExecer interface {
	ExecTx(ctx context.Context, stmts ...string) error
}

// Config selects and configures a backend.
type Config struct {
	// Kind is the registered backend name, e.g. "sqlite" or "postgres".
	Kind string

	// DSN is handed to the driver unchanged.
	DSN string

	// Schema optionally qualifies every table name.
	Schema string
}

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	regMu     sync.RWMutex
	factories = map[string]Factory{}
	dialects  = map[string]ddl.Dialect{}
)

// Register registers (or replaces) the factory for kind.
func Register(kind string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	factories[kind] = f
}

// RegisterDialect registers (or replaces) the DDL dialect for kind.
func RegisterDialect(kind string, d ddl.Dialect) {
	regMu.Lock()
	defer regMu.Unlock()
	dialects[kind] = d
}

// New opens a Repository using the factory registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	regMu.RLock()
	f, ok := factories[cfg.Kind]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// DialectFor returns the dialect registered for kind.
func DialectFor(kind string) (ddl.Dialect, error) {
	regMu.RLock()
	d, ok := dialects[kind]
	regMu.RUnlock()
	if !ok {
		return ddl.Dialect{}, fmt.Errorf("no DDL dialect registered for storage.kind=%s", kind)
	}
	return d, nil
}

// ListKinds returns a sorted snapshot of the registered backend kinds.
func ListKinds() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

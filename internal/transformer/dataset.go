package transformer

import (
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zeebo/xxh3"

	"github.com/znumunz/pram2/internal/ddl"
)

// Table is a built warehouse table.
type Table struct {
	ID   TableID
	Rows []Row
}

// Name returns the warehouse table name.
func (t *Table) Name() string { return t.ID.Name() }

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// Columns returns the column names in load order.
func (t *Table) Columns() []string { return t.ID.Columns() }

// Definition returns the warehouse DDL model of the table.
func (t *Table) Definition() ddl.TableDef { return t.ID.Definition() }

// Values flattens the rows for bulk loading.
func (t *Table) Values() [][]any {
	out := make([][]any, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.Values()
	}
	return out
}

var auditColumns = map[string]bool{"created_at": true, "updated_at": true}

// Checksum hashes every non-audit cell with xxh3. Two runs over identical
// input produce the same checksum even though their timestamps differ.
func (t *Table) Checksum() uint64 {
	cols := t.Columns()
	h := xxh3.New()
	sep := []byte{0x1f}
	for _, r := range t.Rows {
		for i, v := range r.Values() {
			if i < len(cols) && auditColumns[cols[i]] {
				continue
			}
			_, _ = h.WriteString(canonical(v))
			_, _ = h.Write(sep)
		}
		_, _ = h.Write([]byte{'\n'})
	}
	return h.Sum64()
}

func canonical(v any) string {
	switch t := v.(type) {
	case nil:
		return "\x00"
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case decimal.Decimal:
		return t.String()
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

// Dataset is the set of tables one run produced. Only tables whose inputs
// were present and whose build succeeded are included.
type Dataset struct {
	tables map[TableID]*Table
}

func newDataset() *Dataset {
	return &Dataset{tables: make(map[TableID]*Table)}
}

// Get returns the table for id.
func (d *Dataset) Get(id TableID) (*Table, bool) {
	t, ok := d.tables[id]
	return t, ok
}

// Lookup returns the table with the given warehouse name.
func (d *Dataset) Lookup(name string) (*Table, bool) {
	id, ok := ParseTableID(name)
	if !ok {
		return nil, false
	}
	return d.Get(id)
}

// Len returns the number of tables.
func (d *Dataset) Len() int { return len(d.tables) }

// Names returns the table names in load order.
func (d *Dataset) Names() []string {
	out := make([]string, 0, len(d.tables))
	for _, t := range d.Tables() {
		out = append(out, t.Name())
	}
	return out
}

// Tables returns every table, dimensions first, each group in enumeration
// order.
func (d *Dataset) Tables() []*Table {
	out := make([]*Table, 0, len(d.tables))
	for _, t := range d.tables {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b *Table) int {
		if a.ID.Kind() != b.ID.Kind() {
			return int(a.ID.Kind()) - int(b.ID.Kind())
		}
		return int(a.ID) - int(b.ID)
	})
	return out
}

func (d *Dataset) put(t *Table) { d.tables[t.ID] = t }

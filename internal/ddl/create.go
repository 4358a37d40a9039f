// Package ddl defines a small, backend-agnostic model for warehouse tables and
// renders CREATE / DROP statements for it.
//
// A Dialect captures the few things that differ between backends: identifier
// quoting, the logical-to-SQL type mapping and whether DROP TABLE accepts
// IF EXISTS. Storage backends declare their Dialect next to their repository;
// this package never imports a driver.
//
// ColumnDef.Default is emitted as raw SQL; the caller is responsible for
// its dialect correctness.
package ddl

import (
	"fmt"
	"strings"
)

// Dialect describes how a backend spells DDL.
type Dialect struct {
	// Name is the storage kind, e.g. "sqlite".
	Name string

	// QuoteOpen and QuoteClose wrap identifiers, e.g. `"` / `"` or `[` / `]`.
	// The closing rune is doubled when it occurs inside an identifier.
	QuoteOpen  string
	QuoteClose string

	// MapType returns the SQL type for a logical column type.
	MapType func(ColumnType) string

	// DropIfExists renders DROP TABLE IF EXISTS when true. Backends without
	// that syntax set it to false and get a guarded statement instead.
	DropIfExists bool

	// Rename renders a statement that renames the table fromFQN to toName
	// within the same schema. Nil means ALTER TABLE ... RENAME TO.
	Rename func(d Dialect, fromFQN, toName string) string
}

// QuoteIdent quotes a single identifier.
func (d Dialect) QuoteIdent(id string) string {
	return d.QuoteOpen + strings.ReplaceAll(id, d.QuoteClose, d.QuoteClose+d.QuoteClose) + d.QuoteClose
}

// QuoteFQN quotes each dotted segment of fqn individually.
func (d Dialect) QuoteFQN(fqn string) string {
	parts := strings.Split(fqn, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, d.QuoteIdent(p))
	}
	return strings.Join(out, ".")
}

// Resolve returns a copy of t with every SQLType filled from MapType.
func (d Dialect) Resolve(t TableDef) (TableDef, error) {
	cols := make([]ColumnDef, len(t.Columns))
	for i, c := range t.Columns {
		if strings.TrimSpace(c.SQLType) == "" {
			if d.MapType == nil {
				return TableDef{}, fmt.Errorf("ddl %s: no type mapping for column %s", d.Name, c.Name)
			}
			c.SQLType = d.MapType(c.Type)
		}
		cols[i] = c
	}
	return TableDef{FQN: t.FQN, Columns: cols}, nil
}

// CreateTable renders a quoted CREATE TABLE statement for t.
func (d Dialect) CreateTable(t TableDef) (string, error) {
	rt, err := d.Resolve(t)
	if err != nil {
		return "", err
	}
	return buildCreate(rt, d.QuoteIdent, d.QuoteFQN)
}

// DropTable renders a DROP statement that does not fail on a missing table.
func (d Dialect) DropTable(fqn string) string {
	if d.DropIfExists {
		return "DROP TABLE IF EXISTS " + d.QuoteFQN(fqn)
	}
	// SQL Server before 2016 has no DROP ... IF EXISTS.
	return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NOT NULL DROP TABLE %s",
		strings.ReplaceAll(fqn, "'", "''"), d.QuoteFQN(fqn))
}

// RenameTable renders a statement renaming fromFQN to toName. toName is a
// bare table name; the table stays in its schema.
func (d Dialect) RenameTable(fromFQN, toName string) string {
	if d.Rename != nil {
		return d.Rename(d, fromFQN, toName)
	}
	return "ALTER TABLE " + d.QuoteFQN(fromFQN) + " RENAME TO " + d.QuoteIdent(toName)
}

// SchemaOf returns the schema part of a "schema.table" name, or "".
func SchemaOf(fqn string) string {
	if i := strings.LastIndexByte(fqn, '.'); i >= 0 {
		return fqn[:i]
	}
	return ""
}

// BuildCreateTableSQL renders a generic, unquoted CREATE TABLE statement from
// a TableDef. Every column must carry an SQLType.
//
// The resulting statement has the form:
//
//	CREATE TABLE <FQN> (
//	  <name> <type> [NOT NULL] [DEFAULT <expr>],
//	  ...,
//	  [PRIMARY KEY (<pk-cols>)]
//	);
func BuildCreateTableSQL(t TableDef) (string, error) {
	ident := func(s string) string { return s }
	return buildCreate(t, ident, ident)
}

func buildCreate(t TableDef, ident, fqnQuote func(string) string) (string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("ddl: table FQN must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("ddl: at least one column is required")
	}

	cols := make([]string, 0, len(t.Columns)+1)
	pks := make([]string, 0, 1)

	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", fmt.Errorf("ddl: column with empty name in table %s", fqn)
		}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return "", fmt.Errorf("ddl: column %s missing SQLType", name)
		}

		var sb strings.Builder
		sb.WriteString(ident(name))
		sb.WriteByte(' ')
		sb.WriteString(typ)
		if !c.Nullable {
			sb.WriteString(" NOT NULL")
		}
		if def := strings.TrimSpace(c.Default); def != "" {
			sb.WriteString(" DEFAULT ")
			sb.WriteString(def)
		}
		cols = append(cols, sb.String())

		if c.PrimaryKey {
			pks = append(pks, ident(name))
		}
	}

	if len(pks) > 0 {
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}

	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n);", fqnQuote(fqn), strings.Join(cols, ",\n  ")), nil
}

package ddl

// ColumnType is the backend-independent type of a warehouse column. Each
// storage dialect maps it onto a concrete SQL type.
type ColumnType string

const (
	TypeInteger   ColumnType = "integer"
	TypeDecimal   ColumnType = "decimal"
	TypeText      ColumnType = "text"
	TypeBool      ColumnType = "bool"
	TypeDate      ColumnType = "date"
	TypeTimestamp ColumnType = "timestamp"
)

// ColumnDef describes a single column in a table definition.
//
// Fields:
//   - Name: column name (unquoted; quoting happens at render time)
//   - Type: logical type, mapped per dialect when SQLType is empty
//   - SQLType: explicit SQL type; wins over Type when set
//   - Nullable: whether NULL is allowed
//   - PrimaryKey: whether the column is part of the primary key
//   - Default: raw default expression (e.g., CURRENT_TIMESTAMP)
type ColumnDef struct {
	Name       string
	Type       ColumnType
	SQLType    string
	Nullable   bool
	PrimaryKey bool
	Default    string
}

// TableDef holds the table name (optionally schema-qualified, "schema.table")
// and an ordered list of columns.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}

// ColumnNames returns the column names in declaration order.
func (t TableDef) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// WithSchema returns a copy of t whose FQN is prefixed with schema. An empty
// schema leaves the name unchanged.
func (t TableDef) WithSchema(schema string) TableDef {
	if schema == "" {
		return t
	}
	t.FQN = schema + "." + t.FQN
	return t
}

package ddl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCreateTableSQL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		def         TableDef
		wantSQL     string
		errContains string
	}{
		{
			name:        "empty FQN returns error",
			def:         TableDef{Columns: []ColumnDef{{Name: "id", SQLType: "INT"}}},
			errContains: "table FQN must not be empty",
		},
		{
			name:        "no columns returns error",
			def:         TableDef{FQN: "t"},
			errContains: "at least one column is required",
		},
		{
			name:        "column with empty type returns error",
			def:         TableDef{FQN: "t", Columns: []ColumnDef{{Name: "id"}}},
			errContains: "missing SQLType",
		},
		{
			name: "nullable and not null columns",
			def: TableDef{FQN: "t", Columns: []ColumnDef{
				{Name: "id", SQLType: "INT"},
				{Name: "name", SQLType: "TEXT", Nullable: true},
			}},
			wantSQL: "CREATE TABLE t (\n  id INT NOT NULL,\n  name TEXT\n);",
		},
		{
			name: "default and primary key",
			def: TableDef{FQN: "t", Columns: []ColumnDef{
				{Name: "id", SQLType: "INT", PrimaryKey: true},
				{Name: "flag", SQLType: "BOOLEAN", Default: "  false  "},
			}},
			wantSQL: "CREATE TABLE t (\n  id INT NOT NULL,\n  flag BOOLEAN NOT NULL DEFAULT false,\n  PRIMARY KEY (id)\n);",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := BuildCreateTableSQL(tt.def)
			if tt.errContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, got)
		})
	}
}

func testDialect() Dialect {
	return Dialect{
		Name:      "test",
		QuoteOpen: `"`, QuoteClose: `"`,
		MapType: func(t ColumnType) string {
			switch t {
			case TypeInteger:
				return "BIGINT"
			case TypeDecimal:
				return "DECIMAL(18,4)"
			default:
				return "TEXT"
			}
		},
		DropIfExists: true,
	}
}

func TestDialectCreateTable(t *testing.T) {
	t.Parallel()

	d := testDialect()
	def := TableDef{FQN: "dw.dim_products", Columns: []ColumnDef{
		{Name: "product_key", Type: TypeInteger, PrimaryKey: true},
		{Name: "list_price", Type: TypeDecimal, Nullable: true},
		{Name: "note", SQLType: "VARCHAR(10)", Nullable: true},
	}}

	got, err := d.CreateTable(def)
	require.NoError(t, err)
	assert.Equal(t,
		"CREATE TABLE \"dw\".\"dim_products\" (\n  \"product_key\" BIGINT NOT NULL,\n  \"list_price\" DECIMAL(18,4),\n  \"note\" VARCHAR(10),\n  PRIMARY KEY (\"product_key\")\n);",
		got)
}

func TestDialectQuoting(t *testing.T) {
	t.Parallel()

	brackets := Dialect{QuoteOpen: "[", QuoteClose: "]"}
	assert.Equal(t, "[a]]b]", brackets.QuoteIdent("a]b"))
	assert.Equal(t, "[dbo].[fact_sales]", brackets.QuoteFQN("dbo.fact_sales"))
	assert.Equal(t, `"we""ird"`, testDialect().QuoteIdent(`we"ird`))
}

func TestDialectDropTable(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `DROP TABLE IF EXISTS "dim_date"`, testDialect().DropTable("dim_date"))

	mssql := Dialect{QuoteOpen: "[", QuoteClose: "]"}
	assert.Equal(t,
		"IF OBJECT_ID(N'dbo.dim_date', N'U') IS NOT NULL DROP TABLE [dbo].[dim_date]",
		mssql.DropTable("dbo.dim_date"))
}

func TestResolveWithoutMapType(t *testing.T) {
	t.Parallel()

	_, err := Dialect{Name: "x"}.Resolve(TableDef{FQN: "t", Columns: []ColumnDef{{Name: "a", Type: TypeText}}})
	require.Error(t, err)
}

func TestTableDefHelpers(t *testing.T) {
	t.Parallel()

	def := TableDef{FQN: "dim_date", Columns: []ColumnDef{{Name: "date_key"}, {Name: "year"}}}
	assert.Equal(t, []string{"date_key", "year"}, def.ColumnNames())
	assert.Equal(t, "dw.dim_date", def.WithSchema("dw").FQN)
	assert.Equal(t, "dim_date", def.WithSchema("").FQN)
}

func TestDialectRenameTable(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `ALTER TABLE "dw"."dim_date__staging" RENAME TO "dim_date"`,
		testDialect().RenameTable("dw.dim_date__staging", "dim_date"))

	custom := testDialect()
	custom.Rename = func(d Dialect, from, to string) string {
		return "RENAME " + d.QuoteFQN(from) + " " + d.QuoteIdent(to)
	}
	assert.Equal(t, `RENAME "a" "b"`, custom.RenameTable("a", "b"))

	assert.Equal(t, "dw", SchemaOf("dw.dim_date"))
	assert.Equal(t, "", SchemaOf("dim_date"))
}

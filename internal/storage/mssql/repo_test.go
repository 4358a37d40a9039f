package mssql

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/znumunz/pram2/internal/storage"
)

func TestToCopyVal(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"nil stays nil", nil, nil},
		{"int widened", 3, int64(3)},
		{"decimal as text", decimal.RequireFromString("2.75"), "2.75"},
		{"string kept", "ALFKI", "ALFKI"},
		{"time kept", ts, ts},
		{"bool kept", true, true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, toCopyVal(tt.in))
		})
	}
}

func TestDialect(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "[dw].[fact_sales]", Dialect.QuoteFQN("dw.fact_sales"))
	assert.Equal(t, "[a]]b]", Dialect.QuoteIdent("a]b"))
	assert.Equal(t,
		"IF OBJECT_ID(N'dw.fact_sales', N'U') IS NOT NULL DROP TABLE [dw].[fact_sales]",
		Dialect.DropTable("dw.fact_sales"))
	assert.Equal(t, "NVARCHAR(MAX)", mapType("text"))
	assert.Equal(t, "BIT", mapType("bool"))
	assert.Equal(t,
		"EXEC sp_rename N'[dw].[fact_sales__staging]', N'fact_sales'",
		Dialect.RenameTable("dw.fact_sales__staging", "fact_sales"))
}

func TestCreateSchemaSQL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "IF SCHEMA_ID(N'dw') IS NULL EXEC(N'CREATE SCHEMA [dw]')", createSchemaSQL("dw"))
	assert.Equal(t, "IF SCHEMA_ID(N'o''k') IS NULL EXEC(N'CREATE SCHEMA [o''k]')", createSchemaSQL("o'k"))
}

func TestNewRepositoryRejectsBadDSN(t *testing.T) {
	t.Parallel()

	_, _, err := NewRepository(context.Background(), "sqlserver://%zz")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mssql dsn")
}

func TestRegistrationCreatesSchema(t *testing.T) {
	orig := newRepository
	defer func() { newRepository = orig }()

	var gotDSN string
	newRepository = func(ctx context.Context, dsn string) (*Repository, func(), error) {
		gotDSN = dsn
		return nil, nil, context.Canceled
	}

	_, err := storage.New(context.Background(), storage.Config{Kind: "mssql", DSN: "sqlserver://sa@db?database=dw", Schema: "dw"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "sqlserver://sa@db?database=dw", gotDSN)

	d, err := storage.DialectFor("mssql")
	require.NoError(t, err)
	assert.False(t, d.DropIfExists)
}

//go:build integration

package mssql

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// getTestDSN reads MSSQL_TEST_DSN and skips when it is empty.
func getTestDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("MSSQL_TEST_DSN")
	if dsn == "" {
		t.Skip("MSSQL_TEST_DSN not set; skipping MSSQL integration tests")
	}
	return dsn
}

func TestCopyFromAndExecIntegration(t *testing.T) {
	dsn := getTestDSN(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, closeFn, err := NewRepository(ctx, dsn)
	require.NoError(t, err)
	defer closeFn()

	const table = "dbo.salesdw_it"
	require.NoError(t, repo.Exec(ctx, Dialect.DropTable(table)))
	require.NoError(t, repo.Exec(ctx, "CREATE TABLE [dbo].[salesdw_it] ([id] BIGINT NOT NULL, [amount] DECIMAL(19,4) NULL)"))
	defer func() { _ = repo.Exec(context.Background(), Dialect.DropTable(table)) }()

	n, err := repo.CopyFrom(ctx, table, []string{"id", "amount"}, [][]any{
		{1, decimal.RequireFromString("27.5")},
		{2, nil},
	})
	require.NoError(t, err)
	require.EqualValues(t, 2, n)
}

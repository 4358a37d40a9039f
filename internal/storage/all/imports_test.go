package all

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/znumunz/pram2/internal/storage"
)

func TestBackendsRegistered(t *testing.T) {
	t.Parallel()

	kinds := storage.ListKinds()
	for _, k := range []string{"duckdb", "mssql", "mysql", "postgres", "sqlite"} {
		assert.Contains(t, kinds, k)
		d, err := storage.DialectFor(k)
		require.NoError(t, err, k)
		assert.Equal(t, k, d.Name)
	}
}

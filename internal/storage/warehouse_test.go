package storage

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplaceTable(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	w := NewWarehouse(repo, testDialect, "dw", 2, nil)

	res := w.ReplaceTable(context.Background(), fakeTable{name: "dim_thing", rows: rowsOf(5)})
	require.NoError(t, res.Err)
	assert.Equal(t, "dim_thing", res.Table)
	assert.EqualValues(t, 5, res.Rows)
	assert.EqualValues(t, 3, res.Batches)

	require.Len(t, repo.execs, 4)
	assert.Equal(t, `DROP TABLE IF EXISTS "dw"."dim_thing__staging"`, repo.execs[0])
	assert.True(t, strings.HasPrefix(repo.execs[1], `CREATE TABLE "dw"."dim_thing__staging"`), repo.execs[1])
	assert.Contains(t, repo.execs[1], `"id" BIGINT NOT NULL`)
	assert.Equal(t, `DROP TABLE IF EXISTS "dw"."dim_thing"`, repo.execs[2])
	assert.Equal(t, `ALTER TABLE "dw"."dim_thing__staging" RENAME TO "dim_thing"`, repo.execs[3])
	assert.Equal(t, 1, repo.txs, "drop and rename run in one transaction")
	assert.Len(t, repo.copies["dw.dim_thing__staging"], 5)
}

func TestReplaceTableWithoutTransactions(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	w := NewWarehouse(plainRepo{f: repo}, testDialect, "", 10, nil)

	res := w.ReplaceTable(context.Background(), fakeTable{name: "dim_thing", rows: rowsOf(2)})
	require.NoError(t, res.Err)
	assert.Zero(t, repo.txs)
	assert.Equal(t, []string{`DROP TABLE IF EXISTS "dim_thing"`, `ALTER TABLE "dim_thing__staging" RENAME TO "dim_thing"`}, repo.execs[2:])
}

func TestReplaceTableFailureKeepsLiveTable(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	repo.failCopy = func(string) error { return errBoom }
	w := NewWarehouse(repo, testDialect, "", 2, nil)

	res := w.ReplaceTable(context.Background(), fakeTable{name: "dim_thing", rows: rowsOf(3)})
	require.ErrorIs(t, res.Err, errBoom)

	assert.Empty(t, repo.execsContaining(`"dim_thing"`), "live table is never touched")
	assert.Empty(t, repo.execsContaining("RENAME"))
	assert.Len(t, repo.execsContaining(`DROP TABLE IF EXISTS "dim_thing__staging"`), 2, "staging is dropped again after the failure")
}

func TestReplaceTableRerunIsIdempotent(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	w := NewWarehouse(repo, testDialect, "", 10, nil)
	tbl := fakeTable{name: "dim_thing", rows: rowsOf(3)}

	require.NoError(t, w.ReplaceTable(context.Background(), tbl).Err)
	require.NoError(t, w.ReplaceTable(context.Background(), tbl).Err)

	assert.Len(t, repo.execsContaining("DROP TABLE"), 4)
	assert.Len(t, repo.execsContaining("CREATE TABLE"), 2)
	assert.Len(t, repo.execsContaining("RENAME TO"), 2)
}

func TestReplaceTableEmpty(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	w := NewWarehouse(repo, testDialect, "", 10, nil)

	res := w.ReplaceTable(context.Background(), fakeTable{name: "dim_empty"})
	require.NoError(t, res.Err)
	assert.Zero(t, res.Rows)
	assert.Len(t, repo.execsContaining("CREATE TABLE"), 1, "empty tables are still created")
}

func TestReplaceTableErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		setup   func(*fakeRepo)
		wantErr string
	}{
		{
			name:    "drop fails",
			setup:   func(f *fakeRepo) { f.failExec = failOn("DROP", errBoom) },
			wantErr: "drop dim_thing",
		},
		{
			name:    "create fails",
			setup:   func(f *fakeRepo) { f.failExec = failOn("CREATE", errBoom) },
			wantErr: "create dim_thing",
		},
		{
			name:    "copy fails",
			setup:   func(f *fakeRepo) { f.failCopy = func(string) error { return errBoom } },
			wantErr: "boom",
		},
		{
			name:    "short insert",
			setup:   func(f *fakeRepo) { f.short = true },
			wantErr: "inserted 2 of 3 rows",
		},
		{
			name:    "swap fails",
			setup:   func(f *fakeRepo) { f.failExec = failOn("ALTER", errBoom) },
			wantErr: "swap dim_thing",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			repo := newFakeRepo()
			tt.setup(repo)
			w := NewWarehouse(repo, testDialect, "", 10, nil)
			res := w.ReplaceTable(context.Background(), fakeTable{name: "dim_thing", rows: rowsOf(3)})
			require.Error(t, res.Err)
			assert.Contains(t, res.Err.Error(), tt.wantErr)
		})
	}
}

func TestLoadAllContinuesPastFailure(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	repo.failCopy = func(table string) error {
		if strings.HasPrefix(table, "dim_bad") {
			return errBoom
		}
		return nil
	}
	w := NewWarehouse(repo, testDialect, "", 10, nil)

	rep := w.LoadAll(context.Background(), []Loadable{
		fakeTable{name: "dim_bad", rows: rowsOf(2)},
		fakeTable{name: "fact_good", rows: rowsOf(4)},
	})

	require.Len(t, rep.Tables, 2)
	assert.ErrorIs(t, rep.Tables[0].Err, errBoom)
	assert.NoError(t, rep.Tables[1].Err)
	assert.EqualValues(t, 4, rep.Rows())
	assert.ErrorIs(t, rep.Err(), errBoom)
	assert.Contains(t, rep.Err().Error(), "dim_bad")
}

func TestLoadAllStopsOnCancel(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	w := NewWarehouse(repo, testDialect, "", 10, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep := w.LoadAll(ctx, []Loadable{fakeTable{name: "a", rows: rowsOf(1)}, fakeTable{name: "b"}})
	require.Len(t, rep.Tables, 2)
	for _, tl := range rep.Tables {
		assert.ErrorIs(t, tl.Err, context.Canceled)
	}
	assert.Empty(t, repo.execs)
}

func failOn(prefix string, err error) func(string) error {
	return func(sql string) error {
		if strings.HasPrefix(sql, prefix) {
			return fmt.Errorf("exec %q: %w", prefix, err)
		}
		return nil
	}
}

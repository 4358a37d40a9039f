package file

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/znumunz/pram2/internal/datasource"
)

func TestLocalOpen(t *testing.T) {
	t.Parallel()

	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name        string
		prepare     func(t *testing.T) string
		ctx         context.Context
		wantErrIs   []error
		wantContent string
	}{
		{
			name: "reads content",
			prepare: func(t *testing.T) string {
				p := filepath.Join(t.TempDir(), "orders.csv")
				require.NoError(t, os.WriteFile(p, []byte("id\n1\n"), 0o644))
				return p
			},
			ctx:         context.Background(),
			wantContent: "id\n1\n",
		},
		{
			name: "missing file",
			prepare: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "missing.csv")
			},
			ctx:       context.Background(),
			wantErrIs: []error{datasource.ErrNotFound, os.ErrNotExist},
		},
		{
			name: "canceled context",
			prepare: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "never-opened.csv")
			},
			ctx:       canceled,
			wantErrIs: []error{context.Canceled},
		},
		{
			name:      "directory",
			prepare:   func(t *testing.T) string { return t.TempDir() },
			ctx:       context.Background(),
			wantErrIs: []error{nil},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			src := NewLocal(tt.prepare(t))
			rc, err := src.Open(tt.ctx)
			if len(tt.wantErrIs) > 0 {
				require.Error(t, err)
				for _, target := range tt.wantErrIs {
					if target != nil {
						assert.ErrorIs(t, err, target)
					}
				}
				assert.Nil(t, rc)
				return
			}
			require.NoError(t, err)
			defer rc.Close()
			b, err := io.ReadAll(rc)
			require.NoError(t, err)
			assert.Equal(t, tt.wantContent, string(b))
			assert.Equal(t, src.path, src.Location())
		})
	}
}

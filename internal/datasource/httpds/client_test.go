package httpds

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/znumunz/pram2/internal/datasource"
)

func fastClient(retries int) *Client {
	return NewClient(Config{
		Timeout:        2 * time.Second,
		MaxRetries:     retries,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	})
}

func TestNewClientDefaults(t *testing.T) {
	t.Parallel()

	c := NewClient(Config{InsecureSkipVerify: true, MaxRetries: -1})
	assert.Equal(t, 30*time.Second, c.httpClient.Timeout)
	assert.Equal(t, 0, c.maxRetries)
	assert.Equal(t, 200*time.Millisecond, c.initialBackoff)
	assert.Equal(t, 5*time.Second, c.maxBackoff)

	tr, ok := c.httpClient.Transport.(*http.Transport)
	require.True(t, ok)
	require.NotNil(t, tr.TLSClientConfig)
	assert.True(t, tr.TLSClientConfig.InsecureSkipVerify)
}

func TestGet(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		statuses  []int
		retries   int
		wantHits  int32
		wantErr   bool
		wantErrIs error
	}{
		{name: "ok first try", statuses: []int{200}, retries: 3, wantHits: 1},
		{name: "recovers after 503", statuses: []int{503, 429, 200}, retries: 3, wantHits: 3},
		{name: "gives up", statuses: []int{500, 500, 500}, retries: 2, wantHits: 3, wantErr: true},
		{name: "404 is not found", statuses: []int{404}, retries: 3, wantHits: 1, wantErr: true, wantErrIs: datasource.ErrNotFound},
		{name: "403 is final", statuses: []int{403}, retries: 3, wantHits: 1, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var hits atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := hits.Add(1)
				code := tt.statuses[min(int(n)-1, len(tt.statuses)-1)]
				w.WriteHeader(code)
				_, _ = io.WriteString(w, "id\n1\n")
			}))
			defer srv.Close()

			resp, err := fastClient(tt.retries).Get(context.Background(), srv.URL, nil)
			assert.Equal(t, tt.wantHits, hits.Load())
			if tt.wantErr {
				require.Error(t, err)
				if tt.wantErrIs != nil {
					assert.ErrorIs(t, err, tt.wantErrIs)
				}
				return
			}
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusOK, resp.StatusCode)
		})
	}
}

func TestGetHeaders(t *testing.T) {
	t.Parallel()

	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
	}))
	defer srv.Close()

	c := NewClient(Config{BaseHeaders: http.Header{"X-Base": {"a"}, "Accept": {"text/plain"}}})
	resp, err := c.Get(context.Background(), srv.URL, http.Header{"Accept": {"text/csv"}})
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "a", got.Get("X-Base"))
	assert.Equal(t, "text/csv", got.Get("Accept"))
}

func TestGetCanceled(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := fastClient(5).Get(ctx, srv.URL, nil)
	require.Error(t, err)
}

func TestGetEmptyURL(t *testing.T) {
	t.Parallel()

	_, err := fastClient(0).Get(context.Background(), "", nil)
	require.Error(t, err)
}

func TestSourceOpen(t *testing.T) {
	t.Parallel()

	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "OrderID\n10248\n")
	}))
	defer srv.Close()

	c := NewClient(Config{Transport: &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}}}) //nolint:gosec // test server
	src := NewSource(c, srv.URL+"/orders.csv")
	assert.Equal(t, srv.URL+"/orders.csv", src.Location())

	rc, err := src.Open(context.Background())
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "OrderID\n10248\n", string(b))
}

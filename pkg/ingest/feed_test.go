package ingest

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const feed = "created_at: 2024-04-01T00:00:05Z\n---\nrails 7.0.0 abc123\n"

func gzipped(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func readSource(t *testing.T, src string, f *Fetcher) string {
	t.Helper()
	rc, err := Open(context.Background(), src, f)
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(b)
}

func TestOpen_File(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content []byte
	}{
		{"plain", []byte(feed)},
		{"gzip", gzipped(t, feed)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name)
			require.NoError(t, os.WriteFile(path, tt.content, 0o644))
			assert.Equal(t, feed, readSource(t, path, nil))
		})
	}

	t.Run("tiny", func(t *testing.T) {
		path := filepath.Join(dir, "tiny")
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
		assert.Equal(t, "x", readSource(t, path, nil))
	})

	t.Run("missing", func(t *testing.T) {
		_, err := Open(context.Background(), filepath.Join(dir, "nope"), nil)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestOpen_HTTP(t *testing.T) {
	var agent atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agent.Store(r.UserAgent())
		switch r.URL.Path {
		case "/versions":
			io.WriteString(w, feed)
		case "/versions.gz":
			w.Write(gzipped(t, feed))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewFetcher(FetcherOptions{UserAgent: "facet-test"})

	assert.Equal(t, feed, readSource(t, srv.URL+"/versions", f))
	assert.Equal(t, "facet-test", agent.Load())
	assert.Equal(t, feed, readSource(t, srv.URL+"/versions.gz", f))

	_, err := Open(context.Background(), srv.URL+"/missing", f)
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
	assert.Contains(t, err.Error(), "404")
}

func TestFetcher_Retries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, feed)
	}))
	defer srv.Close()

	f := NewFetcher(FetcherOptions{RetryMax: 3})
	f.client.RetryWaitMin = time.Millisecond
	f.client.RetryWaitMax = 5 * time.Millisecond

	assert.Equal(t, feed, readSource(t, srv.URL, f))
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetcher_GivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	f := NewFetcher(FetcherOptions{RetryMax: 1})
	f.client.RetryWaitMin = time.Millisecond
	f.client.RetryWaitMax = time.Millisecond

	_, err := f.Fetch(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
}

func TestIsURL(t *testing.T) {
	assert.True(t, IsURL("https://index.rubygems.org/versions"))
	assert.True(t, IsURL("http://localhost/versions"))
	assert.False(t, IsURL("versions"))
	assert.False(t, IsURL(StdinSource))
}

package refresh

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facet/pkg/control"
	"facet/pkg/engine"
	"facet/pkg/names"
	"facet/pkg/output"
)

const feed = "created_at: 2024-04-01T00:00:05Z\n---\nrails 7.0.0,7.0.1 abc123\nactiverecord 7.0.0 def456\nsinatra 3.0.0 ghi789\n"

func feedServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

type capturePublisher struct {
	mu        sync.Mutex
	artifacts []output.Artifact
	contents  []string
	err       error
}

func (c *capturePublisher) Publish(_ context.Context, a output.Artifact) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, err := os.ReadFile(a.Path)
	if err != nil {
		return err
	}
	c.artifacts = append(c.artifacts, a)
	c.contents = append(c.contents, string(b))
	return c.err
}

type captureRecorder struct {
	statuses []control.Status
	err      error
}

func (c *captureRecorder) Record(_ context.Context, s control.Status) error {
	c.statuses = append(c.statuses, s)
	return c.err
}

func TestRefresher_Run(t *testing.T) {
	srv := feedServer(t, feed)
	cache := filepath.Join(t.TempDir(), "versions.filtered")
	pub := &capturePublisher{}
	rec := &captureRecorder{}

	r := New(Options{
		Feed:         srv.URL,
		CachePath:    cache,
		Rewrite:      engine.Strip,
		Digest:       engine.SHA256,
		Policy:       engine.AllowPolicy(engine.NewNameSet("rails", "sinatra")),
		Publisher:    pub,
		Recorder:     rec,
		PublishedKey: "versions/filtered-latest.bin",
	})
	assert.Nil(t, r.Last())

	report, err := r.Run(context.Background())
	require.NoError(t, err)

	want := "created_at: 2024-04-01T00:00:05Z\n---\nrails 0 abc123\nsinatra 0 ghi789\n"
	got, err := os.ReadFile(cache)
	require.NoError(t, err)
	assert.Equal(t, want, string(got))

	assert.NotEmpty(t, report.ID)
	assert.Equal(t, 2, report.Result.Kept)
	assert.Len(t, report.Artifact.Digest, 64)
	assert.Equal(t, int64(len(want)), report.Artifact.Size)
	assert.Same(t, report, r.Last())

	require.Len(t, pub.contents, 1)
	assert.Equal(t, want, pub.contents[0])

	require.Len(t, rec.statuses, 1)
	assert.Equal(t, report.ID, rec.statuses[0].ID)
	assert.Equal(t, "sha256", rec.statuses[0].Algorithm)
	assert.Equal(t, "versions/filtered-latest.bin", rec.statuses[0].Key)
}

func TestRefresher_UpdatePolicy(t *testing.T) {
	srv := feedServer(t, feed)
	cache := filepath.Join(t.TempDir(), "versions.filtered")

	r := New(Options{Feed: srv.URL, CachePath: cache, Policy: engine.AllowPolicy(engine.NewNameSet("rails"))})
	assert.True(t, r.Relevant("rails"))
	assert.False(t, r.Relevant("sinatra"))
	assert.True(t, r.Relevant(""))

	r.UpdatePolicy(engine.BlockPolicy(engine.NewNameSet("rails")))
	assert.False(t, r.Relevant("rails"))

	_, err := r.Run(context.Background())
	require.NoError(t, err)
	got, err := os.ReadFile(cache)
	require.NoError(t, err)
	assert.NotContains(t, string(got), "rails")
	assert.Contains(t, string(got), "sinatra")
}

type memGetter map[string]string

func (m memGetter) Get(_ context.Context, key string) (io.ReadCloser, error) {
	body, ok := m[key]
	if !ok {
		return nil, errors.New("missing")
	}
	return io.NopCloser(bytes.NewBufferString(body)), nil
}

func TestRefresher_PerRunAllowlist(t *testing.T) {
	srv := feedServer(t, feed)
	cache := filepath.Join(t.TempDir(), "versions.filtered")
	objects := memGetter{"allowlist.txt": "rails\nsinatra\n"}

	r := New(Options{
		Feed:      srv.URL,
		CachePath: cache,
		Allowlist: names.ObjectSource{Getter: objects, Key: "allowlist.txt"},
		Blocklist: engine.NewNameSet("sinatra"),
	})
	assert.True(t, r.Relevant("anything"))

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "allow(1 names)", report.Policy)

	objects["allowlist.txt"] = "activerecord\n"
	_, err = r.Run(context.Background())
	require.NoError(t, err)
	got, err := os.ReadFile(cache)
	require.NoError(t, err)
	assert.Equal(t, "created_at: 2024-04-01T00:00:05Z\n---\nactiverecord 7.0.0 def456\n", string(got))

	delete(objects, "allowlist.txt")
	_, err = r.Run(context.Background())
	assert.ErrorContains(t, err, "load allowlist")
}

func TestRefresher_FailureKeepsCache(t *testing.T) {
	dir := t.TempDir()
	cache := filepath.Join(dir, "versions.filtered")
	require.NoError(t, os.WriteFile(cache, []byte("previous"), 0o644))

	srv := feedServer(t, "no separator here\n")
	pub := &capturePublisher{}
	r := New(Options{Feed: srv.URL, CachePath: cache, Publisher: pub})

	_, err := r.Run(context.Background())
	assert.ErrorIs(t, err, engine.ErrMissingSeparator)

	got, err := os.ReadFile(cache)
	require.NoError(t, err)
	assert.Equal(t, "previous", string(got))
	assert.Empty(t, pub.artifacts)
	assert.Nil(t, r.Last())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file removed")
}

func TestRefresher_PublishError(t *testing.T) {
	srv := feedServer(t, feed)
	pub := &capturePublisher{err: output.ErrPublish}
	rec := &captureRecorder{}
	r := New(Options{Feed: srv.URL, CachePath: filepath.Join(t.TempDir(), "out"), Publisher: pub, Recorder: rec})

	_, err := r.Run(context.Background())
	assert.ErrorIs(t, err, output.ErrPublish)
	assert.Empty(t, rec.statuses)
	assert.Nil(t, r.Last())
}

func TestRefresher_RecordErrorIsNotFatal(t *testing.T) {
	srv := feedServer(t, feed)
	rec := &captureRecorder{err: errors.New("redis down")}
	r := New(Options{Feed: srv.URL, CachePath: filepath.Join(t.TempDir(), "out"), Recorder: rec})

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Same(t, report, r.Last())
}

func TestRefresher_Reconcile(t *testing.T) {
	srv := feedServer(t, "---\nrails 1 a\nrack 1 b\nrails 2 c\n")
	cache := filepath.Join(t.TempDir(), "out")
	r := New(Options{Feed: srv.URL, CachePath: cache, Reconcile: true})

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Result.Merged)

	got, err := os.ReadFile(cache)
	require.NoError(t, err)
	assert.Equal(t, "---\nrails 2 c\nrack 1 b\n", string(got))
}

func TestRefresher_RunID(t *testing.T) {
	srv := feedServer(t, feed)
	r := New(Options{Feed: srv.URL, CachePath: filepath.Join(t.TempDir(), "out")})

	report, err := r.RunID(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, "job-1", report.ID)
	assert.Equal(t, "passthrough", report.Policy)
	assert.Equal(t, 3, report.Result.Kept)
}

package control

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facet/pkg/engine"
)

type fakeSets struct {
	mu   sync.Mutex
	sets map[string][]string
	err  error
}

func (f *fakeSets) Exists(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	var n int64
	for _, k := range keys {
		if _, ok := f.sets[k]; ok {
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeSets) SMembers(_ context.Context, key string) *redis.StringSliceCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	return redis.NewStringSliceResult(f.sets[key], nil)
}

func (f *fakeSets) set(key string, members ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets[key] = members
}

type policyRecorder struct {
	mu       sync.Mutex
	policies []engine.Policy
}

func (p *policyRecorder) UpdatePolicy(policy engine.Policy) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.policies = append(p.policies, policy)
}

func (p *policyRecorder) snapshot() []engine.Policy {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]engine.Policy(nil), p.policies...)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func newTestWatcher(sets SetReader, updater PolicyUpdater, ch chan *redis.Message) *Watcher {
	return &Watcher{
		sets: sets,
		subscribe: func(context.Context, string) (<-chan *redis.Message, io.Closer) {
			return ch, nopCloser{}
		},
		updater: updater,
		opts:    WatcherOptions{AllowKey: "facet:allow", BlockKey: "facet:block", Channel: "facet:updates"},
	}
}

func TestWatcher_Reload(t *testing.T) {
	tests := []struct {
		name     string
		sets     map[string][]string
		wantKind engine.PolicyKind
		want     []string
		pushed   bool
	}{
		{"nothing configured", map[string][]string{}, 0, nil, false},
		{"allow", map[string][]string{"facet:allow": {"rails", "rack"}}, engine.Allow, []string{"rack", "rails"}, true},
		{"block", map[string][]string{"facet:block": {"rack"}}, engine.Block, []string{"rack"}, true},
		{"both", map[string][]string{"facet:allow": {"rails", "rack"}, "facet:block": {"rack"}}, engine.Allow, []string{"rails"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &policyRecorder{}
			w := newTestWatcher(&fakeSets{sets: tt.sets}, rec, nil)

			require.NoError(t, w.Reload(context.Background()))

			got := rec.snapshot()
			if !tt.pushed {
				assert.Empty(t, got)
				return
			}
			require.Len(t, got, 1)
			assert.Equal(t, tt.wantKind, got[0].Kind)
			assert.Equal(t, tt.want, got[0].Names.Names())
		})
	}
}

func TestWatcher_ReloadError(t *testing.T) {
	rec := &policyRecorder{}
	w := newTestWatcher(&fakeSets{err: errors.New("connection refused")}, rec, nil)

	err := w.Reload(context.Background())
	assert.ErrorContains(t, err, "exists facet:allow")
	assert.Empty(t, rec.snapshot())
}

func TestWatcher_Run(t *testing.T) {
	sets := &fakeSets{sets: map[string][]string{"facet:allow": {"rails"}}}
	rec := &policyRecorder{}
	ch := make(chan *redis.Message)
	w := newTestWatcher(sets, rec, ch)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 5*time.Millisecond)

	sets.set("facet:allow", "rails", "sinatra")
	ch <- &redis.Message{Channel: "facet:updates", Payload: "allowlist changed"}

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 2 }, time.Second, 5*time.Millisecond)
	assert.True(t, rec.snapshot()[1].Keep("sinatra"))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcher_SubscriptionClosed(t *testing.T) {
	ch := make(chan *redis.Message)
	close(ch)
	w := newTestWatcher(&fakeSets{sets: map[string][]string{}}, &policyRecorder{}, ch)

	assert.Error(t, w.Run(context.Background()))
}

type fakeStatus struct {
	hashes    map[string]map[string]interface{}
	published map[string][]string
	err       error
}

func (f *fakeStatus) HSet(_ context.Context, key string, values ...interface{}) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	h := map[string]interface{}{}
	for i := 0; i+1 < len(values); i += 2 {
		h[values[i].(string)] = values[i+1]
	}
	f.hashes[key] = h
	return redis.NewIntResult(int64(len(h)), nil)
}

func (f *fakeStatus) Publish(_ context.Context, channel string, message interface{}) *redis.IntCmd {
	f.published[channel] = append(f.published[channel], message.(string))
	return redis.NewIntResult(1, nil)
}

func TestRecorder(t *testing.T) {
	fs := &fakeStatus{hashes: map[string]map[string]interface{}{}, published: map[string][]string{}}
	r := NewRecorder(fs, "facet:status", "facet:updates")

	created := time.Date(2024, 4, 1, 0, 0, 5, 0, time.FixedZone("CEST", 2*3600))
	err := r.Record(context.Background(), Status{
		ID:        "run-1",
		Digest:    "abc",
		Algorithm: "sha256",
		Size:      42,
		Kept:      3,
		CreatedAt: created,
		Key:       "versions/filtered-latest.bin",
	})
	require.NoError(t, err)

	h := fs.hashes["facet:status"]
	assert.Equal(t, "run-1", h["id"])
	assert.Equal(t, int64(42), h["size"])
	assert.Equal(t, "2024-03-31T22:00:05Z", h["created_at"])
	assert.Equal(t, []string{"sha256=abc"}, fs.published["facet:updates:published"])

	require.NoError(t, r.Record(context.Background(), Status{ID: "run-2"}))
	assert.Equal(t, []string{"sha256=abc", "run-2"}, fs.published["facet:updates:published"])

	fs.err = errors.New("READONLY")
	assert.ErrorContains(t, r.Record(context.Background(), Status{}), "hset facet:status")
}

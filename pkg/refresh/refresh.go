// Package refresh rebuilds the filtered feed: fetch, filter into the cache
// file, publish, record.
package refresh

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"facet/pkg/control"
	"facet/pkg/engine"
	"facet/pkg/ingest"
	"facet/pkg/names"
	"facet/pkg/output"
)

// Recorder stores the outcome of a successful run.
type Recorder interface {
	Record(ctx context.Context, s control.Status) error
}

type Options struct {
	// Feed is a URL, a local path or "-".
	Feed      string
	CachePath string

	Rewrite   engine.RewriteMode
	Digest    engine.DigestAlgorithm
	Reconcile bool

	// Policy is the initial static policy.
	Policy engine.Policy
	// Allowlist, when set, is loaded on every run and replaces the allow
	// side of the policy. Blocklist is removed from it.
	Allowlist names.Source
	Blocklist engine.NameSet

	Fetcher   *ingest.Fetcher
	Publisher output.Publisher
	Recorder  Recorder
	// PublishedKey is recorded as the location of the latest artifact.
	PublishedKey string
}

// Report describes one successful run.
type Report struct {
	ID       string
	Policy   string
	Result   engine.Result
	Artifact output.Artifact
	Duration time.Duration
}

// Refresher runs refreshes one at a time; concurrent calls queue.
type Refresher struct {
	opts Options

	run    sync.Mutex
	policy atomic.Pointer[engine.Policy]
	last   atomic.Pointer[Report]
}

func New(opts Options) *Refresher {
	if opts.Publisher == nil {
		opts.Publisher = output.NopPublisher{}
	}
	r := &Refresher{opts: opts}
	r.UpdatePolicy(opts.Policy)
	return r
}

// UpdatePolicy hot-swaps the static policy. Runs already in progress keep
// the policy they started with.
func (r *Refresher) UpdatePolicy(p engine.Policy) {
	r.policy.Store(&p)
}

// Policy returns the current static policy.
func (r *Refresher) Policy() engine.Policy {
	return *r.policy.Load()
}

// Relevant reports whether a change to the named entry can alter the
// output. An empty name, or an allowlist loaded per run, is always
// relevant.
func (r *Refresher) Relevant(name string) bool {
	if name == "" || r.opts.Allowlist != nil {
		return true
	}
	return r.Policy().Keep(name)
}

// Last returns the report of the last successful run, or nil.
func (r *Refresher) Last() *Report {
	return r.last.Load()
}

func (r *Refresher) snapshot(ctx context.Context) (engine.Policy, error) {
	if r.opts.Allowlist == nil {
		return r.Policy(), nil
	}
	allow, err := r.opts.Allowlist.Load(ctx)
	if err != nil {
		return engine.Policy{}, errors.WithMessage(err, "load allowlist")
	}
	return names.Resolve(allow, r.opts.Blocklist), nil
}

// Run performs one refresh under a fresh ID. The cache file is replaced only
// when the whole feed was filtered successfully.
func (r *Refresher) Run(ctx context.Context) (*Report, error) {
	return r.RunID(ctx, uuid.NewString())
}

// RunID is Run with a caller-chosen ID.
func (r *Refresher) RunID(ctx context.Context, id string) (*Report, error) {
	r.run.Lock()
	defer r.run.Unlock()

	started := time.Now()
	logger := log.WithField("id", id)

	policy, err := r.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	logger.WithFields(log.Fields{"feed": r.opts.Feed, "policy": policy.String()}).Info("Refresh: starting")

	res, err := r.filter(ctx, policy)
	if err != nil {
		return nil, err
	}

	artifact := output.Artifact{
		Path:      r.opts.CachePath,
		Digest:    res.Digest,
		Algorithm: res.Algorithm,
		Size:      res.BytesWritten,
		CreatedAt: started,
	}
	if err := r.opts.Publisher.Publish(ctx, artifact); err != nil {
		return nil, errors.WithMessage(err, "publish")
	}

	report := &Report{
		ID:       id,
		Policy:   policy.String(),
		Result:   res,
		Artifact: artifact,
		Duration: time.Since(started),
	}

	if r.opts.Recorder != nil {
		err := r.opts.Recorder.Record(ctx, control.Status{
			ID:        id,
			Digest:    res.Digest,
			Algorithm: string(res.Algorithm),
			Size:      res.BytesWritten,
			Kept:      res.Kept,
			CreatedAt: started,
			Key:       r.opts.PublishedKey,
		})
		if err != nil {
			// The artifact is already out; only the bookkeeping is missing.
			logger.WithError(err).Warn("Refresh: failed to record status")
		}
	}

	r.last.Store(report)
	logger.WithFields(log.Fields{
		"kept":     res.Kept,
		"dropped":  res.Dropped,
		"size":     humanize.Bytes(uint64(res.BytesWritten)),
		"digest":   res.Digest,
		"duration": report.Duration.Round(time.Millisecond),
	}).Info("Refresh: complete")
	return report, nil
}

func (r *Refresher) filter(ctx context.Context, policy engine.Policy) (engine.Result, error) {
	in, err := ingest.Open(ctx, r.opts.Feed, r.opts.Fetcher)
	if err != nil {
		return engine.Result{}, err
	}
	defer in.Close()

	out, err := output.CreateAtomic(r.opts.CachePath)
	if err != nil {
		return engine.Result{}, err
	}
	defer out.Abort()

	res, err := engine.Run(in, out, engine.Options{
		Policy:    policy,
		Rewrite:   r.opts.Rewrite,
		Digest:    r.opts.Digest,
		Reconcile: r.opts.Reconcile,
	})
	if err != nil {
		return res, err
	}
	if err := out.Commit(); err != nil {
		return res, err
	}
	return res, nil
}

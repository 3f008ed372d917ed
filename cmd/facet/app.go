package main

import (
	"context"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"facet/pkg/config"
	"facet/pkg/control"
	"facet/pkg/engine"
	"facet/pkg/ingest"
	"facet/pkg/names"
	"facet/pkg/output"
	"facet/pkg/refresh"
	"facet/pkg/store"
)

// app is the refresh job plus its optional Redis control plane, built from
// the resolved configuration.
type app struct {
	refresher *refresh.Refresher
	watcher   *control.Watcher
	redis     *redis.Client
}

func newFetcher(fc config.FeedConfig) *ingest.Fetcher {
	return ingest.NewFetcher(ingest.FetcherOptions{
		Timeout:   fc.Timeout,
		RetryMax:  fc.RetryMax,
		UserAgent: fc.UserAgent,
	})
}

// loadLists reads the name list files that are configured. A nil set means
// the list is not configured.
func loadLists(fc config.FilterConfig) (allow, block engine.NameSet, err error) {
	if fc.AllowlistPath != "" {
		if allow, err = names.LoadFile(fc.AllowlistPath); err != nil {
			return nil, nil, err
		}
	}
	if fc.BlocklistPath != "" {
		if block, err = names.LoadFile(fc.BlocklistPath); err != nil {
			return nil, nil, err
		}
	}
	return allow, block, nil
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	alg, err := engine.ParseDigestAlgorithm(cfg.Filter.Digest)
	if err != nil {
		return nil, err
	}
	allow, block, err := loadLists(cfg.Filter)
	if err != nil {
		return nil, err
	}

	opts := refresh.Options{
		Feed:      cfg.Feed.URL,
		CachePath: cfg.Server.CachePath,
		Rewrite:   cfg.Filter.Rewrite(),
		Digest:    alg,
		Reconcile: cfg.Filter.Reconcile,
		Policy:    names.Resolve(allow, block),
		Fetcher:   newFetcher(cfg.Feed),
	}

	var publishers []output.Publisher
	sc := cfg.Storage
	if sc.Backend == config.BackendS3 {
		bucket, err := store.New(ctx, store.Options{
			Bucket:      sc.Bucket,
			Region:      sc.Region,
			Endpoint:    sc.Endpoint,
			AccessKeyID: sc.AccessKeyID,
			SecretKey:   sc.SecretKey,
		})
		if err != nil {
			return nil, err
		}
		pub := output.NewS3Publisher(bucket, sc.Prefix)
		_, _, opts.PublishedKey, _ = pub.Keys(output.Artifact{})
		publishers = append(publishers, pub)

		if sc.AllowlistKey != "" {
			opts.Allowlist = names.ObjectSource{Getter: bucket, Key: sc.AllowlistKey}
			opts.Blocklist = block
		}
		log.WithFields(log.Fields{"bucket": bucket.Name(), "prefix": sc.Prefix}).Info("Setup: publishing to S3")
	}
	if sc.Backend != config.BackendNone && sc.HTTPURL != "" {
		if opts.PublishedKey == "" {
			opts.PublishedKey = sc.HTTPURL
		}
		publishers = append(publishers, output.NewHTTPPublisher(sc.HTTPURL, sc.HTTPHeaders))
		log.WithField("url", sc.HTTPURL).Info("Setup: publishing to HTTP mirror")
	}
	switch len(publishers) {
	case 0:
	case 1:
		opts.Publisher = publishers[0]
	default:
		opts.Publisher = output.NewFanOutPublisher(publishers...)
	}

	a := &app{}
	if rc := cfg.Redis; rc.Address != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     rc.Address,
			Password: rc.Password,
			DB:       rc.DB,
		})
		opts.Recorder = control.NewRecorder(a.redis, rc.StatusKey, rc.Channel)
	}

	a.refresher = refresh.New(opts)
	if a.redis != nil {
		a.watcher = control.NewWatcher(a.redis, a.refresher, control.WatcherOptions{
			AllowKey: cfg.Redis.AllowKey,
			BlockKey: cfg.Redis.BlockKey,
			Channel:  cfg.Redis.Channel,
		})
	}
	return a, nil
}

func (a *app) Close() error {
	if a.redis == nil {
		return nil
	}
	return a.redis.Close()
}

// Package control keeps the filtering policy in sync with name lists held
// in Redis, and reports finished refreshes back to it.
package control

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"facet/pkg/engine"
	"facet/pkg/names"
)

// SetReader is the part of the Redis client the watcher reads lists with.
type SetReader interface {
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
}

// PolicyUpdater receives every policy the watcher resolves.
type PolicyUpdater interface {
	UpdatePolicy(p engine.Policy)
}

// WatcherOptions names the Redis keys a Watcher follows. An empty key is
// not consulted.
type WatcherOptions struct {
	AllowKey string
	BlockKey string
	Channel  string
}

type subscribeFunc func(ctx context.Context, channel string) (<-chan *redis.Message, io.Closer)

// Watcher loads the allow and block lists from Redis sets and reloads them
// whenever a message arrives on the update channel.
type Watcher struct {
	sets      SetReader
	subscribe subscribeFunc
	updater   PolicyUpdater
	opts      WatcherOptions
}

func NewWatcher(client *redis.Client, updater PolicyUpdater, opts WatcherOptions) *Watcher {
	return &Watcher{
		sets: client,
		subscribe: func(ctx context.Context, channel string) (<-chan *redis.Message, io.Closer) {
			pubsub := client.Subscribe(ctx, channel)
			return pubsub.Channel(), pubsub
		},
		updater: updater,
		opts:    opts,
	}
}

// Run loads the current lists, then follows the update channel until ctx
// is done. Failed reloads are logged and the current policy is kept.
func (w *Watcher) Run(ctx context.Context) error {
	log.WithField("channel", w.opts.Channel).Info("Control: starting policy watcher")

	if err := w.Reload(ctx); err != nil {
		log.WithError(err).Warn("Control: initial load failed, keeping current policy")
	}

	ch, closer := w.subscribe(ctx, w.opts.Channel)
	defer closer.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("control: subscription closed")
			}
			log.WithField("payload", msg.Payload).Info("Control: received update signal")
			if err := w.Reload(ctx); err != nil {
				log.WithError(err).Warn("Control: reload failed, keeping current policy")
			}
		}
	}
}

// Reload reads the lists once and pushes the resolved policy. When neither
// list exists nothing is pushed.
func (w *Watcher) Reload(ctx context.Context) error {
	allow, err := w.load(ctx, w.opts.AllowKey)
	if err != nil {
		return err
	}
	block, err := w.load(ctx, w.opts.BlockKey)
	if err != nil {
		return err
	}
	if allow == nil && block == nil {
		log.Info("Control: no name lists found in Redis, keeping current policy")
		return nil
	}

	p := names.Resolve(allow, block)
	w.updater.UpdatePolicy(p)
	log.WithField("policy", p.String()).Info("Control: policy updated")
	return nil
}

// load returns nil when the key is unset or absent.
func (w *Watcher) load(ctx context.Context, key string) (engine.NameSet, error) {
	if key == "" {
		return nil, nil
	}

	n, err := w.sets.Exists(ctx, key).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "exists %s", key)
	}
	if n == 0 {
		return nil, nil
	}

	members, err := w.sets.SMembers(ctx, key).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "smembers %s", key)
	}
	return engine.NewNameSet(members...), nil
}

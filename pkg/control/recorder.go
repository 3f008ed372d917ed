package control

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// StatusWriter is the part of the Redis client the recorder writes with.
type StatusWriter interface {
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Status describes one successful refresh.
type Status struct {
	ID        string
	Digest    string
	Algorithm string
	Size      int64
	Kept      int
	CreatedAt time.Time
	Key       string
}

// PublishedSuffix is appended to the update channel to form the channel
// refresh digests are announced on.
const PublishedSuffix = ":published"

// Recorder stores the last refresh in a Redis hash and announces its digest.
type Recorder struct {
	client    StatusWriter
	statusKey string
	channel   string
}

func NewRecorder(client StatusWriter, statusKey, channel string) *Recorder {
	return &Recorder{
		client:    client,
		statusKey: statusKey,
		channel:   channel + PublishedSuffix,
	}
}

func (r *Recorder) Record(ctx context.Context, s Status) error {
	err := r.client.HSet(ctx, r.statusKey,
		"id", s.ID,
		"digest", s.Digest,
		"algorithm", s.Algorithm,
		"size", s.Size,
		"kept", s.Kept,
		"created_at", s.CreatedAt.UTC().Format(time.RFC3339),
		"key", s.Key,
	).Err()
	if err != nil {
		return errors.Wrapf(err, "hset %s", r.statusKey)
	}

	message := s.ID
	if s.Digest != "" {
		message = s.Algorithm + "=" + s.Digest
	}
	if err := r.client.Publish(ctx, r.channel, message).Err(); err != nil {
		return errors.Wrapf(err, "publish %s", r.channel)
	}
	return nil
}

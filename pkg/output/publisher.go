package output

import (
	"context"
	"time"

	"facet/pkg/engine"
)

// Artifact is a finished, committed output file.
type Artifact struct {
	Path      string
	Digest    string
	Algorithm engine.DigestAlgorithm
	Size      int64
	CreatedAt time.Time
}

// Publisher defines where a committed artifact goes after a run.
type Publisher interface {
	Publish(ctx context.Context, a Artifact) error
}

// NopPublisher keeps artifacts local.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Artifact) error {
	return nil
}

package output

import (
	"context"
	"io"
	"os"
	"path"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const timestampLayout = "20060102-150405"

// ObjectWriter is the part of store.Bucket the S3 publisher needs.
type ObjectWriter interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Copy(ctx context.Context, src, dst string) error
}

// S3Publisher uploads each artifact under a timestamped key, with its
// digest next to it, then points the "latest" keys at the new pair.
//
//	<prefix>/filtered-<YYYYMMDD-HHMMSS>.bin
//	<prefix>/filtered-<YYYYMMDD-HHMMSS>.<alg>
//	<prefix>/filtered-latest.bin
//	<prefix>/filtered-latest.<alg>
type S3Publisher struct {
	bucket ObjectWriter
	prefix string
}

func NewS3Publisher(bucket ObjectWriter, prefix string) *S3Publisher {
	return &S3Publisher{bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// Keys returns the object keys an artifact is published under, in upload
// order: versioned data, versioned digest, latest data, latest digest. The
// digest keys are empty when the artifact has no digest.
func (s *S3Publisher) Keys(a Artifact) (data, digest, latestData, latestDigest string) {
	stamp := a.CreatedAt.UTC().Format(timestampLayout)
	data = s.key("filtered-" + stamp + ".bin")
	latestData = s.key("filtered-latest.bin")
	if a.Digest != "" {
		digest = s.key("filtered-" + stamp + "." + string(a.Algorithm))
		latestDigest = s.key("filtered-latest." + string(a.Algorithm))
	}
	return
}

func (s *S3Publisher) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

func (s *S3Publisher) Publish(ctx context.Context, a Artifact) error {
	data, digest, latestData, latestDigest := s.Keys(a)

	f, err := os.Open(a.Path)
	if err != nil {
		return errors.Wrap(err, "open artifact")
	}
	defer f.Close()

	if err := s.bucket.Put(ctx, data, f, a.Size, "application/octet-stream"); err != nil {
		return publishFailed(err)
	}
	if digest != "" {
		if err := s.bucket.Put(ctx, digest, strings.NewReader(a.Digest), int64(len(a.Digest)), "text/plain"); err != nil {
			return publishFailed(err)
		}
	}

	if err := s.bucket.Copy(ctx, data, latestData); err != nil {
		return publishFailed(err)
	}
	if digest != "" {
		if err := s.bucket.Copy(ctx, digest, latestDigest); err != nil {
			return publishFailed(err)
		}
	}

	log.WithFields(log.Fields{
		"key":    data,
		"latest": latestData,
		"digest": a.Digest,
	}).Info("Output: artifact uploaded")
	return nil
}

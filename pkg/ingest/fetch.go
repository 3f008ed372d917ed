package ingest

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// FetcherOptions configures a Fetcher. Zero fields take the defaults.
type FetcherOptions struct {
	Timeout   time.Duration
	RetryMax  int
	UserAgent string
}

const (
	defaultTimeout   = 5 * time.Minute
	defaultUserAgent = "facet"
)

// Fetcher downloads feeds over HTTP, retrying connection errors and 5xx
// responses.
type Fetcher struct {
	client    *retryablehttp.Client
	userAgent string
}

func NewFetcher(opts FetcherOptions) *Fetcher {
	client := retryablehttp.NewClient()
	client.Logger = leveledLogger{log.WithField("component", "fetch")}
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if opts.RetryMax > 0 {
		client.RetryMax = opts.RetryMax
	}
	client.HTTPClient.Timeout = opts.Timeout
	if opts.Timeout <= 0 {
		client.HTTPClient.Timeout = defaultTimeout
	}

	ua := opts.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	return &Fetcher{client: client, userAgent: ua}
}

// Fetch starts a GET of url and returns the response body. The body is
// streamed; close it to release the connection.
func (f *Fetcher) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch %s", url)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, errors.Wrapf(ErrUnexpectedStatus, "fetch %s: %s", url, resp.Status)
	}

	log.WithFields(log.Fields{
		"url":    url,
		"status": resp.StatusCode,
	}).Debug("Ingest: feed response received")

	return &countingBody{ReadCloser: resp.Body, url: url, started: time.Now()}, nil
}

// countingBody logs how much was read once the body is closed.
type countingBody struct {
	io.ReadCloser
	url     string
	n       uint64
	started time.Time
}

func (c *countingBody) Read(p []byte) (int, error) {
	n, err := c.ReadCloser.Read(p)
	c.n += uint64(n)
	return n, err
}

func (c *countingBody) Close() error {
	log.WithFields(log.Fields{
		"url":      c.url,
		"size":     humanize.Bytes(c.n),
		"duration": time.Since(c.started).Round(time.Millisecond),
	}).Info("Ingest: feed downloaded")
	return c.ReadCloser.Close()
}

// leveledLogger adapts logrus to retryablehttp.LeveledLogger.
type leveledLogger struct {
	entry *log.Entry
}

func (l leveledLogger) fields(kv []interface{}) *log.Entry {
	fields := make(log.Fields, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			fields[k] = kv[i+1]
		}
	}
	return l.entry.WithFields(fields)
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.fields(kv).Error(msg) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.fields(kv).Warn(msg) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.fields(kv).Info(msg) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.fields(kv).Debug(msg) }

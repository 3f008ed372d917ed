package output

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// DigestHeader carries "<algorithm>=<hex>" on mirror uploads.
const DigestHeader = "X-Facet-Digest"

// HTTPPublisher uploads artifacts to a mirror URL via PUT.
type HTTPPublisher struct {
	url     string
	headers map[string]string
	client  *http.Client
}

func NewHTTPPublisher(url string, headers map[string]string) *HTTPPublisher {
	return &HTTPPublisher{
		url:     url,
		headers: headers,
		client: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

func (h *HTTPPublisher) Publish(ctx context.Context, a Artifact) error {
	f, err := os.Open(a.Path)
	if err != nil {
		return errors.Wrap(err, "open artifact")
	}
	defer f.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, h.url, f)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.ContentLength = a.Size

	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if a.Digest != "" {
		req.Header.Set(DigestHeader, string(a.Algorithm)+"="+a.Digest)
	}
	for k, v := range h.headers {
		req.Header.Set(k, v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return publishFailed(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Wrapf(ErrPublish, "put %s: status %d", h.url, resp.StatusCode)
	}

	log.WithFields(log.Fields{"url": h.url, "status": resp.StatusCode}).Info("Output: artifact mirrored")
	return nil
}

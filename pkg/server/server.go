// Package server exposes the filtered feed over HTTP and rebuilds it when a
// webhook arrives.
package server

import (
	"context"
	"encoding/json"
	"io"
	"io/fs"
	"net/http"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"facet/pkg/refresh"
)

const (
	notFoundMessage = "Cache file not found. Trigger /webhook first."
	contentType     = "text/plain; charset=utf-8"

	// maxWebhookBody caps how much of a webhook payload is read.
	maxWebhookBody = 1 << 20
)

// Refresher is what the server needs from a refresh job.
type Refresher interface {
	RunID(ctx context.Context, id string) (*refresh.Report, error)
	Relevant(name string) bool
	Last() *refresh.Report
}

// Server serves the cache file and schedules refreshes.
type Server struct {
	refresher Refresher
	cachePath string

	wg sync.WaitGroup
}

func New(refresher Refresher, cachePath string) *Server {
	return &Server{refresher: refresher, cachePath: cachePath}
}

// Handler returns the routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhook", s.handleWebhook)
	mux.HandleFunc("GET /versions", s.handleVersions)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

// Wait blocks until every refresh started by a webhook has finished.
func (s *Server) Wait() {
	s.wg.Wait()
}

type webhookResponse struct {
	Status string `json:"status"`
	ID     string `json:"id,omitempty"`
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	name := gjson.GetBytes(body, "name").String()
	if name != "" && !s.refresher.Relevant(name) {
		log.WithField("name", name).Debug("Server: webhook skipped")
		writeJSON(w, http.StatusAccepted, webhookResponse{Status: "skipped"})
		return
	}

	id := uuid.NewString()
	ctx := context.WithoutCancel(r.Context())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := s.refresher.RunID(ctx, id); err != nil {
			log.WithError(err).WithField("id", id).Error("Server: refresh failed")
		}
	}()

	log.WithFields(log.Fields{"id": id, "name": name}).Info("Server: refresh scheduled")
	writeJSON(w, http.StatusAccepted, webhookResponse{Status: "accepted", ID: id})
}

func (s *Server) handleVersions(w http.ResponseWriter, r *http.Request) {
	f, err := os.Open(s.cachePath)
	if errors.Is(err, fs.ErrNotExist) {
		http.Error(w, notFoundMessage, http.StatusNotFound)
		return
	}
	if err != nil {
		log.WithError(err).Error("Server: open cache file")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		log.WithError(err).Error("Server: stat cache file")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType)
	// Only trust the digest when it describes a file of this size.
	if last := s.refresher.Last(); last != nil && last.Artifact.Digest != "" && last.Artifact.Size == st.Size() {
		w.Header().Set("ETag", `"`+last.Artifact.Digest+`"`)
	}
	http.ServeContent(w, r, "versions", st.ModTime(), f)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", contentType)
	io.WriteString(w, "ok")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("Server: write response")
	}
}

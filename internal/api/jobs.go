package api

import (
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

// JobStatusHandler forwards build-job status lookups to the build backend
// and relays its status code and body verbatim. No state, no retry.
type JobStatusHandler struct {
	backendURL string
	client     *http.Client
	logger     *slog.Logger
}

func NewJobStatusHandler(backendURL string, logger *slog.Logger) *JobStatusHandler {
	return &JobStatusHandler{
		backendURL: strings.TrimRight(backendURL, "/"),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

func (h *JobStatusHandler) Get(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet,
		h.backendURL+"/jobs/"+url.PathEscape(jobID), nil)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to build backend request")
		return
	}

	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.Error("build backend unreachable", "job_id", jobID, "error", err)
		respondError(w, http.StatusBadGateway, "build backend unreachable")
		return
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}

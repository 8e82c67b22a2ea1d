package server

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/kehao95/gh-deploybot/internal/deploy"
	"github.com/kehao95/gh-deploybot/internal/github"
)

const maxTriggerBody = 1 << 20

type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type triggerResponse struct {
	Message string `json:"message"`
	deploy.TriggerRequest
}

type statusResponse struct {
	LatestRuns []deploy.Run `json:"latest_runs"`
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	var req deploy.TriggerRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxTriggerBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	used, err := s.service.Trigger(r.Context(), deploy.SourceAPI, req)
	if errors.Is(err, deploy.ErrMissingRepo) {
		writeError(w, http.StatusBadRequest, "Owner and repo are required")
		return
	}
	if err != nil {
		status, body := upstreamFailure(err, "Failed to trigger deployment")
		writeJSON(w, status, body)
		return
	}

	writeJSON(w, http.StatusOK, triggerResponse{
		Message:        "Deployment triggered successfully",
		TriggerRequest: used,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	runs, err := s.service.Status(r.Context(), query.Get("owner"), query.Get("repo"))
	if errors.Is(err, deploy.ErrMissingRepo) {
		writeError(w, http.StatusBadRequest, "Owner and repo are required")
		return
	}
	if err != nil {
		status, body := upstreamFailure(err, "Failed to fetch status")
		writeJSON(w, status, body)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{LatestRuns: runs})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// upstreamFailure passes a GitHub error status through with its detail.
// Anything else, a transport failure included, is a 500.
func upstreamFailure(err error, msg string) (int, errorBody) {
	var apiErr *github.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 {
		return apiErr.StatusCode, errorBody{Error: msg, Details: apiErr.Detail()}
	}
	return http.StatusInternalServerError, errorBody{Error: msg}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				s.logger.Error("handler panic", "method", r.Method, "path", r.URL.Path, "panic", fmt.Sprint(v))
				writeError(w, http.StatusInternalServerError, "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack lets the websocket upgrader take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hijacker.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

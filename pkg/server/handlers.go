package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"atlas-gw/atlas/pkg/registry"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// clientTypeParam validates the client_type query parameter.
func clientTypeParam(r *http.Request) (string, error) {
	clientType := r.URL.Query().Get("client_type")
	if clientType == "" {
		return "", fmt.Errorf("missing client_type parameter")
	}
	for _, known := range registry.ClientTypes {
		if clientType == known {
			return clientType, nil
		}
	}
	return "", fmt.Errorf("unknown client type %q", clientType)
}

// handleHealth is the liveness endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleEndpoints returns endpoint health rows for one client type.
func (s *Server) handleEndpoints(w http.ResponseWriter, r *http.Request) {
	clientType, err := clientTypeParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.console.GetEndpointHealth(clientType))
}

// handleChecks returns the latest probe result per endpoint.
func (s *Server) handleChecks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.console.GetEndpointCheckResults())
}

// handleMonitor returns the aggregate dashboard snapshot.
func (s *Server) handleMonitor(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.console.GetMonitorSnapshot())
}

// handleRecent returns recently finished requests, newest first.
func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit parameter")
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, s.console.GetRecentRequests(limit))
}

// handleOptimize runs a batch probe-and-optimize for one client type.
// A run already in flight answers 202 without starting another.
func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	clientType, err := clientTypeParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := s.console.TestAllEndpointsAndOptimize(r.Context(), clientType)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if report == nil {
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "optimization already running"})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleReset clears health windows and probe history.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.console.ResetMonitorMetrics()
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// handleEvents streams the event bus over SSE until the client
// disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	// Streaming outlives the server write timeout.
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := s.console.Subscribe(64)
	defer sub.Close()

	for {
		select {
		case evt, ok := <-sub.Events():
			if !ok {
				return
			}
			data, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, data); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

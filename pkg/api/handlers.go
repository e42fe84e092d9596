package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/orbitdash/orbitdash/pkg/types"
)

// populateRequest is the body of a populate call: where to fetch the
// artifact from, plus caller-supplied metadata the cache stores opaquely.
type populateRequest struct {
	SourceLocator string            `json:"source_locator"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

type artifactResponse struct {
	Entry  *types.CacheEntry `json:"entry"`
	Cached bool              `json:"cached"`
}

func (s *Server) handleListCategory(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	entries := s.artifacts.ListByCategory(r.Context(), category, limit)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"category": category,
		"count":    len(entries),
		"entries":  entries,
	})
}

func (s *Server) handleGetArtifact(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	id := chi.URLParam(r, "id")

	entry, ok := s.artifacts.Get(r.Context(), category, id)
	if !ok {
		writeError(w, http.StatusNotFound, "artifact not cached")
		return
	}
	writeJSON(w, http.StatusOK, artifactResponse{Entry: entry, Cached: true})
}

// handlePopulate is the fetch-through path: cache first, and only on a miss
// the upstream fetcher. The cache layer itself never fetches.
func (s *Server) handlePopulate(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	id := chi.URLParam(r, "id")

	var req populateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SourceLocator == "" {
		writeError(w, http.StatusBadRequest, "source_locator is required")
		return
	}

	if entry, ok := s.artifacts.Get(r.Context(), category, id); ok && entry.Fidelity == types.FidelityFull {
		writeJSON(w, http.StatusOK, artifactResponse{Entry: entry, Cached: true})
		return
	}

	var payload []byte
	err := s.retryer.Do(r.Context(), func(ctx context.Context) error {
		data, err := s.fetcher.Fetch(ctx, req.SourceLocator)
		if err != nil {
			return err
		}
		payload = data
		return nil
	})
	if err != nil {
		s.logger.Warn("upstream fetch failed", "category", category, "id", id, "error", err)
		writeError(w, http.StatusBadGateway, "upstream fetch failed")
		return
	}

	entry := s.artifacts.Put(r.Context(), category, id, req.SourceLocator, payload, req.Metadata)
	writeJSON(w, http.StatusCreated, artifactResponse{Entry: entry, Cached: false})
}

func (s *Server) handleClearCategory(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	s.artifacts.ClearCategory(r.Context(), category)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.artifacts.Stats())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleTierHealth reports per-tier availability; the service is degraded,
// not down, while any tier below volatile is unavailable.
func (s *Server) handleTierHealth(w http.ResponseWriter, _ *http.Request) {
	stats := s.artifacts.Stats()

	status := "ok"
	for _, tier := range stats.Tiers {
		if !tier.Available {
			status = "degraded"
			break
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": status,
		"tiers":  stats.Tiers,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

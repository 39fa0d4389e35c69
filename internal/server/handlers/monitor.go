package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"mediapulse/internal/domain/feed"
	"mediapulse/internal/domain/signal"
	"mediapulse/internal/domain/vector"
	"mediapulse/internal/service/monitor"
)

// MonitorHandler handles analysis and retrieval HTTP requests
type MonitorHandler struct {
	service *monitor.Service
	log     *logrus.Logger
}

// NewMonitorHandler creates a new monitor handler
func NewMonitorHandler(service *monitor.Service, log *logrus.Logger) *MonitorHandler {
	return &MonitorHandler{
		service: service,
		log:     log,
	}
}

// IngestDocuments accepts a closed batch of documents and runs a full
// analysis over it.
func (h *MonitorHandler) IngestDocuments(w http.ResponseWriter, r *http.Request) {
	var batch []feed.Document
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(batch) == 0 {
		h.respondWithError(w, http.StatusBadRequest, "Empty document batch", nil)
		return
	}

	report, err := h.service.Analyze(r.Context(), batch)
	if err != nil {
		switch {
		case errors.Is(err, feed.ErrInvalidDocument):
			h.respondWithError(w, http.StatusBadRequest, err.Error(), nil)
		case errors.Is(err, vector.ErrStoreUnavailable):
			h.respondWithError(w, http.StatusServiceUnavailable, "Vector store unavailable", err)
		default:
			h.respondWithError(w, http.StatusInternalServerError, "Analysis run failed", err)
		}
		return
	}

	respondWithJSON(w, http.StatusOK, report)
}

// GetTrends returns the trending topics from the latest run, optionally
// filtered by a minimum viral probability.
func (h *MonitorHandler) GetTrends(w http.ResponseWriter, r *http.Request) {
	trends := h.service.Trends()

	if minViralStr := r.URL.Query().Get("min_viral"); minViralStr != "" {
		minViral, err := strconv.ParseFloat(minViralStr, 64)
		if err != nil {
			h.respondWithError(w, http.StatusBadRequest, "Invalid min_viral", err)
			return
		}
		filtered := trends[:0]
		for _, t := range trends {
			if t.ViralProbability >= minViral {
				filtered = append(filtered, t)
			}
		}
		trends = filtered
	}

	respondWithJSON(w, http.StatusOK, trends)
}

// GetSnapshot returns the latest collective signal snapshot.
func (h *MonitorHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshot := h.service.Snapshot()
	if snapshot == nil {
		h.respondWithError(w, http.StatusNotFound, "No analysis run completed yet", nil)
		return
	}

	respondWithJSON(w, http.StatusOK, snapshot)
}

// searchRequest is the semantic search request body.
type searchRequest struct {
	Query  string   `json:"query"`
	TopK   int      `json:"top_k"`
	Topics []string `json:"topics"`
}

// Search embeds the query and returns the most similar stored documents.
func (h *MonitorHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Query == "" {
		h.respondWithError(w, http.StatusBadRequest, "Missing query", nil)
		return
	}

	matches, err := h.service.Search(r.Context(), req.Query, req.TopK, req.Topics)
	if err != nil {
		switch {
		case errors.Is(err, signal.ErrExtractionUnavailable):
			h.respondWithError(w, http.StatusServiceUnavailable, "Embedding service unavailable", err)
		case errors.Is(err, vector.ErrStoreUnavailable):
			h.respondWithError(w, http.StatusServiceUnavailable, "Vector store unavailable", err)
		case errors.Is(err, vector.ErrDimensionMismatch):
			h.respondWithError(w, http.StatusInternalServerError, "Embedding dimension mismatch", err)
		default:
			h.respondWithError(w, http.StatusInternalServerError, "Search failed", err)
		}
		return
	}

	respondWithJSON(w, http.StatusOK, matches)
}

// Helper for JSON responses
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Failed to marshal response"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// Helper for error responses
func (h *MonitorHandler) respondWithError(w http.ResponseWriter, code int, message string, err error) {
	if err != nil && code >= 500 {
		h.log.WithError(err).WithField("status", code).Error(message)
	}

	response, _ := json.Marshal(map[string]string{"error": message})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

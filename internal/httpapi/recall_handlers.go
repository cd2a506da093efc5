package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/alertops/alertops/internal/history"
	"github.com/alertops/alertops/internal/plugins"
)

type recallQueryResponse struct {
	Status string          `json:"status"`
	Plugin string          `json:"plugin"`
	Count  int             `json:"count"`
	Alerts []history.Entry `json:"alerts"`
}

type recallHistoryResponse struct {
	Status      string          `json:"status"`
	Plugin      string          `json:"plugin"`
	Message     string          `json:"message,omitempty"`
	Fingerprint string          `json:"fingerprint"`
	Count       int             `json:"count"`
	History     []history.Entry `json:"history"`
}

type recallStatsResponse struct {
	Status     string         `json:"status"`
	Plugin     string         `json:"plugin"`
	Statistics *history.Stats `json:"statistics"`
}

// handleRecallQuery filters stored alerts by status and alertname
func (s *Server) handleRecallQuery(recall *plugins.RecallPlugin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 {
				s.writeJSON(w, http.StatusBadRequest, map[string]string{
					"status":  "error",
					"message": "limit must be a positive integer",
				})
				return
			}
			limit = parsed
		}

		entries, err := recall.Query(
			r.URL.Query().Get("status"),
			r.URL.Query().Get("alertname"),
			limit)
		if err != nil {
			s.writeJSON(w, http.StatusInternalServerError, map[string]string{
				"status":  "error",
				"message": err.Error(),
			})
			return
		}
		if entries == nil {
			entries = []history.Entry{}
		}

		s.writeJSON(w, http.StatusOK, &recallQueryResponse{
			Status: "ok",
			Plugin: "recall",
			Count:  len(entries),
			Alerts: entries,
		})
	}
}

// handleRecallByFingerprint returns the stored history for one fingerprint
func (s *Server) handleRecallByFingerprint(recall *plugins.RecallPlugin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fingerprint := chi.URLParam(r, "fingerprint")

		entries, err := recall.ByFingerprint(fingerprint)
		if err != nil {
			s.writeJSON(w, http.StatusInternalServerError, map[string]string{
				"status":  "error",
				"message": err.Error(),
			})
			return
		}

		if len(entries) == 0 {
			s.writeJSON(w, http.StatusNotFound, &recallHistoryResponse{
				Status:      "not_found",
				Plugin:      "recall",
				Message:     "No alerts found for fingerprint: " + fingerprint,
				Fingerprint: fingerprint,
				History:     []history.Entry{},
			})
			return
		}

		s.writeJSON(w, http.StatusOK, &recallHistoryResponse{
			Status:      "ok",
			Plugin:      "recall",
			Fingerprint: fingerprint,
			Count:       len(entries),
			History:     entries,
		})
	}
}

// handleRecallStats returns aggregate counts over the stored history
func (s *Server) handleRecallStats(recall *plugins.RecallPlugin) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		stats, err := recall.Stats()
		if err != nil {
			s.writeJSON(w, http.StatusInternalServerError, map[string]string{
				"status":  "error",
				"message": err.Error(),
			})
			return
		}

		s.writeJSON(w, http.StatusOK, &recallStatsResponse{
			Status:     "ok",
			Plugin:     "recall",
			Statistics: stats,
		})
	}
}

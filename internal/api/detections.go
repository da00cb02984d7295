package api

import (
	"encoding/json"
	"net/http"
	"strconv"
)

const (
	defaultDetectionsLimit = 100
	maxDetectionsLimit     = 1000
)

// GetDetectionsHandler возвращает последние детекции,
// опционально по одной камере: /v1/detections?camera_id=CAM-1&limit=50
func (h *Handlers) GetDetectionsHandler(w http.ResponseWriter, r *http.Request) {
	cameraID := r.URL.Query().Get("camera_id")

	limit := defaultDetectionsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(parsed, maxDetectionsLimit)
	}

	detections, err := h.store.GetDetections(r.Context(), cameraID, limit)
	if err != nil {
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(detections)
}

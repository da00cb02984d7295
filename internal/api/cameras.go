package api

import (
	"encoding/json"
	"net/http"

	"github.com/GERARD818/Watcher-AI/internal/models"
	"github.com/gorilla/mux"
)

// UpsertCameraHandler — административное создание или обновление камеры.
func (h *Handlers) UpsertCameraHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	cameraID := vars["camera_id"]

	var body struct {
		Location string              `json:"location"`
		Status   models.CameraStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if body.Status == "" {
		body.Status = models.CameraActive
	}
	if body.Status != models.CameraActive && body.Status != models.CameraOffline {
		http.Error(w, "Status must be active or offline", http.StatusBadRequest)
		return
	}

	camera := models.Camera{
		ID:       cameraID,
		Location: body.Location,
		Status:   body.Status,
	}

	if err := h.store.UpsertCamera(r.Context(), &camera); err != nil {
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(camera)
}

// GetCameraHandler обработчик для получения информации о камере
func (h *Handlers) GetCameraHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	cameraID := vars["camera_id"]

	camera, err := h.store.GetCamera(r.Context(), cameraID)
	if err != nil {
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}
	if camera == nil {
		http.Error(w, "Camera not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(camera)
}

package api

import (
	"encoding/json"
	"fmt"
	"log"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/GERARD818/Watcher-AI/internal/models"
	"github.com/google/uuid"
)

const maxUploadBytes = 200 << 20

// IngestHandler принимает кадр или видео с камеры: multipart-форма
// с полем camera_id и файлом media. Файл кладётся в хранилище, задача —
// в очередь, клиенту возвращается квитанция. Частичной постановки не
// бывает: при ошибке хранилища задача в очередь не попадает.
func (h *Handlers) IngestHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "Could not parse multipart form", http.StatusBadRequest)
		return
	}

	cameraID := r.FormValue("camera_id")
	if cameraID == "" {
		http.Error(w, "camera_id is required", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("media")
	if err != nil {
		http.Error(w, "Media file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if header.Size == 0 {
		http.Error(w, "Media file is empty", http.StatusBadRequest)
		return
	}

	contentType := mediaContentType(header.Header.Get("Content-Type"))
	if !strings.HasPrefix(contentType, "image/") && !strings.HasPrefix(contentType, "video/") {
		http.Error(w, "Uploaded file is not an image or video", http.StatusBadRequest)
		return
	}

	eventID := uuid.New().String()
	now := time.Now().UTC()

	ext := filepath.Ext(header.Filename)
	object := fmt.Sprintf("events/%s%s", eventID, ext)

	filePath, err := h.blob.Upload(r.Context(), h.mediaBucket, object, file, header.Size, contentType)
	if err != nil {
		log.Printf("Ingest %s (cam %s): storage error: %v", eventID, cameraID, err)
		http.Error(w, "Failed to store media", http.StatusBadGateway)
		return
	}

	task := models.Task{
		EventID:   eventID,
		CameraID:  cameraID,
		FilePath:  filePath,
		Timestamp: now,
	}

	position, err := h.queue.Enqueue(task)
	if err != nil {
		// Принятая работа не теряется молча: клиент получает явную
		// ошибку и повторяет загрузку.
		log.Printf("Ingest %s (cam %s): queue error: %v", eventID, cameraID, err)
		http.Error(w, "Task queue is unavailable, retry the upload", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(models.Receipt{
		EventID:       eventID,
		Status:        models.ReceiptStatusQueued,
		QueuePosition: position,
		Timestamp:     now,
	})
}

// mediaContentType отбрасывает параметры вида "; charset=...".
func mediaContentType(raw string) string {
	mediaType, _, err := mime.ParseMediaType(raw)
	if err != nil {
		return raw
	}
	return mediaType
}

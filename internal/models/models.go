package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type CameraStatus string

const (
	CameraActive  CameraStatus = "active"
	CameraOffline CameraStatus = "offline"
)

// Camera — источник кадров. Создаётся администратором, пайплайн её не трогает.
type Camera struct {
	ID       string       `json:"id"`
	Location string       `json:"location"`
	Status   CameraStatus `json:"status"`
}

// Task — одно сообщение очереди: один загруженный файл, ждущий детекции.
// После постановки в очередь неизменяема.
type Task struct {
	EventID   string    `json:"event_id"`
	CameraID  string    `json:"camera_id"`
	FilePath  string    `json:"file_path"`
	Timestamp time.Time `json:"timestamp"`
}

// DecodeTask разбирает и проверяет payload задачи с границы очереди.
// Неизвестные поля отвергаются, обязательные поля проверяются —
// воркер не должен молча принимать частичные данные.
func DecodeTask(payload []byte) (Task, error) {
	var t Task
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&t); err != nil {
		return Task{}, fmt.Errorf("decode task payload: %w", err)
	}
	if err := t.Validate(); err != nil {
		return Task{}, err
	}
	return t, nil
}

func (t Task) Validate() error {
	if t.EventID == "" {
		return errors.New("task: empty event_id")
	}
	if t.CameraID == "" {
		return errors.New("task: empty camera_id")
	}
	if t.FilePath == "" {
		return errors.New("task: empty file_path")
	}
	if t.Timestamp.IsZero() {
		return errors.New("task: zero timestamp")
	}
	return nil
}

// BBox — центр и размеры рамки в пикселях исходного кадра.
type BBox struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// DetectionResult — один объект, найденный детектором на одном кадре.
// TrackID равен nil, если детектор потерял объект между кадрами.
type DetectionResult struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	BBox       BBox    `json:"bbox"`
	TrackID    *int64  `json:"track_id,omitempty"`
}

// Detection — сохранённая запись одной детекции. После создания не меняется.
type Detection struct {
	ID         uuid.UUID `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Label      string    `json:"label"`
	Confidence float64   `json:"confidence"`
	BBox       BBox      `json:"bbox"`
	FrameIndex int       `json:"frame_index"`
	TrackID    *int64    `json:"track_id,omitempty"`
	CameraID   string    `json:"camera_id"`
}

// Receipt возвращается клиенту после приёма файла. QueuePosition —
// смещение в очереди на момент постановки, оценочное.
type Receipt struct {
	EventID       string    `json:"event_id"`
	Status        string    `json:"status"`
	QueuePosition int64     `json:"queue_position"`
	Timestamp     time.Time `json:"timestamp"`
}

const ReceiptStatusQueued = "queued"

// TaskSummary — итог обработки одной задачи.
type TaskSummary struct {
	EventID         string
	CameraID        string
	FramesTotal     int
	FramesFailed    int
	DetectionsSaved int
	ArtifactPath    string
}

package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeTask(t *testing.T) {
	payload := []byte(`{
		"event_id": "e1",
		"camera_id": "CAM-1",
		"file_path": "media/events/e1.jpg",
		"timestamp": "2024-01-01T00:00:00Z"
	}`)

	task, err := DecodeTask(payload)
	require.NoError(t, err)

	assert.Equal(t, "e1", task.EventID)
	assert.Equal(t, "CAM-1", task.CameraID)
	assert.Equal(t, "media/events/e1.jpg", task.FilePath)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), task.Timestamp)
}

func TestDecodeTaskRejectsUnknownFields(t *testing.T) {
	payload := []byte(`{
		"event_id": "e1",
		"camera_id": "CAM-1",
		"file_path": "media/events/e1.jpg",
		"timestamp": "2024-01-01T00:00:00Z",
		"priority": 5
	}`)

	_, err := DecodeTask(payload)
	require.Error(t, err)
}

func TestDecodeTaskRejectsGarbage(t *testing.T) {
	_, err := DecodeTask([]byte(`{"event_id": "e1", `))
	require.Error(t, err)
}

func TestDecodeTaskRequiredFields(t *testing.T) {
	cases := map[string]string{
		"empty event_id":  `{"event_id": "", "camera_id": "CAM-1", "file_path": "p", "timestamp": "2024-01-01T00:00:00Z"}`,
		"empty camera_id": `{"event_id": "e1", "camera_id": "", "file_path": "p", "timestamp": "2024-01-01T00:00:00Z"}`,
		"empty file_path": `{"event_id": "e1", "camera_id": "CAM-1", "file_path": "", "timestamp": "2024-01-01T00:00:00Z"}`,
		"no timestamp":    `{"event_id": "e1", "camera_id": "CAM-1", "file_path": "p"}`,
	}

	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeTask([]byte(payload))
			assert.Error(t, err)
		})
	}
}

func TestTaskWireFormat(t *testing.T) {
	// Формат сообщения очереди фиксирован: продюсер и воркер обязаны
	// совпадать полями event_id, camera_id, file_path, timestamp.
	task := Task{
		EventID:   "e1",
		CameraID:  "CAM-1",
		FilePath:  "media/events/e1.jpg",
		Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	payload := []byte(`{"event_id":"e1","camera_id":"CAM-1","file_path":"media/events/e1.jpg","timestamp":"2024-01-01T00:00:00Z"}`)
	decoded, err := DecodeTask(payload)
	require.NoError(t, err)
	assert.Equal(t, task, decoded)
}

package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/GERARD818/Watcher-AI/internal/blob"
	"github.com/GERARD818/Watcher-AI/internal/metrics"
	"github.com/GERARD818/Watcher-AI/internal/models"
	"github.com/GERARD818/Watcher-AI/internal/queue"
	"github.com/GERARD818/Watcher-AI/internal/video"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	batches    [][]models.Detection
	failFrames map[int]bool
}

func (f *fakeStore) SaveDetections(_ context.Context, rows []models.Detection) error {
	if len(rows) > 0 && f.failFrames[rows[0].FrameIndex] {
		return errors.New("store unreachable")
	}
	f.batches = append(f.batches, rows)
	return nil
}

func (f *fakeStore) rows() []models.Detection {
	var all []models.Detection
	for _, batch := range f.batches {
		all = append(all, batch...)
	}
	return all
}

type fakeBlob struct {
	media     map[string]string // путь в хранилище -> локальный файл
	artifacts map[string]string // объект -> локальный файл

	statErr     error
	downloadErr error
	statCalls   int
}

func newFakeBlob() *fakeBlob {
	return &fakeBlob{media: make(map[string]string), artifacts: make(map[string]string)}
}

func (f *fakeBlob) Stat(_ context.Context, path string) error {
	f.statCalls++
	if f.statErr != nil {
		return f.statErr
	}
	if _, ok := f.media[path]; !ok {
		return blob.ErrNotFound
	}
	return nil
}

func (f *fakeBlob) Download(_ context.Context, path, _ string) (string, error) {
	if f.downloadErr != nil {
		return "", f.downloadErr
	}
	local, ok := f.media[path]
	if !ok {
		return "", blob.ErrNotFound
	}
	return local, nil
}

func (f *fakeBlob) UploadFile(_ context.Context, bucket, object, localPath, _ string) (string, error) {
	f.artifacts[object] = localPath
	return bucket + "/" + object, nil
}

type fakeDetector struct {
	perFrame  [][]models.DetectionResult
	errFrames map[int]bool
	calls     int
}

func (f *fakeDetector) Infer(_ context.Context, _ []byte) ([]models.DetectionResult, error) {
	idx := f.calls
	f.calls++
	if f.errFrames[idx] {
		return nil, errors.New("detector timeout")
	}
	if idx < len(f.perFrame) {
		return f.perFrame[idx], nil
	}
	return nil, nil
}

type fakeOpener struct {
	seq *video.FrameSeq
}

func (f *fakeOpener) Open(_ context.Context, _, _ string) (*video.FrameSeq, error) {
	return f.seq, nil
}

type fakeWriter struct {
	frames     [][]byte
	closeCount int
}

func (w *fakeWriter) WriteFrame(frame []byte) error {
	if w.closeCount > 0 {
		return errors.New("writer already closed")
	}
	w.frames = append(w.frames, frame)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closeCount++
	return nil
}

func (w *fakeWriter) Path() string { return "/tmp/artifact.mp4" }
func (w *fakeWriter) Frames() int  { return len(w.frames) }

type fakeRenderer struct {
	writer *fakeWriter
}

func (r *fakeRenderer) NewWriter(string) (video.ArtifactWriter, error) {
	return r.writer, nil
}

func (r *fakeRenderer) Annotate(frame []byte, _ []models.DetectionResult) ([]byte, error) {
	return append([]byte("ann:"), frame...), nil
}

// framePaths раскладывает кадры по файлам и возвращает их пути.
func framePaths(t *testing.T, contents ...string) []string {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, len(contents))
	for i, c := range contents {
		paths[i] = filepath.Join(dir, "frame_"+string(rune('a'+i))+".jpg")
		require.NoError(t, os.WriteFile(paths[i], []byte(c), 0o644))
	}
	return paths
}

func writeFrames(t *testing.T, contents ...string) *video.FrameSeq {
	t.Helper()
	return video.NewFrameSeq(framePaths(t, contents...))
}

func taskPayload(t *testing.T, eventID, cameraID, filePath string) []byte {
	t.Helper()
	data, err := json.Marshal(models.Task{
		EventID:   eventID,
		CameraID:  cameraID,
		FilePath:  filePath,
		Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return data
}

// runTasks гонит сообщения через цикл и ждёт его завершения.
// Канал закрывается после последнего сообщения, Run возвращается сам.
func runTasks(p *Pipeline, payloads ...[]byte) int {
	acked := 0
	messages := make(chan queue.Message, len(payloads))
	for _, payload := range payloads {
		messages <- queue.Message{Value: payload, Ack: func() { acked++ }}
	}
	close(messages)

	p.Run(context.Background(), messages)
	return acked
}

func newMetrics() (*metrics.Metrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return metrics.New(reg), reg
}

func TestSingleImageTaskPersistsOneDetection(t *testing.T) {
	store := &fakeStore{}
	blobClient := newFakeBlob()
	seq := writeFrames(t, "img1")
	blobClient.media["media/events/e1.jpg"] = "unused-local-path"

	det := &fakeDetector{perFrame: [][]models.DetectionResult{
		{{Label: "helmet", Confidence: 0.92, BBox: models.BBox{X: 100, Y: 120, W: 40, H: 40}}},
	}}

	m, _ := newMetrics()
	p := New(store, blobClient, det, &fakeOpener{seq: seq}, nil, "artifacts", m)

	acked := runTasks(p, taskPayload(t, "e1", "CAM-1", "media/events/e1.jpg"))
	assert.Equal(t, 1, acked)

	rows := store.rows()
	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, "helmet", row.Label)
	assert.InDelta(t, 0.92, row.Confidence, 1e-9)
	assert.Equal(t, models.BBox{X: 100, Y: 120, W: 40, H: 40}, row.BBox)
	assert.Equal(t, 0, row.FrameIndex)
	assert.Equal(t, "CAM-1", row.CameraID)
	assert.Nil(t, row.TrackID)
	assert.NotEqual(t, [16]byte{}, [16]byte(row.ID))
	assert.False(t, row.Timestamp.IsZero())
	assert.Equal(t, time.UTC, row.Timestamp.Location())
}

func TestVideoFramesProcessedInSourceOrder(t *testing.T) {
	store := &fakeStore{}
	blobClient := newFakeBlob()
	blobClient.media["media/events/e2.mp4"] = "unused"

	trackID := int64(3)
	det := &fakeDetector{perFrame: [][]models.DetectionResult{
		{{Label: "person", Confidence: 0.8, TrackID: &trackID}},
		{{Label: "person", Confidence: 0.81, TrackID: &trackID}},
		{{Label: "person", Confidence: 0.79, TrackID: &trackID}},
		{{Label: "person", Confidence: 0.83, TrackID: &trackID}},
	}}

	writer := &fakeWriter{}
	m, _ := newMetrics()
	p := New(store, blobClient, det, &fakeOpener{seq: writeFrames(t, "f0", "f1", "f2", "f3")},
		&fakeRenderer{writer: writer}, "artifacts", m)

	runTasks(p, taskPayload(t, "e2", "CAM-1", "media/events/e2.mp4"))

	rows := store.rows()
	require.Len(t, rows, 4)
	for i, row := range rows {
		assert.Equal(t, i, row.FrameIndex)
		require.NotNil(t, row.TrackID)
		assert.Equal(t, trackID, *row.TrackID)
	}

	// Артефакт содержит ровно N кадров в порядке источника
	require.Len(t, writer.frames, 4)
	for i, frame := range writer.frames {
		assert.Equal(t, "ann:f"+string(rune('0'+i)), string(frame))
	}
	assert.GreaterOrEqual(t, writer.closeCount, 1)

	// Финализированный артефакт загружен в хранилище
	assert.Contains(t, blobClient.artifacts, "e2.mp4")
}

func TestMalformedPayloadDoesNotCrashLoop(t *testing.T) {
	store := &fakeStore{}
	blobClient := newFakeBlob()
	blobClient.media["media/events/e3.jpg"] = "unused"

	det := &fakeDetector{perFrame: [][]models.DetectionResult{
		{{Label: "person", Confidence: 0.5}},
	}}

	m, _ := newMetrics()
	p := New(store, blobClient, det, &fakeOpener{seq: writeFrames(t, "img")}, nil, "artifacts", m)

	acked := runTasks(p,
		[]byte(`{not json`),
		[]byte(`{"event_id":"x","unknown_field":1}`),
		taskPayload(t, "e3", "CAM-2", "media/events/e3.jpg"),
	)

	// Битые payload-ы подтверждены и отброшены, валидная задача обработана
	assert.Equal(t, 3, acked)
	require.Len(t, store.rows(), 1)
	assert.Equal(t, "CAM-2", store.rows()[0].CameraID)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.TasksSkipped))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.TasksCompleted))
}

func TestMissingMediaSkippedAndLoopContinues(t *testing.T) {
	store := &fakeStore{}
	blobClient := newFakeBlob()
	blobClient.media["media/events/ok.jpg"] = "unused"

	det := &fakeDetector{perFrame: [][]models.DetectionResult{
		{{Label: "person", Confidence: 0.6}},
	}}

	m, _ := newMetrics()
	p := New(store, blobClient, det, &fakeOpener{seq: writeFrames(t, "img")}, nil, "artifacts", m)

	acked := runTasks(p,
		taskPayload(t, "gone", "CAM-1", "media/events/gone.jpg"),
		taskPayload(t, "ok", "CAM-1", "media/events/ok.jpg"),
	)

	assert.Equal(t, 2, acked)
	require.Len(t, store.rows(), 1)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.TasksSkipped))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.TasksCompleted))
}

func TestPersistFailureIsolatedToOneFrame(t *testing.T) {
	store := &fakeStore{failFrames: map[int]bool{1: true}}
	blobClient := newFakeBlob()
	blobClient.media["media/events/e4.mp4"] = "unused"

	det := &fakeDetector{perFrame: [][]models.DetectionResult{
		{{Label: "a", Confidence: 0.9}},
		{{Label: "b", Confidence: 0.9}},
		{{Label: "c", Confidence: 0.9}},
	}}

	m, _ := newMetrics()
	p := New(store, blobClient, det, &fakeOpener{seq: writeFrames(t, "f0", "f1", "f2")}, nil, "artifacts", m)

	acked := runTasks(p, taskPayload(t, "e4", "CAM-1", "media/events/e4.mp4"))
	assert.Equal(t, 1, acked)

	// Кадры до и после сбойного закоммичены
	rows := store.rows()
	require.Len(t, rows, 2)
	assert.Equal(t, 0, rows[0].FrameIndex)
	assert.Equal(t, 2, rows[1].FrameIndex)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PersistFailures))
	// Сбой персистенции кадра не проваливает задачу
	assert.Equal(t, float64(1), testutil.ToFloat64(m.TasksCompleted))
}

func TestInferenceErrorDoesNotAbortTask(t *testing.T) {
	store := &fakeStore{}
	blobClient := newFakeBlob()
	blobClient.media["media/events/e5.mp4"] = "unused"

	det := &fakeDetector{
		errFrames: map[int]bool{0: true},
		perFrame: [][]models.DetectionResult{
			nil,
			{{Label: "person", Confidence: 0.7}},
		},
	}

	writer := &fakeWriter{}
	m, _ := newMetrics()
	p := New(store, blobClient, det, &fakeOpener{seq: writeFrames(t, "f0", "f1")},
		&fakeRenderer{writer: writer}, "artifacts", m)

	runTasks(p, taskPayload(t, "e5", "CAM-1", "media/events/e5.mp4"))

	rows := store.rows()
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].FrameIndex)

	// Кадр со сбоем инференса уходит в артефакт без аннотации
	require.Len(t, writer.frames, 2)
	assert.Equal(t, "f0", string(writer.frames[0]))
	assert.Equal(t, "ann:f1", string(writer.frames[1]))
}

func TestTransientBlobErrorNotAcked(t *testing.T) {
	store := &fakeStore{}
	blobClient := newFakeBlob()
	blobClient.statErr = errors.New("minio: 503 service unavailable")

	m, _ := newMetrics()
	p := New(store, blobClient, &fakeDetector{}, &fakeOpener{seq: writeFrames(t, "img")}, nil, "artifacts", m)

	acked := runTasks(p, taskPayload(t, "e7", "CAM-1", "media/events/e7.jpg"))

	// Временный сбой хранилища — задача остаётся в очереди
	assert.Equal(t, 0, acked)
	assert.Empty(t, store.rows())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.TasksFailed))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.TasksSkipped))
}

func TestTransientDownloadErrorNotAcked(t *testing.T) {
	store := &fakeStore{}
	blobClient := newFakeBlob()
	blobClient.media["media/events/e8.jpg"] = "unused"
	blobClient.downloadErr = errors.New("connection reset")

	m, _ := newMetrics()
	p := New(store, blobClient, &fakeDetector{}, &fakeOpener{seq: writeFrames(t, "img")}, nil, "artifacts", m)

	acked := runTasks(p, taskPayload(t, "e8", "CAM-1", "media/events/e8.jpg"))

	assert.Equal(t, 0, acked)
	assert.Empty(t, store.rows())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.TasksFailed))
}

func TestMissingMediaAckedButTransientErrorNot(t *testing.T) {
	// ErrNotFound — пропуск с подтверждением, временная ошибка — без
	store := &fakeStore{}
	missing := newFakeBlob()

	m, _ := newMetrics()
	p := New(store, missing, &fakeDetector{}, &fakeOpener{seq: writeFrames(t, "img")}, nil, "artifacts", m)
	acked := runTasks(p, taskPayload(t, "gone", "CAM-1", "media/events/gone.jpg"))
	assert.Equal(t, 1, acked)

	flaky := newFakeBlob()
	flaky.statErr = errors.New("i/o timeout")
	p = New(store, flaky, &fakeDetector{}, &fakeOpener{seq: writeFrames(t, "img")}, nil, "artifacts", m)
	acked = runTasks(p, taskPayload(t, "gone", "CAM-1", "media/events/gone.jpg"))
	assert.Equal(t, 0, acked)
}

func TestWriterFinalizedOnFrameReadFailure(t *testing.T) {
	store := &fakeStore{}
	blobClient := newFakeBlob()
	blobClient.media["media/events/e6.mp4"] = "unused"

	// Второй кадр прочитать нельзя: файла нет
	paths := framePaths(t, "f0")
	seq := video.NewFrameSeq(append(paths, filepath.Join(t.TempDir(), "missing.jpg")))

	det := &fakeDetector{perFrame: [][]models.DetectionResult{
		{{Label: "person", Confidence: 0.9}},
	}}

	writer := &fakeWriter{}
	m, _ := newMetrics()
	p := New(store, blobClient, det, &fakeOpener{seq: seq},
		&fakeRenderer{writer: writer}, "artifacts", m)

	acked := runTasks(p, taskPayload(t, "e6", "CAM-1", "media/events/e6.mp4"))
	assert.Equal(t, 1, acked)

	// Задача падает, но записанное до сбоя финализировано и загружено
	assert.Equal(t, float64(1), testutil.ToFloat64(m.TasksFailed))
	assert.GreaterOrEqual(t, writer.closeCount, 1)
	require.Len(t, writer.frames, 1)
	assert.Contains(t, blobClient.artifacts, "e6.mp4")
	require.Len(t, store.rows(), 1)
}

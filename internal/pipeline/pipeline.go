// Package pipeline — потребитель очереди задач: по одной задаче за раз,
// по одному кадру за раз, строго в порядке источника. Ошибка обработки
// одной задачи никогда не останавливает цикл потребления.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/GERARD818/Watcher-AI/internal/blob"
	"github.com/GERARD818/Watcher-AI/internal/metrics"
	"github.com/GERARD818/Watcher-AI/internal/models"
	"github.com/GERARD818/Watcher-AI/internal/queue"
	"github.com/GERARD818/Watcher-AI/internal/video"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

var (
	// ErrMissingMedia — file_path задачи не существует в хранилище.
	ErrMissingMedia = errors.New("pipeline: media not found in blob storage")
	// ErrDecode — медиа не удалось разложить на кадры.
	ErrDecode = errors.New("pipeline: failed to decode media")
)

// Detector — внешняя способность детекции, для пайплайна непрозрачна.
type Detector interface {
	Infer(ctx context.Context, frame []byte) ([]models.DetectionResult, error)
}

// Store — долговременное хранилище детекций. Вставка батчем,
// атомарно в пределах одного кадра.
type Store interface {
	SaveDetections(ctx context.Context, detections []models.Detection) error
}

// Blob — общее хранилище медиа и артефактов.
type Blob interface {
	Stat(ctx context.Context, path string) error
	Download(ctx context.Context, path, localDir string) (string, error)
	UploadFile(ctx context.Context, bucket, object, localPath, contentType string) (string, error)
}

// FrameOpener раскладывает медиафайл на последовательность кадров.
type FrameOpener interface {
	Open(ctx context.Context, mediaPath, workDir string) (*video.FrameSeq, error)
}

// Renderer создаёт врайтер артефакта и накладывает детекции на кадр.
// nil-рендерер означает, что отрисовка выключена.
type Renderer interface {
	NewWriter(outPath string) (video.ArtifactWriter, error)
	Annotate(frame []byte, results []models.DetectionResult) ([]byte, error)
}

type Pipeline struct {
	store          Store
	blob           Blob
	detector       Detector
	decoder        FrameOpener
	renderer       Renderer
	artifactBucket string
	metrics        *metrics.Metrics
}

func New(store Store, blob Blob, detector Detector, decoder FrameOpener, renderer Renderer, artifactBucket string, m *metrics.Metrics) *Pipeline {
	return &Pipeline{
		store:          store,
		blob:           blob,
		detector:       detector,
		decoder:        decoder,
		renderer:       renderer,
		artifactBucket: artifactBucket,
		metrics:        m,
	}
}

// Run — последовательный цикл потребления. Блокируется на канале задач,
// обрабатывает их по одной и подтверждает каждую после обработки.
// Битые payload-ы подтверждаются и отбрасываются: повторная доставка
// яда ничего не исправит.
func (p *Pipeline) Run(ctx context.Context, messages <-chan queue.Message) {
	log.Println("Pipeline: listening for tasks")
	for {
		select {
		case <-ctx.Done():
			log.Println("Pipeline: shutting down")
			return
		case msg, ok := <-messages:
			if !ok {
				log.Println("Pipeline: task channel closed")
				return
			}
			p.metrics.TasksReceived.Inc()

			task, err := models.DecodeTask(msg.Value)
			if err != nil {
				log.Printf("Malformed task payload, discarding: %v", err)
				p.metrics.TasksSkipped.Inc()
				msg.Ack()
				continue
			}

			summary, err := p.processTask(ctx, task)
			switch {
			case errors.Is(err, ErrMissingMedia):
				log.Printf("Task %s (cam %s): media %s missing, skipping", task.EventID, task.CameraID, task.FilePath)
				p.metrics.TasksSkipped.Inc()
			case errors.Is(err, ErrDecode):
				// Битое медиа — яд: повторная доставка его не вылечит.
				log.Printf("Task %s (cam %s) failed: %v", task.EventID, task.CameraID, err)
				p.metrics.TasksFailed.Inc()
			case err != nil:
				// Временный сбой инфраструктуры: не подтверждаем задачу,
				// брокер доставит её повторно. Принятая работа не теряется.
				log.Printf("Task %s (cam %s) failed, will be redelivered: %v", task.EventID, task.CameraID, err)
				p.metrics.TasksFailed.Inc()
				continue
			default:
				p.metrics.TasksCompleted.Inc()
				log.Printf("Task %s (cam %s): %d frames, %d failed, %d detections saved, artifact=%q",
					summary.EventID, summary.CameraID, summary.FramesTotal, summary.FramesFailed,
					summary.DetectionsSaved, summary.ArtifactPath)
			}

			msg.Ack()
		}
	}
}

// processTask превращает одну задачу в ноль и более записей детекций и,
// опционально, один аннотированный артефакт.
func (p *Pipeline) processTask(ctx context.Context, task models.Task) (models.TaskSummary, error) {
	summary := models.TaskSummary{EventID: task.EventID, CameraID: task.CameraID}

	if err := p.blob.Stat(ctx, task.FilePath); err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return summary, ErrMissingMedia
		}
		return summary, fmt.Errorf("stat media %s: %w", task.FilePath, err)
	}

	workDir, err := os.MkdirTemp("", "task-"+task.EventID+"-")
	if err != nil {
		return summary, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	mediaPath, err := p.blob.Download(ctx, task.FilePath, workDir)
	if err != nil {
		return summary, fmt.Errorf("download media %s: %w", task.FilePath, err)
	}

	frames, err := p.decoder.Open(ctx, mediaPath, workDir)
	if err != nil {
		return summary, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	var writer video.ArtifactWriter
	if p.renderer != nil && video.IsVideoPath(task.FilePath) {
		writer, err = p.renderer.NewWriter(filepath.Join(workDir, task.EventID+".mp4"))
		if err != nil {
			return summary, fmt.Errorf("open artifact writer: %w", err)
		}
		// Финализация ровно один раз на любом пути выхода.
		defer writer.Close()
	}

	frameErr := p.processFrames(ctx, task, frames, writer, &summary)

	if writer != nil {
		if err := writer.Close(); err != nil {
			log.Printf("Task %s: artifact finalize error: %v", task.EventID, err)
		} else if writer.Frames() > 0 {
			object := task.EventID + ".mp4"
			path, err := p.blob.UploadFile(ctx, p.artifactBucket, object, writer.Path(), "video/mp4")
			if err != nil {
				log.Printf("Task %s: artifact upload error: %v", task.EventID, err)
			} else {
				summary.ArtifactPath = path
			}
		}
	}

	return summary, frameErr
}

// processFrames гонит кадры через детектор строго в порядке источника.
// Ошибка персистенции одного кадра изолируется: кадры до и после него
// всё равно коммитятся. Ошибка чтения кадра обрывает оставшиеся кадры
// задачи — артефакт финализируется тем, что успело записаться.
func (p *Pipeline) processFrames(ctx context.Context, task models.Task, frames *video.FrameSeq, writer video.ArtifactWriter, summary *models.TaskSummary) error {
	for {
		frame, idx, err := frames.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: frame %d: %v", ErrDecode, idx, err)
		}

		summary.FramesTotal++
		p.metrics.FramesProcessed.Inc()

		results, err := p.detector.Infer(ctx, frame)
		if err != nil {
			log.Printf("Task %s frame %d (cam %s): inference error: %v", task.EventID, idx, task.CameraID, err)
			summary.FramesFailed++
			results = nil
		} else if len(results) > 0 {
			rows := lo.Map(results, func(res models.DetectionResult, _ int) models.Detection {
				return models.Detection{
					ID:         uuid.New(),
					Timestamp:  time.Now().UTC(),
					Label:      res.Label,
					Confidence: res.Confidence,
					BBox:       res.BBox,
					FrameIndex: idx,
					TrackID:    res.TrackID,
					CameraID:   task.CameraID,
				}
			})

			if err := p.store.SaveDetections(ctx, rows); err != nil {
				log.Printf("Task %s frame %d (cam %s): persist error: %v", task.EventID, idx, task.CameraID, err)
				p.metrics.PersistFailures.Inc()
				summary.FramesFailed++
			} else {
				summary.DetectionsSaved += len(rows)
				p.metrics.DetectionsPersisted.Add(float64(len(rows)))
			}
		}

		if writer != nil {
			out := frame
			if len(results) > 0 {
				annotated, err := p.renderer.Annotate(frame, results)
				if err != nil {
					log.Printf("Task %s frame %d: annotate error, writing raw frame: %v", task.EventID, idx, err)
				} else {
					out = annotated
				}
			}
			if err := writer.WriteFrame(out); err != nil {
				return fmt.Errorf("write artifact frame %d: %w", idx, err)
			}
		}
	}
}

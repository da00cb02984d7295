package api

import (
	"context"
	"io"

	"github.com/GERARD818/Watcher-AI/internal/models"
)

// Store — операции гейтвея над базой: админка камер и чтение детекций.
type Store interface {
	UpsertCamera(ctx context.Context, camera *models.Camera) error
	GetCamera(ctx context.Context, cameraID string) (*models.Camera, error)
	GetDetections(ctx context.Context, cameraID string, limit int) ([]models.Detection, error)
}

// Uploader кладёт принятый файл в хранилище медиа.
type Uploader interface {
	Upload(ctx context.Context, bucket, object string, r io.Reader, size int64, contentType string) (string, error)
}

// Enqueuer ставит задачу в очередь и возвращает оценочную позицию.
type Enqueuer interface {
	Enqueue(task models.Task) (int64, error)
}

type Handlers struct {
	store       Store
	blob        Uploader
	queue       Enqueuer
	mediaBucket string
}

func NewHandlers(store Store, blob Uploader, queue Enqueuer, mediaBucket string) *Handlers {
	return &Handlers{
		store:       store,
		blob:        blob,
		queue:       queue,
		mediaBucket: mediaBucket,
	}
}

package video

import "github.com/GERARD818/Watcher-AI/internal/models"

// ArtifactWriter — инкрементальная запись аннотированного видео.
// Close обязан быть идемпотентным: пайплайн закрывает врайтер через defer
// на любом пути выхода.
type ArtifactWriter interface {
	WriteFrame(frame []byte) error
	Close() error
	Path() string
	Frames() int
}

// Renderer — продовая реализация отрисовки: ffmpeg-врайтер плюс
// наложение рамок на кадр.
type Renderer struct {
	FFmpegBin string
	FPS       int
}

func NewRenderer(ffmpegBin string, fps int) *Renderer {
	return &Renderer{FFmpegBin: ffmpegBin, FPS: fps}
}

func (r *Renderer) NewWriter(outPath string) (ArtifactWriter, error) {
	return NewWriter(r.FFmpegBin, outPath, r.FPS)
}

func (r *Renderer) Annotate(frame []byte, results []models.DetectionResult) ([]byte, error) {
	return Annotate(frame, results)
}

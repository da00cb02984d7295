// Package video — декодирование медиа в последовательность кадров
// и запись аннотированного видео. Вся работа с видео идёт через ffmpeg,
// как и в остальной системе.
package video

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

var videoExtensions = map[string]bool{
	".mp4":  true,
	".avi":  true,
	".mov":  true,
	".mkv":  true,
	".webm": true,
}

// IsVideoPath определяет по расширению, видео это или одиночный кадр.
func IsVideoPath(path string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(path))]
}

type Decoder struct {
	FFmpegBin string
}

func NewDecoder(ffmpegBin string) *Decoder {
	return &Decoder{FFmpegBin: ffmpegBin}
}

// FrameSeq — ленивая конечная последовательность кадров в порядке источника.
// Кадры читаются с диска по одному, Next возвращает io.EOF в конце.
type FrameSeq struct {
	paths []string
	next  int
}

// Next возвращает JPEG-байты следующего кадра и его индекс.
func (s *FrameSeq) Next() ([]byte, int, error) {
	if s.next >= len(s.paths) {
		return nil, 0, io.EOF
	}

	idx := s.next
	data, err := os.ReadFile(s.paths[idx])
	if err != nil {
		return nil, idx, fmt.Errorf("read frame %d: %w", idx, err)
	}
	s.next++
	return data, idx, nil
}

// Len возвращает общее число кадров последовательности.
func (s *FrameSeq) Len() int {
	return len(s.paths)
}

// NewFrameSeq строит последовательность из уже готовых файлов кадров.
func NewFrameSeq(paths []string) *FrameSeq {
	return &FrameSeq{paths: paths}
}

// Open раскладывает медиафайл на кадры. Одиночное изображение даёт ровно
// один кадр с индексом 0; видео раскладывается ffmpeg-ом во временную
// директорию workDir — чистит её вызывающий.
func (d *Decoder) Open(ctx context.Context, mediaPath, workDir string) (*FrameSeq, error) {
	if !IsVideoPath(mediaPath) {
		return &FrameSeq{paths: []string{mediaPath}}, nil
	}

	framePattern := filepath.Join(workDir, "frame_%06d.jpg")
	cmd := exec.CommandContext(ctx, d.FFmpegBin,
		"-i", mediaPath,
		"-q:v", "2", // Качество JPEG
		framePattern,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg failed: %w, stderr: %s", err, stderr.String())
	}

	files, err := filepath.Glob(filepath.Join(workDir, "frame_*.jpg"))
	if err != nil {
		return nil, fmt.Errorf("failed to list frame files: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no frames extracted from %s", mediaPath)
	}
	sortFramePaths(files)

	return &FrameSeq{paths: files}, nil
}

// sortFramePaths сортирует файлы кадров по номеру из имени. Лексикографика
// не годится: для очень длинных видео ffmpeg расширяет %06d до семи цифр,
// и frame_1000000 встал бы раньше frame_999999.
func sortFramePaths(files []string) {
	sort.Slice(files, func(i, j int) bool {
		return frameNumber(files[i]) < frameNumber(files[j])
	})
}

func frameNumber(path string) int {
	name := filepath.Base(path)
	name = strings.TrimSuffix(strings.TrimPrefix(name, "frame_"), filepath.Ext(name))
	n, err := strconv.Atoi(name)
	if err != nil {
		return 0
	}
	return n
}

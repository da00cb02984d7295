package video

import (
	"bytes"
	"fmt"
	"io"
	"os/exec"
	"sync"
)

// Writer собирает аннотированное видео из JPEG-кадров через ffmpeg со
// stdin-пайпом. Writer принадлежит ровно одной задаче и закрывается
// ровно один раз на любом пути выхода: Close безопасен для повторного
// вызова и для вызова из defer.
type Writer struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *bytes.Buffer
	path   string

	closeOnce sync.Once
	closeErr  error
	frames    int
}

// NewWriter запускает ffmpeg, пишущий MP4 в outPath с заданным fps.
func NewWriter(ffmpegBin, outPath string, fps int) (*Writer, error) {
	if fps <= 0 {
		fps = 3
	}

	stderr := &bytes.Buffer{}
	cmd := exec.Command(ffmpegBin,
		"-y",
		"-f", "image2pipe",
		"-framerate", fmt.Sprint(fps),
		"-i", "-",
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		outPath,
	)
	cmd.Stderr = stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdin: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	return &Writer{
		cmd:    cmd,
		stdin:  stdin,
		stderr: stderr,
		path:   outPath,
	}, nil
}

// WriteFrame дописывает один JPEG-кадр в конец артефакта.
func (w *Writer) WriteFrame(frame []byte) error {
	if _, err := w.stdin.Write(frame); err != nil {
		return fmt.Errorf("write frame to ffmpeg: %w", err)
	}
	w.frames++
	return nil
}

// Close финализирует артефакт: закрывает stdin и ждёт завершения ffmpeg.
// Повторные вызовы возвращают результат первого.
func (w *Writer) Close() error {
	w.closeOnce.Do(func() {
		if err := w.stdin.Close(); err != nil {
			w.closeErr = fmt.Errorf("close ffmpeg stdin: %w", err)
			w.cmd.Wait()
			return
		}
		if err := w.cmd.Wait(); err != nil {
			w.closeErr = fmt.Errorf("ffmpeg failed: %w, stderr: %s", err, w.stderr.String())
		}
	})
	return w.closeErr
}

// Path возвращает путь к локальному файлу артефакта.
func (w *Writer) Path() string {
	return w.path
}

// Frames возвращает число записанных кадров.
func (w *Writer) Frames() int {
	return w.frames
}

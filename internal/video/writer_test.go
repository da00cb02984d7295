package video

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterProducesPlayableFile(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}

	out := filepath.Join(t.TempDir(), "artifact.mp4")
	w, err := NewWriter("ffmpeg", out, 3)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, w.WriteFrame(encodeTestFrame(t, 64, 64)))
	}

	require.NoError(t, w.Close())
	assert.Equal(t, 3, w.Frames())

	// Файл финализирован и не пуст
	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	// Повторный Close безопасен и возвращает тот же результат
	assert.NoError(t, w.Close())
}

func TestWriterCloseIdempotentAfterFailure(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}

	out := filepath.Join(t.TempDir(), "artifact.mp4")
	w, err := NewWriter("ffmpeg", out, 3)
	require.NoError(t, err)

	// Мусор вместо JPEG: ffmpeg завершится с ошибкой
	w.WriteFrame([]byte("definitely not a jpeg"))

	first := w.Close()
	second := w.Close()
	assert.Equal(t, first, second)
}

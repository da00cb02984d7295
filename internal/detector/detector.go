// Package detector — клиент внешнего сервиса детекции. Модель и её
// внутренности для нас непрозрачны: кадр уходит как JPEG, обратно
// приходит список найденных объектов.
package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"

	"github.com/GERARD818/Watcher-AI/internal/models"
)

type Client struct {
	URL        string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		URL:        baseURL,
		httpClient: http.DefaultClient,
	}
}

// Infer отправляет кадр JPEG байтами на /predict и возвращает детекции
// в порядке, выданном моделью. Confidence и bbox не фильтруются —
// пороги настраиваются на стороне детектора.
func (c *Client) Infer(ctx context.Context, frame []byte) ([]models.DetectionResult, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	// Создаем form field с правильным Content-Type
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="frame.jpg"`)
	h.Set("Content-Type", "image/jpeg")

	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("create form part: %w", err)
	}

	if _, err := part.Write(frame); err != nil {
		return nil, fmt.Errorf("write image data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL+"/predict", &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("bad status: %s, error: %s", resp.Status, bodyBytes)
	}

	var results []models.DetectionResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decode detections: %w", err)
	}

	return results, nil
}

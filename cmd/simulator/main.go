// Симулятор камеры: периодически шлёт один и тот же кадр на гейтвей.
// Нужен только для ручной проверки стенда.
package main

import (
	"bytes"
	"flag"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"time"
)

func main() {
	apiURL := flag.String("url", "http://localhost:8000/v1/ingest/frame", "ingest endpoint")
	cameraID := flag.String("camera", "CAM-NORTH-01", "camera id")
	imagePath := flag.String("image", "test_image.jpg", "frame to send")
	interval := flag.Duration("interval", 5*time.Second, "send interval")
	flag.Parse()

	data, err := os.ReadFile(*imagePath)
	if err != nil {
		log.Fatalf("Failed to read %s: %v", *imagePath, err)
	}

	log.Printf("Simulator: sending %s as %s every %v", *imagePath, *cameraID, *interval)
	for {
		if err := sendFrame(*apiURL, *cameraID, *imagePath, data); err != nil {
			log.Printf("Send error: %v", err)
		}
		time.Sleep(*interval)
	}
}

func sendFrame(apiURL, cameraID, filename string, data []byte) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if err := writer.WriteField("camera_id", cameraID); err != nil {
		return err
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="media"; filename="`+filename+`"`)
	h.Set("Content-Type", "image/jpeg")
	part, err := writer.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	resp, err := http.Post(apiURL, writer.FormDataContentType(), &buf)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	log.Printf("Status: %s | Response: %s", resp.Status, bytes.TrimSpace(body))
	return nil
}

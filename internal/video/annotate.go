package video

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"

	"github.com/GERARD818/Watcher-AI/internal/models"
)

var boxColor = color.RGBA{R: 0, G: 200, B: 0, A: 255}

const boxThickness = 2

// Annotate рисует рамки детекций поверх кадра и возвращает его JPEG-ом.
// bbox задан центром и размерами в пикселях исходного кадра.
func Annotate(frame []byte, results []models.DetectionResult) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(frame))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	img := image.NewRGBA(src.Bounds())
	draw.Draw(img, img.Bounds(), src, src.Bounds().Min, draw.Src)

	for _, res := range results {
		x0 := int(res.BBox.X - res.BBox.W/2)
		y0 := int(res.BBox.Y - res.BBox.H/2)
		x1 := int(res.BBox.X + res.BBox.W/2)
		y1 := int(res.BBox.Y + res.BBox.H/2)
		drawRect(img, x0, y0, x1, y1)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}

	return buf.Bytes(), nil
}

func drawRect(img *image.RGBA, x0, y0, x1, y1 int) {
	b := img.Bounds()

	for t := 0; t < boxThickness; t++ {
		for x := x0; x <= x1; x++ {
			setPixel(img, b, x, y0+t)
			setPixel(img, b, x, y1-t)
		}
		for y := y0; y <= y1; y++ {
			setPixel(img, b, x0+t, y)
			setPixel(img, b, x1-t, y)
		}
	}
}

func setPixel(img *image.RGBA, b image.Rectangle, x, y int) {
	if x < b.Min.X || x >= b.Max.X || y < b.Min.Y || y >= b.Max.Y {
		return
	}
	img.SetRGBA(x, y, boxColor)
}

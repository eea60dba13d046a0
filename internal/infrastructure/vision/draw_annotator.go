package vision

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"

	"github.com/disintegration/imaging"

	"livevision/internal/domain/entity"
)

// DrawAnnotator рисует рамки без OpenCV, подписи не выводятся
type DrawAnnotator struct {
	Quality   int
	Thickness int
	Color     color.NRGBA
}

// NewDrawAnnotator создаёт аннотатор с зелёными рамками толщиной 2
func NewDrawAnnotator() *DrawAnnotator {
	return &DrawAnnotator{Quality: 90, Thickness: 2, Color: color.NRGBA{G: 255, A: 255}}
}

// Annotate копирует кадр, обводит детекции и кодирует результат в JPEG
func (a *DrawAnnotator) Annotate(frame image.Image, detections []entity.Detection) ([]byte, error) {
	if frame == nil || frame.Bounds().Empty() {
		return nil, errors.New("empty image")
	}

	canvas := imaging.Clone(frame)
	size := canvas.Bounds().Size()
	for _, d := range detections {
		x1, y1, x2, y2 := d.BBox.Scale(size.X, size.Y)
		for t := 0; t < a.Thickness; t++ {
			a.strokeRect(canvas, x1+t, y1+t, x2-1-t, y2-1-t)
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: a.Quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (a *DrawAnnotator) strokeRect(img *image.NRGBA, x1, y1, x2, y2 int) {
	if x1 > x2 || y1 > y2 {
		return
	}
	for x := x1; x <= x2; x++ {
		a.set(img, x, y1)
		a.set(img, x, y2)
	}
	for y := y1; y <= y2; y++ {
		a.set(img, x1, y)
		a.set(img, x2, y)
	}
}

func (a *DrawAnnotator) set(img *image.NRGBA, x, y int) {
	if image.Pt(x, y).In(img.Rect) {
		img.SetNRGBA(x, y, a.Color)
	}
}

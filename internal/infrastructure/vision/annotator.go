//go:build gocv
// +build gocv

package vision

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	"gocv.io/x/gocv"

	"livevision/internal/domain/entity"
)

// CVAnnotator рисует рамки и подписи средствами OpenCV
type CVAnnotator struct {
	Quality   int
	Thickness int
}

// NewCVAnnotator создаёт аннотатор с зелёными рамками толщиной 2
func NewCVAnnotator() *CVAnnotator {
	return &CVAnnotator{Quality: 90, Thickness: 2}
}

// Annotate рисует прямоугольники вокруг детекций и возвращает JPEG
func (a *CVAnnotator) Annotate(frame image.Image, detections []entity.Detection) ([]byte, error) {
	if frame == nil || frame.Bounds().Empty() {
		return nil, errors.New("empty image")
	}

	mat, err := gocv.ImageToMatRGB(frame)
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}
	defer mat.Close()

	green := color.RGBA{G: 255, A: 255}
	w, h := mat.Cols(), mat.Rows()
	for _, d := range detections {
		x1, y1, x2, y2 := d.BBox.Scale(w, h)
		gocv.Rectangle(&mat, image.Rect(x1, y1, x2, y2), green, a.Thickness)

		label := fmt.Sprintf("%s %.2f", d.ClassName, d.Score)
		gocv.PutText(&mat, label, image.Pt(x1, maxInt(y1-4, 12)), gocv.FontHersheySimplex, 0.4, green, 1)
	}

	img, err := mat.ToImage()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: a.Quality}); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

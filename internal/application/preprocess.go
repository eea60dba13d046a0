package app

import (
	"image"

	"github.com/disintegration/imaging"

	"livevision/internal/domain/entity"
)

// DefaultTargetSize сторона квадратного входа модели
const DefaultTargetSize = 128

// Preprocess приводит кадр к входному тензору модели формы [1,3,size,size]:
// билинейное масштабирование, отбрасывание альфа-канала, деление на 255
// и перекладка из RGBA по пикселям в плоскости R, G, B.
func Preprocess(frame image.Image, targetSize int) entity.Tensor {
	plane := targetSize * targetSize
	data := make([]float32, 3*plane)
	tensor := entity.Tensor{Data: data, Shape: []int{1, 3, targetSize, targetSize}}

	resized := imaging.Resize(frame, targetSize, targetSize, imaging.Linear)
	if resized.Rect.Dx() != targetSize || resized.Rect.Dy() != targetSize {
		// пустой кадр: нарушение предусловия, отдаём нулевой тензор нужной длины
		return tensor
	}

	pix := resized.Pix
	for y := 0; y < targetSize; y++ {
		row := y * resized.Stride
		for x := 0; x < targetSize; x++ {
			src := row + x*4
			i := y*targetSize + x
			data[i] = float32(pix[src]) / 255
			data[plane+i] = float32(pix[src+1]) / 255
			data[2*plane+i] = float32(pix[src+2]) / 255
		}
	}

	return tensor
}

// frameSize возвращает размеры кадра для логов
func frameSize(frame image.Image) image.Point {
	return frame.Bounds().Size()
}

package port

import (
	"image"

	"livevision/internal/domain/entity"
)

// Annotator рисует найденные области поверх кадра
type Annotator interface {
	// Annotate возвращает JPEG с подсвеченными детекциями
	Annotate(frame image.Image, detections []entity.Detection) ([]byte, error)
}

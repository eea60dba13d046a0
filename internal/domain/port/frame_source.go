package port

import (
	"context"
	"image"
)

// FrameSource источник кадров (камера), опрашивается один раз за цикл
type FrameSource interface {
	// Open захватывает устройство
	Open(ctx context.Context) error

	// CurrentFrame возвращает текущий кадр
	CurrentFrame(ctx context.Context) (image.Image, error)

	// Close освобождает устройство
	Close() error

	// Name описывает источник для логов и ошибок
	Name() string
}

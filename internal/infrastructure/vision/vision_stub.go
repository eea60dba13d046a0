//go:build !gocv
// +build !gocv

package vision

import (
	"context"
	"image"

	"livevision/internal/domain/entity"
	"livevision/internal/domain/port"
)

// Camera заглушка камеры (без OpenCV)
type Camera struct {
	device string
}

func NewCamera(device string) *Camera {
	return &Camera{device: device}
}

func (c *Camera) Name() string {
	return "camera:" + c.device
}

// Open возвращает ошибку, если сборка без тега gocv.
func (c *Camera) Open(ctx context.Context) error {
	return entity.ErrEngineDisabled
}

func (c *Camera) CurrentFrame(ctx context.Context) (image.Image, error) {
	return nil, entity.ErrEngineDisabled
}

func (c *Camera) Close() error {
	return nil
}

// CVEngine заглушка движка DNN (без OpenCV)
type CVEngine struct{}

func NewCVEngine() *CVEngine {
	return &CVEngine{}
}

// Load возвращает ошибку, если сборка без тега gocv.
func (e *CVEngine) Load(ctx context.Context, modelPath string) (port.Session, error) {
	return nil, &entity.LoadError{Path: modelPath, Err: entity.ErrEngineDisabled}
}

// CVAnnotator заглушка аннотатора (без OpenCV)
type CVAnnotator struct{}

func NewCVAnnotator() *CVAnnotator {
	return &CVAnnotator{}
}

// Annotate возвращает ошибку, если сборка без тега gocv.
func (a *CVAnnotator) Annotate(frame image.Image, detections []entity.Detection) ([]byte, error) {
	return nil, entity.ErrEngineDisabled
}

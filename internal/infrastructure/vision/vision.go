// Package vision источники кадров, движок OpenCV DNN и отрисовка рамок.
// Реализации на OpenCV собираются с тегом gocv.
package vision

import "livevision/internal/domain/port"

// Проверка реализации интерфейсов
var (
	_ port.FrameSource = (*Camera)(nil)
	_ port.FrameSource = (*StillImage)(nil)
	_ port.Engine      = (*CVEngine)(nil)
	_ port.Annotator   = (*CVAnnotator)(nil)
	_ port.Annotator   = (*DrawAnnotator)(nil)
)

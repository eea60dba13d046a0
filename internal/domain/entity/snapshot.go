package entity

import (
	"image"
	"time"
)

// Snapshot неизменяемый срез состояния детектора для слоя представления.
// Каждый завершённый цикл публикует новый Snapshot целиком.
type Snapshot struct {
	RunID       string      `json:"run_id,omitempty"`
	Status      Status      `json:"status"`
	Detections  []Detection `json:"detections"`
	FPS         int         `json:"fps"`
	FrameCount  uint64      `json:"frame_count"`
	IsLoading   bool        `json:"is_loading"`
	IsDetecting bool        `json:"is_detecting"`
	Error       string      `json:"error,omitempty"`
	UpdatedAt   time.Time   `json:"updated_at"`

	// Frame последний обработанный кадр, нужен только для подсветки
	Frame image.Image `json:"-"`
}

// LoopStats счётчики планировщика
type LoopStats struct {
	Completed uint64 `json:"completed"`
	Failed    uint64 `json:"failed"`
	Skipped   uint64 `json:"skipped"`
	Discarded uint64 `json:"discarded"`
}

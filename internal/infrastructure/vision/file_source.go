package vision

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/disintegration/imaging"
)

// StillImage источник, отдающий один и тот же кадр из файла
type StillImage struct {
	path string

	mu    sync.RWMutex
	frame image.Image
}

// NewStillImage создаёт источник из изображения на диске
func NewStillImage(path string) *StillImage {
	return &StillImage{path: path}
}

func (s *StillImage) Name() string {
	return "file:" + s.path
}

// Open читает и декодирует файл с учётом EXIF-ориентации
func (s *StillImage) Open(ctx context.Context) error {
	img, err := imaging.Open(s.path, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	if img.Bounds().Empty() {
		return errors.New("empty image")
	}

	s.mu.Lock()
	s.frame = img
	s.mu.Unlock()
	return nil
}

func (s *StillImage) CurrentFrame(ctx context.Context) (image.Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.frame == nil {
		return nil, errors.New("image source is not opened")
	}
	return s.frame, nil
}

func (s *StillImage) Close() error {
	s.mu.Lock()
	s.frame = nil
	s.mu.Unlock()
	return nil
}

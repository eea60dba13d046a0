package app

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"livevision/internal/domain/entity"
	"livevision/internal/domain/port"
)

// LoadListener получает исход загрузки модели
type LoadListener func(ctx context.Context, err error)

// ControlService фасад детектора для слоя представления
type ControlService struct {
	detector  *Detector
	annotator port.Annotator
	logger    *zap.Logger

	mu        sync.Mutex
	listeners []LoadListener
}

func NewControlService(detector *Detector, annotator port.Annotator, logger *zap.Logger) *ControlService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ControlService{
		detector:  detector,
		annotator: annotator,
		logger:    logger,
	}
}

// OnLoad подписывает обработчик на исход загрузки модели
func (s *ControlService) OnLoad(l LoadListener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
}

// Load загружает модель и оповещает подписчиков
func (s *ControlService) Load(ctx context.Context) error {
	err := s.detector.Load(ctx)

	s.mu.Lock()
	listeners := append([]LoadListener(nil), s.listeners...)
	s.mu.Unlock()

	for _, l := range listeners {
		l(ctx, err)
	}
	return err
}

func (s *ControlService) Start(ctx context.Context) error {
	return s.detector.Start(ctx)
}

func (s *ControlService) Stop() error {
	return s.detector.Stop()
}

func (s *ControlService) SetThreshold(v float32) error {
	if err := s.detector.SetThreshold(v); err != nil {
		return err
	}
	s.logger.Info("confidence threshold changed", zap.Float32("threshold", v))
	return nil
}

func (s *ControlService) Threshold() float32 {
	return s.detector.Threshold()
}

func (s *ControlService) Status() entity.Snapshot {
	return s.detector.Snapshot()
}

func (s *ControlService) Stats() entity.LoopStats {
	return s.detector.Stats()
}

// AnnotatedFrame возвращает последний обработанный кадр с рамками в JPEG
func (s *ControlService) AnnotatedFrame() ([]byte, entity.Snapshot, error) {
	snap := s.detector.Snapshot()
	if snap.Frame == nil {
		return nil, snap, entity.ErrNoFrame
	}

	data, err := s.annotator.Annotate(snap.Frame, snap.Detections)
	if err != nil {
		return nil, snap, fmt.Errorf("annotate frame: %w", err)
	}
	return data, snap, nil
}

// Close останавливает детектор и освобождает ресурсы
func (s *ControlService) Close() error {
	return s.detector.Close()
}

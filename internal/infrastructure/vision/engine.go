//go:build gocv
// +build gocv

package vision

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"gocv.io/x/gocv"

	"livevision/internal/domain/entity"
	"livevision/internal/domain/port"
)

// CVEngine загружает модели через модуль DNN OpenCV
type CVEngine struct {
	Backend gocv.NetBackendType
	Target  gocv.NetTargetType
}

// NewCVEngine создаёт движок для вычислений на CPU
func NewCVEngine() *CVEngine {
	return &CVEngine{Backend: gocv.NetBackendDefault, Target: gocv.NetTargetCPU}
}

// Load читает модель из файла
func (e *CVEngine) Load(ctx context.Context, modelPath string) (port.Session, error) {
	net := gocv.ReadNet(modelPath, "")
	if net.Empty() {
		return nil, &entity.LoadError{Path: modelPath, Err: errors.New("opencv could not read model")}
	}
	net.SetPreferableBackend(e.Backend)
	net.SetPreferableTarget(e.Target)

	return &cvSession{net: net}, nil
}

type cvSession struct {
	mu  sync.Mutex
	net gocv.Net
}

// Run прогоняет тензор через сеть и копирует выход
func (s *cvSession) Run(ctx context.Context, input entity.Tensor) (entity.Tensor, error) {
	if err := input.Validate(); err != nil || len(input.Data) == 0 {
		return entity.Tensor{}, &entity.ExecutionError{Err: fmt.Errorf("invalid input tensor %v", input.Shape)}
	}

	raw := unsafe.Slice((*byte)(unsafe.Pointer(&input.Data[0])), len(input.Data)*4)
	blob, err := gocv.NewMatWithSizesFromBytes(input.Shape, gocv.MatTypeCV32F, raw)
	if err != nil {
		return entity.Tensor{}, &entity.ExecutionError{Err: fmt.Errorf("build input blob: %w", err)}
	}
	defer blob.Close()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.net.SetInput(blob, "")
	out := s.net.Forward("")
	defer out.Close()

	if out.Empty() {
		return entity.Tensor{}, &entity.ExecutionError{Err: errors.New("empty network output")}
	}
	values, err := out.DataPtrFloat32()
	if err != nil {
		return entity.Tensor{}, &entity.ExecutionError{Err: fmt.Errorf("read output: %w", err)}
	}

	data := make([]float32, len(values))
	copy(data, values)
	tensor, err := entity.NewTensor(data, out.Size()...)
	if err != nil {
		return entity.Tensor{}, &entity.ExecutionError{Err: err}
	}
	return tensor, nil
}

func (s *cvSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.net.Close()
}

package onnx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/multierr"

	"livevision/internal/domain/entity"
	"livevision/internal/domain/port"
)

// Config параметры ONNX Runtime
type Config struct {
	LibraryPath string // путь к onnxruntime.so, пусто означает путь по умолчанию
	InputName   string
	OutputName  string
	Threads     int    // потоков внутри оператора, 0 оставляет значение ORT
}

var (
	envOnce sync.Once
	envErr  error
)

// initEnvironment инициализирует окружение ORT один раз на процесс
func initEnvironment(libPath string) error {
	envOnce.Do(func() {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		envErr = ort.InitializeEnvironment()
	})
	return envErr
}

// Engine загружает модели в ONNX Runtime
type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	if cfg.InputName == "" {
		cfg.InputName = "images"
	}
	if cfg.OutputName == "" {
		cfg.OutputName = "output0"
	}
	return &Engine{cfg: cfg}
}

// Load создаёт сессию с динамическим выделением выхода
func (e *Engine) Load(ctx context.Context, modelPath string) (port.Session, error) {
	if modelPath == "" {
		return nil, &entity.LoadError{Path: modelPath, Err: errors.New("empty model path")}
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, &entity.LoadError{Path: modelPath, Err: err}
	}
	if err := initEnvironment(e.cfg.LibraryPath); err != nil {
		return nil, &entity.LoadError{Path: modelPath, Err: fmt.Errorf("init onnx runtime: %w", err)}
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, &entity.LoadError{Path: modelPath, Err: fmt.Errorf("session options: %w", err)}
	}
	defer opts.Destroy()
	if e.cfg.Threads > 0 {
		if err := opts.SetIntraOpNumThreads(e.cfg.Threads); err != nil {
			return nil, &entity.LoadError{Path: modelPath, Err: fmt.Errorf("set intra-op threads: %w", err)}
		}
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath,
		[]string{e.cfg.InputName}, []string{e.cfg.OutputName}, opts)
	if err != nil {
		return nil, &entity.LoadError{Path: modelPath, Err: fmt.Errorf("create session: %w", err)}
	}

	return &Session{session: session}, nil
}

// Session сессия ORT для одной модели
type Session struct {
	mu      sync.Mutex
	session *ort.DynamicAdvancedSession
}

// Run выполняет инференс, выход копируется в entity.Tensor
func (s *Session) Run(ctx context.Context, input entity.Tensor) (out entity.Tensor, err error) {
	if verr := input.Validate(); verr != nil {
		return entity.Tensor{}, &entity.ExecutionError{Err: verr}
	}

	in, err := ort.NewTensor(toShape(input.Shape), input.Data)
	if err != nil {
		return entity.Tensor{}, &entity.ExecutionError{Err: fmt.Errorf("input tensor: %w", err)}
	}
	outputs := []ort.Value{nil}
	defer func() {
		derr := in.Destroy()
		for _, o := range outputs {
			if o != nil {
				derr = multierr.Append(derr, o.Destroy())
			}
		}
		if derr != nil && err == nil {
			err = &entity.ExecutionError{Err: fmt.Errorf("release tensors: %w", derr)}
		}
	}()

	s.mu.Lock()
	err = s.session.Run([]ort.Value{in}, outputs)
	s.mu.Unlock()
	if err != nil {
		return entity.Tensor{}, &entity.ExecutionError{Err: fmt.Errorf("run: %w", err)}
	}

	t, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return entity.Tensor{}, &entity.ExecutionError{Err: fmt.Errorf("unexpected output type %T", outputs[0])}
	}

	src := t.GetData()
	data := make([]float32, len(src))
	copy(data, src)

	out, err = entity.NewTensor(data, fromShape(t.GetShape())...)
	if err != nil {
		return entity.Tensor{}, &entity.ExecutionError{Err: err}
	}
	return out, nil
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil
	}
	err := s.session.Destroy()
	s.session = nil
	return err
}

func toShape(dims []int) ort.Shape {
	shape := make(ort.Shape, len(dims))
	for i, d := range dims {
		shape[i] = int64(d)
	}
	return shape
}

func fromShape(shape ort.Shape) []int {
	dims := make([]int, len(shape))
	for i, d := range shape {
		dims[i] = int(d)
	}
	return dims
}

// Проверка реализации интерфейсов
var (
	_ port.Engine  = (*Engine)(nil)
	_ port.Session = (*Session)(nil)
)

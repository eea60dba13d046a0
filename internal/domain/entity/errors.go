package entity

import (
	"errors"
	"fmt"
)

var (
	ErrNotLoaded        = errors.New("model session is not loaded")
	ErrAlreadyLoaded    = errors.New("model session is already loaded")
	ErrLoading          = errors.New("model session is loading")
	ErrAlreadyDetecting = errors.New("detection is already running")
	ErrNotDetecting     = errors.New("detection is not running")
	ErrInvalidThreshold = errors.New("confidence threshold must be within [0, 1]")
	ErrEngineDisabled   = errors.New("inference engine is not available in this build")
	ErrNoFrame          = errors.New("no processed frame yet")
	ErrClosed           = errors.New("detector is closed")
)

// LoadError модель отсутствует или не читается
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load model %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// AcquisitionError камера недоступна
type AcquisitionError struct {
	Source string
	Err    error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("acquire frames from %s: %v", e.Source, e.Err)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }

// ExecutionError отдельный вызов инференса завершился ошибкой
type ExecutionError struct {
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("inference: %v", e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// MalformedOutputError форма выходного тензора не соответствует контракту
type MalformedOutputError struct {
	Shape  []int
	Reason string
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("malformed output tensor %v: %s", e.Shape, e.Reason)
}

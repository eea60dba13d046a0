//go:build gocv
// +build gocv

package vision

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strconv"
	"sync"

	"gocv.io/x/gocv"
)

// Camera источник кадров OpenCV: индекс устройства или путь к видео
type Camera struct {
	device string

	mu      sync.Mutex
	capture *gocv.VideoCapture
	frame   gocv.Mat
}

// NewCamera создаёт камеру, устройство открывается в Open
func NewCamera(device string) *Camera {
	return &Camera{device: device}
}

func (c *Camera) Name() string {
	return "camera:" + c.device
}

// Open захватывает устройство
func (c *Camera) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture != nil {
		return nil
	}

	var target interface{} = c.device
	if id, err := strconv.Atoi(c.device); err == nil {
		target = id
	}

	capture, err := gocv.OpenVideoCapture(target)
	if err != nil {
		return fmt.Errorf("open video capture: %w", err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return errors.New("video capture is not opened")
	}

	c.capture = capture
	c.frame = gocv.NewMat()
	return nil
}

// CurrentFrame читает следующий кадр с устройства
func (c *Camera) CurrentFrame(ctx context.Context) (image.Image, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return nil, errors.New("camera is not opened")
	}
	if ok := c.capture.Read(&c.frame); !ok || c.frame.Empty() {
		return nil, errors.New("no frame from camera")
	}

	return c.frame.ToImage()
}

// Close освобождает устройство
func (c *Camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return nil
	}
	c.frame.Close()
	err := c.capture.Close()
	c.capture = nil
	return err
}

package app

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"livevision/internal/domain/entity"
	"livevision/internal/domain/port"
)

const testTick = 100 * time.Millisecond

type fakeSession struct {
	mu     sync.Mutex
	calls  atomic.Int32
	closed atomic.Bool
	run    func(in entity.Tensor) (entity.Tensor, error)
}

func (s *fakeSession) Run(ctx context.Context, in entity.Tensor) (entity.Tensor, error) {
	s.calls.Add(1)
	s.mu.Lock()
	run := s.run
	s.mu.Unlock()
	return run(in)
}

func (s *fakeSession) setRun(run func(in entity.Tensor) (entity.Tensor, error)) {
	s.mu.Lock()
	s.run = run
	s.mu.Unlock()
}

func (s *fakeSession) Close() error {
	s.closed.Store(true)
	return nil
}

type fakeEngine struct {
	session *fakeSession
	err     error
	loads   atomic.Int32
}

func (e *fakeEngine) Load(ctx context.Context, path string) (port.Session, error) {
	e.loads.Add(1)
	if e.err != nil {
		return nil, e.err
	}
	return e.session, nil
}

type fakeSource struct {
	openErr  error
	frameErr atomic.Pointer[error]
	opened   atomic.Int32
	closed   atomic.Int32
}

func (s *fakeSource) Open(ctx context.Context) error {
	if s.openErr != nil {
		return s.openErr
	}
	s.opened.Add(1)
	return nil
}

func (s *fakeSource) CurrentFrame(ctx context.Context) (image.Image, error) {
	if errp := s.frameErr.Load(); errp != nil {
		return nil, *errp
	}
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	img.SetRGBA(0, 0, color.RGBA{R: 255, A: 255})
	return img, nil
}

func (s *fakeSource) Close() error {
	s.closed.Add(1)
	return nil
}

func (s *fakeSource) Name() string { return "fake" }

// oneHit возвращает выход [1,5,2]: кандидат 0 со счётом score, кандидат 1 пустой
func oneHit(score float32) func(entity.Tensor) (entity.Tensor, error) {
	return func(in entity.Tensor) (entity.Tensor, error) {
		return entity.Tensor{
			Data:  []float32{64, 0, 64, 0, 32, 0, 32, 0, score, 0},
			Shape: []int{1, 5, 2},
		}, nil
	}
}

type harness struct {
	clock    *clock.Mock
	engine   *fakeEngine
	session  *fakeSession
	source   *fakeSource
	detector *Detector
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	session := &fakeSession{run: oneHit(0.9)}
	h := &harness{
		clock:   clock.NewMock(),
		session: session,
		engine:  &fakeEngine{session: session},
		source:  &fakeSource{},
	}
	d, err := NewDetector(DetectorConfig{
		ModelPath:        "model.onnx",
		Labels:           entity.ClassLabelTable{"person"},
		TargetSize:       128,
		Threshold:        0.5,
		TickInterval:     testTick,
		MaxFrameFailures: 3,
	}, h.engine, h.source, WithClock(h.clock), WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	h.detector = d
	t.Cleanup(func() { _ = d.Close() })
	return h
}

// tickUntil двигает часы на период, пока условие не выполнится
func (h *harness) tickUntil(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		if cond() {
			return true
		}
		h.clock.Add(testTick)
		return cond()
	}, 2*time.Second, time.Millisecond)
}

func TestDetector_LoadLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	snap := h.detector.Snapshot()
	require.Equal(t, entity.StatusIdle, snap.Status)
	require.False(t, snap.IsLoading)

	require.ErrorIs(t, h.detector.Start(ctx), entity.ErrNotLoaded)

	require.NoError(t, h.detector.Load(ctx))
	require.Equal(t, entity.StatusReady, h.detector.Snapshot().Status)
	require.ErrorIs(t, h.detector.Load(ctx), entity.ErrAlreadyLoaded)
	require.Equal(t, int32(1), h.engine.loads.Load())
}

func TestDetector_LoadErrorRequiresFreshLoad(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.engine.err = errors.New("no such file")

	err := h.detector.Load(ctx)
	var loadErr *entity.LoadError
	require.ErrorAs(t, err, &loadErr)
	require.Equal(t, "model.onnx", loadErr.Path)

	snap := h.detector.Snapshot()
	require.Equal(t, entity.StatusError, snap.Status)
	require.Contains(t, snap.Error, "no such file")
	require.ErrorIs(t, h.detector.Start(ctx), entity.ErrNotLoaded)

	h.engine.err = nil
	require.NoError(t, h.detector.Load(ctx))
	snap = h.detector.Snapshot()
	require.Equal(t, entity.StatusReady, snap.Status)
	require.Empty(t, snap.Error)
}

func TestDetector_DetectAndStop(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.detector.Load(ctx))
	require.NoError(t, h.detector.Start(ctx))
	require.ErrorIs(t, h.detector.Start(ctx), entity.ErrAlreadyDetecting)

	snap := h.detector.Snapshot()
	require.True(t, snap.IsDetecting)
	require.NotEmpty(t, snap.RunID)

	h.tickUntil(t, func() bool { return h.detector.Snapshot().FrameCount >= 3 })

	snap = h.detector.Snapshot()
	require.Len(t, snap.Detections, 1)
	require.Equal(t, "person", snap.Detections[0].ClassName)
	require.NotNil(t, snap.Frame)

	require.NoError(t, h.detector.Stop())
	snap = h.detector.Snapshot()
	require.Equal(t, entity.StatusReady, snap.Status)
	require.False(t, snap.IsDetecting)
	require.Empty(t, snap.Detections)
	require.Zero(t, snap.FPS)
	require.Zero(t, snap.FrameCount)

	require.Eventually(t, func() bool { return h.source.closed.Load() == 1 }, time.Second, time.Millisecond)
	require.ErrorIs(t, h.detector.Stop(), entity.ErrNotDetecting)

	// повторный запуск той же сессии
	require.NoError(t, h.detector.Start(ctx))
	require.Equal(t, int32(2), h.source.opened.Load())
}

func TestDetector_FPSWindow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.detector.Load(ctx))
	require.NoError(t, h.detector.Start(ctx))

	h.tickUntil(t, func() bool { return h.detector.Snapshot().FPS > 0 })
	fps := h.detector.Snapshot().FPS
	require.LessOrEqual(t, fps, 10)
}

func TestDetector_SingleInflightAndDiscard(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	release := make(chan struct{})
	h.session.setRun(func(in entity.Tensor) (entity.Tensor, error) {
		<-release
		return oneHit(0.9)(in)
	})

	require.NoError(t, h.detector.Load(ctx))
	require.NoError(t, h.detector.Start(ctx))

	h.tickUntil(t, func() bool { return h.detector.Stats().Skipped >= 3 })
	require.Eventually(t, func() bool { return h.session.calls.Load() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, h.detector.Stop())
	close(release)

	require.Eventually(t, func() bool { return h.detector.Stats().Discarded == 1 }, time.Second, time.Millisecond)
	require.Empty(t, h.detector.Snapshot().Detections)
	require.Zero(t, h.detector.Stats().Completed)
	require.Eventually(t, func() bool { return h.source.closed.Load() == 1 }, time.Second, time.Millisecond)
}

func TestDetector_ExecutionErrorKeepsLooping(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	var calls atomic.Int32
	h.session.setRun(func(in entity.Tensor) (entity.Tensor, error) {
		if calls.Add(1) <= 2 {
			return entity.Tensor{}, &entity.ExecutionError{Err: errors.New("backend")}
		}
		return oneHit(0.9)(in)
	})

	require.NoError(t, h.detector.Load(ctx))
	require.NoError(t, h.detector.Start(ctx))

	h.tickUntil(t, func() bool { return h.detector.Snapshot().FrameCount >= 1 })
	require.Equal(t, uint64(2), h.detector.Stats().Failed)
	snap := h.detector.Snapshot()
	require.True(t, snap.IsDetecting)
	require.Empty(t, snap.Error)
}

func TestDetector_MalformedOutputYieldsNoDetections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.session.setRun(func(in entity.Tensor) (entity.Tensor, error) {
		return entity.Tensor{Data: make([]float32, 6), Shape: []int{1, 3, 2}}, nil
	})

	require.NoError(t, h.detector.Load(ctx))
	require.NoError(t, h.detector.Start(ctx))

	h.tickUntil(t, func() bool { return h.detector.Snapshot().FrameCount >= 2 })
	require.Empty(t, h.detector.Snapshot().Detections)
	require.True(t, h.detector.Snapshot().IsDetecting)
}

func TestDetector_InputTensorShape(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	shapes := make(chan []int, 1)
	h.session.setRun(func(in entity.Tensor) (entity.Tensor, error) {
		select {
		case shapes <- in.Shape:
		default:
		}
		return oneHit(0.9)(in)
	})

	require.NoError(t, h.detector.Load(ctx))
	require.NoError(t, h.detector.Start(ctx))
	h.tickUntil(t, func() bool { return len(shapes) == 1 })
	require.Equal(t, []int{1, 3, 128, 128}, <-shapes)
}

func TestDetector_ThresholdTakesEffect(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.session.setRun(oneHit(0.7))

	require.ErrorIs(t, h.detector.SetThreshold(1.5), entity.ErrInvalidThreshold)
	require.ErrorIs(t, h.detector.SetThreshold(-0.1), entity.ErrInvalidThreshold)
	require.Equal(t, float32(0.5), h.detector.Threshold())

	require.NoError(t, h.detector.Load(ctx))
	require.NoError(t, h.detector.Start(ctx))
	h.tickUntil(t, func() bool { return len(h.detector.Snapshot().Detections) == 1 })

	require.NoError(t, h.detector.SetThreshold(0.9))
	h.tickUntil(t, func() bool {
		s := h.detector.Snapshot()
		return s.FrameCount >= 2 && len(s.Detections) == 0
	})
}

func TestDetector_CameraUnavailable(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.source.openErr = errors.New("device busy")

	require.NoError(t, h.detector.Load(ctx))
	err := h.detector.Start(ctx)
	var acqErr *entity.AcquisitionError
	require.ErrorAs(t, err, &acqErr)

	snap := h.detector.Snapshot()
	require.Equal(t, entity.StatusReady, snap.Status)
	require.False(t, snap.IsDetecting)
	require.Contains(t, snap.Error, "device busy")

	h.source.openErr = nil
	require.NoError(t, h.detector.Start(ctx))
	require.Empty(t, h.detector.Snapshot().Error)
}

func TestDetector_CameraLostStopsDetection(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.detector.Load(ctx))
	require.NoError(t, h.detector.Start(ctx))

	lost := errors.New("unplugged")
	h.source.frameErr.Store(&lost)

	h.tickUntil(t, func() bool { return !h.detector.Snapshot().IsDetecting })
	snap := h.detector.Snapshot()
	require.Equal(t, entity.StatusReady, snap.Status)
	require.Contains(t, snap.Error, "unplugged")
	require.Eventually(t, func() bool { return h.source.closed.Load() == 1 }, time.Second, time.Millisecond)
}

func TestDetector_CloseReleasesResources(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.detector.Load(ctx))
	require.NoError(t, h.detector.Start(ctx))
	h.tickUntil(t, func() bool { return h.detector.Snapshot().FrameCount >= 1 })

	require.NoError(t, h.detector.Close())
	require.True(t, h.session.closed.Load())
	require.Equal(t, int32(1), h.source.closed.Load())
	require.Equal(t, entity.StatusIdle, h.detector.Snapshot().Status)

	require.ErrorIs(t, h.detector.Start(ctx), entity.ErrClosed)
	require.ErrorIs(t, h.detector.Load(ctx), entity.ErrClosed)
	require.NoError(t, h.detector.Close())
}

package app

import (
	"context"
	"errors"
	"image"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"livevision/internal/domain/entity"
	"livevision/internal/domain/port"
)

const (
	DefaultTickInterval     = 100 * time.Millisecond
	DefaultMaxFrameFailures = 30
)

// DetectorConfig статическая конфигурация конвейера
type DetectorConfig struct {
	ModelPath        string
	Labels           entity.ClassLabelTable
	TargetSize       int
	Threshold        float32
	TickInterval     time.Duration
	MaxFrameFailures int
}

func (c *DetectorConfig) withDefaults() {
	if c.TargetSize <= 0 {
		c.TargetSize = DefaultTargetSize
	}
	if c.TickInterval <= 0 {
		c.TickInterval = DefaultTickInterval
	}
	if c.MaxFrameFailures <= 0 {
		c.MaxFrameFailures = DefaultMaxFrameFailures
	}
}

// DetectorState сессия модели и состояние жизненного цикла со счётчиками кадров.
// Владеет им Detector, доступ только под его мьютексом.
type DetectorState struct {
	Status     entity.Status
	Session    port.Session
	LastError  error
	FrameCount uint64
	FPS        *FPSMeter

	run *loopRun
}

// loopRun один запуск цикла распознавания от Start до Stop
type loopRun struct {
	id       string
	session  port.Session
	cancel   context.CancelFunc
	done     chan struct{} // закрывается после выхода цикла и освобождения камеры
	failures int           // подряд неудачных захватов кадра
}

// Detector управляет циклом захват→предобработка→инференс→декодирование
type Detector struct {
	cfg     DetectorConfig
	engine  port.Engine
	source  port.FrameSource
	decoder *Decoder
	clock   clock.Clock
	logger  *zap.Logger

	threshold atomic.Uint32
	snapshot  atomic.Pointer[entity.Snapshot]

	completed atomic.Uint64
	failed    atomic.Uint64
	skipped   atomic.Uint64
	discarded atomic.Uint64

	// ctrl сериализует Load/Start/Stop/Close, mu защищает state
	ctrl    sync.Mutex
	mu      sync.Mutex
	state   DetectorState
	drained chan struct{}
	closed  bool
}

// DetectorOption настраивает Detector
type DetectorOption func(*Detector)

// WithClock подменяет часы планировщика
func WithClock(c clock.Clock) DetectorOption {
	return func(d *Detector) { d.clock = c }
}

// WithLogger задаёт логгер
func WithLogger(l *zap.Logger) DetectorOption {
	return func(d *Detector) { d.logger = l }
}

// NewDetector создаёт детектор в состоянии Idle
func NewDetector(cfg DetectorConfig, engine port.Engine, source port.FrameSource, opts ...DetectorOption) (*Detector, error) {
	cfg.withDefaults()
	d := &Detector{
		cfg:     cfg,
		engine:  engine,
		source:  source,
		decoder: NewDecoder(cfg.TargetSize),
		clock:   clock.New(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if err := d.SetThreshold(cfg.Threshold); err != nil {
		return nil, err
	}

	d.state = DetectorState{Status: entity.StatusIdle, FPS: NewFPSMeter(d.clock.Now())}
	d.mu.Lock()
	d.publishLocked(nil, nil)
	d.mu.Unlock()
	return d, nil
}

// Load загружает модель. Повторная попытка разрешена только из Idle или Error.
func (d *Detector) Load(ctx context.Context) error {
	d.ctrl.Lock()
	d.mu.Lock()
	if err := d.beginLoadLocked(); err != nil {
		d.mu.Unlock()
		d.ctrl.Unlock()
		return err
	}
	d.publishLocked(nil, nil)
	d.mu.Unlock()
	d.ctrl.Unlock()

	d.logger.Info("loading model", zap.String("path", d.cfg.ModelPath))
	session, err := d.engine.Load(ctx, d.cfg.ModelPath)

	d.mu.Lock()
	defer d.mu.Unlock()

	if err != nil {
		var loadErr *entity.LoadError
		if !errors.As(err, &loadErr) {
			err = &entity.LoadError{Path: d.cfg.ModelPath, Err: err}
		}
		d.setStatusLocked(entity.StatusError)
		d.state.LastError = err
		d.publishLocked(nil, nil)
		d.logger.Error("model load failed", zap.Error(err))
		return err
	}
	if d.closed {
		d.setStatusLocked(entity.StatusIdle)
		d.publishLocked(nil, nil)
		return multierr.Append(entity.ErrClosed, session.Close())
	}

	d.setStatusLocked(entity.StatusReady)
	d.state.Session = session
	d.publishLocked(nil, nil)
	d.logger.Info("model loaded", zap.String("path", d.cfg.ModelPath))
	return nil
}

// setStatusLocked меняет состояние, недопустимый переход попадает в лог
func (d *Detector) setStatusLocked(to entity.Status) {
	from := d.state.Status
	if from == to {
		return
	}
	if !from.CanTransition(to) {
		d.logger.Error("unexpected status transition", zap.String("from", string(from)), zap.String("to", string(to)))
	}
	d.state.Status = to
}

func (d *Detector) beginLoadLocked() error {
	if d.closed {
		return entity.ErrClosed
	}
	switch d.state.Status {
	case entity.StatusLoading:
		return entity.ErrLoading
	case entity.StatusReady, entity.StatusDetecting:
		return entity.ErrAlreadyLoaded
	}
	d.setStatusLocked(entity.StatusLoading)
	d.state.LastError = nil
	return nil
}

// Start захватывает камеру и запускает периодический цикл
func (d *Detector) Start(ctx context.Context) error {
	d.ctrl.Lock()
	defer d.ctrl.Unlock()

	d.mu.Lock()
	err := d.canStartLocked()
	d.mu.Unlock()
	if err != nil {
		return err
	}

	// камера предыдущего запуска освобождается после завершения его последнего цикла
	if d.drained != nil {
		select {
		case <-d.drained:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := d.source.Open(ctx); err != nil {
		acqErr := &entity.AcquisitionError{Source: d.source.Name(), Err: err}
		d.mu.Lock()
		d.state.LastError = acqErr
		d.publishLocked(nil, nil)
		d.mu.Unlock()
		d.logger.Error("camera unavailable", zap.Error(acqErr))
		return acqErr
	}

	runCtx, cancel := context.WithCancel(context.Background())
	ticker := d.clock.Ticker(d.cfg.TickInterval)

	d.mu.Lock()
	run := &loopRun{
		id:      uuid.NewString(),
		session: d.state.Session,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	d.setStatusLocked(entity.StatusDetecting)
	d.state.LastError = nil
	d.state.FrameCount = 0
	d.state.FPS.Reset(d.clock.Now())
	d.state.run = run
	d.publishLocked(nil, nil)
	d.mu.Unlock()

	d.drained = run.done
	go d.loop(runCtx, run, ticker)

	d.logger.Info("detection started",
		zap.String("run_id", run.id),
		zap.String("source", d.source.Name()),
		zap.Duration("interval", d.cfg.TickInterval))
	return nil
}

func (d *Detector) canStartLocked() error {
	if d.closed {
		return entity.ErrClosed
	}
	switch d.state.Status {
	case entity.StatusReady:
		return nil
	case entity.StatusDetecting:
		return entity.ErrAlreadyDetecting
	case entity.StatusLoading:
		return entity.ErrLoading
	default:
		return entity.ErrNotLoaded
	}
}

// Stop прекращает планирование новых циклов и очищает опубликованные детекции.
// Уже отправленный цикл доработает, его результат будет отброшен.
func (d *Detector) Stop() error {
	d.ctrl.Lock()
	defer d.ctrl.Unlock()

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state.Status != entity.StatusDetecting {
		return entity.ErrNotDetecting
	}
	runID := d.state.run.id
	d.stopRunLocked()
	d.publishLocked(nil, nil)
	d.logger.Info("detection stopped", zap.String("run_id", runID))
	return nil
}

func (d *Detector) stopRunLocked() {
	if d.state.run != nil {
		d.state.run.cancel()
		d.state.run = nil
	}
	d.setStatusLocked(entity.StatusReady)
	d.state.FrameCount = 0
	d.state.FPS.Reset(d.clock.Now())
}

// Close останавливает цикл, дожидается освобождения камеры и закрывает сессию
func (d *Detector) Close() error {
	d.ctrl.Lock()
	defer d.ctrl.Unlock()

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	if d.state.Status == entity.StatusDetecting {
		d.stopRunLocked()
	}
	session := d.state.Session
	d.state.Session = nil
	if d.state.Status == entity.StatusReady {
		d.setStatusLocked(entity.StatusIdle)
	}
	d.publishLocked(nil, nil)
	d.mu.Unlock()

	if d.drained != nil {
		<-d.drained
	}

	var err error
	if session != nil {
		err = multierr.Append(err, session.Close())
	}
	return err
}

// SetThreshold задаёт порог уверенности, действует со следующего цикла
func (d *Detector) SetThreshold(v float32) error {
	if math.IsNaN(float64(v)) || v < 0 || v > 1 {
		return entity.ErrInvalidThreshold
	}
	d.threshold.Store(math.Float32bits(v))
	return nil
}

// Threshold возвращает последний записанный порог
func (d *Detector) Threshold() float32 {
	return math.Float32frombits(d.threshold.Load())
}

// Snapshot возвращает последний опубликованный срез состояния
func (d *Detector) Snapshot() entity.Snapshot {
	return *d.snapshot.Load()
}

// Stats возвращает счётчики планировщика
func (d *Detector) Stats() entity.LoopStats {
	return entity.LoopStats{
		Completed: d.completed.Load(),
		Failed:    d.failed.Load(),
		Skipped:   d.skipped.Load(),
		Discarded: d.discarded.Load(),
	}
}

// loop тикает с фиксированным периодом и держит не более одного цикла в работе
func (d *Detector) loop(ctx context.Context, run *loopRun, ticker *clock.Ticker) {
	gate := make(chan struct{}, 1)
	var inflight sync.WaitGroup

	defer func() {
		ticker.Stop()
		inflight.Wait()
		if err := d.source.Close(); err != nil {
			d.logger.Warn("camera release failed", zap.String("run_id", run.id), zap.Error(err))
		}
		close(run.done)
	}()

	// отменённый контекст запуска не прерывает уже идущий инференс
	cycleCtx := context.WithoutCancel(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.rollFPS(run)
			select {
			case gate <- struct{}{}:
				inflight.Add(1)
				go func() {
					defer inflight.Done()
					defer func() { <-gate }()
					d.cycle(cycleCtx, run)
				}()
			default:
				d.skipped.Add(1)
			}
		}
	}
}

// cycle один проход конвейера
func (d *Detector) cycle(ctx context.Context, run *loopRun) {
	started := d.clock.Now()

	frame, err := d.source.CurrentFrame(ctx)
	if err != nil {
		d.frameFailed(run, err)
		return
	}

	input := Preprocess(frame, d.cfg.TargetSize)
	out, err := run.session.Run(ctx, input)
	if err != nil {
		d.failed.Add(1)
		d.logger.Warn("inference failed, frame skipped",
			zap.String("run_id", run.id),
			zap.Any("frame", frameSize(frame)),
			zap.Error(err))
		return
	}

	if err := ValidateOutput(out); err != nil {
		d.logger.Warn("malformed model output", zap.String("run_id", run.id), zap.Error(err))
	}
	detections := d.decoder.Decode(out, d.Threshold(), d.cfg.Labels)

	d.publishCycle(run, frame, detections, d.clock.Since(started))
}

func (d *Detector) publishCycle(run *loopRun, frame image.Image, detections []entity.Detection, took time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state.run != run {
		d.discarded.Add(1)
		d.logger.Debug("stale cycle result discarded", zap.String("run_id", run.id))
		return
	}

	run.failures = 0
	d.state.FrameCount++
	d.state.FPS.Observe(d.clock.Now())
	d.completed.Add(1)
	d.publishLocked(detections, frame)

	d.logger.Debug("cycle completed",
		zap.String("run_id", run.id),
		zap.Int("detections", len(detections)),
		zap.Duration("took", took))
}

func (d *Detector) frameFailed(run *loopRun, err error) {
	d.failed.Add(1)

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state.run != run {
		return
	}
	run.failures++
	if run.failures < d.cfg.MaxFrameFailures {
		d.logger.Warn("frame capture failed", zap.String("run_id", run.id), zap.Int("failures", run.failures), zap.Error(err))
		return
	}

	acqErr := &entity.AcquisitionError{Source: d.source.Name(), Err: err}
	d.stopRunLocked()
	d.state.LastError = acqErr
	d.publishLocked(nil, nil)
	d.logger.Error("camera lost, detection stopped", zap.String("run_id", run.id), zap.Error(acqErr))
}

// rollFPS закрывает окно FPS на тике, даже если циклы не завершаются
func (d *Detector) rollFPS(run *loopRun) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state.run != run {
		return
	}
	before := d.state.FPS.FPS()
	if d.state.FPS.Roll(d.clock.Now()) == before {
		return
	}
	prev := d.snapshot.Load()
	d.publishLocked(prev.Detections, prev.Frame)
}

// publishLocked заменяет опубликованный срез целиком
func (d *Detector) publishLocked(detections []entity.Detection, frame image.Image) {
	if detections == nil {
		detections = []entity.Detection{}
	}
	s := &entity.Snapshot{
		Status:      d.state.Status,
		Detections:  detections,
		FPS:         d.state.FPS.FPS(),
		FrameCount:  d.state.FrameCount,
		IsLoading:   d.state.Status == entity.StatusLoading,
		IsDetecting: d.state.Status == entity.StatusDetecting,
		UpdatedAt:   d.clock.Now(),
		Frame:       frame,
	}
	if d.state.run != nil {
		s.RunID = d.state.run.id
	}
	if d.state.LastError != nil {
		s.Error = d.state.LastError.Error()
	}
	d.snapshot.Store(s)
}

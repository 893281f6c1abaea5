package distancing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"golang.org/x/time/rate"

	"github.com/sodistec/sodistec/components/camera"
	"github.com/sodistec/sodistec/config"
	"github.com/sodistec/sodistec/logging"
	"github.com/sodistec/sodistec/utils"
	"github.com/sodistec/sodistec/vision/objectdetection"
	"github.com/sodistec/sodistec/vision/persondetector"
	"github.com/sodistec/sodistec/vision/proximity"
)

// warnLogInterval limits how often skipped frames are logged. Every skip is still reported to
// the sink.
const warnLogInterval = 5 * time.Second

// closeTimeout bounds how long releasing the source and model may take once the loop is done.
const closeTimeout = 10 * time.Second

// State is the lifecycle state of a Pipeline.
type State int32

// A Pipeline moves from Idle to Running to Stopped, and never back.
const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// ErrPipelineStopped is returned when starting a pipeline that has already stopped.
var ErrPipelineStopped = errors.New("pipeline has stopped and cannot be restarted")

// PipelineConfig is the per-camera configuration of a Pipeline. Distance thresholds are held by
// Thresholds so they can be changed while the pipeline runs.
type PipelineConfig struct {
	DetectClass             string
	MinConfidence           float64
	NMSThreshold            float64
	MinBoxArea              float64
	UseAcceleratedInference bool

	Mode       proximity.Mode
	Thresholds *config.LiveThresholds

	// Frames are resized to this size before detection. A non-positive value disables resizing.
	ResizeWidth  int
	ResizeHeight int

	Reconnect    utils.ReconnectConfig
	Palette      objectdetection.Palette
	DrawCounters bool
	Debug        bool
}

// NewPipelineConfig derives the configuration of one camera from the process configuration. The
// thresholds start at the configured values and belong to this camera alone.
func NewPipelineConfig(cfg *config.Config, cam config.CameraConfig) (PipelineConfig, error) {
	mode, err := proximity.ParseMode(cfg.Proximity.Mode)
	if err != nil {
		return PipelineConfig{}, config.NewConfigError("proximity.mode", err)
	}
	thresholds, err := config.NewLiveThresholds(cfg.Proximity.Thresholds())
	if err != nil {
		return PipelineConfig{}, err
	}
	palette, err := objectdetection.NewPalette(cfg.Annotation.SafeColor, cfg.Annotation.SeriousColor, cfg.Annotation.AbnormalColor)
	if err != nil {
		return PipelineConfig{}, config.NewConfigError("annotation", err)
	}
	width, height, ok := cam.Resize()
	if !ok {
		width, height = 0, 0
	}
	return PipelineConfig{
		DetectClass:             cfg.Detector.DetectClass,
		MinConfidence:           cfg.Detector.MinConfidence,
		NMSThreshold:            cfg.Detector.NMSThreshold,
		MinBoxArea:              cfg.Detector.MinBoxArea,
		UseAcceleratedInference: cfg.Detector.UseAcceleratedInference,
		Mode:                    mode,
		Thresholds:              thresholds,
		ResizeWidth:             width,
		ResizeHeight:            height,
		Reconnect:               cam.Reconnect,
		Palette:                 palette,
		DrawCounters:            cfg.Annotation.DrawCounters,
		Debug:                   cam.Debug,
	}, nil
}

// A SourceOpener opens the frame source of a camera when its pipeline starts.
type SourceOpener func(ctx context.Context) (camera.FrameSource, error)

// PipelineOption changes how a Pipeline is built.
type PipelineOption func(*Pipeline)

// WithClock times reconnect backoff and frame processing with clk instead of the wall clock.
func WithClock(clk clock.Clock) PipelineOption {
	return func(p *Pipeline) {
		p.clock = clk
	}
}

// A Pipeline processes the frames of one camera sequentially: read, detect, suppress overlapping
// boxes, classify distances, annotate and emit. Per-frame failures are reported as warnings and
// the frame is skipped; only source failures stop the pipeline.
type Pipeline struct {
	handle    CameraHandle
	conf      PipelineConfig
	open      SourceOpener
	detector  *persondetector.Detector
	processor *Processor
	sink      EventSink
	clock     clock.Clock
	backoff   *utils.Backoff
	warnings  *rate.Limiter
	logger    logging.Logger

	stopRequested atomic.Bool

	// failures counts reconnect attempts since the last frame was read. It is only touched by
	// the loop goroutine and spans reconnects, so a source that reopens but never delivers
	// still runs out of retries.
	failures int

	mu      sync.Mutex
	state   State
	opening bool
	source  camera.FrameSource
	workers utils.StoppableWorkers
	err     error
	done    chan struct{}
}

// NewPipeline builds a pipeline around an already loaded detector. The pipeline owns the
// detector and closes it when it stops. The source is opened by Start.
func NewPipeline(
	handle CameraHandle,
	conf PipelineConfig,
	open SourceOpener,
	detector *persondetector.Detector,
	sink EventSink,
	logger logging.Logger,
	opts ...PipelineOption,
) (*Pipeline, error) {
	if open == nil || detector == nil || sink == nil {
		return nil, errors.New("pipeline needs a source, a detector and a sink")
	}
	processor, err := NewProcessor(conf, detector)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		handle:    handle,
		conf:      conf,
		open:      open,
		detector:  detector,
		processor: processor,
		sink:      sink,
		clock:     clock.New(),
		warnings:  rate.NewLimiter(rate.Every(warnLogInterval), 1),
		logger:    logger.WithFields("camera", handle.Name),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.backoff = utils.NewBackoff(conf.Reconnect, p.clock)
	return p, nil
}

// Handle returns the camera handle events are tagged with.
func (p *Pipeline) Handle() CameraHandle {
	return p.handle
}

// Thresholds returns the live thresholds. Changes take effect on the next frame.
func (p *Pipeline) Thresholds() *config.LiveThresholds {
	return p.conf.Thresholds
}

// State returns the current lifecycle state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Start opens the source and starts processing in the background. The pipeline runs until Stop
// is called, ctx is cancelled, the source ends, or the source fails for good.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	switch {
	case p.state == StateRunning:
		p.mu.Unlock()
		return errors.New("pipeline is already running")
	case p.state == StateStopped:
		p.mu.Unlock()
		return ErrPipelineStopped
	case p.opening:
		p.mu.Unlock()
		return errors.New("pipeline is already starting")
	}
	p.opening = true
	p.mu.Unlock()

	// opening an rtsp stream can take seconds; State, Err and Stop stay responsive meanwhile.
	src, err := p.open(ctx)
	if err != nil {
		err = errors.Wrapf(err, "cannot open camera %q", p.handle.Name)
		p.finish(err)
		return err
	}

	p.mu.Lock()
	p.opening = false
	if p.state == StateStopped || p.stopRequested.Load() {
		p.mu.Unlock()
		p.finish(nil)
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := src.Close(closeCtx); err != nil {
			p.logger.Warnw("error closing camera opened during stop", "error", err)
		}
		return ErrPipelineStopped
	}
	p.source = src
	p.state = StateRunning
	p.workers = utils.NewStoppableWorkersWithContext(ctx, p.run)
	p.mu.Unlock()
	p.logger.Infow("pipeline started", "id", p.handle.ID)
	return nil
}

// Stop asks the pipeline to stop and waits for it. The frame being processed, if any, is
// finished first. Stopping an idle pipeline releases its detector without ever opening the
// source. Stop is idempotent. It must not be called from an EventSink callback of the same
// pipeline.
func (p *Pipeline) Stop() {
	p.stopRequested.Store(true)
	p.mu.Lock()
	state, workers := p.state, p.workers
	p.mu.Unlock()

	switch state {
	case StateIdle:
		p.finish(nil)
	case StateRunning:
		workers.Stop()
	case StateStopped:
	}
}

// Wait blocks until the pipeline has stopped and returns the error it stopped with. A clean
// stop returns nil.
func (p *Pipeline) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
	}
	return p.Err()
}

// Done is closed once the pipeline has stopped and every event has been emitted.
func (p *Pipeline) Done() <-chan struct{} {
	return p.done
}

// Err returns the error the pipeline stopped with, if any.
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *Pipeline) run(ctx context.Context) {
	if p.conf.Debug {
		ctx = logging.EnableDebugMode(ctx, p.handle.Name)
	}
	p.finish(p.loop(ctx))
}

// finish releases the source and detector, records the outcome and emits Stopped. It runs once.
func (p *Pipeline) finish(err error) {
	p.mu.Lock()
	if p.state == StateStopped {
		p.mu.Unlock()
		return
	}
	p.state = StateStopped
	p.err = err
	src := p.source
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	var closeErr error
	if src != nil {
		closeErr = multierr.Combine(closeErr, src.Close(ctx))
	}
	closeErr = multierr.Combine(closeErr, p.detector.Close(ctx))
	if closeErr != nil {
		p.logger.Warnw("error releasing camera resources", "error", closeErr)
	}

	if err != nil {
		p.logger.Errorw("pipeline stopped", "error", err)
	} else {
		p.logger.Infow("pipeline stopped")
	}
	p.sink.Stopped(p.handle, err)
	close(p.done)
}

func (p *Pipeline) stopping(ctx context.Context) bool {
	return p.stopRequested.Load() || ctx.Err() != nil
}

func (p *Pipeline) loop(ctx context.Context) error {
	for {
		if p.stopping(ctx) {
			return nil
		}
		frame, err := p.source.Read(ctx)
		if err != nil {
			if p.stopping(ctx) {
				return nil
			}
			switch {
			case errors.Is(err, camera.ErrFrameTimeout):
				p.logger.CDebugw(ctx, "no frame within read timeout")
				continue
			case errors.Is(err, camera.ErrSourceExhausted):
				p.logger.Infow("source exhausted")
				return nil
			case camera.IsTransient(err):
				if err := p.reconnect(ctx, err); err != nil {
					if p.stopping(ctx) {
						return nil
					}
					return err
				}
				continue
			default:
				return errors.Wrap(err, "cannot read frame")
			}
		}
		p.failures = 0
		p.process(ctx, frame)
	}
}

func (p *Pipeline) reconnect(ctx context.Context, cause error) error {
	rc, ok := p.source.(camera.Reconnector)
	if !ok {
		return errors.Wrap(cause, "source failed and cannot reconnect")
	}
	p.sink.Warning(p.handle, cause)
	last, err := p.backoff.RetryFrom(ctx, p.failures+1, rc.Reconnect,
		func(attempt int, delay time.Duration, prev error) {
			if prev == nil {
				prev = cause
			}
			p.logger.Warnw("reconnecting camera", "attempt", attempt,
				"delay", delay, "error", prev)
		})
	p.failures = last
	if err != nil {
		return errors.Wrapf(err, "cannot reconnect camera after %v", cause)
	}
	p.logger.Infow("camera reconnected")
	return nil
}

// warn reports a skipped frame. The sink sees every one, the log at most one per interval.
func (p *Pipeline) warn(frame camera.Frame, err error) {
	if p.warnings.Allow() {
		p.logger.Warnw("skipping frame", "seq", frame.Seq, "error", err)
	}
	p.sink.Warning(p.handle, err)
}

func (p *Pipeline) process(ctx context.Context, frame camera.Frame) {
	start := p.clock.Now()
	annotated, err := p.processor.Process(ctx, frame)
	if err != nil {
		if p.stopping(ctx) {
			return
		}
		p.warn(frame, err)
		return
	}
	annotated.ProcessingTime = p.clock.Since(start)
	p.logger.CDebugw(ctx, "frame processed", "seq", frame.Seq, "people", annotated.People(),
		"serious", annotated.Classification.SeriousCount(), "took", annotated.ProcessingTime)

	p.sink.FrameReady(p.handle, annotated)
	p.sink.PeopleCount(p.handle, len(annotated.Detections))
	p.sink.SeriousViolationCount(p.handle, annotated.Classification.SeriousCount())
	p.sink.ViolationCount(p.handle, annotated.Classification.AbnormalCount())
}

package camera

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"github.com/sodistec/sodistec/logging"
	"github.com/sodistec/sodistec/utils"
)

// LatestFrameSource reads its underlying source on a background goroutine and keeps only the
// newest frame. Frames that are overwritten before being read are counted as dropped; they are
// never queued.
type LatestFrameSource struct {
	src     FrameSource
	timeout time.Duration
	clock   clock.Clock
	logger  logging.Logger

	mu sync.Mutex
	// frame is the newest unread frame, nil once read.
	frame *Frame
	// err ends the capture loop. It is returned once the pending frame has been read.
	err     error
	notify  chan struct{}
	dropped atomic.Uint64

	workers utils.StoppableWorkers
}

// NewLatestFrameSource starts capturing from src. Read waits at most timeout for a new frame; a
// non-positive timeout waits until one arrives.
func NewLatestFrameSource(src FrameSource, timeout time.Duration, clk clock.Clock, logger logging.Logger) *LatestFrameSource {
	if clk == nil {
		clk = clock.New()
	}
	l := &LatestFrameSource{
		src:     src,
		timeout: timeout,
		clock:   clk,
		logger:  logger,
		notify:  make(chan struct{}, 1),
	}
	l.workers = utils.NewStoppableWorkers(l.capture)
	return l
}

// Threaded wraps src in a LatestFrameSource that is also a Reconnector when src is.
func Threaded(src FrameSource, timeout time.Duration, clk clock.Clock, logger logging.Logger) FrameSource {
	l := NewLatestFrameSource(src, timeout, clk, logger)
	if rc, ok := src.(Reconnector); ok {
		return &reconnectingLatestFrameSource{LatestFrameSource: l, reconnector: rc}
	}
	return l
}

func (l *LatestFrameSource) capture(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		frame, err := l.src.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			l.publishErr(err)
			return
		}
		l.publish(frame)
	}
}

func (l *LatestFrameSource) publish(frame Frame) {
	l.mu.Lock()
	if l.frame != nil {
		l.dropped.Inc()
	}
	l.frame = &frame
	l.mu.Unlock()
	l.wake()
}

func (l *LatestFrameSource) publishErr(err error) {
	l.logger.Debugw("capture loop stopped", "error", err)
	l.mu.Lock()
	l.err = err
	l.mu.Unlock()
	l.wake()
}

func (l *LatestFrameSource) wake() {
	select {
	case l.notify <- struct{}{}:
	default:
	}
}

// Read returns the newest frame not yet read, waiting for one if necessary. It returns
// ErrFrameTimeout when nothing arrives within the read timeout.
func (l *LatestFrameSource) Read(ctx context.Context) (Frame, error) {
	var timeout <-chan time.Time
	if l.timeout > 0 {
		timer := l.clock.Timer(l.timeout)
		defer timer.Stop()
		timeout = timer.C
	}
	for {
		l.mu.Lock()
		if l.frame != nil {
			frame := *l.frame
			l.frame = nil
			l.mu.Unlock()
			return frame, nil
		}
		if l.err != nil {
			err := l.err
			l.mu.Unlock()
			return Frame{}, err
		}
		l.mu.Unlock()

		select {
		case <-l.notify:
		case <-timeout:
			return Frame{}, ErrFrameTimeout
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		}
	}
}

// Dropped returns how many frames were overwritten before being read.
func (l *LatestFrameSource) Dropped() uint64 {
	return l.dropped.Load()
}

// Close stops the capture goroutine and closes the underlying source.
func (l *LatestFrameSource) Close(ctx context.Context) error {
	l.workers.Stop()
	return l.src.Close(ctx)
}

type reconnectingLatestFrameSource struct {
	*LatestFrameSource
	reconnector Reconnector
}

// Reconnect stops capturing, reconnects the underlying source and resumes capturing.
func (l *reconnectingLatestFrameSource) Reconnect(ctx context.Context) error {
	l.workers.Stop()
	if err := l.reconnector.Reconnect(ctx); err != nil {
		l.workers = utils.NewStoppableWorkers(l.capture)
		return errors.Wrap(err, "cannot reconnect threaded source")
	}
	l.mu.Lock()
	l.err = nil
	l.frame = nil
	l.mu.Unlock()
	l.workers = utils.NewStoppableWorkers(l.capture)
	return nil
}

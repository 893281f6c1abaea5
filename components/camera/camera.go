// Package camera defines the frame sources that feed a distancing pipeline and the registry of
// capture backends that build them.
package camera

import (
	"context"
	"image"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"github.com/sodistec/sodistec/rimage"
)

var (
	// ErrSourceExhausted is returned by Read once a finite source, such as a video file, has no
	// more frames. It is an expected end of stream, not a failure.
	ErrSourceExhausted = errors.New("frame source exhausted")
	// ErrFrameTimeout is returned by a threaded source when no new frame arrived within its read
	// timeout. Callers should simply read again.
	ErrFrameTimeout = errors.New("timed out waiting for a new frame")
)

// SourceReadError is a failure to read from a source. Transient errors, such as a dropped network
// stream, may be recovered from by reconnecting.
type SourceReadError struct {
	Transient bool
	Err       error
}

// NewTransientReadError wraps err as a recoverable read error.
func NewTransientReadError(err error) error {
	return &SourceReadError{Transient: true, Err: err}
}

// NewFatalReadError wraps err as an unrecoverable read error.
func NewFatalReadError(err error) error {
	return &SourceReadError{Err: err}
}

func (e *SourceReadError) Error() string {
	if e.Transient {
		return "transient source read error: " + e.Err.Error()
	}
	return "source read error: " + e.Err.Error()
}

func (e *SourceReadError) Unwrap() error {
	return e.Err
}

// IsTransient returns whether err is a SourceReadError that may be recovered from.
func IsTransient(err error) bool {
	var readErr *SourceReadError
	return errors.As(err, &readErr) && readErr.Transient
}

// Frame is one captured image. The image is owned by whoever holds the frame and is never
// modified by the pipeline once emitted.
type Frame struct {
	CameraID   string
	Seq        uint64
	CapturedAt time.Time
	Image      *image.RGBA
}

// A FrameSource produces frames for a single camera.
type FrameSource interface {
	// Read blocks until the next frame is available. It returns ErrSourceExhausted at the end of
	// a finite source.
	Read(ctx context.Context) (Frame, error)
	Close(ctx context.Context) error
}

// A Reconnector is a source that can re-open its underlying stream after a transient failure.
type Reconnector interface {
	Reconnect(ctx context.Context) error
}

// An ImageReader is what a capture backend implements. The release func, when not nil, is called
// once the image has been copied out.
type ImageReader interface {
	Read(ctx context.Context) (image.Image, func(), error)
	Close(ctx context.Context) error
}

// FromReader turns a backend reader into a FrameSource that numbers and timestamps each frame.
// The returned source is a Reconnector when r is one.
func FromReader(cameraID string, r ImageReader, clk clock.Clock) FrameSource {
	if clk == nil {
		clk = clock.New()
	}
	src := &readerSource{cameraID: cameraID, reader: r, clock: clk}
	if rc, ok := r.(Reconnector); ok {
		return &reconnectingReaderSource{readerSource: src, reconnector: rc}
	}
	return src
}

type readerSource struct {
	cameraID string
	reader   ImageReader
	clock    clock.Clock
	seq      uint64
}

func (rs *readerSource) Read(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	img, release, err := rs.reader.Read(ctx)
	if err != nil {
		return Frame{}, err
	}
	if rimage.IsEmpty(img) {
		if release != nil {
			release()
		}
		return Frame{}, NewTransientReadError(errors.New("backend returned an empty image"))
	}
	rgba := rimage.CloneRGBA(img)
	if release != nil {
		release()
	}
	rs.seq++
	return Frame{
		CameraID:   rs.cameraID,
		Seq:        rs.seq,
		CapturedAt: rs.clock.Now(),
		Image:      rgba,
	}, nil
}

func (rs *readerSource) Close(ctx context.Context) error {
	return rs.reader.Close(ctx)
}

type reconnectingReaderSource struct {
	*readerSource
	reconnector Reconnector
}

func (rs *reconnectingReaderSource) Reconnect(ctx context.Context) error {
	return rs.reconnector.Reconnect(ctx)
}

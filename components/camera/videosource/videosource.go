//go:build !no_cgo

// Package videosource captures video files, device indices and stream URLs through OpenCV.
package videosource

import (
	"context"
	"fmt"
	"image"
	"net/url"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gocv.io/x/gocv"

	"github.com/sodistec/sodistec/components/camera"
	"github.com/sodistec/sodistec/config"
	"github.com/sodistec/sodistec/logging"
)

// Backend is the camera backend name of this package.
const Backend = "opencv"

var errClosed = errors.New("camera has been closed")

func init() {
	camera.RegisterBackend(Backend, camera.Registration{
		Constructor: func(ctx context.Context, conf config.CameraConfig, logger logging.Logger) (camera.ImageReader, error) {
			attrs, err := config.TransformAttributeMap[*Config](conf.Attributes)
			if err != nil {
				return nil, config.NewConfigError(fmt.Sprintf("cameras.%s.attributes", conf.Name), err)
			}
			return NewVideoSource(conf.Source, attrs, logger)
		},
	})
}

// Config are the attributes of an OpenCV camera.
type Config struct {
	// Width and Height are requested from devices; files and streams ignore them.
	Width  int `json:"width"`
	Height int `json:"height"`
}

// kind is what a source identifier refers to.
type kind int

const (
	kindFile kind = iota
	kindDevice
	kindStream
)

// VideoSource reads frames with an OpenCV VideoCapture.
type VideoSource struct {
	source string
	kind   kind
	conf   Config
	logger logging.Logger

	mu     sync.Mutex
	vc     *gocv.VideoCapture
	mat    gocv.Mat
	closed bool
}

// NewVideoSource opens source, which is a file path, an integer device index or a stream URL.
func NewVideoSource(source string, conf *Config, logger logging.Logger) (*VideoSource, error) {
	vs := &VideoSource{
		source: source,
		kind:   classify(source),
		conf:   *conf,
		logger: logger.Sublogger(Backend),
		mat:    gocv.NewMat(),
	}
	if err := vs.open(); err != nil {
		if closeErr := vs.mat.Close(); closeErr != nil {
			vs.logger.Debugw("cannot release frame buffer", "error", closeErr)
		}
		return nil, err
	}
	return vs, nil
}

func classify(source string) kind {
	if _, err := strconv.Atoi(source); err == nil {
		return kindDevice
	}
	if u, err := url.Parse(source); err == nil && u.Scheme != "" && u.Host != "" {
		return kindStream
	}
	return kindFile
}

// open assumes the lock is held or that vs is not shared yet.
func (vs *VideoSource) open() error {
	var target interface{} = vs.source
	if vs.kind == kindDevice {
		id, _ := strconv.Atoi(vs.source)
		target = id
	}
	vc, err := gocv.OpenVideoCapture(target)
	if err != nil {
		return errors.Wrapf(err, "cannot open video source %q", vs.source)
	}
	if !vc.IsOpened() {
		return multierr.Combine(errors.Errorf("video source %q did not open", vs.source), vc.Close())
	}
	if vs.kind == kindDevice {
		if vs.conf.Width > 0 {
			vc.Set(gocv.VideoCaptureFrameWidth, float64(vs.conf.Width))
		}
		if vs.conf.Height > 0 {
			vc.Set(gocv.VideoCaptureFrameHeight, float64(vs.conf.Height))
		}
	}
	vs.vc = vc
	vs.logger.Debugw("opened video source", "source", vs.source,
		"width", vc.Get(gocv.VideoCaptureFrameWidth), "height", vc.Get(gocv.VideoCaptureFrameHeight))
	return nil
}

// Read decodes the next frame. The end of a file is ErrSourceExhausted; a failed read from a
// device or stream is transient.
func (vs *VideoSource) Read(ctx context.Context) (image.Image, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	vs.mu.Lock()
	defer vs.mu.Unlock()
	if vs.closed {
		return nil, nil, camera.NewFatalReadError(errClosed)
	}
	if vs.vc == nil {
		return nil, nil, camera.NewTransientReadError(errors.New("video source is disconnected"))
	}
	if ok := vs.vc.Read(&vs.mat); !ok || vs.mat.Empty() {
		if vs.kind == kindFile {
			return nil, nil, camera.ErrSourceExhausted
		}
		return nil, nil, camera.NewTransientReadError(errors.Errorf("no frame from %q", vs.source))
	}
	img, err := vs.mat.ToImage()
	if err != nil {
		return nil, nil, camera.NewTransientReadError(errors.Wrap(err, "cannot convert frame"))
	}
	return img, func() {}, nil
}

// Reconnect closes the capture and opens it again.
func (vs *VideoSource) Reconnect(ctx context.Context) error {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	if vs.closed {
		return errClosed
	}
	if vs.vc != nil {
		vs.logger.Debug("closing current capture")
		if err := vs.vc.Close(); err != nil {
			vs.logger.Errorw("failed to close current capture", "error", err)
		}
		vs.vc = nil
	}
	if err := vs.open(); err != nil {
		return errors.Wrap(err, "failed to reconnect")
	}
	vs.logger.Infow("video source reconnected", "source", vs.source)
	return nil
}

// Close releases the capture.
func (vs *VideoSource) Close(ctx context.Context) error {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	if vs.closed {
		return nil
	}
	vs.closed = true
	var err error
	if vs.vc != nil {
		err = vs.vc.Close()
		vs.vc = nil
	}
	return multierr.Combine(err, vs.mat.Close())
}

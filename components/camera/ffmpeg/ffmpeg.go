// Package ffmpeg provides an implementation for ffmpeg based cameras. Any input ffmpeg can read
// (files, rtsp and http streams, lavfi test sources) is decoded by a subprocess and piped back as
// a stream of JPEG images.
package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"net/url"
	"os/exec"
	"sync"

	"github.com/pkg/errors"
	ffmpeg "github.com/u2takey/ffmpeg-go"
	"go.uber.org/atomic"
	goutils "go.viam.com/utils"

	"github.com/sodistec/sodistec/components/camera"
	"github.com/sodistec/sodistec/config"
	"github.com/sodistec/sodistec/logging"
)

// Backend is the camera backend name of this package.
const Backend = "ffmpeg"

var errClosed = errors.New("camera has been closed")

func init() {
	camera.RegisterBackend(Backend, camera.Registration{
		Constructor: func(ctx context.Context, conf config.CameraConfig, logger logging.Logger) (camera.ImageReader, error) {
			attrs, err := config.TransformAttributeMap[*Config](conf.Attributes)
			if err != nil {
				return nil, config.NewConfigError(fmt.Sprintf("cameras.%s.attributes", conf.Name), err)
			}
			attrs.Source = conf.Source
			return NewFFmpegCamera(attrs, logger)
		},
	})
}

// Config is the attribute struct for ffmpeg cameras.
type Config struct {
	Source       string                 `json:"source"`
	InputKWArgs  map[string]interface{} `json:"input_kw_args"`
	OutputKWArgs map[string]interface{} `json:"output_kw_args"`
	// Stream treats the end of the input as a dropped connection rather than the end of a file.
	// URLs are always treated as streams.
	Stream bool `json:"stream"`
}

type ffmpegCamera struct {
	conf     Config
	isStream bool
	logger   logging.Logger

	mu                      sync.Mutex
	cancelFunc              func()
	activeBackgroundWorkers sync.WaitGroup
	pipe                    *io.PipeReader
	frames                  *bufio.Reader
	ffmpegErr               *atomic.Error
	closed                  bool
}

// NewFFmpegCamera starts an ffmpeg process reading conf.Source.
func NewFFmpegCamera(conf *Config, logger logging.Logger) (camera.ImageReader, error) {
	// make sure ffmpeg is in the path before doing anything else
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, err
	}
	if conf == nil || conf.Source == "" {
		return nil, errors.New("ffmpeg camera needs a source")
	}
	isStream := conf.Stream
	if u, err := url.Parse(conf.Source); err == nil && u.Scheme != "" && u.Host != "" {
		isStream = true
	}
	fc := &ffmpegCamera{conf: *conf, isStream: isStream, logger: logger.Sublogger(Backend)}
	fc.start()
	return fc, nil
}

func (fc *ffmpegCamera) outputArgs() ffmpeg.KwArgs {
	outArgs := make(ffmpeg.KwArgs, len(fc.conf.OutputKWArgs)+3)
	for key, value := range fc.conf.OutputKWArgs {
		outArgs[key] = value
	}
	outArgs["format"] = "image2pipe"
	outArgs["vcodec"] = "mjpeg"
	if _, ok := outArgs["q:v"]; !ok {
		outArgs["q:v"] = 3
	}
	return outArgs
}

// start launches the ffmpeg process. Assumes the lock is held or fc is not shared yet.
func (fc *ffmpegCamera) start() {
	// instantiate camera with cancellable context that will be applied to all spawned processes
	cancelableCtx, cancel := context.WithCancel(context.Background())
	fc.cancelFunc = cancel
	fc.ffmpegErr = atomic.NewError(nil)

	in, out := io.Pipe()
	fc.pipe = in
	fc.frames = bufio.NewReader(in)
	ffmpegErr := fc.ffmpegErr
	fc.activeBackgroundWorkers.Add(1)
	goutils.ManagedGo(func() {
		stream := ffmpeg.Input(fc.conf.Source, fc.conf.InputKWArgs).Output("pipe:", fc.outputArgs())
		stream.Context = cancelableCtx
		err := stream.WithOutput(out).Run()
		if err != nil && cancelableCtx.Err() == nil {
			ffmpegErr.Store(err)
			fc.logger.Debugw("ffmpeg exited", "error", err)
		}
		// the decoder sees the end of the stream once the process is gone.
		if closeErr := out.Close(); closeErr != nil {
			fc.logger.Debugw("cannot close ffmpeg pipe", "error", closeErr)
		}
	}, func() {
		cancel()
		fc.activeBackgroundWorkers.Done()
	})
}

// stop kills the ffmpeg process. Assumes the lock is held.
func (fc *ffmpegCamera) stop() {
	fc.cancelFunc()
	if err := fc.pipe.Close(); err != nil {
		fc.logger.Debugw("cannot close ffmpeg pipe", "error", err)
	}
	fc.activeBackgroundWorkers.Wait()
}

// Read decodes the next JPEG produced by ffmpeg.
func (fc *ffmpegCamera) Read(ctx context.Context) (image.Image, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	fc.mu.Lock()
	defer fc.mu.Unlock()
	if fc.closed {
		return nil, nil, camera.NewFatalReadError(errClosed)
	}
	// the decoder reads ahead, so each image is split off the pipe before decoding.
	data, err := nextJPEG(fc.frames)
	if err == nil {
		var img image.Image
		if img, err = jpeg.Decode(bytes.NewReader(data)); err == nil {
			return img, func() {}, nil
		}
	}
	if ffErr := fc.ffmpegErr.Load(); ffErr != nil {
		err = ffErr
	}
	endOfInput := errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
	switch {
	case endOfInput && !fc.isStream:
		return nil, nil, camera.ErrSourceExhausted
	case fc.isStream:
		return nil, nil, camera.NewTransientReadError(errors.Wrap(err, "ffmpeg stream interrupted"))
	default:
		return nil, nil, camera.NewFatalReadError(errors.Wrap(err, "ffmpeg failed"))
	}
}

// Reconnect restarts the ffmpeg process.
func (fc *ffmpegCamera) Reconnect(ctx context.Context) error {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	if fc.closed {
		return errClosed
	}
	fc.stop()
	fc.start()
	fc.logger.Infow("restarted ffmpeg", "source", fc.conf.Source)
	return nil
}

func (fc *ffmpegCamera) Close(ctx context.Context) error {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	if fc.closed {
		return nil
	}
	fc.closed = true
	fc.stop()
	return nil
}

// Package fake implements a fake camera which returns generated frames of a user specified
// resolution, and an image file camera.
package fake

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/pkg/errors"

	"github.com/sodistec/sodistec/components/camera"
	"github.com/sodistec/sodistec/config"
	"github.com/sodistec/sodistec/logging"
)

const model = "fake"

const (
	initialWidth  = 1280
	initialHeight = 720
)

func init() {
	camera.RegisterBackend(model, camera.Registration{
		Constructor: func(ctx context.Context, conf config.CameraConfig, logger logging.Logger) (camera.ImageReader, error) {
			attrs, err := config.TransformAttributeMap[*Config](conf.Attributes)
			if err != nil {
				return nil, config.NewConfigError(fmt.Sprintf("cameras.%s.attributes", conf.Name), err)
			}
			if err := attrs.Validate(fmt.Sprintf("cameras.%s.attributes", conf.Name)); err != nil {
				return nil, err
			}
			return NewCamera(attrs, logger), nil
		},
	})
}

// Config are the attributes of a fake camera.
type Config struct {
	Width  int `json:"width"`
	Height int `json:"height"`
	// NumFrames ends the stream after that many frames. Zero never ends it.
	NumFrames int `json:"num_frames"`
	// FailAfter makes every read fail with a transient error once that many frames have been
	// produced since the last reconnect. Zero never fails.
	FailAfter int `json:"fail_after"`
}

// Validate ensures all parts of the config are valid.
func (c *Config) Validate(path string) error {
	if c.Width < 0 || c.Height < 0 {
		return config.NewConfigError(path,
			errors.Errorf("got illegal negative dimensions for width and height (%d, %d) fields set for fake camera", c.Width, c.Height))
	}
	if c.NumFrames < 0 || c.FailAfter < 0 {
		return config.NewConfigError(path, errors.New("num_frames and fail_after cannot be negative"))
	}
	return nil
}

// Camera is a fake camera that always returns a frame of the same size with a moving bar, so that
// consecutive frames differ.
type Camera struct {
	width, height int
	numFrames     int
	failAfter     int
	logger        logging.Logger

	mu         sync.Mutex
	produced   int
	sinceReset int
	reconnects int
}

// NewCamera returns a new fake camera.
func NewCamera(conf *Config, logger logging.Logger) *Camera {
	width, height := conf.Width, conf.Height
	if width == 0 {
		width = initialWidth
	}
	if height == 0 {
		height = initialHeight
	}
	return &Camera{
		width:     width,
		height:    height,
		numFrames: conf.NumFrames,
		failAfter: conf.FailAfter,
		logger:    logger,
	}
}

// Read returns the next generated frame.
func (c *Camera) Read(ctx context.Context) (image.Image, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.numFrames > 0 && c.produced >= c.numFrames {
		return nil, nil, camera.ErrSourceExhausted
	}
	if c.failAfter > 0 && c.sinceReset >= c.failAfter {
		return nil, nil, camera.NewTransientReadError(errors.New("fake camera stream dropped"))
	}
	img := image.NewRGBA(image.Rect(0, 0, c.width, c.height))
	barX := (c.produced * 8) % c.width
	for y := 0; y < c.height; y++ {
		for x := 0; x < c.width; x++ {
			if x >= barX && x < barX+8 {
				img.SetRGBA(x, y, color.RGBA{255, 255, 255, 255})
				continue
			}
			img.SetRGBA(x, y, color.RGBA{uint8(x % 255), uint8(y % 255), 128, 255})
		}
	}
	c.produced++
	c.sinceReset++
	return img, func() {}, nil
}

// Reconnect resets the failure counter.
func (c *Camera) Reconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sinceReset = 0
	c.reconnects++
	c.logger.Debugw("fake camera reconnected", "reconnects", c.reconnects)
	return nil
}

// Reconnects returns how many times Reconnect was called.
func (c *Camera) Reconnects() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reconnects
}

// Close does nothing.
func (c *Camera) Close(ctx context.Context) error {
	return nil
}

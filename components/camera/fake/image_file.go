package fake

import (
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"

	"github.com/sodistec/sodistec/components/camera"
	"github.com/sodistec/sodistec/config"
	"github.com/sodistec/sodistec/logging"
)

const fileModel = "image_file"

func init() {
	camera.RegisterBackend(fileModel, camera.Registration{
		Constructor: func(ctx context.Context, conf config.CameraConfig, logger logging.Logger) (camera.ImageReader, error) {
			attrs, err := config.TransformAttributeMap[*fileSourceConfig](conf.Attributes)
			if err != nil {
				return nil, config.NewConfigError(fmt.Sprintf("cameras.%s.attributes", conf.Name), err)
			}
			return newFileSource(conf.Source, attrs)
		},
	})
}

// fileSourceConfig is the attribute struct for fileSource.
type fileSourceConfig struct {
	// Repeat is how many times the image is returned. Zero returns it once, a negative value
	// returns it forever.
	Repeat int `json:"repeat"`
}

// fileSource returns the same still image a configured number of times.
type fileSource struct {
	img       image.Image
	remaining int
}

func newFileSource(path string, conf *fileSourceConfig) (*fileSource, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read image file %q", path)
	}
	remaining := conf.Repeat
	if remaining == 0 {
		remaining = 1
	}
	return &fileSource{img: img, remaining: remaining}, nil
}

// Read returns the image until the repeat count is used up.
func (fs *fileSource) Read(ctx context.Context) (image.Image, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if fs.remaining == 0 {
		return nil, nil, camera.ErrSourceExhausted
	}
	if fs.remaining > 0 {
		fs.remaining--
	}
	return fs.img, func() {}, nil
}

func (fs *fileSource) Close(ctx context.Context) error {
	return nil
}

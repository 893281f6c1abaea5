package objectdetection

import (
	"context"
	"image"

	"github.com/pkg/errors"
)

// Detector returns the detections found in an image.
type Detector func(context.Context, image.Image) ([]Detection, error)

// Preprocessor will apply processing to an input image before feeding it into the detector.
type Preprocessor func(image.Image) image.Image

// Build zips up a preprocessor-detector-postprocessor stream into a detector. Postprocessors
// run in the order given.
func Build(prep Preprocessor, det Detector, post ...Postprocessor) (Detector, error) {
	if det == nil {
		return nil, errors.New("object detection pipeline must have a Detector")
	}
	if prep == nil {
		prep = func(img image.Image) image.Image { return img }
	}
	return func(ctx context.Context, img image.Image) ([]Detection, error) {
		dets, err := det(ctx, prep(img))
		if err != nil {
			return nil, err
		}
		for _, p := range post {
			if p != nil {
				dets = p(dets)
			}
		}
		return dets, nil
	}, nil
}

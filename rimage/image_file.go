package rimage

import (
	"image"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// NewImageFromFile reads an image file. The format is taken from the file contents and EXIF
// orientation is applied.
func NewImageFromFile(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read image file %q", path)
	}
	return img, nil
}

// WriteImageToFile writes img to path in the format named by the file extension.
func WriteImageToFile(path string, img image.Image) error {
	if err := imaging.Save(img, path); err != nil {
		return errors.Wrapf(err, "cannot write image file %q", path)
	}
	return nil
}

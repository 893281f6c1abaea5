// Package rimage holds the image conversion, resizing and drawing helpers used on camera frames.
package rimage

import (
	"image"
	"image/draw"

	"github.com/disintegration/imaging"
)

// ToRGBA returns img as an *image.RGBA anchored at the origin, converting only when needed.
// The result may share pixels with img.
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	return CloneRGBA(img)
}

// CloneRGBA returns a deep copy of img as an *image.RGBA anchored at the origin.
func CloneRGBA(img image.Image) *image.RGBA {
	var src image.Image = img
	if _, ok := img.(*image.RGBA); !ok {
		// imaging normalises every colour model, including YCbCr from decoders, to NRGBA.
		src = imaging.Clone(img)
	}
	b := src.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), src, b.Min, draw.Src)
	return out
}

// IsEmpty reports whether img has no pixels.
func IsEmpty(img image.Image) bool {
	return img == nil || img.Bounds().Empty()
}

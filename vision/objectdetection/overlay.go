package objectdetection

import (
	"image"
	"image/color"

	"github.com/fogleman/gg"
	"github.com/pkg/errors"

	"github.com/sodistec/sodistec/rimage"
)

// OverlayOptions controls how detections are drawn.
type OverlayOptions struct {
	Palette Palette
	// Marker colours each detection by severity; nil draws everything as safe.
	Marker SeverityMarker
	// Lines are written in a panel at the top-left corner.
	Lines []string

	LineWidth      float64
	CentroidRadius float64
	FontSize       float64
}

// Overlay returns a copy of img with each detection's box and centroid drawn in its severity
// colour. img itself is never modified.
func Overlay(img image.Image, dets []Detection, opts OverlayOptions) (*image.RGBA, error) {
	if rimage.IsEmpty(img) {
		return nil, errors.New("cannot overlay detections on an empty image")
	}
	if opts.LineWidth <= 0 {
		opts.LineWidth = 2
	}
	if opts.CentroidRadius <= 0 {
		opts.CentroidRadius = 5
	}
	if opts.FontSize <= 0 {
		opts.FontSize = 14
	}
	if opts.Palette == (Palette{}) {
		opts.Palette = DefaultPalette
	}

	out := rimage.CloneRGBA(img)
	dc := gg.NewContextForRGBA(out)
	for i, det := range dets {
		c := opts.Palette.ColorOf(opts.Marker, i)
		rimage.DrawRectangleEmpty(dc, *det.BoundingBox(), c, opts.LineWidth)
		center := det.Centroid()
		rimage.DrawFilledCircle(dc, center.X, center.Y, opts.CentroidRadius, c)
	}
	rimage.DrawTextPanel(dc, opts.Lines, color.White, opts.FontSize)
	return out, nil
}

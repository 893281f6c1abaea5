package rimage

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// ResizePolicy selects how a frame is fitted into the square network input. It changes how
// normalised network coordinates map back onto the frame.
type ResizePolicy string

const (
	// ResizeDirect stretches the frame to the input size, ignoring aspect ratio. A normalised
	// coordinate x maps back to x*W.
	ResizeDirect = ResizePolicy("direct")
	// ResizeLetterbox scales the frame preserving aspect ratio and centres it on a grey canvas.
	// A normalised coordinate x maps back to (x*S - padX) / scale.
	ResizeLetterbox = ResizePolicy("letterbox")
)

// letterboxFill is the canvas colour used by darknet style letterboxing.
var letterboxFill = color.NRGBA{R: 114, G: 114, B: 114, A: 255}

// ParseResizePolicy validates a policy name.
func ParseResizePolicy(s string) (ResizePolicy, error) {
	switch p := ResizePolicy(s); p {
	case ResizeDirect, ResizeLetterbox:
		return p, nil
	case "":
		return ResizeDirect, nil
	default:
		return "", errors.Errorf("unknown resize policy %q", s)
	}
}

// Placement records where a frame landed inside a square network input of Size pixels.
type Placement struct {
	Policy ResizePolicy
	Size   int
	// Frame size before fitting.
	Width, Height int
	// Letterbox only: scale factor applied to the frame and canvas offsets.
	Scale      float64
	PadX, PadY float64
}

// ToFrame maps a normalised network coordinate back onto the original frame.
func (p Placement) ToFrame(nx, ny float64) (float64, float64) {
	if p.Policy == ResizeLetterbox {
		s := float64(p.Size)
		return (nx*s - p.PadX) / p.Scale, (ny*s - p.PadY) / p.Scale
	}
	return nx * float64(p.Width), ny * float64(p.Height)
}

// ToFrameLength maps a normalised width and height back onto the original frame.
func (p Placement) ToFrameLength(nw, nh float64) (float64, float64) {
	if p.Policy == ResizeLetterbox {
		s := float64(p.Size)
		return nw * s / p.Scale, nh * s / p.Scale
	}
	return nw * float64(p.Width), nh * float64(p.Height)
}

// FitSquare fits img into a size x size square according to the policy.
func FitSquare(img image.Image, size int, policy ResizePolicy) (image.Image, Placement, error) {
	b := img.Bounds()
	placement := Placement{Policy: policy, Size: size, Width: b.Dx(), Height: b.Dy(), Scale: 1}
	if size <= 0 || b.Empty() {
		return nil, placement, errors.Errorf("cannot fit %dx%d image into %d square", b.Dx(), b.Dy(), size)
	}

	switch policy {
	case ResizeDirect, "":
		placement.Policy = ResizeDirect
		return resize.Resize(uint(size), uint(size), img, resize.Bilinear), placement, nil
	case ResizeLetterbox:
		scale := float64(size) / float64(b.Dx())
		if sy := float64(size) / float64(b.Dy()); sy < scale {
			scale = sy
		}
		nw, nh := int(float64(b.Dx())*scale+0.5), int(float64(b.Dy())*scale+0.5)
		nw, nh = max(1, min(size, nw)), max(1, min(size, nh))
		padX, padY := (size-nw)/2, (size-nh)/2
		placement.Scale = scale
		placement.PadX, placement.PadY = float64(padX), float64(padY)

		resized := imaging.Resize(img, nw, nh, imaging.Linear)
		canvas := imaging.New(size, size, letterboxFill)
		return imaging.Paste(canvas, resized, image.Pt(padX, padY)), placement, nil
	default:
		return nil, placement, errors.Errorf("unknown resize policy %q", policy)
	}
}

// ResizeFrame resizes a whole camera frame, e.g. down to the analysis resolution, and returns it
// as RGBA.
func ResizeFrame(img image.Image, width, height int) *image.RGBA {
	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return ToRGBA(img)
	}
	return CloneRGBA(imaging.Resize(img, width, height, imaging.Linear))
}

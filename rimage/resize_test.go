package rimage

import (
	"image"
	"image/color"
	"testing"

	"go.viam.com/test"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func TestParseResizePolicy(t *testing.T) {
	p, err := ParseResizePolicy("letterbox")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p, test.ShouldEqual, ResizeLetterbox)
	p, err = ParseResizePolicy("")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p, test.ShouldEqual, ResizeDirect)
	_, err = ParseResizePolicy("crop")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestFitSquareDirect(t *testing.T) {
	img := solid(960, 540, color.RGBA{200, 10, 10, 255})
	out, placement, err := FitSquare(img, 416, ResizeDirect)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.Bounds().Dx(), test.ShouldEqual, 416)
	test.That(t, out.Bounds().Dy(), test.ShouldEqual, 416)

	x, y := placement.ToFrame(0.5, 0.5)
	test.That(t, x, test.ShouldAlmostEqual, 480)
	test.That(t, y, test.ShouldAlmostEqual, 270)
	w, h := placement.ToFrameLength(0.1, 0.2)
	test.That(t, w, test.ShouldAlmostEqual, 96)
	test.That(t, h, test.ShouldAlmostEqual, 108)
}

func TestFitSquareLetterbox(t *testing.T) {
	img := solid(800, 400, color.RGBA{200, 10, 10, 255})
	out, placement, err := FitSquare(img, 400, ResizeLetterbox)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.Bounds().Dx(), test.ShouldEqual, 400)
	test.That(t, out.Bounds().Dy(), test.ShouldEqual, 400)
	test.That(t, placement.Scale, test.ShouldAlmostEqual, 0.5)
	test.That(t, placement.PadX, test.ShouldEqual, 0)
	test.That(t, placement.PadY, test.ShouldEqual, 100)

	// padding is grey, the frame is centred.
	r, g, b, _ := out.At(200, 10).RGBA()
	test.That(t, []uint32{r >> 8, g >> 8, b >> 8}, test.ShouldResemble, []uint32{114, 114, 114})
	r, _, _, _ = out.At(200, 200).RGBA()
	test.That(t, r>>8, test.ShouldAlmostEqual, 200, 1)

	// the centre of the canvas is the centre of the frame.
	x, y := placement.ToFrame(0.5, 0.5)
	test.That(t, x, test.ShouldAlmostEqual, 400)
	test.That(t, y, test.ShouldAlmostEqual, 200)
	// the top of the frame sits at the padding.
	_, y = placement.ToFrame(0, 0.25)
	test.That(t, y, test.ShouldAlmostEqual, 0)
	w, h := placement.ToFrameLength(0.5, 0.25)
	test.That(t, w, test.ShouldAlmostEqual, 400)
	test.That(t, h, test.ShouldAlmostEqual, 200)
}

func TestFitSquareInvalid(t *testing.T) {
	_, _, err := FitSquare(image.NewRGBA(image.Rect(0, 0, 0, 10)), 416, ResizeDirect)
	test.That(t, err, test.ShouldNotBeNil)
	_, _, err = FitSquare(solid(4, 4, color.RGBA{}), 0, ResizeDirect)
	test.That(t, err, test.ShouldNotBeNil)
	_, _, err = FitSquare(solid(4, 4, color.RGBA{}), 4, ResizePolicy("crop"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestResizeFrame(t *testing.T) {
	img := solid(1920, 1080, color.RGBA{1, 2, 3, 255})
	out := ResizeFrame(img, 960, 540)
	test.That(t, out.Bounds(), test.ShouldResemble, image.Rect(0, 0, 960, 540))

	same := solid(960, 540, color.RGBA{1, 2, 3, 255})
	test.That(t, ResizeFrame(same, 960, 540), test.ShouldEqual, same)
}

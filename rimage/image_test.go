package rimage

import (
	"image"
	"image/color"
	"testing"

	"go.viam.com/test"
)

func TestToRGBA(t *testing.T) {
	rgba := solid(4, 3, color.RGBA{9, 8, 7, 255})
	test.That(t, ToRGBA(rgba), test.ShouldEqual, rgba)

	ycbcr := image.NewYCbCr(image.Rect(0, 0, 4, 3), image.YCbCrSubsampleRatio420)
	converted := ToRGBA(ycbcr)
	test.That(t, converted.Bounds(), test.ShouldResemble, image.Rect(0, 0, 4, 3))

	// sub-images are re-anchored at the origin.
	sub := rgba.SubImage(image.Rect(1, 1, 3, 3))
	test.That(t, ToRGBA(sub).Bounds(), test.ShouldResemble, image.Rect(0, 0, 2, 2))
}

func TestCloneRGBA(t *testing.T) {
	orig := solid(2, 2, color.RGBA{9, 8, 7, 255})
	clone := CloneRGBA(orig)
	clone.Pix[0] = 0
	test.That(t, orig.Pix[0], test.ShouldEqual, 9)
	test.That(t, IsEmpty(clone), test.ShouldBeFalse)
	test.That(t, IsEmpty(nil), test.ShouldBeTrue)
	test.That(t, IsEmpty(image.NewRGBA(image.Rect(0, 0, 0, 0))), test.ShouldBeTrue)
}

package objectdetection

import (
	"image"
	"testing"

	"go.viam.com/test"
)

func TestPostprocessors(t *testing.T) {
	dets := []Detection{
		NewDetection(image.Rect(0, 0, 10, 10), 0.2, "person"),
		NewDetection(image.Rect(0, 0, 30, 30), 0.3, "person"),
		NewDetection(image.Rect(0, 0, 5, 5), 0.9, "dog"),
	}

	test.That(t, NewAreaFilter(100)(dets), test.ShouldResemble, dets[:2])
	test.That(t, NewAreaFilter(100.5)(dets), test.ShouldResemble, dets[1:2])
	test.That(t, NewAreaFilter(0)(dets), test.ShouldHaveLength, 3)
	test.That(t, NewLabelFilter("person")(dets), test.ShouldResemble, dets[:2])
	test.That(t, NewLabelFilter("cat")(dets), test.ShouldBeEmpty)

	strong := NewFilter(func(d Detection) bool { return d.Score() > 0.25 })
	test.That(t, strong(dets), test.ShouldResemble, dets[1:])
	test.That(t, strong(nil), test.ShouldBeEmpty)
}

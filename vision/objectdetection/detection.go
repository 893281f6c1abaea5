// Package objectdetection defines detections, the filters applied to them and how they are
// drawn onto frames.
package objectdetection

import (
	"fmt"
	"image"

	"gonum.org/v1/gonum/spatial/r2"
)

// Detection is a box found in one frame. Detections are immutable; their index within the
// slice returned for a frame is their identity for that frame only.
type Detection interface {
	BoundingBox() *image.Rectangle
	Score() float64
	Label() string
	// Centroid is the centre of the bounding box, the position used for distance analysis.
	Centroid() r2.Vec
}

// NewDetection creates a simple 2D detection. The box is canonicalized, so the centroid always
// lies within it.
func NewDetection(boundingBox image.Rectangle, score float64, label string) Detection {
	return &detection2D{boundingBox.Canon(), score, label}
}

// detection2D is a bounding box around an object in an image.
type detection2D struct {
	boundingBox image.Rectangle
	score       float64
	label       string
}

// BoundingBox returns a bounding box around the detected object.
func (d *detection2D) BoundingBox() *image.Rectangle {
	bb := d.boundingBox
	return &bb
}

// Score returns a confidence score of the detection between 0.0 and 1.0.
func (d *detection2D) Score() float64 {
	return d.score
}

// Label returns the class label of the object in the bounding box.
func (d *detection2D) Label() string {
	return d.label
}

// Centroid returns the centre of the bounding box.
func (d *detection2D) Centroid() r2.Vec {
	return BoxCentroid(d.boundingBox)
}

// String turns the detection into a string.
func (d *detection2D) String() string {
	return fmt.Sprintf("Label: %s, Score: %.2f, Box: %v", d.label, d.score, d.boundingBox)
}

// BoxCentroid returns the centre point of a rectangle.
func BoxCentroid(r image.Rectangle) r2.Vec {
	box := r2.Box{
		Min: r2.Vec{X: float64(r.Min.X), Y: float64(r.Min.Y)},
		Max: r2.Vec{X: float64(r.Max.X), Y: float64(r.Max.Y)},
	}
	return box.Center()
}

// IoU returns the intersection over union of two boxes, 0 when both are empty.
func IoU(a, b image.Rectangle) float64 {
	inter := area(a.Intersect(b))
	union := area(a) + area(b) - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func area(r image.Rectangle) float64 {
	if r.Empty() {
		return 0
	}
	return float64(r.Dx()) * float64(r.Dy())
}

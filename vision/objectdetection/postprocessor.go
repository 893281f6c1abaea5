package objectdetection

import "github.com/samber/lo"

// Postprocessor filters or rewrites the detections of one frame.
type Postprocessor func([]Detection) []Detection

// NewFilter returns a Postprocessor keeping the detections keep accepts, in order.
func NewFilter(keep func(Detection) bool) Postprocessor {
	return func(in []Detection) []Detection {
		return lo.Filter(in, func(d Detection, _ int) bool { return keep(d) })
	}
}

// NewAreaFilter drops detections whose box covers fewer than area square pixels.
func NewAreaFilter(area float64) Postprocessor {
	return NewFilter(func(d Detection) bool {
		box := d.BoundingBox()
		return float64(box.Dx()*box.Dy()) >= area
	})
}

// NewLabelFilter keeps the detections carrying label.
func NewLabelFilter(label string) Postprocessor {
	return NewFilter(func(d Detection) bool { return d.Label() == label })
}

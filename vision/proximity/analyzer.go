package proximity

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/sodistec/sodistec/vision/objectdetection"
)

// Analyzer classifies the detections of a frame. It holds no per-frame state and may be shared.
type Analyzer struct {
	mode Mode
}

// NewAnalyzer returns an Analyzer working in the given mode.
func NewAnalyzer(mode Mode) (*Analyzer, error) {
	if _, err := ParseMode(string(mode)); err != nil {
		return nil, err
	}
	if mode == "" {
		mode = ModeBand
	}
	return &Analyzer{mode: mode}, nil
}

// Mode returns the mode the analyzer was built with.
func (a *Analyzer) Mode() Mode {
	return a.mode
}

// DistanceMatrix returns the Euclidean distances between every pair of points.
func DistanceMatrix(points []r2.Vec) *mat.SymDense {
	n := len(points)
	if n == 0 {
		return &mat.SymDense{}
	}
	dist := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			dist.SetSym(i, j, r2.Norm(r2.Sub(points[i], points[j])))
		}
	}
	return dist
}

// Analyze returns the violation classification of dets. Distances are compared strictly, so a
// pair exactly MinDistance apart is not serious.
func (a *Analyzer) Analyze(dets []objectdetection.Detection, th Thresholds) Classification {
	serious := map[int]struct{}{}
	abnormal := map[int]struct{}{}
	if len(dets) < 2 {
		return newClassification(serious, abnormal)
	}

	centroids := make([]r2.Vec, len(dets))
	for i, d := range dets {
		centroids[i] = d.Centroid()
	}
	dist := DistanceMatrix(centroids)

	for i := 0; i < len(dets); i++ {
		for j := i + 1; j < len(dets); j++ {
			d := dist.At(i, j)
			switch a.mode {
			case ModeDepth:
				if d < th.MinDistance && depthDelta(dets[i], dets[j]) <= th.MaxDepthDelta {
					serious[i], serious[j] = struct{}{}, struct{}{}
				}
			default:
				if d < th.MinDistance {
					serious[i], serious[j] = struct{}{}, struct{}{}
				} else if d < th.MaxDistance {
					abnormal[i], abnormal[j] = struct{}{}, struct{}{}
				}
			}
		}
	}
	return newClassification(serious, abnormal)
}

// depthDelta is the relative difference of the two box heights, used as a cue for how far apart
// the two people stand from the camera.
func depthDelta(a, b objectdetection.Detection) float64 {
	ha, hb := float64(a.BoundingBox().Dy()), float64(b.BoundingBox().Dy())
	tallest := math.Max(ha, hb)
	if tallest <= 0 {
		return 0
	}
	return math.Abs(ha-hb) / tallest
}

// Package proximity classifies pairs of detected people by how close their centroids are in the
// image plane.
package proximity

import (
	"strings"

	"github.com/pkg/errors"
)

// Mode selects how a pair of detections is judged.
type Mode string

const (
	// ModeBand flags pairs closer than MinDistance as serious and pairs closer than MaxDistance as
	// abnormal.
	ModeBand Mode = "band"
	// ModeDepth flags pairs closer than MinDistance as serious when both people stand at a
	// similar depth, judged by the relative difference of their box heights.
	ModeDepth Mode = "depth"
)

// ParseMode returns the Mode named by s. An empty string selects ModeBand.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(s)) {
	case "", ModeBand:
		return ModeBand, nil
	case ModeDepth:
		return ModeDepth, nil
	default:
		return "", errors.Errorf("unknown proximity mode %q, expected %q or %q", s, ModeBand, ModeDepth)
	}
}

// Thresholds is a snapshot of the distance thresholds used to analyze one frame. Distances are in
// pixels of the analyzed frame.
type Thresholds struct {
	MinDistance float64
	// MaxDistance is only used in band mode.
	MaxDistance float64
	// MaxDepthDelta is only used in depth mode.
	MaxDepthDelta float64
}

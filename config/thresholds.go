package config

import (
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"github.com/sodistec/sodistec/vision/proximity"
)

// LiveThresholds holds the distance thresholds of one pipeline. They may be written from any
// goroutine and take effect on the next frame; readers take a Snapshot once per frame.
type LiveThresholds struct {
	minDistance   *atomic.Float64
	maxDistance   *atomic.Float64
	maxDepthDelta *atomic.Float64
}

// NewLiveThresholds returns thresholds initialized to the given values.
func NewLiveThresholds(initial proximity.Thresholds) (*LiveThresholds, error) {
	if initial.MinDistance < 0 || initial.MaxDistance < 0 || initial.MaxDepthDelta < 0 {
		return nil, NewConfigError("proximity", errors.Errorf("thresholds cannot be negative: %+v", initial))
	}
	return &LiveThresholds{
		minDistance:   atomic.NewFloat64(initial.MinDistance),
		maxDistance:   atomic.NewFloat64(initial.MaxDistance),
		maxDepthDelta: atomic.NewFloat64(initial.MaxDepthDelta),
	}, nil
}

// SetMinDistance changes the serious violation threshold.
func (lt *LiveThresholds) SetMinDistance(v float64) error {
	if v < 0 {
		return NewConfigError("proximity.min_distance", errors.Errorf("cannot be negative, got %v", v))
	}
	lt.minDistance.Store(v)
	return nil
}

// SetMaxDistance changes the upper bound of the abnormal band.
func (lt *LiveThresholds) SetMaxDistance(v float64) error {
	if v < 0 {
		return NewConfigError("proximity.max_distance", errors.Errorf("cannot be negative, got %v", v))
	}
	lt.maxDistance.Store(v)
	return nil
}

// Update applies the values of a re-read config. All three are checked before any is stored, so
// a rejected update leaves the thresholds as they were.
func (lt *LiveThresholds) Update(th proximity.Thresholds) error {
	for _, field := range []struct {
		name  string
		value float64
	}{
		{"proximity.min_distance", th.MinDistance},
		{"proximity.max_distance", th.MaxDistance},
		{"proximity.max_depth_delta", th.MaxDepthDelta},
	} {
		if field.value < 0 {
			return NewConfigError(field.name, errors.Errorf("cannot be negative, got %v", field.value))
		}
	}
	lt.minDistance.Store(th.MinDistance)
	lt.maxDistance.Store(th.MaxDistance)
	lt.maxDepthDelta.Store(th.MaxDepthDelta)
	return nil
}

// Snapshot returns the current values. Each field is read atomically, so a value is never torn,
// but a concurrent writer may be observed on the next frame only.
func (lt *LiveThresholds) Snapshot() proximity.Thresholds {
	return proximity.Thresholds{
		MinDistance:   lt.minDistance.Load(),
		MaxDistance:   lt.maxDistance.Load(),
		MaxDepthDelta: lt.maxDepthDelta.Load(),
	}
}

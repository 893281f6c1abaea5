package distancing

import (
	"sort"
	"sync"

	"github.com/montanaflynn/stats"
	"github.com/samber/lo"

	"github.com/sodistec/sodistec/utils"
)

// latencySamples is how many recent processing times are kept per camera.
const latencySamples = 256

// CameraSummary aggregates the events of one camera.
type CameraSummary struct {
	Camera        string
	Frames        int
	Warnings      int
	MaxPeople     int
	MaxSerious    int
	MaxAbnormal   int
	SeriousFrames int
	MeanLatencyMS float64
	P95LatencyMS  float64
	MaxLatencyMS  float64
	Stopped       bool
	StopErr       error
}

type cameraStats struct {
	summary CameraSummary
	latency *utils.RollingWindow
}

// Stats is an EventSink that keeps running totals per camera, e.g. for an exit summary.
type Stats struct {
	mu      sync.Mutex
	cameras map[string]*cameraStats
}

// NewStats returns an empty Stats.
func NewStats() *Stats {
	return &Stats{cameras: map[string]*cameraStats{}}
}

func (s *Stats) get(cam CameraHandle) *cameraStats {
	cs, ok := s.cameras[cam.Name]
	if !ok {
		cs = &cameraStats{
			summary: CameraSummary{Camera: cam.Name},
			latency: utils.NewRollingWindow(latencySamples),
		}
		s.cameras[cam.Name] = cs
	}
	return cs
}

// FrameReady counts the frame and records its processing time.
func (s *Stats) FrameReady(cam CameraHandle, frame *AnnotatedFrame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs := s.get(cam)
	cs.summary.Frames++
	if frame.Classification.SeriousCount() > 0 {
		cs.summary.SeriousFrames++
	}
	cs.latency.Add(float64(frame.ProcessingTime.Microseconds()) / 1000)
}

// PeopleCount tracks the maximum.
func (s *Stats) PeopleCount(cam CameraHandle, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs := s.get(cam)
	cs.summary.MaxPeople = max(cs.summary.MaxPeople, n)
}

// SeriousViolationCount tracks the maximum.
func (s *Stats) SeriousViolationCount(cam CameraHandle, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs := s.get(cam)
	cs.summary.MaxSerious = max(cs.summary.MaxSerious, n)
}

// ViolationCount tracks the maximum.
func (s *Stats) ViolationCount(cam CameraHandle, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs := s.get(cam)
	cs.summary.MaxAbnormal = max(cs.summary.MaxAbnormal, n)
}

// Warning counts the warning.
func (s *Stats) Warning(cam CameraHandle, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.get(cam).summary.Warnings++
}

// Stopped records how the camera ended.
func (s *Stats) Stopped(cam CameraHandle, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs := s.get(cam)
	cs.summary.Stopped = true
	cs.summary.StopErr = err
}

// Summaries returns a summary per camera, sorted by camera name. Latency figures cover the most
// recent frames only.
func (s *Stats) Summaries() []CameraSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := lo.Keys(s.cameras)
	sort.Strings(names)
	out := make([]CameraSummary, 0, len(names))
	for _, name := range names {
		cs := s.cameras[name]
		summary := cs.summary
		if values := cs.latency.Values(); len(values) > 0 {
			// errors are only returned for empty input.
			summary.MeanLatencyMS, _ = stats.Mean(values)
			summary.P95LatencyMS, _ = stats.Percentile(values, 95)
			summary.MaxLatencyMS, _ = stats.Max(values)
		}
		out = append(out, summary)
	}
	return out
}

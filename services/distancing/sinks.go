package distancing

import (
	"sync"

	"github.com/sodistec/sodistec/logging"
)

// Sinks fans every event out to each sink in order.
type Sinks []EventSink

// FrameReady forwards to every sink.
func (s Sinks) FrameReady(cam CameraHandle, frame *AnnotatedFrame) {
	for _, sink := range s {
		sink.FrameReady(cam, frame)
	}
}

// PeopleCount forwards to every sink.
func (s Sinks) PeopleCount(cam CameraHandle, n int) {
	for _, sink := range s {
		sink.PeopleCount(cam, n)
	}
}

// SeriousViolationCount forwards to every sink.
func (s Sinks) SeriousViolationCount(cam CameraHandle, n int) {
	for _, sink := range s {
		sink.SeriousViolationCount(cam, n)
	}
}

// ViolationCount forwards to every sink.
func (s Sinks) ViolationCount(cam CameraHandle, n int) {
	for _, sink := range s {
		sink.ViolationCount(cam, n)
	}
}

// Warning forwards to every sink.
func (s Sinks) Warning(cam CameraHandle, err error) {
	for _, sink := range s {
		sink.Warning(cam, err)
	}
}

// Stopped forwards to every sink.
func (s Sinks) Stopped(cam CameraHandle, err error) {
	for _, sink := range s {
		sink.Stopped(cam, err)
	}
}

// NopSink ignores every event. Embed it to implement only some of EventSink.
type NopSink struct{}

// FrameReady does nothing.
func (NopSink) FrameReady(CameraHandle, *AnnotatedFrame) {}

// PeopleCount does nothing.
func (NopSink) PeopleCount(CameraHandle, int) {}

// SeriousViolationCount does nothing.
func (NopSink) SeriousViolationCount(CameraHandle, int) {}

// ViolationCount does nothing.
func (NopSink) ViolationCount(CameraHandle, int) {}

// Warning does nothing.
func (NopSink) Warning(CameraHandle, error) {}

// Stopped does nothing.
func (NopSink) Stopped(CameraHandle, error) {}

type cameraCounts struct {
	people, serious, abnormal int
}

// LogSink logs count changes, warnings and stops. Unchanged counts are not repeated.
type LogSink struct {
	logger logging.Logger

	mu     sync.Mutex
	counts map[string]*cameraCounts
}

// NewLogSink returns a LogSink writing to a "events" sublogger.
func NewLogSink(logger logging.Logger) *LogSink {
	return &LogSink{logger: logger.Sublogger("events"), counts: map[string]*cameraCounts{}}
}

func (ls *LogSink) update(cam CameraHandle, field func(*cameraCounts) *int, n int) bool {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	c, ok := ls.counts[cam.Name]
	if !ok {
		c = &cameraCounts{}
		ls.counts[cam.Name] = c
	}
	p := field(c)
	if *p == n {
		return false
	}
	*p = n
	return true
}

// FrameReady logs per-frame timing at debug level.
func (ls *LogSink) FrameReady(cam CameraHandle, frame *AnnotatedFrame) {
	ls.logger.Debugw("frame processed", "camera", cam.Name, "seq", frame.Seq,
		"people", frame.People(), "took", frame.ProcessingTime)
}

// PeopleCount logs the number of people when it changes.
func (ls *LogSink) PeopleCount(cam CameraHandle, n int) {
	if ls.update(cam, func(c *cameraCounts) *int { return &c.people }, n) {
		ls.logger.Infow("people count changed", "camera", cam.Name, "people", n)
	}
}

// SeriousViolationCount logs serious violations when the count changes.
func (ls *LogSink) SeriousViolationCount(cam CameraHandle, n int) {
	if ls.update(cam, func(c *cameraCounts) *int { return &c.serious }, n) {
		ls.logger.Infow("serious violations changed", "camera", cam.Name, "serious", n)
	}
}

// ViolationCount logs abnormal violations when the count changes.
func (ls *LogSink) ViolationCount(cam CameraHandle, n int) {
	if ls.update(cam, func(c *cameraCounts) *int { return &c.abnormal }, n) {
		ls.logger.Infow("abnormal violations changed", "camera", cam.Name, "abnormal", n)
	}
}

// Warning logs a recoverable camera problem.
func (ls *LogSink) Warning(cam CameraHandle, err error) {
	ls.logger.Warnw("camera warning", "camera", cam.Name, "error", err)
}

// Stopped logs the end of a camera.
func (ls *LogSink) Stopped(cam CameraHandle, err error) {
	if err != nil {
		ls.logger.Errorw("camera stopped", "camera", cam.Name, "error", err)
		return
	}
	ls.logger.Infow("camera stopped", "camera", cam.Name)
}

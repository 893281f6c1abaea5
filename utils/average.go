package utils

import "sync"

// RollingWindow keeps the most recent samples of a measurement, e.g. per-frame latency in
// milliseconds. It is safe for concurrent use.
type RollingWindow struct {
	mu    sync.Mutex
	data  []float64
	pos   int
	count int
}

// NewRollingWindow returns a window holding at most numSamples values.
func NewRollingWindow(numSamples int) *RollingWindow {
	if numSamples < 1 {
		numSamples = 1
	}
	return &RollingWindow{data: make([]float64, numSamples)}
}

// NumSamples is the capacity of the window.
func (rw *RollingWindow) NumSamples() int {
	return len(rw.data)
}

// Add records a sample, evicting the oldest one when the window is full.
func (rw *RollingWindow) Add(x float64) {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	rw.data[rw.pos] = x
	rw.pos++
	if rw.pos >= len(rw.data) {
		rw.pos = 0
	}
	if rw.count < len(rw.data) {
		rw.count++
	}
}

// Values returns a copy of the samples currently held, oldest first.
func (rw *RollingWindow) Values() []float64 {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	out := make([]float64, 0, rw.count)
	start := rw.pos - rw.count
	if start < 0 {
		start += len(rw.data)
	}
	for i := 0; i < rw.count; i++ {
		out = append(out, rw.data[(start+i)%len(rw.data)])
	}
	return out
}

// Average is the mean of the held samples, or 0 when empty.
func (rw *RollingWindow) Average() float64 {
	values := rw.Values()
	if len(values) == 0 {
		return 0
	}
	sum := 0.
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

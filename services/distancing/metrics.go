package distancing

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsSink exports pipeline events as prometheus metrics labelled by camera name.
type MetricsSink struct {
	frames         *prometheus.CounterVec
	warnings       *prometheus.CounterVec
	stops          *prometheus.CounterVec
	people         *prometheus.GaugeVec
	serious        *prometheus.GaugeVec
	abnormal       *prometheus.GaugeVec
	processingTime *prometheus.HistogramVec
}

// NewMetricsSink creates the collectors and registers them with reg.
func NewMetricsSink(reg prometheus.Registerer) (*MetricsSink, error) {
	labels := []string{"camera"}
	ms := &MetricsSink{
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sodistec_frames_processed_total",
			Help: "Frames analysed.",
		}, labels),
		warnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sodistec_warnings_total",
			Help: "Frames skipped or reconnects attempted because of a recoverable error.",
		}, labels),
		stops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sodistec_camera_stops_total",
			Help: "Camera pipeline stops, by outcome.",
		}, []string{"camera", "outcome"}),
		people: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sodistec_people",
			Help: "People detected in the latest frame.",
		}, labels),
		serious: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sodistec_serious_violations",
			Help: "People closer than min_distance to someone in the latest frame.",
		}, labels),
		abnormal: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sodistec_abnormal_violations",
			Help: "People within the abnormal band in the latest frame.",
		}, labels),
		processingTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sodistec_frame_processing_seconds",
			Help:    "Time from frame read to annotated frame.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
		}, labels),
	}
	for _, c := range []prometheus.Collector{
		ms.frames, ms.warnings, ms.stops, ms.people, ms.serious, ms.abnormal, ms.processingTime,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return ms, nil
}

// FrameReady counts the frame and observes its processing time.
func (ms *MetricsSink) FrameReady(cam CameraHandle, frame *AnnotatedFrame) {
	ms.frames.WithLabelValues(cam.Name).Inc()
	ms.processingTime.WithLabelValues(cam.Name).Observe(frame.ProcessingTime.Seconds())
}

// PeopleCount sets the people gauge.
func (ms *MetricsSink) PeopleCount(cam CameraHandle, n int) {
	ms.people.WithLabelValues(cam.Name).Set(float64(n))
}

// SeriousViolationCount sets the serious violations gauge.
func (ms *MetricsSink) SeriousViolationCount(cam CameraHandle, n int) {
	ms.serious.WithLabelValues(cam.Name).Set(float64(n))
}

// ViolationCount sets the abnormal violations gauge.
func (ms *MetricsSink) ViolationCount(cam CameraHandle, n int) {
	ms.abnormal.WithLabelValues(cam.Name).Set(float64(n))
}

// Warning counts the warning.
func (ms *MetricsSink) Warning(cam CameraHandle, err error) {
	ms.warnings.WithLabelValues(cam.Name).Inc()
}

// Stopped counts the stop by outcome.
func (ms *MetricsSink) Stopped(cam CameraHandle, err error) {
	outcome := "clean"
	if err != nil {
		outcome = "error"
	}
	ms.stops.WithLabelValues(cam.Name, outcome).Inc()
}

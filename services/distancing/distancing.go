// Package distancing runs the social distancing pipeline: frames are read from a camera, people
// are detected, pairwise distances are classified and annotated frames plus counters are handed
// to subscribers.
package distancing

import (
	"image"
	"time"

	"github.com/google/uuid"

	"github.com/sodistec/sodistec/components/camera"
	"github.com/sodistec/sodistec/config"
	"github.com/sodistec/sodistec/vision/objectdetection"
	"github.com/sodistec/sodistec/vision/proximity"
)

// ConfigError is a fatal startup error caused by an invalid configuration.
type ConfigError = config.ConfigError

// CameraHandle identifies one camera pipeline. Every event carries the handle of the camera it
// came from.
type CameraHandle struct {
	ID   uuid.UUID
	Name string
}

// NewCameraHandle returns a handle with a fresh random ID.
func NewCameraHandle(name string) CameraHandle {
	return CameraHandle{ID: uuid.New(), Name: name}
}

func (h CameraHandle) String() string {
	return h.Name
}

// AnnotatedFrame is the result of processing one frame. Annotated is a new image; the frame's own
// Image is the analysed (possibly resized) frame and is never drawn on.
type AnnotatedFrame struct {
	camera.Frame
	Annotated      *image.RGBA
	Detections     []objectdetection.Detection
	Classification proximity.Classification
	Thresholds     proximity.Thresholds
	ProcessingTime time.Duration
}

// People returns the number of detected people.
func (af *AnnotatedFrame) People() int {
	return len(af.Detections)
}

// An EventSink receives the output of one or more pipelines. Calls for a single camera are
// sequential and in frame order; calls for different cameras may be concurrent, so shared sinks
// must be safe for concurrent use. Sinks must not block for long: the pipeline waits for them.
type EventSink interface {
	FrameReady(cam CameraHandle, frame *AnnotatedFrame)
	PeopleCount(cam CameraHandle, n int)
	SeriousViolationCount(cam CameraHandle, n int)
	// ViolationCount reports the abnormal band. It is always zero in depth mode.
	ViolationCount(cam CameraHandle, n int)
	Warning(cam CameraHandle, err error)
	// Stopped is the last event of a camera. err is nil on a clean stop.
	Stopped(cam CameraHandle, err error)
}

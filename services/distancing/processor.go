package distancing

import (
	"context"
	"fmt"
	"image"

	"github.com/pkg/errors"

	"github.com/sodistec/sodistec/components/camera"
	"github.com/sodistec/sodistec/config"
	"github.com/sodistec/sodistec/rimage"
	"github.com/sodistec/sodistec/vision/objectdetection"
	"github.com/sodistec/sodistec/vision/persondetector"
	"github.com/sodistec/sodistec/vision/proximity"
)

// A Processor turns one frame into an AnnotatedFrame: resize, detect, suppress overlapping
// boxes, classify distances and draw. It keeps no state between frames other than the live
// thresholds, so it also serves one-off detection on still images.
type Processor struct {
	conf     PipelineConfig
	detect   objectdetection.Detector
	analyzer *proximity.Analyzer
}

// NewProcessor builds the detection chain around detector.
func NewProcessor(conf PipelineConfig, detector *persondetector.Detector) (*Processor, error) {
	if detector == nil {
		return nil, errors.New("processor needs a detector")
	}
	if conf.Thresholds == nil {
		return nil, errors.New("processor needs thresholds")
	}
	analyzer, err := proximity.NewAnalyzer(conf.Mode)
	if err != nil {
		return nil, config.NewConfigError("proximity.mode", err)
	}
	var postprocessors []objectdetection.Postprocessor
	if conf.DetectClass != "" {
		postprocessors = append(postprocessors, objectdetection.NewLabelFilter(conf.DetectClass))
	}
	if conf.MinBoxArea > 0 {
		postprocessors = append(postprocessors, objectdetection.NewAreaFilter(conf.MinBoxArea))
	}
	postprocessors = append(postprocessors, objectdetection.NewNMSFilter(conf.NMSThreshold))
	detect, err := objectdetection.Build(nil, detector.ObjectDetector(), postprocessors...)
	if err != nil {
		return nil, err
	}
	return &Processor{conf: conf, detect: detect, analyzer: analyzer}, nil
}

// Thresholds returns the live thresholds read on every frame.
func (pr *Processor) Thresholds() *config.LiveThresholds {
	return pr.conf.Thresholds
}

// Process annotates one frame. The thresholds are read once, so a concurrent update never
// applies to half a frame. ProcessingTime is left for the caller to fill.
func (pr *Processor) Process(ctx context.Context, frame camera.Frame) (*AnnotatedFrame, error) {
	if pr.conf.ResizeWidth > 0 && pr.conf.ResizeHeight > 0 && frame.Image != nil {
		frame.Image = rimage.ResizeFrame(frame.Image, pr.conf.ResizeWidth, pr.conf.ResizeHeight)
	}

	var img image.Image = frame.Image
	if frame.Image == nil {
		img = image.NewRGBA(image.Rectangle{})
	}
	dets, err := pr.detect(ctx, img)
	if err != nil {
		return nil, err
	}

	thresholds := pr.conf.Thresholds.Snapshot()
	classification := pr.analyzer.Analyze(dets, thresholds)

	annotated, err := objectdetection.Overlay(frame.Image, dets, objectdetection.OverlayOptions{
		Palette: pr.conf.Palette,
		Marker:  classification,
		Lines:   pr.hud(len(dets), classification, thresholds),
	})
	if err != nil {
		return nil, err
	}
	return &AnnotatedFrame{
		Frame:          frame,
		Annotated:      annotated,
		Detections:     dets,
		Classification: classification,
		Thresholds:     thresholds,
	}, nil
}

func (pr *Processor) hud(people int, c proximity.Classification, th proximity.Thresholds) []string {
	if !pr.conf.DrawCounters {
		return nil
	}
	lines := []string{
		fmt.Sprintf("People: %d", people),
		fmt.Sprintf("Serious: %d", c.SeriousCount()),
	}
	if pr.conf.Mode == proximity.ModeBand {
		lines = append(lines, fmt.Sprintf("Abnormal: %d", c.AbnormalCount()))
	}
	return append(lines, fmt.Sprintf("Safe distance: %.0f px", th.MinDistance))
}

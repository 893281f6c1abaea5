// Package persondetector turns the raw output of a YOLO style network into candidate person
// detections in frame coordinates.
package persondetector

import (
	"context"
	"image"
	"sort"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/sodistec/sodistec/config"
	"github.com/sodistec/sodistec/logging"
	"github.com/sodistec/sodistec/ml"
	"github.com/sodistec/sodistec/rimage"
	"github.com/sodistec/sodistec/vision/objectdetection"
)

// rowHeader is the number of leading values of an output row: cx, cy, w, h, objectness.
const rowHeader = 5

// InferenceError is a per-frame failure to run or decode the network. The frame is skipped.
type InferenceError struct {
	Err error
}

func (e *InferenceError) Error() string {
	return "inference failed: " + e.Err.Error()
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}

func newInferenceError(err error) error {
	return &InferenceError{Err: err}
}

// IsInferenceError returns whether err is, or wraps, an InferenceError.
func IsInferenceError(err error) bool {
	var infErr *InferenceError
	return errors.As(err, &infErr)
}

// RawCandidate is one network output row that passed the class and confidence checks, in frame
// coordinates. It is an objectdetection.Detection.
type RawCandidate struct {
	ClassScores []float32
	ClassID     int
	Box         image.Rectangle
	Center      r2.Vec
	ClassLabel  string
}

// BoundingBox returns the candidate box.
func (c RawCandidate) BoundingBox() *image.Rectangle {
	box := c.Box
	return &box
}

// Score returns the score of the winning class.
func (c RawCandidate) Score() float64 {
	return float64(c.ClassScores[c.ClassID])
}

// Label returns the winning class label.
func (c RawCandidate) Label() string {
	return c.ClassLabel
}

// Centroid returns the centre of the box.
func (c RawCandidate) Centroid() r2.Vec {
	return c.Center
}

// Detector runs a model on frames and keeps the rows of one class.
type Detector struct {
	model         ml.Model
	labels        []string
	classIndex    int
	inputSize     int
	policy        rimage.ResizePolicy
	minConfidence float64
	logger        logging.Logger
}

// New builds a Detector around an already loaded model. Class resolution happens here, once: a
// detect class missing from the label list is a configuration error.
func New(model ml.Model, conf config.DetectorConfig, logger logging.Logger) (*Detector, error) {
	labels := DefaultLabels()
	if conf.LabelsPath != "" {
		var err error
		labels, err = LoadLabels(conf.LabelsPath)
		if err != nil {
			return nil, config.NewConfigError("detector.labels_path", err)
		}
	}
	classIndex := lo.IndexOf(labels, conf.DetectClass)
	if classIndex < 0 {
		return nil, config.NewConfigError("detector.detect_class",
			errors.Errorf("class %q is not in the label list of %d classes", conf.DetectClass, len(labels)))
	}
	policy, err := rimage.ParseResizePolicy(conf.ResizePolicy)
	if err != nil {
		return nil, config.NewConfigError("detector.resize_policy", err)
	}
	if conf.InputSize <= 0 {
		return nil, config.NewConfigError("detector.input_size", errors.Errorf("must be positive, got %d", conf.InputSize))
	}
	logger.Debugw("person detector ready", "class", conf.DetectClass, "class_index", classIndex,
		"input_size", conf.InputSize, "resize_policy", policy)
	return &Detector{
		model:         model,
		labels:        labels,
		classIndex:    classIndex,
		inputSize:     conf.InputSize,
		policy:        policy,
		minConfidence: conf.MinConfidence,
		logger:        logger,
	}, nil
}

// Detect runs one forward pass over img and returns the rows whose best class is the detect class
// with a score strictly above the minimum confidence. Boxes are clipped to the frame; rows left
// with an empty box are dropped.
func (d *Detector) Detect(ctx context.Context, img image.Image) ([]RawCandidate, error) {
	if img == nil || rimage.IsEmpty(img) {
		return nil, newInferenceError(errors.New("frame has no pixels"))
	}
	bounds := img.Bounds()
	fitted, placement, err := rimage.FitSquare(img, d.inputSize, d.policy)
	if err != nil {
		return nil, newInferenceError(err)
	}
	outputs, err := d.model.Infer(ctx, ml.Tensors{ml.InputTensorName: ml.ImageToNCHW(fitted)})
	if err != nil {
		return nil, newInferenceError(err)
	}
	if len(outputs) == 0 {
		return nil, newInferenceError(errors.New("model returned no output tensors"))
	}

	// output layers are decoded in name order so candidate order is stable across frames.
	names := lo.Keys(outputs)
	sort.Strings(names)
	candidates := []RawCandidate{}
	for _, name := range names {
		out := outputs[name]
		shape := out.Shape()
		if len(shape) != 2 {
			return nil, newInferenceError(errors.Errorf("output %q must be 2D, got shape %v", name, shape))
		}
		rows, cols := shape[0], shape[1]
		if cols < rowHeader+len(d.labels) {
			return nil, newInferenceError(errors.Errorf(
				"output %q has %d columns, need %d for %d classes", name, cols, rowHeader+len(d.labels), len(d.labels)))
		}
		data, err := ml.ToFloat32Slice(out.Data())
		if err != nil {
			return nil, newInferenceError(err)
		}
		if len(data) < rows*cols {
			return nil, newInferenceError(errors.Errorf("output %q holds %d values, shape needs %d", name, len(data), rows*cols))
		}
		for r := 0; r < rows; r++ {
			if cand, ok := d.decodeRow(data[r*cols:(r+1)*cols], placement, bounds); ok {
				candidates = append(candidates, cand)
			}
		}
	}
	return candidates, nil
}

func (d *Detector) decodeRow(row []float32, placement rimage.Placement, bounds image.Rectangle) (RawCandidate, bool) {
	scores := row[rowHeader:]
	classID := argmax(scores)
	if classID != d.classIndex || scores[classID] <= float32(d.minConfidence) {
		return RawCandidate{}, false
	}

	cx, cy := placement.ToFrame(float64(row[0]), float64(row[1]))
	w, h := placement.ToFrameLength(float64(row[2]), float64(row[3]))
	x, y := int(cx-w/2), int(cy-h/2)
	box := image.Rect(x, y, x+int(w), y+int(h)).Add(bounds.Min).Intersect(bounds)
	if box.Dx() <= 0 || box.Dy() <= 0 {
		return RawCandidate{}, false
	}

	classScores := make([]float32, len(scores))
	copy(classScores, scores)
	label := ""
	if classID < len(d.labels) {
		label = d.labels[classID]
	}
	return RawCandidate{
		ClassScores: classScores,
		ClassID:     classID,
		Box:         box,
		Center:      objectdetection.BoxCentroid(box),
		ClassLabel:  label,
	}, true
}

// argmax returns the index of the first largest value.
func argmax(values []float32) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}

// ObjectDetector adapts Detect to the objectdetection pipeline.
func (d *Detector) ObjectDetector() objectdetection.Detector {
	return func(ctx context.Context, img image.Image) ([]objectdetection.Detection, error) {
		cands, err := d.Detect(ctx, img)
		if err != nil {
			return nil, err
		}
		dets := make([]objectdetection.Detection, len(cands))
		for i, c := range cands {
			dets[i] = c
		}
		return dets, nil
	}
}

// ClassIndex returns the resolved index of the detect class.
func (d *Detector) ClassIndex() int {
	return d.classIndex
}

// Close releases the model.
func (d *Detector) Close(ctx context.Context) error {
	return d.model.Close(ctx)
}

// Package fake provides a detection model that needs no weights. It always reports the same
// people, which is enough to run a pipeline end to end.
package fake

import (
	"context"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/sodistec/sodistec/config"
	"github.com/sodistec/sodistec/logging"
	"github.com/sodistec/sodistec/ml"
)

// Framework is the detector framework name of this package.
const Framework = "fake"

// NumClasses matches the COCO label set.
const NumClasses = 80

// OutputTensorName is the name of the single output tensor.
const OutputTensorName = "detections"

func init() {
	ml.RegisterFramework(Framework, func(ctx context.Context, conf config.DetectorConfig, logger logging.Logger) (ml.Model, error) {
		return NewModel(conf.InputSize), nil
	})
}

// A Row is one fake detection, normalized to the network input.
type Row struct {
	CX, CY, W, H float32
	ClassID      int
	Score        float32
}

// DefaultRows are two people standing close together, one person on their own and a low
// confidence dog.
var DefaultRows = []Row{
	{CX: 0.30, CY: 0.55, W: 0.08, H: 0.35, ClassID: 0, Score: 0.9},
	{CX: 0.36, CY: 0.55, W: 0.08, H: 0.33, ClassID: 0, Score: 0.85},
	{CX: 0.80, CY: 0.50, W: 0.08, H: 0.30, ClassID: 0, Score: 0.7},
	{CX: 0.55, CY: 0.80, W: 0.10, H: 0.10, ClassID: 16, Score: 0.2},
}

// Model returns the same rows for every input.
type Model struct {
	inputSize int
	rows      []Row
}

// NewModel returns a model producing DefaultRows.
func NewModel(inputSize int) *Model {
	return NewModelWithRows(inputSize, DefaultRows)
}

// NewModelWithRows returns a model producing rows.
func NewModelWithRows(inputSize int, rows []Row) *Model {
	return &Model{inputSize: inputSize, rows: rows}
}

// Infer returns one [rows, 5+NumClasses] tensor.
func (m *Model) Infer(ctx context.Context, tensors ml.Tensors) (ml.Tensors, error) {
	if _, ok := tensors[ml.InputTensorName]; !ok {
		return nil, errors.Errorf("no input tensor named %q", ml.InputTensorName)
	}
	const cols = 5 + NumClasses
	data := make([]float32, len(m.rows)*cols)
	for i, r := range m.rows {
		row := data[i*cols : (i+1)*cols]
		row[0], row[1], row[2], row[3], row[4] = r.CX, r.CY, r.W, r.H, r.Score
		if r.ClassID >= 0 && r.ClassID < NumClasses {
			row[5+r.ClassID] = r.Score
		}
	}
	return ml.Tensors{
		OutputTensorName: tensor.New(tensor.WithShape(len(m.rows), cols), tensor.WithBacking(data)),
	}, nil
}

// Metadata describes the fake input and output.
func (m *Model) Metadata(ctx context.Context) (ml.Metadata, error) {
	return ml.Metadata{
		ModelName: Framework,
		Inputs:    []ml.TensorInfo{{Name: ml.InputTensorName, DataType: "float32", Shape: []int{1, 3, m.inputSize, m.inputSize}}},
		Outputs:   []ml.TensorInfo{{Name: OutputTensorName, DataType: "float32", Shape: []int{len(m.rows), 5 + NumClasses}}},
	}, nil
}

// Close does nothing.
func (m *Model) Close(ctx context.Context) error {
	return nil
}

//go:build !no_cgo

// Package darknet runs darknet (YOLO) networks through OpenCV's dnn module.
package darknet

import (
	"context"
	"os"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gocv.io/x/gocv"
	"gorgonia.org/tensor"

	"github.com/sodistec/sodistec/config"
	"github.com/sodistec/sodistec/logging"
	"github.com/sodistec/sodistec/ml"
)

// Framework is the detector framework name of this package.
const Framework = "darknet"

func init() {
	ml.RegisterFramework(Framework, func(ctx context.Context, conf config.DetectorConfig, logger logging.Logger) (ml.Model, error) {
		return NewModel(ctx, conf, logger)
	})
}

// Model is a darknet network loaded from a cfg file and a weights file.
type Model struct {
	mu        sync.Mutex
	net       gocv.Net
	outNames  []string
	inputSize int
	logger    logging.Logger
}

// NewModel loads the network described by conf. Missing files are configuration errors.
func NewModel(ctx context.Context, conf config.DetectorConfig, logger logging.Logger) (*Model, error) {
	for _, f := range []struct {
		field, path string
	}{{"config_path", conf.ConfigPath}, {"weights_path", conf.WeightsPath}} {
		if _, err := os.Stat(f.path); err != nil {
			return nil, config.NewConfigError("detector."+f.field, errors.Wrap(err, "cannot read model file"))
		}
	}

	net := gocv.ReadNetFromDarknet(conf.ConfigPath, conf.WeightsPath)
	if net.Empty() {
		return nil, config.NewConfigError("detector.weights_path",
			errors.Errorf("cannot load darknet network from %q and %q", conf.ConfigPath, conf.WeightsPath))
	}
	if conf.UseAcceleratedInference {
		err := multierr.Combine(
			net.SetPreferableBackend(gocv.NetBackendCUDA),
			net.SetPreferableTarget(gocv.NetTargetCUDA),
		)
		if err != nil {
			logger.Warnw("cannot enable CUDA inference, falling back to the CPU", "error", err)
		} else {
			logger.Info("using CUDA for inference")
		}
	}

	m := &Model{net: net, inputSize: conf.InputSize, logger: logger}
	for _, id := range net.GetUnconnectedOutLayers() {
		layer := net.GetLayer(id)
		m.outNames = append(m.outNames, layer.GetName())
		if err := layer.Close(); err != nil {
			logger.Debugw("cannot close layer", "id", id, "error", err)
		}
	}
	if len(m.outNames) == 0 {
		return nil, multierr.Combine(
			config.NewConfigError("detector.config_path", errors.New("network has no output layers")),
			net.Close())
	}
	logger.Debugw("loaded darknet network", "outputs", m.outNames)
	return m, nil
}

// Infer runs one forward pass. The input must be the float32 "image" tensor of shape
// [1, 3, S, S]; there is one [rows, 5+classes] output tensor per output layer.
func (m *Model) Infer(ctx context.Context, tensors ml.Tensors) (ml.Tensors, error) {
	input, ok := tensors[ml.InputTensorName]
	if !ok {
		return nil, errors.Errorf("no input tensor named %q among [%s]", ml.InputTensorName, ml.TensorNames(tensors))
	}
	data, ok := input.Data().([]float32)
	if !ok {
		return nil, errors.Errorf("input tensor must hold float32 values, got %T", input.Data())
	}
	shape := input.Shape()
	if len(shape) != 4 || shape[0] != 1 || shape[1] != 3 {
		return nil, errors.Errorf("input tensor must have shape [1 3 H W], got %v", shape)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	blob := gocv.NewMatWithSizes([]int(shape), gocv.MatTypeCV32F)
	defer func() {
		if err := blob.Close(); err != nil {
			m.logger.Debugw("cannot close input blob", "error", err)
		}
	}()
	ptr, err := blob.DataPtrFloat32()
	if err != nil {
		return nil, errors.Wrap(err, "cannot access input blob")
	}
	copy(ptr, data)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.net.SetInput(blob, ""); err != nil {
		return nil, errors.Wrap(err, "cannot set network input")
	}
	outs := m.net.ForwardLayers(m.outNames)
	results := ml.Tensors{}
	var closeErr error
	for i, out := range outs {
		rows, cols := out.Rows(), out.Cols()
		values, err := out.DataPtrFloat32()
		if err != nil {
			closeErr = multierr.Combine(closeErr, err)
		} else {
			backing := make([]float32, rows*cols)
			copy(backing, values)
			results[m.outNames[i]] = tensor.New(tensor.WithShape(rows, cols), tensor.WithBacking(backing))
		}
		closeErr = multierr.Combine(closeErr, out.Close())
	}
	if closeErr != nil {
		return nil, errors.Wrap(closeErr, "cannot read network output")
	}
	return results, nil
}

// Metadata describes the network's input and output layers.
func (m *Model) Metadata(ctx context.Context) (ml.Metadata, error) {
	md := ml.Metadata{
		ModelName: Framework,
		Inputs: []ml.TensorInfo{{
			Name:     ml.InputTensorName,
			DataType: "float32",
			Shape:    []int{1, 3, m.inputSize, m.inputSize},
		}},
	}
	for _, name := range m.outNames {
		md.Outputs = append(md.Outputs, ml.TensorInfo{Name: name, DataType: "float32", Shape: []int{-1, -1}})
	}
	return md, nil
}

// Close releases the network.
func (m *Model) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.net.Close()
}

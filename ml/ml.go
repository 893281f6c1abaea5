// Package ml provides the model abstraction used to run a frozen object detection network.
package ml

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
	"gorgonia.org/tensor"
)

// Tensors are a map of tensor names to their data.
type Tensors map[string]*tensor.Dense

// TensorInfo describes one input or output tensor of a model.
type TensorInfo struct {
	Name     string
	DataType string
	// Shape uses -1 for dimensions only known at inference time.
	Shape []int
}

// Metadata describes a model's inputs and outputs.
type Metadata struct {
	ModelName string
	Inputs    []TensorInfo
	Outputs   []TensorInfo
}

// A Model runs one forward pass over its input tensors.
type Model interface {
	Infer(ctx context.Context, tensors Tensors) (Tensors, error)
	Metadata(ctx context.Context) (Metadata, error)
	Close(ctx context.Context) error
}

// InputTensorName is the name of the image tensor handed to detection models.
const InputTensorName = "image"

// number interface for converting between numbers.
type number interface {
	constraints.Integer | constraints.Float
}

// convertNumberSlice converts any number slice into another number slice.
func convertNumberSlice[T1, T2 number](t1 []T1) []T2 {
	t2 := make([]T2, len(t1))
	for i := range t1 {
		t2[i] = T2(t1[i])
	}
	return t2
}

// ToFloat32Slice returns the backing data of a numeric tensor as float32s.
func ToFloat32Slice(slice interface{}) ([]float32, error) {
	switch v := slice.(type) {
	case []float32:
		return v, nil
	case float32:
		return []float32{v}, nil
	case []float64:
		return convertNumberSlice[float64, float32](v), nil
	case []int:
		return convertNumberSlice[int, float32](v), nil
	case []int32:
		return convertNumberSlice[int32, float32](v), nil
	case []int64:
		return convertNumberSlice[int64, float32](v), nil
	case []uint8:
		return convertNumberSlice[uint8, float32](v), nil
	default:
		return nil, errors.Errorf("dont know how to convert slice of %T into a []float32", slice)
	}
}

// TensorNames returns all the names of the tensors, for error messages.
func TensorNames(t Tensors) string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	return strings.Join(names, ", ")
}

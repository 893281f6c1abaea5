package inject

import (
	"context"

	"github.com/sodistec/sodistec/ml"
)

// Model is an injected ml model.
type Model struct {
	ml.Model
	InferFunc    func(ctx context.Context, tensors ml.Tensors) (ml.Tensors, error)
	MetadataFunc func(ctx context.Context) (ml.Metadata, error)
	CloseFunc    func(ctx context.Context) error
}

// Infer calls the injected Infer or the real version.
func (m *Model) Infer(ctx context.Context, tensors ml.Tensors) (ml.Tensors, error) {
	if m.InferFunc == nil {
		return m.Model.Infer(ctx, tensors)
	}
	return m.InferFunc(ctx, tensors)
}

// Metadata calls the injected Metadata or the real version.
func (m *Model) Metadata(ctx context.Context) (ml.Metadata, error) {
	if m.MetadataFunc == nil {
		return m.Model.Metadata(ctx)
	}
	return m.MetadataFunc(ctx)
}

// Close calls the injected Close or the real version.
func (m *Model) Close(ctx context.Context) error {
	if m.CloseFunc == nil {
		if m.Model == nil {
			return nil
		}
		return m.Model.Close(ctx)
	}
	return m.CloseFunc(ctx)
}

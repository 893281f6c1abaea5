package inject

import (
	"context"

	"github.com/sodistec/sodistec/components/camera"
)

// FrameSource is an injected frame source.
type FrameSource struct {
	camera.FrameSource
	ReadFunc  func(ctx context.Context) (camera.Frame, error)
	CloseFunc func(ctx context.Context) error
}

// Read calls the injected Read or the real version.
func (fs *FrameSource) Read(ctx context.Context) (camera.Frame, error) {
	if fs.ReadFunc == nil {
		return fs.FrameSource.Read(ctx)
	}
	return fs.ReadFunc(ctx)
}

// Close calls the injected Close or the real version.
func (fs *FrameSource) Close(ctx context.Context) error {
	if fs.CloseFunc == nil {
		if fs.FrameSource == nil {
			return nil
		}
		return fs.FrameSource.Close(ctx)
	}
	return fs.CloseFunc(ctx)
}

// ReconnectingFrameSource is an injected frame source that can reconnect.
type ReconnectingFrameSource struct {
	FrameSource
	ReconnectFunc func(ctx context.Context) error
}

// Reconnect calls the injected Reconnect.
func (fs *ReconnectingFrameSource) Reconnect(ctx context.Context) error {
	if fs.ReconnectFunc == nil {
		return nil
	}
	return fs.ReconnectFunc(ctx)
}

package camera

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/sodistec/sodistec/config"
	"github.com/sodistec/sodistec/logging"
)

// A Constructor builds the reader for one camera from its configuration.
type Constructor func(ctx context.Context, conf config.CameraConfig, logger logging.Logger) (ImageReader, error)

// Registration describes a capture backend.
type Registration struct {
	Constructor Constructor
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Registration{}
)

// RegisterBackend registers a capture backend under name. It panics on a duplicate name.
func RegisterBackend(name string, reg Registration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := registry[name]; ok {
		panic(errors.Errorf("trying to register two camera backends with the same name %q", name))
	}
	if reg.Constructor == nil {
		panic(errors.Errorf("cannot register camera backend %q without a constructor", name))
	}
	registry[name] = reg
}

// LookupBackend returns the registration for name, if any.
func LookupBackend(name string) (Registration, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	reg, ok := registry[name]
	return reg, ok
}

// RegisteredBackends returns the sorted names of every registered backend.
func RegisteredBackends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := lo.Keys(registry)
	sort.Strings(names)
	return names
}

// NewFrameSource builds the FrameSource described by conf. Threaded capture wraps the backend in a
// LatestFrameSource.
func NewFrameSource(
	ctx context.Context,
	conf config.CameraConfig,
	clk clock.Clock,
	logger logging.Logger,
) (FrameSource, error) {
	path := fmt.Sprintf("cameras.%s", conf.Name)
	reg, ok := LookupBackend(conf.Backend)
	if !ok {
		return nil, config.NewConfigError(path, errors.Errorf("unknown backend %q, expected one of %v", conf.Backend, RegisteredBackends()))
	}
	reader, err := reg.Constructor(ctx, conf, logger)
	if err != nil {
		if config.IsConfigError(err) {
			return nil, err
		}
		return nil, errors.Wrapf(err, "cannot open camera %q", conf.Name)
	}
	src := FromReader(conf.Name, reader, clk)
	if !conf.ThreadedCapture {
		return src, nil
	}
	return Threaded(src, conf.ReadTimeout, clk, logger), nil
}

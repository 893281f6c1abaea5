package ml

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/sodistec/sodistec/config"
	"github.com/sodistec/sodistec/logging"
)

// A Constructor loads a model from the detector configuration. Missing or unreadable model files
// must be reported as a config.ConfigError.
type Constructor func(ctx context.Context, conf config.DetectorConfig, logger logging.Logger) (Model, error)

var (
	frameworksMu sync.RWMutex
	frameworks   = map[string]Constructor{}
)

// RegisterFramework registers a model framework under name. It panics on a duplicate name.
func RegisterFramework(name string, constructor Constructor) {
	frameworksMu.Lock()
	defer frameworksMu.Unlock()
	if _, ok := frameworks[name]; ok {
		panic(errors.Errorf("trying to register two model frameworks with the same name %q", name))
	}
	frameworks[name] = constructor
}

// RegisteredFrameworks returns the sorted names of every registered framework.
func RegisteredFrameworks() []string {
	frameworksMu.RLock()
	defer frameworksMu.RUnlock()
	names := lo.Keys(frameworks)
	sort.Strings(names)
	return names
}

// NewModel loads the model named by conf.Framework.
func NewModel(ctx context.Context, conf config.DetectorConfig, logger logging.Logger) (Model, error) {
	frameworksMu.RLock()
	constructor, ok := frameworks[conf.Framework]
	frameworksMu.RUnlock()
	if !ok {
		return nil, config.NewConfigError("detector.framework",
			errors.Errorf("unknown framework %q, expected one of %v", conf.Framework, RegisteredFrameworks()))
	}
	return constructor(ctx, conf, logger)
}

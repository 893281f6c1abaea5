package distancing

import (
	"context"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/sodistec/sodistec/components/camera"
	"github.com/sodistec/sodistec/config"
	"github.com/sodistec/sodistec/logging"
	"github.com/sodistec/sodistec/ml"
	"github.com/sodistec/sodistec/vision/persondetector"
)

// NewCoordinatorFromConfig loads a detector for every configured camera and builds its pipeline.
// Every camera gets its own model, thresholds and logger. Nothing is opened or started; any
// configuration problem is returned before a single frame is read.
func NewCoordinatorFromConfig(
	ctx context.Context,
	cfg *config.Config,
	sink EventSink,
	logger logging.Logger,
	opts ...PipelineOption,
) (_ *Coordinator, err error) {
	pipelines := make([]*Pipeline, 0, len(cfg.Cameras))
	defer func() {
		if err != nil {
			for _, p := range pipelines {
				p.Stop()
			}
		}
	}()

	for _, camConf := range cfg.Cameras {
		p, err := newPipelineFromConfig(ctx, cfg, camConf, sink, logger, opts...)
		if err != nil {
			return nil, err
		}
		pipelines = append(pipelines, p)
	}
	return NewCoordinator(pipelines, logger)
}

func newPipelineFromConfig(
	ctx context.Context,
	cfg *config.Config,
	camConf config.CameraConfig,
	sink EventSink,
	logger logging.Logger,
	opts ...PipelineOption,
) (*Pipeline, error) {
	camLogger := logger.Sublogger(camConf.Name)
	if _, ok := camera.LookupBackend(camConf.Backend); !ok {
		return nil, config.NewConfigError("cameras."+camConf.Name+".backend",
			errors.Errorf("unknown backend %q, expected one of %v", camConf.Backend, camera.RegisteredBackends()))
	}
	pconf, err := NewPipelineConfig(cfg, camConf)
	if err != nil {
		return nil, err
	}

	model, err := ml.NewModel(ctx, cfg.Detector, camLogger)
	if err != nil {
		return nil, err
	}
	if md, err := model.Metadata(ctx); err != nil {
		camLogger.Warnw("cannot read model metadata", "error", err)
	} else {
		camLogger.Debugw("model loaded", "model", md.ModelName, "inputs", len(md.Inputs), "outputs", len(md.Outputs))
	}
	detector, err := persondetector.New(model, cfg.Detector, camLogger)
	if err != nil {
		return nil, multierr.Combine(err, model.Close(ctx))
	}

	open := func(ctx context.Context) (camera.FrameSource, error) {
		return camera.NewFrameSource(ctx, camConf, clock.New(), camLogger)
	}
	p, err := NewPipeline(NewCameraHandle(camConf.Name), pconf, open, detector, sink, camLogger, opts...)
	if err != nil {
		return nil, multierr.Combine(err, detector.Close(ctx))
	}
	return p, nil
}

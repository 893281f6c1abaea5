package cli

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"github.com/sodistec/sodistec/components/camera"
	"github.com/sodistec/sodistec/config"
	"github.com/sodistec/sodistec/ml"
	"github.com/sodistec/sodistec/rimage"
	"github.com/sodistec/sodistec/services/distancing"
	"github.com/sodistec/sodistec/vision/persondetector"
)

// DetectAction runs the detector configured in the config file on one image, writes the
// annotated image and prints every detection with its classification.
func DetectAction(c *cli.Context) (err error) {
	if c.NArg() != 1 {
		return errors.New("detect needs exactly one image path")
	}
	imgPath := c.Args().First()
	ctx := c.Context
	logger := newLogger(c)

	cfg, err := config.Read(ctx, c.Path(flagConfig), logger)
	if err != nil {
		return err
	}
	if _, err := applyLogConfig(c, logger, config.LogConfig{Level: cfg.Log.Level}); err != nil {
		return err
	}
	if c.IsSet(flagMinDistance) {
		cfg.Proximity.MinDistance = c.Float64(flagMinDistance)
	}
	if c.IsSet(flagMaxDistance) {
		cfg.Proximity.MaxDistance = c.Float64(flagMaxDistance)
	}
	if err := cfg.Proximity.Validate("proximity"); err != nil {
		return err
	}

	img, err := rimage.NewImageFromFile(imgPath)
	if err != nil {
		return err
	}

	pconf, err := distancing.NewPipelineConfig(cfg, config.CameraConfig{
		ResizeWidth:  c.Int(flagResizeWidth),
		ResizeHeight: c.Int(flagResizeHeight),
	})
	if err != nil {
		return err
	}
	model, err := ml.NewModel(ctx, cfg.Detector, logger)
	if err != nil {
		return err
	}
	detector, err := persondetector.New(model, cfg.Detector, logger)
	if err != nil {
		return multierr.Combine(err, model.Close(ctx))
	}
	defer func() {
		err = multierr.Combine(err, detector.Close(context.Background()))
	}()
	processor, err := distancing.NewProcessor(pconf, detector)
	if err != nil {
		return err
	}

	start := time.Now()
	out, err := processor.Process(ctx, camera.Frame{
		CameraID:   imgPath,
		Seq:        1,
		CapturedAt: start,
		Image:      rimage.ToRGBA(img),
	})
	if err != nil {
		return errors.Wrapf(err, "cannot detect people on %q", imgPath)
	}
	out.ProcessingTime = time.Since(start)

	if err := rimage.WriteImageToFile(c.Path(flagOutput), out.Annotated); err != nil {
		return err
	}
	logger.Infow("wrote annotated image", "path", c.Path(flagOutput), "people", out.People(),
		"serious", out.Classification.SeriousCount(), "abnormal", out.Classification.AbnormalCount(),
		"took", out.ProcessingTime)
	printDetections(c.App.Writer, out)
	return nil
}

package distancing

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/sodistec/sodistec/components/camera"
	_ "github.com/sodistec/sodistec/components/camera/fake"
	"github.com/sodistec/sodistec/config"
	"github.com/sodistec/sodistec/logging"
	mlfake "github.com/sodistec/sodistec/ml/fake"
	"github.com/sodistec/sodistec/testutils/inject"
	"github.com/sodistec/sodistec/vision/proximity"
)

func namedPipeline(t *testing.T, name string, src camera.FrameSource, sink EventSink) *Pipeline {
	t.Helper()
	p, err := NewPipeline(NewCameraHandle(name), testPipelineConfig(t, proximity.ModeBand), opener(src),
		testDetector(t, mlfake.NewModel(416)), sink, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	return p
}

func TestCoordinatorIsolatesFailures(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	broken := &inject.FrameSource{
		ReadFunc: func(ctx context.Context) (camera.Frame, error) {
			return camera.Frame{}, camera.NewFatalReadError(errors.New("device unplugged"))
		},
	}
	lobby := namedPipeline(t, "lobby", sliceSource(4), rec)
	garage := namedPipeline(t, "garage", broken, rec)

	c, err := NewCoordinator([]*Pipeline{lobby, garage}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	p, ok := c.Pipeline("garage")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, p, test.ShouldEqual, garage)
	_, ok = c.Pipeline("attic")
	test.That(t, ok, test.ShouldBeFalse)

	test.That(t, c.Start(ctx), test.ShouldBeNil)
	err = c.Wait(ctx)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, `camera "garage"`)
	test.That(t, err.Error(), test.ShouldNotContainSubstring, `camera "lobby"`)

	// the healthy camera ran to the end of its stream.
	lobbyFrames := 0
	for _, e := range rec.of("frame") {
		test.That(t, e.cam, test.ShouldEqual, "lobby")
		lobbyFrames++
	}
	test.That(t, lobbyFrames, test.ShouldEqual, 4)
	stops := map[string]error{}
	for _, e := range rec.of("stopped") {
		stops[e.cam] = e.err
	}
	test.That(t, stops, test.ShouldHaveLength, 2)
	test.That(t, stops["lobby"], test.ShouldBeNil)
	test.That(t, stops["garage"], test.ShouldNotBeNil)
}

func TestCoordinatorStartErrors(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	lobby := namedPipeline(t, "lobby", sliceSource(1), rec)
	failing, err := NewPipeline(NewCameraHandle("garage"), testPipelineConfig(t, proximity.ModeBand),
		func(ctx context.Context) (camera.FrameSource, error) {
			return nil, errors.New("no such device")
		},
		testDetector(t, mlfake.NewModel(416)), rec, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	c, err := NewCoordinator([]*Pipeline{lobby, failing}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	err = c.Start(ctx)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "no such device")

	test.That(t, c.Wait(ctx), test.ShouldNotBeNil)
	test.That(t, rec.of("frame"), test.ShouldHaveLength, 1)
}

func TestCoordinatorStopAndThresholds(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	endless := func() *inject.FrameSource {
		return &inject.FrameSource{
			ReadFunc: func(ctx context.Context) (camera.Frame, error) {
				return testFrame(1, 320, 240), nil
			},
		}
	}
	a := namedPipeline(t, "a", endless(), rec)
	b := namedPipeline(t, "b", endless(), rec)
	c, err := NewCoordinator([]*Pipeline{a, b}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, c.Pipelines(), test.ShouldHaveLength, 2)

	test.That(t, c.UpdateThresholds(proximity.Thresholds{MinDistance: 70, MaxDistance: 90, MaxDepthDelta: 0.1}), test.ShouldBeNil)
	test.That(t, a.Thresholds().Snapshot().MinDistance, test.ShouldEqual, 70.)
	test.That(t, b.Thresholds().Snapshot().MaxDistance, test.ShouldEqual, 90.)
	test.That(t, c.UpdateThresholds(proximity.Thresholds{MinDistance: -1}), test.ShouldNotBeNil)

	test.That(t, c.Start(ctx), test.ShouldBeNil)
	c.Stop()
	test.That(t, c.Wait(ctx), test.ShouldBeNil)
	test.That(t, a.State(), test.ShouldEqual, StateStopped)
	test.That(t, b.State(), test.ShouldEqual, StateStopped)
	test.That(t, rec.of("stopped"), test.ShouldHaveLength, 2)
}

func TestCoordinatorWaitContext(t *testing.T) {
	rec := &recorder{}
	p := namedPipeline(t, "lobby", sliceSource(1), rec)
	c, err := NewCoordinator([]*Pipeline{p}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	// never started, so it never stops on its own.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	test.That(t, errors.Is(c.Wait(ctx), context.Canceled), test.ShouldBeTrue)
	c.Stop()
	test.That(t, c.Wait(context.Background()), test.ShouldBeNil)
}

func TestCoordinatorDuplicateNames(t *testing.T) {
	rec := &recorder{}
	a := namedPipeline(t, "lobby", sliceSource(1), rec)
	b := namedPipeline(t, "lobby", sliceSource(1), rec)
	_, err := NewCoordinator([]*Pipeline{a, b}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
}

func testConfig(cameras ...config.CameraConfig) *config.Config {
	cfg := config.NewDefault()
	cfg.Detector.Framework = mlfake.Framework
	cfg.Cameras = cameras
	cfg.ApplyDefaults()
	return cfg
}

func TestNewCoordinatorFromConfig(t *testing.T) {
	ctx := context.Background()
	stats := NewStats()
	rec := &recorder{}
	cfg := testConfig(
		config.CameraConfig{Name: "lobby", Source: "synthetic", Backend: "fake",
			Attributes: config.AttributeMap{"width": 640, "height": 360, "num_frames": 3}},
		config.CameraConfig{Name: "garage", Source: "synthetic", Backend: "fake", ThreadedCapture: true,
			Attributes: config.AttributeMap{"width": 320, "height": 240, "num_frames": 2}},
	)
	test.That(t, cfg.Ensure(), test.ShouldBeNil)

	c, err := NewCoordinatorFromConfig(ctx, cfg, Sinks{stats, rec}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	lobby, ok := c.Pipeline("lobby")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, lobby.State(), test.ShouldEqual, StateIdle)

	test.That(t, c.Start(ctx), test.ShouldBeNil)
	test.That(t, c.Wait(ctx), test.ShouldBeNil)

	summaries := stats.Summaries()
	test.That(t, summaries, test.ShouldHaveLength, 2)
	test.That(t, summaries[0].Camera, test.ShouldEqual, "garage")
	test.That(t, summaries[1].Camera, test.ShouldEqual, "lobby")
	test.That(t, summaries[1].Frames, test.ShouldEqual, 3)
	test.That(t, summaries[1].MaxPeople, test.ShouldEqual, 3)
	test.That(t, summaries[1].Stopped, test.ShouldBeTrue)
	test.That(t, summaries[1].StopErr, test.ShouldBeNil)
	// threaded capture may drop frames, but never delivers more than were produced.
	test.That(t, summaries[0].Frames, test.ShouldBeBetweenOrEqual, 1, 2)

	// lobby frames were resized to the default analysis size.
	for _, e := range rec.of("frame") {
		if e.cam == "lobby" {
			test.That(t, e.frame.Image.Bounds().Dx(), test.ShouldEqual, config.DefaultResizeWidth)
		}
	}
}

func TestNewCoordinatorFromConfigErrors(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)
	good := config.CameraConfig{Name: "lobby", Source: "synthetic", Backend: "fake"}

	cfg := testConfig(good, config.CameraConfig{Name: "garage", Source: "x", Backend: "betamax"})
	_, err := NewCoordinatorFromConfig(ctx, cfg, NopSink{}, logger)
	test.That(t, config.IsConfigError(err), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "betamax")

	cfg = testConfig(good)
	cfg.Detector.Framework = "caffe"
	_, err = NewCoordinatorFromConfig(ctx, cfg, NopSink{}, logger)
	test.That(t, config.IsConfigError(err), test.ShouldBeTrue)

	cfg = testConfig(good)
	cfg.Detector.DetectClass = "unicorn"
	_, err = NewCoordinatorFromConfig(ctx, cfg, NopSink{}, logger)
	test.That(t, config.IsConfigError(err), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "unicorn")

	var cfgErr *ConfigError
	test.That(t, errors.As(err, &cfgErr), test.ShouldBeTrue)
	test.That(t, cfgErr.Path, test.ShouldEqual, "detector.detect_class")
}

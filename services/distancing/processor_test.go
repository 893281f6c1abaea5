package distancing

import (
	"context"
	"image"
	"testing"

	"go.viam.com/test"

	"github.com/sodistec/sodistec/components/camera"
	mlfake "github.com/sodistec/sodistec/ml/fake"
	"github.com/sodistec/sodistec/vision/proximity"
)

func TestProcessor(t *testing.T) {
	ctx := context.Background()
	conf := testPipelineConfig(t, proximity.ModeBand)
	pr, err := NewProcessor(conf, testDetector(t, mlfake.NewModel(416)))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pr.Thresholds(), test.ShouldEqual, conf.Thresholds)

	out, err := pr.Process(ctx, testFrame(7, 960, 540))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.Seq, test.ShouldEqual, 7)
	test.That(t, out.People(), test.ShouldEqual, 3)
	test.That(t, out.Classification.Abnormal, test.ShouldResemble, []int{0, 1})
	test.That(t, out.ProcessingTime, test.ShouldEqual, 0)

	test.That(t, conf.Thresholds.SetMinDistance(60), test.ShouldBeNil)
	out, err = pr.Process(ctx, testFrame(8, 960, 540))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.Classification.Serious, test.ShouldResemble, []int{0, 1})
	test.That(t, out.Thresholds.MinDistance, test.ShouldEqual, 60.)
}

func TestProcessorHUD(t *testing.T) {
	pr, err := NewProcessor(testPipelineConfig(t, proximity.ModeBand), testDetector(t, mlfake.NewModel(416)))
	test.That(t, err, test.ShouldBeNil)
	c := proximity.Classification{Serious: []int{0, 1}, Abnormal: []int{2}}
	th := proximity.Thresholds{MinDistance: 50, MaxDistance: 80}
	test.That(t, pr.hud(3, c, th), test.ShouldResemble, []string{
		"People: 3", "Serious: 2", "Abnormal: 1", "Safe distance: 50 px",
	})

	conf := testPipelineConfig(t, proximity.ModeDepth)
	pr, err = NewProcessor(conf, testDetector(t, mlfake.NewModel(416)))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pr.hud(3, c, th), test.ShouldHaveLength, 3)

	conf.DrawCounters = false
	pr, err = NewProcessor(conf, testDetector(t, mlfake.NewModel(416)))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pr.hud(3, c, th), test.ShouldBeEmpty)
}

func TestProcessorEmptyFrame(t *testing.T) {
	pr, err := NewProcessor(testPipelineConfig(t, proximity.ModeBand), testDetector(t, mlfake.NewModel(416)))
	test.That(t, err, test.ShouldBeNil)
	_, err = pr.Process(context.Background(), camera.Frame{Seq: 1})
	test.That(t, err, test.ShouldNotBeNil)
	_, err = pr.Process(context.Background(), camera.Frame{Seq: 2, Image: image.NewRGBA(image.Rectangle{})})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestNewProcessorErrors(t *testing.T) {
	conf := testPipelineConfig(t, proximity.ModeBand)
	_, err := NewProcessor(conf, nil)
	test.That(t, err, test.ShouldNotBeNil)

	conf.Thresholds = nil
	_, err = NewProcessor(conf, testDetector(t, mlfake.NewModel(416)))
	test.That(t, err, test.ShouldNotBeNil)

	conf = testPipelineConfig(t, proximity.Mode("3d"))
	_, err = NewProcessor(conf, testDetector(t, mlfake.NewModel(416)))
	test.That(t, err, test.ShouldNotBeNil)
}

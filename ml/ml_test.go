package ml_test

import (
	"context"
	"image"
	"image/color"
	"testing"

	"go.viam.com/test"
	"gorgonia.org/tensor"

	"github.com/sodistec/sodistec/config"
	"github.com/sodistec/sodistec/logging"
	"github.com/sodistec/sodistec/ml"
	"github.com/sodistec/sodistec/ml/fake"
)

func TestImageToNCHW(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	img.SetRGBA(0, 0, color.RGBA{255, 0, 0, 255})
	img.SetRGBA(2, 1, color.RGBA{0, 51, 255, 255})

	out := ml.ImageToNCHW(img)
	test.That(t, []int(out.Shape()), test.ShouldResemble, []int{1, 3, 2, 3})
	data, ok := out.Data().([]float32)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, data, test.ShouldHaveLength, 18)
	// channel planes are R, G, B.
	test.That(t, data[0], test.ShouldEqual, 1)
	test.That(t, data[6], test.ShouldEqual, 0)
	test.That(t, data[5], test.ShouldEqual, 0)
	test.That(t, data[6+5], test.ShouldAlmostEqual, 0.2, 1e-6)
	test.That(t, data[12+5], test.ShouldEqual, 1)
}

func TestToFloat32Slice(t *testing.T) {
	out, err := ml.ToFloat32Slice([]float64{0.5, 1})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldResemble, []float32{0.5, 1})
	out, err = ml.ToFloat32Slice([]uint8{3})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldResemble, []float32{3})
	_, err = ml.ToFloat32Slice("nope")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestNewModel(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)

	_, err := ml.NewModel(ctx, config.DetectorConfig{Framework: "tflite"}, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, config.IsConfigError(err), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "tflite")
	test.That(t, ml.RegisteredFrameworks(), test.ShouldContain, fake.Framework)

	model, err := ml.NewModel(ctx, config.DetectorConfig{Framework: fake.Framework, InputSize: 416}, logger)
	test.That(t, err, test.ShouldBeNil)
	defer func() {
		test.That(t, model.Close(ctx), test.ShouldBeNil)
	}()

	md, err := model.Metadata(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, md.Inputs[0].Shape, test.ShouldResemble, []int{1, 3, 416, 416})

	_, err = model.Infer(ctx, ml.Tensors{})
	test.That(t, err, test.ShouldNotBeNil)

	input := tensor.New(tensor.WithShape(1, 3, 416, 416), tensor.Of(tensor.Float32))
	out, err := model.Infer(ctx, ml.Tensors{ml.InputTensorName: input})
	test.That(t, err, test.ShouldBeNil)
	dets := out[fake.OutputTensorName]
	test.That(t, []int(dets.Shape()), test.ShouldResemble, []int{len(fake.DefaultRows), 5 + fake.NumClasses})
	data, err := ml.ToFloat32Slice(dets.Data())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, data[4], test.ShouldEqual, fake.DefaultRows[0].Score)
	test.That(t, data[5], test.ShouldEqual, fake.DefaultRows[0].Score)
}

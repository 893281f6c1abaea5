package cli

import (
	"bytes"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	_ "github.com/sodistec/sodistec/components/camera/fake"
	"github.com/sodistec/sodistec/config"
	_ "github.com/sodistec/sodistec/ml/fake"
	"github.com/sodistec/sodistec/rimage"
	"github.com/sodistec/sodistec/services/distancing"
	"github.com/sodistec/sodistec/vision/objectdetection"
	"github.com/sodistec/sodistec/vision/proximity"
)

const testConfig = `{
	"detector": {"framework": "fake"},
	"proximity": {"min_distance": 50, "max_distance": 80},
	"cameras": [
		{"name": "lobby", "source": "synthetic", "backend": "fake",
		 "attributes": {"width": 960, "height": 540, "num_frames": 3}}
	],
	"log": {"level": "info"}
}`

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	test.That(t, os.WriteFile(path, []byte(contents), 0o600), test.ShouldBeNil)
	return path
}

func writeImage(t *testing.T, width, height int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 40, 40, 40, 255
	}
	path := filepath.Join(t.TempDir(), "people.png")
	test.That(t, rimage.WriteImageToFile(path, img), test.ShouldBeNil)
	return path
}

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := NewApp(&out, io.Discard).Run(append([]string{"sodistec"}, args...))
	return out.String(), err
}

func TestDetectAction(t *testing.T) {
	cfgPath := writeConfig(t, testConfig)
	imgPath := writeImage(t, 960, 540)
	outPath := filepath.Join(t.TempDir(), "annotated.png")

	out, err := runApp(t, "--config", cfgPath, "detect", "-o", outPath, imgPath)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, strings.Count(out, "abnormal"), test.ShouldEqual, 2)
	test.That(t, strings.Count(out, "safe"), test.ShouldEqual, 1)
	test.That(t, out, test.ShouldNotContainSubstring, "serious")

	annotated, err := rimage.NewImageFromFile(outPath)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, annotated.Bounds().Dx(), test.ShouldEqual, 960)
	test.That(t, annotated.Bounds().Dy(), test.ShouldEqual, 540)

	// a larger safe distance turns the close pair into a serious violation.
	out, err = runApp(t, "--config", cfgPath, "detect", "-o", outPath, "--min-distance", "60", imgPath)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, strings.Count(out, "serious"), test.ShouldEqual, 2)
}

func TestDetectActionResize(t *testing.T) {
	cfgPath := writeConfig(t, testConfig)
	imgPath := writeImage(t, 1920, 1080)
	outPath := filepath.Join(t.TempDir(), "annotated.png")

	_, err := runApp(t, "--config", cfgPath, "detect", "-o", outPath,
		"--resize-width", "960", "--resize-height", "540", imgPath)
	test.That(t, err, test.ShouldBeNil)
	annotated, err := rimage.NewImageFromFile(outPath)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, annotated.Bounds().Dx(), test.ShouldEqual, 960)
}

func TestDetectActionErrors(t *testing.T) {
	cfgPath := writeConfig(t, testConfig)
	imgPath := writeImage(t, 320, 240)

	_, err := runApp(t, "--config", cfgPath, "detect")
	test.That(t, err, test.ShouldNotBeNil)

	_, err = runApp(t, "--config", cfgPath, "detect", filepath.Join(t.TempDir(), "missing.png"))
	test.That(t, err, test.ShouldNotBeNil)

	_, err = runApp(t, "--config", cfgPath, "detect", "--min-distance", "90", imgPath)
	test.That(t, config.IsConfigError(err), test.ShouldBeTrue)

	badPath := writeConfig(t, strings.Replace(testConfig, `"fake"}`, `"caffe"}`, 1))
	_, err = runApp(t, "--config", badPath, "detect", imgPath)
	test.That(t, config.IsConfigError(err), test.ShouldBeTrue)
}

func TestRunAction(t *testing.T) {
	cfgPath := writeConfig(t, testConfig)
	out, err := runApp(t, "--config", cfgPath, "run")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "lobby")
	test.That(t, out, test.ShouldContainSubstring, "stopped")
}

func TestRunActionErrors(t *testing.T) {
	_, err := runApp(t, "--config", filepath.Join(t.TempDir(), "missing.json"), "run")
	test.That(t, config.IsConfigError(err), test.ShouldBeTrue)

	cfgPath := writeConfig(t, strings.Replace(testConfig, `"backend": "fake"`, `"backend": "betamax"`, 1))
	_, err = runApp(t, "--config", cfgPath, "run", "--no-watch")
	test.That(t, config.IsConfigError(err), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "betamax")
}

func TestBackendsAction(t *testing.T) {
	out, err := runApp(t, "backends")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "camera backend")
	test.That(t, out, test.ShouldContainSubstring, "model framework")
	test.That(t, out, test.ShouldContainSubstring, "fake")
}

func TestSummaryTable(t *testing.T) {
	rendered := summaryTable([]distancing.CameraSummary{
		{Camera: "garage", Warnings: 2, Stopped: true, StopErr: errors.New("device unplugged")},
		{Camera: "lobby", Frames: 10, MaxPeople: 3, MeanLatencyMS: 12.345, Stopped: true},
		{Camera: "attic", Frames: 1},
	})
	lines := strings.Split(rendered, "\n")
	test.That(t, rendered, test.ShouldContainSubstring, "MAX PEOPLE")
	test.That(t, rendered, test.ShouldContainSubstring, "device unplugged")
	test.That(t, rendered, test.ShouldContainSubstring, "12.3")
	test.That(t, rendered, test.ShouldContainSubstring, "running")
	// three border lines, the header and one line per camera.
	test.That(t, lines, test.ShouldHaveLength, 7)
}

func TestDetectionTable(t *testing.T) {
	frame := &distancing.AnnotatedFrame{
		Detections: []objectdetection.Detection{
			objectdetection.NewDetection(image.Rect(10, 20, 50, 120), 0.9, "person"),
			objectdetection.NewDetection(image.Rect(60, 20, 100, 120), 0.75, "person"),
			objectdetection.NewDetection(image.Rect(400, 20, 440, 120), 0.5, "person"),
		},
		Classification: proximity.Classification{Serious: []int{0, 1}},
	}
	rendered := detectionTable(frame)
	test.That(t, rendered, test.ShouldContainSubstring, "(10, 20)-(50, 120)")
	test.That(t, rendered, test.ShouldContainSubstring, "(30, 70)")
	test.That(t, rendered, test.ShouldContainSubstring, "0.75")
	test.That(t, strings.Count(rendered, "serious"), test.ShouldEqual, 2)
	test.That(t, strings.Count(rendered, "safe"), test.ShouldEqual, 1)
	test.That(t, rendered, test.ShouldContainSubstring, "PEOPLE")
}

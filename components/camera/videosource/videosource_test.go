//go:build !no_cgo

package videosource

import (
	"testing"

	"go.viam.com/test"
)

func TestClassify(t *testing.T) {
	test.That(t, classify("0"), test.ShouldEqual, kindDevice)
	test.That(t, classify("12"), test.ShouldEqual, kindDevice)
	test.That(t, classify("videos/test.mp4"), test.ShouldEqual, kindFile)
	test.That(t, classify("/abs/path/clip.avi"), test.ShouldEqual, kindFile)
	test.That(t, classify("rtsp://10.0.0.2:554/stream"), test.ShouldEqual, kindStream)
	test.That(t, classify("http://cam.local/mjpg"), test.ShouldEqual, kindStream)
}

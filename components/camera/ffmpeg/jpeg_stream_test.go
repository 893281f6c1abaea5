package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"testing"

	"go.uber.org/atomic"
	"go.viam.com/test"

	"github.com/sodistec/sodistec/components/camera"
	"github.com/sodistec/sodistec/logging"
)

func encodeJPEG(t *testing.T, width int, shade uint8) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, 24))
	for y := 0; y < 24; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, color.RGBA{shade, uint8(x * 7), uint8(y * 9), 255})
		}
	}
	var buf bytes.Buffer
	test.That(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}), test.ShouldBeNil)
	return buf.Bytes()
}

// withComment inserts a COM segment whose payload holds an EOI marker right after SOI.
func withComment(data []byte) []byte {
	payload := []byte{'x', 0xFF, 0xD9, 'y'}
	com := append([]byte{0xFF, 0xFE, 0, byte(len(payload) + 2)}, payload...)
	out := append([]byte{}, data[:2]...)
	out = append(out, com...)
	return append(out, data[2:]...)
}

func TestNextJPEG(t *testing.T) {
	first := encodeJPEG(t, 32, 10)
	second := withComment(encodeJPEG(t, 40, 200))
	third := encodeJPEG(t, 48, 90)

	var stream bytes.Buffer
	stream.Write(first)
	stream.Write([]byte{0x00, 0x00}) // junk between images is skipped
	stream.Write(second)
	stream.Write(third)
	r := bufio.NewReader(&stream)

	for _, expected := range [][]byte{first, second, third} {
		data, err := nextJPEG(r)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, data, test.ShouldResemble, expected)
		_, err = jpeg.Decode(bytes.NewReader(data))
		test.That(t, err, test.ShouldBeNil)
	}
	_, err := nextJPEG(r)
	test.That(t, err, test.ShouldEqual, io.EOF)

	// an image cut short is not a clean end of stream.
	_, err = nextJPEG(bufio.NewReader(bytes.NewReader(first[:len(first)/2])))
	test.That(t, err, test.ShouldEqual, io.ErrUnexpectedEOF)
}

func pipedCamera(t *testing.T, isStream bool, images ...[]byte) *ffmpegCamera {
	t.Helper()
	pr, pw := io.Pipe()
	go func() {
		for _, img := range images {
			if _, err := pw.Write(img); err != nil {
				return
			}
		}
		pw.Close()
	}()
	return &ffmpegCamera{
		isStream:   isStream,
		logger:     logging.NewTestLogger(t),
		cancelFunc: func() {},
		pipe:       pr,
		frames:     bufio.NewReader(pr),
		ffmpegErr:  atomic.NewError(nil),
	}
}

func TestReadConsecutiveFrames(t *testing.T) {
	ctx := context.Background()
	widths := []int{32, 40, 48, 56, 64}
	images := make([][]byte, 0, len(widths))
	for i, w := range widths {
		images = append(images, encodeJPEG(t, w, uint8(i*40)))
	}

	fc := pipedCamera(t, false, images...)
	for _, w := range widths {
		img, release, err := fc.Read(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, img.Bounds().Dx(), test.ShouldEqual, w)
		release()
	}
	_, _, err := fc.Read(ctx)
	test.That(t, err, test.ShouldEqual, camera.ErrSourceExhausted)
	test.That(t, fc.Close(ctx), test.ShouldBeNil)

	// a stream that ends mid image is interrupted, not exhausted.
	fc = pipedCamera(t, true, images[0], images[1][:len(images[1])/2])
	_, _, err = fc.Read(ctx)
	test.That(t, err, test.ShouldBeNil)
	_, _, err = fc.Read(ctx)
	test.That(t, camera.IsTransient(err), test.ShouldBeTrue)
	test.That(t, fc.Close(ctx), test.ShouldBeNil)
}

package camera_test

import (
	"context"
	"image"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.viam.com/test"
	"go.viam.com/utils/testutils"

	"github.com/sodistec/sodistec/components/camera"
	"github.com/sodistec/sodistec/logging"
	"github.com/sodistec/sodistec/testutils/inject"
)

func channelSource(frames <-chan camera.Frame) *inject.FrameSource {
	return &inject.FrameSource{
		ReadFunc: func(ctx context.Context) (camera.Frame, error) {
			select {
			case frame, ok := <-frames:
				if !ok {
					return camera.Frame{}, camera.ErrSourceExhausted
				}
				return frame, nil
			case <-ctx.Done():
				return camera.Frame{}, ctx.Err()
			}
		},
	}
}

func frameWithSeq(seq uint64) camera.Frame {
	return camera.Frame{CameraID: "lobby", Seq: seq, Image: image.NewRGBA(image.Rect(0, 0, 2, 2))}
}

func TestLatestFrameSourceFreshness(t *testing.T) {
	ctx := context.Background()
	frames := make(chan camera.Frame)
	l := camera.NewLatestFrameSource(channelSource(frames), 20*time.Millisecond, clock.New(), logging.NewTestLogger(t))
	defer func() {
		test.That(t, l.Close(ctx), test.ShouldBeNil)
	}()

	// a slow reader only ever sees the newest frame.
	for seq := uint64(1); seq <= 3; seq++ {
		frames <- frameWithSeq(seq)
	}
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		test.That(tb, l.Dropped(), test.ShouldEqual, 2)
	})
	frame, err := l.Read(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, frame.Seq, test.ShouldEqual, 3)

	// nothing new arrives, so the read gives up after the timeout instead of returning frame 3
	// again.
	start := time.Now()
	_, err = l.Read(ctx)
	test.That(t, err, test.ShouldEqual, camera.ErrFrameTimeout)
	test.That(t, time.Since(start), test.ShouldBeLessThan, time.Second)

	// a frame published while a read is waiting is returned to it.
	go func() {
		frames <- frameWithSeq(4)
	}()
	l2Ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	for {
		frame, err = l.Read(l2Ctx)
		if !errors.Is(err, camera.ErrFrameTimeout) {
			break
		}
	}
	test.That(t, err, test.ShouldBeNil)
	test.That(t, frame.Seq, test.ShouldEqual, 4)
	test.That(t, l.Dropped(), test.ShouldEqual, 2)

	close(frames)
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		_, err := l.Read(ctx)
		test.That(tb, err, test.ShouldEqual, camera.ErrSourceExhausted)
	})
}

func TestLatestFrameSourceMockTimeout(t *testing.T) {
	ctx := context.Background()
	mock := clock.NewMock()
	frames := make(chan camera.Frame)
	l := camera.NewLatestFrameSource(channelSource(frames), time.Second, mock, logging.NewTestLogger(t))
	defer func() {
		close(frames)
		test.That(t, l.Close(ctx), test.ShouldBeNil)
	}()

	errCh := make(chan error, 1)
	go func() {
		_, err := l.Read(ctx)
		errCh <- err
	}()
	// keep moving the clock until the waiting read has armed its timer and fired.
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		mock.Add(time.Second)
		select {
		case err := <-errCh:
			test.That(tb, err, test.ShouldEqual, camera.ErrFrameTimeout)
		default:
			tb.Error("read still blocked")
		}
	})
}

func TestLatestFrameSourceCancel(t *testing.T) {
	frames := make(chan camera.Frame)
	l := camera.NewLatestFrameSource(channelSource(frames), 0, nil, logging.NewTestLogger(t))
	defer func() {
		test.That(t, l.Close(context.Background()), test.ShouldBeNil)
	}()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := l.Read(ctx)
	test.That(t, err, test.ShouldEqual, context.Canceled)
}

func TestThreadedReconnect(t *testing.T) {
	ctx := context.Background()
	var failed, reconnected bool
	inner := &inject.ReconnectingFrameSource{
		FrameSource: inject.FrameSource{
			ReadFunc: func(ctx context.Context) (camera.Frame, error) {
				if !failed {
					failed = true
					return camera.Frame{}, camera.NewTransientReadError(errors.New("stream dropped"))
				}
				<-ctx.Done()
				return camera.Frame{}, ctx.Err()
			},
		},
		ReconnectFunc: func(ctx context.Context) error {
			reconnected = true
			return nil
		},
	}
	src := camera.Threaded(inner, time.Second, nil, logging.NewTestLogger(t))
	defer func() {
		test.That(t, src.Close(ctx), test.ShouldBeNil)
	}()

	_, err := src.Read(ctx)
	test.That(t, camera.IsTransient(err), test.ShouldBeTrue)

	rc, ok := src.(camera.Reconnector)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, rc.Reconnect(ctx), test.ShouldBeNil)
	test.That(t, reconnected, test.ShouldBeTrue)

	plain := camera.Threaded(channelSource(nil), time.Second, nil, logging.NewTestLogger(t))
	_, isReconnector := plain.(camera.Reconnector)
	test.That(t, isReconnector, test.ShouldBeFalse)
	test.That(t, plain.Close(ctx), test.ShouldBeNil)
}

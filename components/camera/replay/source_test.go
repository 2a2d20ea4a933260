package replay

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/senses/components/camera"
	"go.viam.com/senses/logging"
	"go.viam.com/senses/rimage"
	"go.viam.com/senses/rimage/transform"
)

func testCalibration(width, height int) *transform.DepthColorIntrinsicsExtrinsics {
	intr := transform.PinholeCameraIntrinsics{Width: width, Height: height, Fx: 2, Fy: 2, Ppx: 1, Ppy: 1}
	return &transform.DepthColorIntrinsicsExtrinsics{
		ColorCamera:  intr,
		DepthCamera:  intr,
		ExtrinsicD2C: transform.IdentityExtrinsics(),
		DepthScale:   transform.DefaultDepthScale,
	}
}

func writeRecording(t *testing.T, dir string, n int, calib *transform.DepthColorIntrinsicsExtrinsics) {
	t.Helper()
	for i := 0; i < n; i++ {
		img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
		img.SetNRGBA(1, 0, color.NRGBA{R: uint8(10 * i), G: 20, B: 30, A: 255})
		depth, err := rimage.NewDepthMapFromData(2, 2, []rimage.Depth{1000, 0, 2000, rimage.Depth(1500 + i)})
		test.That(t, err, test.ShouldBeNil)
		frame := &camera.Frame{Color: img, Depth: depth, Timestamp: time.Unix(100, int64(i))}
		if i == 0 {
			frame.Calibration = calib
		}
		data, err := EncodeFrame(frame)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, os.WriteFile(filepath.Join(dir, fmt.Sprintf("frame_%04d%s", i, FileExt)), data, 0o600), test.ShouldBeNil)
	}
}

func TestEncodeDecodeFrame(t *testing.T) {
	calib := testCalibration(2, 2)
	dir := t.TempDir()
	writeRecording(t, dir, 1, calib)
	data, err := os.ReadFile(filepath.Join(dir, "frame_0000"+FileExt))
	test.That(t, err, test.ShouldBeNil)

	frame, err := DecodeFrame(data)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, frame.Timestamp.Equal(time.Unix(100, 0)), test.ShouldBeTrue)
	test.That(t, frame.Depth.GetDepth(0, 0), test.ShouldEqual, rimage.Depth(1000))
	test.That(t, frame.Depth.GetDepth(1, 0), test.ShouldEqual, rimage.Depth(0))
	test.That(t, frame.Depth.GetDepth(0, 1), test.ShouldEqual, rimage.Depth(2000))
	test.That(t, frame.Depth.GetDepth(1, 1), test.ShouldEqual, rimage.Depth(1500))
	test.That(t, frame.Color.NRGBAAt(1, 0), test.ShouldResemble, color.NRGBA{R: 0, G: 20, B: 30, A: 255})
	test.That(t, frame.Calibration, test.ShouldResemble, calib)

	_, err = DecodeFrame([]byte{0xff})
	test.That(t, err, test.ShouldNotBeNil)

	_, err = EncodeFrame(&camera.Frame{})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestDecodeFrameRejectsBadDimensions(t *testing.T) {
	depth := multiDimArray(2, 2, cbor.Tag{Number: tagUint16LE, Content: make([]byte, 8)})
	for _, tc := range []struct {
		name       string
		rows, cols int
	}{
		{"overflowing", 1 << 62, 12},
		{"negative", -2, 6},
		{"empty", 0, 6},
	} {
		t.Run(tc.name, func(t *testing.T) {
			data, err := cbor.Marshal(record{
				Color: multiDimArray(tc.rows, tc.cols, cbor.Tag{Number: tagUint8, Content: []byte{}}),
				Depth: depth,
			})
			test.That(t, err, test.ShouldBeNil)
			_, err = DecodeFrame(data)
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, "color")
		})
	}

	data, err := cbor.Marshal(record{
		Color: multiDimArray(2, 6, cbor.Tag{Number: tagUint8, Content: make([]byte, 12)}),
		Depth: multiDimArray(1<<62, 2, cbor.Tag{Number: tagUint16LE, Content: []byte{}}),
	})
	test.That(t, err, test.ShouldBeNil)
	_, err = DecodeFrame(data)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "depth")
}

func TestReplaySource(t *testing.T) {
	logger := logging.NewTestLogger(t)
	calib := testCalibration(2, 2)
	dir := t.TempDir()
	writeRecording(t, dir, 3, calib)
	test.That(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600), test.ShouldBeNil)

	src, err := NewSource(&Config{Dir: dir}, clock.NewMock(), logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, src.Len(), test.ShouldEqual, 3)

	adapter := camera.NewAdapter(src, camera.AdapterOptions{}, logger)
	for i := 0; i < 3; i++ {
		frame, err := adapter.NextFrame(context.Background())
		test.That(t, err, test.ShouldBeNil)
		test.That(t, frame.Calibration, test.ShouldResemble, calib)
		test.That(t, frame.Depth.GetDepth(1, 1), test.ShouldEqual, rimage.Depth(1500+i))
	}
	_, err = adapter.NextFrame(context.Background())
	test.That(t, err, test.ShouldEqual, camera.ErrEndOfStream)
	test.That(t, adapter.Close(context.Background()), test.ShouldBeNil)
}

func TestReplayLoopAndPacing(t *testing.T) {
	logger := logging.NewTestLogger(t)
	dir := t.TempDir()
	writeRecording(t, dir, 2, testCalibration(2, 2))
	mockClock := clock.NewMock()
	src, err := NewSource(&Config{Dir: dir, Loop: true, FrameInterval: time.Second}, mockClock, logger)
	test.That(t, err, test.ShouldBeNil)

	for i := 0; i < 5; i++ {
		frame, err := src.NextFrame(context.Background())
		test.That(t, err, test.ShouldBeNil)
		test.That(t, frame.Depth.GetDepth(1, 1), test.ShouldEqual, rimage.Depth(1500+i%2))
		mockClock.Add(time.Second)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.NextFrame(context.Background())
	test.That(t, err, test.ShouldBeNil)
	_, err = src.NextFrame(ctx)
	test.That(t, err, test.ShouldEqual, context.Canceled)
}

func TestReplayResizesColor(t *testing.T) {
	dir := t.TempDir()
	writeRecording(t, dir, 1, testCalibration(4, 4))
	src, err := NewSource(&Config{Dir: dir}, clock.NewMock(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	frame, err := src.NextFrame(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, frame.Color.Bounds().Size(), test.ShouldResemble, image.Pt(4, 4))
}

func TestReplayUnavailable(t *testing.T) {
	logger := logging.NewTestLogger(t)
	_, err := NewSource(&Config{Dir: filepath.Join(t.TempDir(), "missing")}, clock.NewMock(), logger)
	test.That(t, errors.Is(err, camera.ErrSourceUnavailable), test.ShouldBeTrue)

	_, err = NewSource(&Config{Dir: t.TempDir()}, clock.NewMock(), logger)
	test.That(t, errors.Is(err, camera.ErrSourceUnavailable), test.ShouldBeTrue)

	test.That(t, (&Config{}).Validate("source.attributes"), test.ShouldNotBeNil)
	_, err = NewSource(nil, clock.NewMock(), logger)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestReplayBadRecordingIsRetried(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	dir := t.TempDir()
	calib := testCalibration(2, 2)
	test.That(t, os.WriteFile(filepath.Join(dir, "frame_0000"+FileExt), []byte("garbage"), 0o600), test.ShouldBeNil)
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	data, err := EncodeFrame(&camera.Frame{Color: img, Depth: rimage.NewEmptyDepthMap(2, 2), Calibration: calib})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, os.WriteFile(filepath.Join(dir, "frame_0001"+FileExt), data, 0o600), test.ShouldBeNil)

	src, err := NewSource(&Config{Dir: dir}, clock.NewMock(), logger)
	test.That(t, err, test.ShouldBeNil)
	adapter := camera.NewAdapter(src, camera.AdapterOptions{MaxRetries: 1}, logger)
	_, err = adapter.NextFrame(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, logs.FilterMessage("retrying frame read").Len(), test.ShouldEqual, 1)
}

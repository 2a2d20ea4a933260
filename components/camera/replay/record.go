package replay

import (
	"encoding/binary"
	"image"
	"math"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"

	"go.viam.com/senses/components/camera"
	"go.viam.com/senses/rimage"
	"go.viam.com/senses/rimage/transform"
)

// RFC 8746 tags.
const (
	tagMultiDimArray = 40
	tagUint8         = 64
	tagUint16LE      = 69
)

// record is one recorded frame. Color is a [height, width*3] RGB array and depth a
// [height, width] array of raw depth units.
type record struct {
	TimestampNanos int64                                     `cbor:"timestamp_ns"`
	Color          interface{}                               `cbor:"color"`
	Depth          interface{}                               `cbor:"depth"`
	Calibration    *transform.DepthColorIntrinsicsExtrinsics `cbor:"calibration,omitempty"`
}

// EncodeFrame serializes a frame in the replay format.
func EncodeFrame(frame *camera.Frame) ([]byte, error) {
	if frame.Color == nil || frame.Depth == nil {
		return nil, errors.New("frame is missing its color or depth image")
	}
	width, height := frame.Color.Rect.Dx(), frame.Color.Rect.Dy()
	rgb := make([]byte, 0, width*height*3)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := frame.Color.NRGBAAt(frame.Color.Rect.Min.X+x, frame.Color.Rect.Min.Y+y)
			rgb = append(rgb, c.R, c.G, c.B)
		}
	}
	depthBytes := make([]byte, frame.Depth.Width()*frame.Depth.Height()*2)
	for y := 0; y < frame.Depth.Height(); y++ {
		for x := 0; x < frame.Depth.Width(); x++ {
			idx := (y*frame.Depth.Width() + x) * 2
			binary.LittleEndian.PutUint16(depthBytes[idx:idx+2], uint16(frame.Depth.GetDepth(x, y)))
		}
	}
	rec := record{
		Color: multiDimArray(height, width*3, cbor.Tag{Number: tagUint8, Content: rgb}),
		Depth: multiDimArray(frame.Depth.Height(), frame.Depth.Width(), cbor.Tag{Number: tagUint16LE, Content: depthBytes}),
		Calibration: frame.Calibration,
	}
	if !frame.Timestamp.IsZero() {
		rec.TimestampNanos = frame.Timestamp.UnixNano()
	}
	return cbor.Marshal(rec)
}

func multiDimArray(rows, cols int, data cbor.Tag) cbor.Tag {
	return cbor.Tag{Number: tagMultiDimArray, Content: []interface{}{[]interface{}{rows, cols}, data}}
}

// DecodeFrame parses a frame in the replay format. The timestamp is left zero when it was not
// recorded.
func DecodeFrame(data []byte) (*camera.Frame, error) {
	var rec record
	if err := cbor.Unmarshal(data, &rec); err != nil {
		return nil, errors.Wrap(err, "cannot decode frame record")
	}
	rows, cols, raw, tagNum, err := decodeMultiDimArray(rec.Color)
	if err != nil {
		return nil, errors.Wrap(err, "color")
	}
	if tagNum != tagUint8 || cols%3 != 0 || len(raw) != rows*cols {
		return nil, errors.Errorf("color must be a uint8 array of rows by width*3, got tag %d with %d values for %dx%d",
			tagNum, len(raw), rows, cols)
	}
	width := cols / 3
	img := image.NewNRGBA(image.Rect(0, 0, width, rows))
	for i := 0; i < width*rows; i++ {
		copy(img.Pix[i*4:i*4+3], raw[i*3:i*3+3])
		img.Pix[i*4+3] = 0xFF
	}

	rows, cols, raw, tagNum, err = decodeMultiDimArray(rec.Depth)
	if err != nil {
		return nil, errors.Wrap(err, "depth")
	}
	if tagNum != tagUint16LE || len(raw) != rows*cols*2 {
		return nil, errors.Errorf("depth must be a uint16 array of %dx%d, got tag %d with %d bytes", rows, cols, tagNum, len(raw))
	}
	samples := make([]rimage.Depth, rows*cols)
	for i := range samples {
		samples[i] = rimage.Depth(binary.LittleEndian.Uint16(raw[i*2 : i*2+2]))
	}
	depth, err := rimage.NewDepthMapFromData(cols, rows, samples)
	if err != nil {
		return nil, err
	}
	if rec.Calibration != nil && rec.Calibration.DepthScale == 0 {
		rec.Calibration.DepthScale = transform.DefaultDepthScale
	}
	frame := &camera.Frame{Color: img, Depth: depth, Calibration: rec.Calibration}
	if rec.TimestampNanos != 0 {
		frame.Timestamp = time.Unix(0, rec.TimestampNanos)
	}
	return frame, nil
}

func decodeMultiDimArray(value interface{}) (rows, cols int, data []byte, typedTag uint64, err error) {
	tag, ok := value.(cbor.Tag)
	if !ok || tag.Number != tagMultiDimArray {
		return 0, 0, nil, 0, errors.New("expected multidim tag 40")
	}
	items, ok := tag.Content.([]interface{})
	if !ok || len(items) != 2 {
		return 0, 0, nil, 0, errors.New("invalid multidim array content")
	}
	dims, ok := items[0].([]interface{})
	if !ok || len(dims) != 2 {
		return 0, 0, nil, 0, errors.New("invalid multidim dimensions")
	}
	if rows, err = toInt(dims[0]); err != nil {
		return 0, 0, nil, 0, err
	}
	if cols, err = toInt(dims[1]); err != nil {
		return 0, 0, nil, 0, err
	}
	// room for rows*cols samples of up to two bytes
	if rows <= 0 || cols <= 0 || rows > math.MaxInt/cols/2 {
		return 0, 0, nil, 0, errors.Errorf("invalid dimensions %dx%d", rows, cols)
	}
	typed, ok := items[1].(cbor.Tag)
	if !ok {
		return 0, 0, nil, 0, errors.New("expected typed array tag")
	}
	if data, ok = typed.Content.([]byte); !ok {
		return 0, 0, nil, 0, errors.Errorf("unsupported typed array content %T", typed.Content)
	}
	return rows, cols, data, typed.Number, nil
}

func toInt(v interface{}) (int, error) {
	switch n := v.(type) {
	case uint64:
		if n > math.MaxInt {
			return 0, errors.Errorf("dimension %d out of range", n)
		}
		return int(n), nil
	case int64:
		return int(n), nil
	default:
		return 0, errors.Errorf("unexpected dimension type %T", v)
	}
}

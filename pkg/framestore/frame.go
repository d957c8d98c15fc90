package framestore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

const (
	headerSize     = 8
	recordMetaSize = 24

	// A record declaring a payload larger than this is corrupt.
	maxPayloadSize = 1 << 30
)

// Errors.
var (
	ErrWriterFinalized = errors.New("writer already finalized")
	ErrStreamClosed    = errors.New("stream reader is closed")
	ErrTruncatedRecord = errors.New("truncated frame record")
	ErrFrameSize       = errors.New("frame size does not match dimensions")
)

// Frame is a single depth image. Pix holds row-major uint16 depth
// samples in millimeters, one per pixel, len(Pix) == Width*Height.
type Frame struct {
	Width  uint32
	Height uint32
	Pix    []uint16
}

// At returns the sample at column x, row y.
func (f *Frame) At(x, y int) uint16 {
	return f.Pix[y*int(f.Width)+x]
}

// Bytes returns the raw samples as little-endian bytes.
func (f *Frame) Bytes() []byte {
	out := make([]byte, len(f.Pix)*2)
	for i, v := range f.Pix {
		binary.LittleEndian.PutUint16(out[i*2:i*2+2], v)
	}
	return out
}

func frameFromBytes(width, height uint32, buf []byte) (*Frame, error) {
	want := int(width) * int(height) * 2
	if len(buf) != want {
		return nil, fmt.Errorf("%w: %dx%d needs %d bytes, got %d",
			ErrFrameSize, width, height, want, len(buf))
	}

	pix := make([]uint16, int(width)*int(height))
	for i := range pix {
		pix[i] = binary.LittleEndian.Uint16(buf[i*2 : i*2+2])
	}
	return &Frame{Width: width, Height: height, Pix: pix}, nil
}

// Entry is one decoded frame with its writer-assigned timestamp.
// Timestamps are ordinal frame indices, not wall-clock values.
type Entry struct {
	Frame     *Frame
	Timestamp uint64
}

type recordMeta struct {
	width       uint32
	height      uint32
	payloadSize uint64
	timestamp   uint64
}

func (m recordMeta) marshal() []byte {
	out := make([]byte, recordMetaSize)
	binary.LittleEndian.PutUint32(out[0:4], m.width)
	binary.LittleEndian.PutUint32(out[4:8], m.height)
	binary.LittleEndian.PutUint64(out[8:16], m.payloadSize)
	binary.LittleEndian.PutUint64(out[16:24], m.timestamp)
	return out
}

func (m *recordMeta) unmarshal(buf []byte) {
	m.width = binary.LittleEndian.Uint32(buf[0:4])
	m.height = binary.LittleEndian.Uint32(buf[4:8])
	m.payloadSize = binary.LittleEndian.Uint64(buf[8:16])
	m.timestamp = binary.LittleEndian.Uint64(buf[16:24])
}

// readRecord decodes exactly one record from the current position.
// Both read paths are built on this to keep them equivalent.
// Returns io.EOF unwrapped if the stream ends cleanly on a record
// boundary, ErrTruncatedRecord if it ends inside a record.
func readRecord(r io.Reader, dec *zstd.Decoder) (*Frame, uint64, error) {
	metaBuf := make([]byte, recordMetaSize)
	if _, err := io.ReadFull(r, metaBuf); err != nil {
		if err == io.EOF { //nolint:errorlint
			return nil, 0, io.EOF
		}
		return nil, 0, fmt.Errorf("%w: read metadata: %v", ErrTruncatedRecord, err)
	}

	var meta recordMeta
	meta.unmarshal(metaBuf)

	if meta.payloadSize > maxPayloadSize {
		return nil, 0, fmt.Errorf("%w: declared payload size %d",
			ErrTruncatedRecord, meta.payloadSize)
	}

	payload := make([]byte, meta.payloadSize)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, 0, fmt.Errorf("%w: read payload: %v", ErrTruncatedRecord, err)
	}

	raw, err := dec.DecodeAll(payload, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("decompress payload: %w", err)
	}

	frame, err := frameFromBytes(meta.width, meta.height, raw)
	if err != nil {
		return nil, 0, err
	}
	return frame, meta.timestamp, nil
}

func readHeader(r io.Reader) (uint64, error) {
	buf := make([]byte, headerSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, fmt.Errorf("read header: %w", err)
	}
	return binary.LittleEndian.Uint64(buf), nil
}

package framestore

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
)

// DefaultCompressionLevel matches the capture tool's zstd level.
const DefaultCompressionLevel = 3

// WriterOptions configure compression. The zero value uses
// DefaultCompressionLevel and one encoder worker per CPU.
type WriterOptions struct {
	// CompressionLevel is a zstd level, 1 fastest to 22 smallest.
	CompressionLevel int

	// Concurrency limits the encoder worker count. Workers only
	// parallelize the compression of a single block internally,
	// Append itself always blocks until the record is on disk.
	Concurrency int
}

// Writer appends compressed depth frames to a file.
//
// Exactly one writer may target a path at a time, and a single
// writer is not safe for concurrent use. The header frame count is
// written as zero at creation and patched by Finalize; a file from a
// writer that never finalized reports zero frames despite containing
// data, and must be recovered with Scan.
type Writer struct {
	// Nil once finalized. Doubles as the lifecycle state tag.
	file *os.File

	enc        *zstd.Encoder
	frameCount uint64
}

// NewWriter creates path, truncating it if it exists, and writes the
// frame count placeholder. Caller must call Finalize when done.
func NewWriter(path string) (*Writer, error) {
	return NewWriterOptions(path, WriterOptions{})
}

// NewWriterOptions is NewWriter with explicit options.
func NewWriterOptions(path string, opts WriterOptions) (*Writer, error) {
	if opts.CompressionLevel == 0 {
		opts.CompressionLevel = DefaultCompressionLevel
	}

	encOpts := []zstd.EOption{
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(opts.CompressionLevel)),
		zstd.WithEncoderCRC(true),
	}
	if opts.Concurrency != 0 {
		encOpts = append(encOpts, zstd.WithEncoderConcurrency(opts.Concurrency))
	}
	enc, err := zstd.NewWriter(nil, encOpts...)
	if err != nil {
		return nil, fmt.Errorf("new encoder: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("create file: %w", err)
	}

	// Frame count placeholder, patched by Finalize.
	if _, err := file.Write(make([]byte, headerSize)); err != nil {
		enc.Close()
		file.Close()
		return nil, fmt.Errorf("write placeholder: %w", err)
	}

	return &Writer{file: file, enc: enc}, nil
}

// Append compresses one frame as a single independent block and
// writes its record. The frame counter is only incremented once the
// record is fully written, a failed append should be treated as
// fatal for the session.
func (w *Writer) Append(frame *Frame) error {
	if w.file == nil {
		return ErrWriterFinalized
	}
	if len(frame.Pix) != int(frame.Width)*int(frame.Height) {
		return fmt.Errorf("%w: %dx%d with %d samples",
			ErrFrameSize, frame.Width, frame.Height, len(frame.Pix))
	}

	payload := w.enc.EncodeAll(frame.Bytes(), nil)

	meta := recordMeta{
		width:       frame.Width,
		height:      frame.Height,
		payloadSize: uint64(len(payload)),
		timestamp:   w.frameCount,
	}
	if _, err := w.file.Write(meta.marshal()); err != nil {
		return fmt.Errorf("write record metadata: %w", err)
	}
	if _, err := w.file.Write(payload); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}

	w.frameCount++
	return nil
}

// FrameCount returns the number of successfully appended frames.
func (w *Writer) FrameCount() uint64 {
	return w.frameCount
}

// Finalize patches the header with the true frame count and closes
// the file. The file is immutable afterwards. The handle is released
// exactly once even if patching fails.
func (w *Writer) Finalize() error {
	if w.file == nil {
		return ErrWriterFinalized
	}
	file := w.file
	w.file = nil
	w.enc.Close()

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		file.Close()
		return fmt.Errorf("seek to header: %w", err)
	}

	buf := make([]byte, headerSize)
	binary.LittleEndian.PutUint64(buf, w.frameCount)
	if _, err := file.Write(buf); err != nil {
		file.Close()
		return fmt.Errorf("patch frame count: %w", err)
	}

	if err := file.Close(); err != nil {
		return fmt.Errorf("close file: %w", err)
	}
	return nil
}

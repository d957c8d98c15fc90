package framestore

import (
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
)

// StreamReader decodes a recording one frame per Next call, holding
// an open cursor across calls. Access is sequential only, there is
// no seek or rewind; replay requires a fresh OpenStream.
//
// Not safe for concurrent use.
type StreamReader struct {
	// Nil once closed. Doubles as the lifecycle state tag.
	file *os.File

	dec    *zstd.Decoder
	total  uint64
	cursor uint64
}

// StreamFrame is one frame pulled from a StreamReader.
type StreamFrame struct {
	Frame     *Frame
	Timestamp uint64

	// Index is the zero-based position of the frame in the file.
	Index uint64

	// Progress is a human-readable "3/120" marker.
	Progress string
}

// OpenStream opens path for frame-at-a-time reading.
// Caller must call Close when done.
func OpenStream(path string) (*StreamReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	total, err := readHeader(file)
	if err != nil {
		file.Close()
		return nil, err
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("new decoder: %w", err)
	}

	return &StreamReader{file: file, dec: dec, total: total}, nil
}

// Total returns the frame count reported by the header.
func (r *StreamReader) Total() uint64 {
	return r.total
}

// Next decodes the record at the current cursor and advances by one.
// Returns io.EOF once the cursor reaches the header's frame count,
// and on every call after that. io.EOF is the normal end-of-stream
// signal, not a failure. A decode error leaves the reader open so
// that Close still releases the handle.
func (r *StreamReader) Next() (*StreamFrame, error) {
	if r.file == nil {
		return nil, ErrStreamClosed
	}
	if r.cursor >= r.total {
		return nil, io.EOF
	}

	frame, timestamp, err := readRecord(r.file, r.dec)
	if err != nil {
		if err == io.EOF { //nolint:errorlint
			err = ErrTruncatedRecord
		}
		return nil, fmt.Errorf("decode frame %d of %d: %w", r.cursor, r.total, err)
	}

	index := r.cursor
	r.cursor++

	return &StreamFrame{
		Frame:     frame,
		Timestamp: timestamp,
		Index:     index,
		Progress:  fmt.Sprintf("%d/%d", r.cursor, r.total),
	}, nil
}

// Close releases the file handle. Safe to call at any cursor
// position and more than once; Next after Close fails with
// ErrStreamClosed.
func (r *StreamReader) Close() error {
	if r.file == nil {
		return nil
	}
	file := r.file
	r.file = nil
	r.dec.Close()
	return file.Close()
}

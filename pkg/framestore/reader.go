package framestore

import (
	"fmt"
	"os"

	"github.com/klauspost/compress/zstd"
)

// ReadAll decodes an entire recording eagerly. Memory use is
// O(total decompressed size), use a StreamReader for long sessions.
//
// Records have no resync marker, so boundaries after a corrupt
// record cannot be trusted. On the first bad record ReadAll stops
// and returns the well-formed prefix together with an error naming
// the record; it never skips forward.
func ReadAll(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	frameCount, err := readHeader(file)
	if err != nil {
		return nil, err
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("new decoder: %w", err)
	}
	defer dec.Close()

	entries := make([]Entry, 0, frameCount)
	for i := uint64(0); i < frameCount; i++ {
		frame, timestamp, err := readRecord(file, dec)
		if err != nil {
			return entries, fmt.Errorf("decode frame %d of %d: %w", i, frameCount, err)
		}
		entries = append(entries, Entry{Frame: frame, Timestamp: timestamp})
	}
	return entries, nil
}

// FileInfo describes a recording without decoding it.
type FileInfo struct {
	// FrameCount as reported by the header.
	FrameCount uint64

	// Size of the whole file in bytes.
	Size int64

	// Unfinalized is set when the header reports zero frames but
	// record data is present, the signature of a writer that never
	// reached Finalize.
	Unfinalized bool
}

// Probe reads the header and file size.
func Probe(path string) (FileInfo, error) {
	file, err := os.Open(path)
	if err != nil {
		return FileInfo{}, fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return FileInfo{}, fmt.Errorf("stat file: %w", err)
	}

	frameCount, err := readHeader(file)
	if err != nil {
		return FileInfo{}, err
	}

	return FileInfo{
		FrameCount:  frameCount,
		Size:        stat.Size(),
		Unfinalized: frameCount == 0 && stat.Size() > headerSize,
	}, nil
}

package framestore

import (
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
)

// Scan recovers frames from a file whose header cannot be trusted,
// typically one left behind by a writer that crashed before
// Finalize. It ignores the header's frame count and trial-decodes
// records until EOF or the first corrupt record.
//
// The recovered prefix is returned in both cases. A nil error means
// the file ended cleanly on a record boundary; a non-nil error
// reports where decoding stopped.
func Scan(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	if _, err := readHeader(file); err != nil {
		return nil, err
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("new decoder: %w", err)
	}
	defer dec.Close()

	var entries []Entry
	for {
		frame, timestamp, err := readRecord(file, dec)
		if err == io.EOF { //nolint:errorlint
			return entries, nil
		}
		if err != nil {
			return entries, fmt.Errorf("decode frame %d: %w", len(entries), err)
		}
		entries = append(entries, Entry{Frame: frame, Timestamp: timestamp})
	}
}

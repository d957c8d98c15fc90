package framestore

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScanUnfinalized(t *testing.T) {
	frames := []*Frame{
		testFrame(2, 2, 1),
		testFrame(2, 2, 2),
		testFrame(2, 2, 3),
	}
	path := writeTestFile(t, frames)

	// Zero the header, simulating a crash before Finalize.
	file, err := os.OpenFile(path, os.O_RDWR, 0o600)
	require.NoError(t, err)
	_, err = file.WriteAt(make([]byte, headerSize), 0)
	require.NoError(t, err)
	require.NoError(t, file.Close())

	entries, err := Scan(path)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for i, entry := range entries {
		require.Equal(t, frames[i], entry.Frame)
		require.Equal(t, uint64(i), entry.Timestamp)
	}
}

func TestScanCorruptTail(t *testing.T) {
	frames := []*Frame{testFrame(2, 2, 1), testFrame(2, 2, 2)}
	path := writeTestFile(t, frames)
	appendCorruptRecord(t, path)

	entries, err := Scan(path)
	require.ErrorIs(t, err, ErrTruncatedRecord)
	require.Len(t, entries, 2)
}

func TestScanEmpty(t *testing.T) {
	path := writeTestFile(t, nil)

	entries, err := Scan(path)
	require.NoError(t, err)
	require.Empty(t, entries)
}

package framestore

import (
	"io"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStreamReader(t *testing.T) {
	frames := []*Frame{
		testFrame(4, 3, 100),
		testFrame(4, 3, 200),
		testFrame(4, 3, 300),
	}
	path := writeTestFile(t, frames)

	r, err := OpenStream(path)
	require.NoError(t, err)
	defer r.Close()

	require.Equal(t, uint64(3), r.Total())

	for i := range frames {
		sf, err := r.Next()
		require.NoError(t, err)
		require.Equal(t, frames[i], sf.Frame)
		require.Equal(t, uint64(i), sf.Timestamp)
		require.Equal(t, uint64(i), sf.Index)
	}
}

func TestStreamProgress(t *testing.T) {
	path := writeTestFile(t, []*Frame{
		testFrame(2, 2, 0),
		testFrame(2, 2, 1),
		testFrame(2, 2, 2),
	})

	r, err := OpenStream(path)
	require.NoError(t, err)
	defer r.Close()

	expected := []string{"1/3", "2/3", "3/3"}
	for _, progress := range expected {
		sf, err := r.Next()
		require.NoError(t, err)
		require.Equal(t, progress, sf.Progress)
	}
}

func TestStreamTermination(t *testing.T) {
	path := writeTestFile(t, []*Frame{testFrame(2, 2, 0)})

	r, err := OpenStream(path)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Next()
	require.NoError(t, err)

	// End of stream is repeatable and not an error state.
	for i := 0; i < 3; i++ {
		sf, err := r.Next()
		require.Nil(t, sf)
		require.Equal(t, io.EOF, err)
	}
}

func TestStreamEquivalence(t *testing.T) {
	frames := make([]*Frame, 20)
	for i := range frames {
		frames[i] = testFrame(16, 9, uint16(i*13))
	}
	path := writeTestFile(t, frames)

	bulk, err := ReadAll(path)
	require.NoError(t, err)

	r, err := OpenStream(path)
	require.NoError(t, err)
	defer r.Close()

	var streamed []Entry
	for {
		sf, err := r.Next()
		if err == io.EOF { //nolint:errorlint
			break
		}
		require.NoError(t, err)
		streamed = append(streamed, Entry{Frame: sf.Frame, Timestamp: sf.Timestamp})
	}

	require.Equal(t, bulk, streamed)
}

func TestStreamClose(t *testing.T) {
	path := writeTestFile(t, []*Frame{testFrame(2, 2, 0), testFrame(2, 2, 1)})

	r, err := OpenStream(path)
	require.NoError(t, err)

	// Closing mid-stream is always safe.
	_, err = r.Next()
	require.NoError(t, err)
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	_, err = r.Next()
	require.ErrorIs(t, err, ErrStreamClosed)
}

func TestStreamMissingFile(t *testing.T) {
	_, err := OpenStream("/nonexistent/depth.zst")
	require.ErrorIs(t, err, fs.ErrNotExist)
}

func TestStreamCorruptTail(t *testing.T) {
	path := writeTestFile(t, []*Frame{testFrame(2, 2, 0)})
	appendCorruptRecord(t, path)

	r, err := OpenStream(path)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Next()
	require.NoError(t, err)

	_, err = r.Next()
	require.ErrorIs(t, err, ErrTruncatedRecord)

	// A failed Next must still leave Close able to release the handle.
	require.NoError(t, r.Close())
}

package framestore

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func tempPath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "depth.zst")
}

func testFrame(w, h uint32, fill uint16) *Frame {
	pix := make([]uint16, int(w)*int(h))
	for i := range pix {
		pix[i] = fill + uint16(i)
	}
	return &Frame{Width: w, Height: h, Pix: pix}
}

func readRawHeader(t *testing.T, path string) uint64 {
	buf, err := os.ReadFile(path)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(buf), headerSize)
	return binary.LittleEndian.Uint64(buf[:headerSize])
}

func TestWriterHeaderPatch(t *testing.T) {
	for _, frameCount := range []int{0, 1, 1000} {
		path := tempPath(t)

		w, err := NewWriter(path)
		require.NoError(t, err)

		// Placeholder until finalized.
		require.Equal(t, uint64(0), readRawHeader(t, path))

		for i := 0; i < frameCount; i++ {
			err := w.Append(testFrame(2, 2, uint16(i)))
			require.NoError(t, err)
		}
		require.Equal(t, uint64(frameCount), w.FrameCount())
		require.NoError(t, w.Finalize())

		require.Equal(t, uint64(frameCount), readRawHeader(t, path))
	}
}

func TestWriterAppendAfterFinalize(t *testing.T) {
	w, err := NewWriter(tempPath(t))
	require.NoError(t, err)
	require.NoError(t, w.Finalize())

	err = w.Append(testFrame(1, 1, 0))
	require.ErrorIs(t, err, ErrWriterFinalized)

	err = w.Finalize()
	require.ErrorIs(t, err, ErrWriterFinalized)
}

func TestWriterFrameSizeMismatch(t *testing.T) {
	path := tempPath(t)
	w, err := NewWriter(path)
	require.NoError(t, err)
	defer w.Finalize()

	err = w.Append(&Frame{Width: 2, Height: 2, Pix: []uint16{1}})
	require.ErrorIs(t, err, ErrFrameSize)

	// Failed appends must not advance the counter.
	require.Equal(t, uint64(0), w.FrameCount())
}

func TestWriterCreateError(t *testing.T) {
	_, err := NewWriter(filepath.Join(t.TempDir(), "missing", "depth.zst"))
	require.Error(t, err)
}

// Package sensor supplies raw depth frames to the recorder.
package sensor

import (
	"io"

	"depthrec/pkg/framestore"
)

// Source produces one row-major uint16 depth frame per call.
// Implementations are pulled at the recorder's pace and must return
// io.EOF once exhausted.
type Source interface {
	NextFrame() (*framestore.Frame, error)
}

// Synthetic generates deterministic gradient frames, standing in for
// a depth camera during tests and dry runs. Not safe for concurrent
// use.
type Synthetic struct {
	width      uint32
	height     uint32
	frameCount int
	produced   int
}

// NewSynthetic returns a source producing frameCount frames of the
// given dimensions. A frameCount below zero produces frames forever.
func NewSynthetic(width, height uint32, frameCount int) *Synthetic {
	return &Synthetic{
		width:      width,
		height:     height,
		frameCount: frameCount,
	}
}

// NextFrame returns the next gradient frame or io.EOF.
func (s *Synthetic) NextFrame() (*framestore.Frame, error) {
	if s.frameCount >= 0 && s.produced >= s.frameCount {
		return nil, io.EOF
	}

	pix := make([]uint16, int(s.width)*int(s.height))
	for i := range pix {
		// Diagonal ramp shifted per frame, millimeter-ish range.
		x := i % int(s.width)
		y := i / int(s.width)
		pix[i] = uint16((x + y + s.produced*16) % 4000)
	}
	s.produced++

	return &framestore.Frame{Width: s.width, Height: s.height, Pix: pix}, nil
}

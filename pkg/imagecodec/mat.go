// Copyright 2023-2026 The NVCaffe Authors. SPDX-License-Identifier: Apache-2.0

package imagecodec

import (
	"fmt"

	"github.com/gomlx/exceptions"
)

// Matrix is the narrow view of a decoded image that layout conversion needs: a shape and the
// interleaved bytes, 8 bits per sample.
type Matrix interface {
	Channels() int
	Height() int
	Width() int

	// Bytes returns the interleaved samples: index h*Width*Channels + w*Channels + c.
	Bytes() []byte
}

// Mat is a decoded image: unsigned 8-bit samples in interleaved order.
//
// Color images use the B,G,R channel order (and B,G,R,A with alpha), grayscale images have a
// single channel.
type Mat struct {
	channels, height, width int
	pix                     []byte
}

// Assert Mat is a Matrix.
var _ Matrix = (*Mat)(nil)

// NewMat returns a zero-filled Mat. It panics if any dimension is <= 0.
func NewMat(channels, height, width int) *Mat {
	if channels <= 0 || height <= 0 || width <= 0 {
		exceptions.Panicf("imagecodec.NewMat(channels=%d, height=%d, width=%d): all dimensions must be > 0",
			channels, height, width)
	}
	return &Mat{channels: channels, height: height, width: width, pix: make([]byte, channels*height*width)}
}

// MatFromBytes wraps the interleaved bytes (without copying) in a Mat.
// It panics if any dimension is <= 0 or if the length of pix doesn't match the shape.
func MatFromBytes(pix []byte, channels, height, width int) *Mat {
	if channels <= 0 || height <= 0 || width <= 0 || len(pix) != channels*height*width {
		exceptions.Panicf("imagecodec.MatFromBytes(len=%d, channels=%d, height=%d, width=%d): invalid shape",
			len(pix), channels, height, width)
	}
	return &Mat{channels: channels, height: height, width: width, pix: pix}
}

// Channels returns the number of channels: 1 for grayscale, 3 for BGR and 4 for BGRA.
func (m *Mat) Channels() int { return m.channels }

// Height returns the number of rows.
func (m *Mat) Height() int { return m.height }

// Width returns the number of columns.
func (m *Mat) Width() int { return m.width }

// Bytes returns the underlying interleaved samples. It is not a copy.
func (m *Mat) Bytes() []byte { return m.pix }

// Empty returns whether m is nil or holds no samples.
func (m *Mat) Empty() bool { return m == nil || len(m.pix) == 0 }

// Size is the total number of samples, channels*height*width.
func (m *Mat) Size() int { return len(m.pix) }

// IsColor returns whether the image has 3 channels.
func (m *Mat) IsColor() bool { return m.channels == 3 }

// At returns the sample at row h, column w and channel c.
func (m *Mat) At(h, w, c int) byte { return m.pix[(h*m.width+w)*m.channels+c] }

// Set the sample at row h, column w and channel c.
func (m *Mat) Set(h, w, c int, v byte) { m.pix[(h*m.width+w)*m.channels+c] = v }

// String implements fmt.Stringer.
func (m *Mat) String() string {
	if m.Empty() {
		return "Mat(empty)"
	}
	return fmt.Sprintf("Mat(%dx%d, %d channels)", m.height, m.width, m.channels)
}

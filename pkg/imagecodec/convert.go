// Copyright 2023-2026 The NVCaffe Authors. SPDX-License-Identifier: Apache-2.0

package imagecodec

import (
	"image"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// ColorMode selects the number of channels of a decoded image.
type ColorMode uint8

const (
	// Color decodes to 3 channels (B,G,R), dropping any alpha channel.
	Color ColorMode = iota

	// Grayscale decodes to 1 channel, using the luma weights 0.299, 0.587 and 0.114.
	Grayscale

	// Unchanged keeps the channels as stored in the stream: 1 for gray images, 4 (B,G,R,A) for
	// images with transparency and 3 otherwise.
	Unchanged
)

// String implements fmt.Stringer.
func (m ColorMode) String() string {
	switch m {
	case Color:
		return "Color"
	case Grayscale:
		return "Grayscale"
	case Unchanged:
		return "Unchanged"
	}
	return "Unknown"
}

// ColorModeFor returns Color if isColor is set, Grayscale otherwise.
func ColorModeFor(isColor bool) ColorMode {
	if isColor {
		return Color
	}
	return Grayscale
}

// channelsFor returns the number of channels img decodes to with the given mode.
func channelsFor(img image.Image, mode ColorMode) int {
	switch mode {
	case Grayscale:
		return 1
	case Unchanged:
		switch img.(type) {
		case *image.Gray, *image.Gray16:
			return 1
		}
		if opaque, ok := img.(interface{ Opaque() bool }); ok && !opaque.Opaque() {
			return 4
		}
		return 3
	}
	return 3
}

// FromImage converts an image.Image to a Mat with the channels selected by mode.
// It returns nil for an empty image.
func FromImage(img image.Image, mode ColorMode) *Mat {
	size := img.Bounds().Size()
	if size.X <= 0 || size.Y <= 0 {
		return nil
	}
	channels := channelsFor(img, mode)
	if gray, ok := img.(*image.Gray); ok && channels == 1 {
		m := NewMat(1, size.Y, size.X)
		bounds := gray.Bounds()
		for y := 0; y < size.Y; y++ {
			start := gray.PixOffset(bounds.Min.X, bounds.Min.Y+y)
			copy(m.pix[y*size.X:], gray.Pix[start:start+size.X])
		}
		return m
	}
	if channels == 1 {
		img = imaging.Grayscale(img)
	}
	return fromNRGBA(imaging.Clone(img), channels)
}

// fromNRGBA converts from RGBA samples to the Mat channel order. For 1 channel the red sample is
// taken, which assumes the image is already gray.
func fromNRGBA(img *image.NRGBA, channels int) *Mat {
	size := img.Bounds().Size()
	m := NewMat(channels, size.Y, size.X)
	pos := 0
	for y := 0; y < size.Y; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+4*size.X]
		for x := 0; x < size.X; x++ {
			r, g, b, a := row[4*x], row[4*x+1], row[4*x+2], row[4*x+3]
			switch channels {
			case 1:
				m.pix[pos] = r
			case 3:
				m.pix[pos], m.pix[pos+1], m.pix[pos+2] = b, g, r
			case 4:
				m.pix[pos], m.pix[pos+1], m.pix[pos+2], m.pix[pos+3] = b, g, r, a
			}
			pos += channels
		}
	}
	return m
}

// ToImage converts the Mat back to an image.Image: *image.Gray for 1 channel and *image.NRGBA for
// 3 or 4 channels. Other channel counts have no image representation and return an error.
func (m *Mat) ToImage() (image.Image, error) {
	if m.Empty() {
		return nil, errors.New("cannot convert an empty Mat to an image")
	}
	rect := image.Rect(0, 0, m.width, m.height)
	switch m.channels {
	case 1:
		img := image.NewGray(rect)
		for y := 0; y < m.height; y++ {
			copy(img.Pix[y*img.Stride:y*img.Stride+m.width], m.pix[y*m.width:])
		}
		return img, nil
	case 3, 4:
		img := image.NewNRGBA(rect)
		pos := 0
		for y := 0; y < m.height; y++ {
			row := img.Pix[y*img.Stride : y*img.Stride+4*m.width]
			for x := 0; x < m.width; x++ {
				row[4*x], row[4*x+1], row[4*x+2] = m.pix[pos+2], m.pix[pos+1], m.pix[pos]
				if m.channels == 4 {
					row[4*x+3] = m.pix[pos+3]
				} else {
					row[4*x+3] = 0xFF
				}
				pos += m.channels
			}
		}
		return img, nil
	}
	return nil, errors.Errorf("cannot convert %s to an image: only 1, 3 or 4 channels are supported", m)
}

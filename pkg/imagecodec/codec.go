// Copyright 2023-2026 The NVCaffe Authors. SPDX-License-Identifier: Apache-2.0

// Package imagecodec decodes, resizes and encodes images to and from Mat, the interleaved 8-bit
// image matrix used to build datum records.
//
// The primitives are behind the Codec interface, so the image library can be swapped. Imaging is the
// default implementation, built on github.com/disintegration/imaging, with decoders for JPEG, PNG,
// GIF, BMP, TIFF and WebP.
//
// Decoding failures and unsupported formats are expected when scanning large datasets: they are
// returned as errors (see ErrDecode and ErrUnsupportedFormat) and never panic.
package imagecodec

import (
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"

	// Register the extra decoders used by image.Decode.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	// ErrDecode is returned (wrapped) when a file or stream can't be opened or parsed as an image.
	ErrDecode = errors.New("could not decode image")

	// ErrUnsupportedFormat is returned (wrapped) when asked to encode to an unknown format.
	ErrUnsupportedFormat = errors.New("unsupported image format")
)

// Codec is the image primitive used to build and decode datums.
//
// Implementations must be safe for concurrent use.
type Codec interface {
	// DecodeFile decodes the image in filePath.
	DecodeFile(filePath string, mode ColorMode) (*Mat, error)

	// Decode decodes an image from its compressed bytes.
	Decode(data []byte, mode ColorMode) (*Mat, error)

	// Resize scales m to exactly height x width, keeping its number of channels.
	Resize(m *Mat, height, width int) (*Mat, error)

	// Encode compresses m in the given format, named by its usual file extension ("jpg", "png", ...).
	Encode(m *Mat, format string) ([]byte, error)
}

// DefaultJPEGQuality is the quality used by Imaging when encoding to JPEG.
const DefaultJPEGQuality = 95

// Imaging implements Codec with github.com/disintegration/imaging.
//
// The zero value is ready to use, with DefaultJPEGQuality and bilinear resizing.
type Imaging struct {
	// JPEGQuality in 1..100. If 0, DefaultJPEGQuality is used.
	JPEGQuality int

	// Filter used by Resize. If nil, imaging.Linear is used.
	Filter *imaging.ResampleFilter
}

// Default is the Codec used when none is configured.
var Default Codec = Imaging{}

// Assert Imaging is a Codec.
var _ Codec = Imaging{}

// DecodeFile implements Codec.
func (c Imaging) DecodeFile(filePath string, mode ColorMode) (*Mat, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(ErrDecode, "failed to open %q: %v", filePath, err)
	}
	defer func() { _ = f.Close() }()
	m, err := c.decode(f, mode)
	if err != nil {
		return nil, errors.WithMessagef(err, "file %q", filePath)
	}
	return m, nil
}

// Decode implements Codec.
func (c Imaging) Decode(data []byte, mode ColorMode) (*Mat, error) {
	return c.decode(bytes.NewReader(data), mode)
}

func (c Imaging) decode(r io.Reader, mode ColorMode) (*Mat, error) {
	// EXIF orientation is honored except when asked for the stream unchanged.
	img, err := imaging.Decode(r, imaging.AutoOrientation(mode != Unchanged))
	if err != nil {
		return nil, errors.Wrapf(ErrDecode, "%v", err)
	}
	m := FromImage(img, mode)
	if m.Empty() {
		return nil, errors.Wrapf(ErrDecode, "image has no pixels (bounds %s)", img.Bounds())
	}
	return m, nil
}

// Resize implements Codec.
func (c Imaging) Resize(m *Mat, height, width int) (*Mat, error) {
	if height <= 0 || width <= 0 {
		return nil, errors.Errorf("invalid resize target %dx%d", height, width)
	}
	img, err := m.ToImage()
	if err != nil {
		return nil, errors.WithMessage(err, "while resizing")
	}
	filter := imaging.Linear
	if c.Filter != nil {
		filter = *c.Filter
	}
	return fromNRGBA(imaging.Resize(img, width, height, filter), m.Channels()), nil
}

// Encode implements Codec.
func (c Imaging) Encode(m *Mat, format string) ([]byte, error) {
	ext := strings.ToLower(strings.TrimPrefix(format, "."))
	f, err := imaging.FormatFromExtension(ext)
	if err != nil {
		return nil, errors.Wrapf(ErrUnsupportedFormat, "%q", format)
	}
	img, err := m.ToImage()
	if err != nil {
		return nil, errors.WithMessagef(err, "while encoding to %q", format)
	}
	quality := c.JPEGQuality
	if quality == 0 {
		quality = DefaultJPEGQuality
	}
	var buf bytes.Buffer
	if err = imaging.Encode(&buf, img, f, imaging.JPEGQuality(quality)); err != nil {
		return nil, errors.Wrapf(err, "failed to encode %s as %q", m, format)
	}
	return buf.Bytes(), nil
}

// Copyright 2023-2026 The NVCaffe Authors. SPDX-License-Identifier: Apache-2.0

// Package datum defines Datum, the serialized unit holding one training sample, and its binary and
// text codecs.
//
// A Datum holds its payload in one of two forms:
//
//   - Raw (Encoded == false): Data holds Channels*Height*Width unsigned 8-bit samples in planar
//     order, that is, index c*Height*Width + h*Width + w holds the sample of channel c, row h and
//     column w.
//   - Encoded (Encoded == true): Data holds an opaque compressed image (or any other blob), either
//     the verbatim contents of the source file or a re-encoded image. Channels, Height and Width
//     are not meaningful in this form.
//
// The wire formats are those of the Caffe `Datum` protobuf message, so records written here can be
// read by existing tooling and vice versa.
package datum

import (
	"fmt"
	"slices"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
)

// Datum is one training sample. It is owned by a single caller at a time and mutated in place by
// the decoding functions in package dataio.
type Datum struct {
	Channels, Height, Width int32

	// Data holds planar samples or the encoded stream, depending on Encoded.
	Data []byte

	// Label is a caller supplied classification tag.
	Label int32

	// FloatData is carried through the codecs unchanged. None of the image conversions use it.
	FloatData []float32

	// Encoded selects the interpretation of Data.
	Encoded bool
}

// Reset clears all fields of the Datum, keeping the allocated Data buffer for reuse.
func (d *Datum) Reset() {
	data := d.Data[:0]
	*d = Datum{Data: data}
}

// Clone returns a deep copy of the Datum.
func (d *Datum) Clone() *Datum {
	c := *d
	c.Data = slices.Clone(d.Data)
	c.FloatData = slices.Clone(d.FloatData)
	return &c
}

// Shape returns the planar shape of a raw Datum.
func (d *Datum) Shape() (channels, height, width int) {
	return int(d.Channels), int(d.Height), int(d.Width)
}

// Validate checks the invariant of a raw Datum: a strictly positive shape and a Data buffer
// of exactly Channels*Height*Width bytes. Encoded datums are always valid.
func (d *Datum) Validate() error {
	if d.Encoded {
		return nil
	}
	if d.Channels <= 0 || d.Height <= 0 || d.Width <= 0 {
		return errors.Errorf("datum has invalid shape (channels=%d, height=%d, width=%d)",
			d.Channels, d.Height, d.Width)
	}
	want := int64(d.Channels) * int64(d.Height) * int64(d.Width)
	if int64(len(d.Data)) != want {
		return errors.Errorf("datum data has %d bytes, but its shape (channels=%d, height=%d, width=%d) requires %d",
			len(d.Data), d.Channels, d.Height, d.Width, want)
	}
	return nil
}

// String returns a one-line summary, without the payload.
func (d *Datum) String() string {
	if d == nil {
		return "Datum(nil)"
	}
	if d.Encoded {
		return fmt.Sprintf("Datum(label=%d, encoded, %s)", d.Label, humanize.Bytes(uint64(len(d.Data))))
	}
	return fmt.Sprintf("Datum(label=%d, %dx%dx%d, %s)",
		d.Label, d.Channels, d.Height, d.Width, humanize.Bytes(uint64(len(d.Data))))
}

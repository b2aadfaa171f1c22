// Copyright 2023-2026 The NVCaffe Authors. SPDX-License-Identifier: Apache-2.0

package dataio

import (
	"github.com/alpesis-fork/NVCaffe/pkg/core/datum"
	"github.com/alpesis-fork/NVCaffe/pkg/core/layout"
	"github.com/alpesis-fork/NVCaffe/pkg/imagecodec"
	"github.com/gomlx/exceptions"
	"k8s.io/klog/v2"
)

// MatToDatum stores the pixels of m in d in planar order, sets its shape and clears Encoded.
// Label and FloatData are left untouched.
//
// It panics if m has an invalid shape.
func MatToDatum(m imagecodec.Matrix, d *datum.Datum) {
	channels, height, width := m.Channels(), m.Height(), m.Width()
	d.Data = layout.ToPlanar(m.Bytes(), channels, height, width)
	d.Channels = int32(channels)
	d.Height = int32(height)
	d.Width = int32(width)
	d.Encoded = false
}

// DatumToMat converts a raw datum back to an interleaved Mat.
//
// It panics if d is encoded or if its shape doesn't match its data.
func DatumToMat(d *datum.Datum) *imagecodec.Mat {
	if d.Encoded {
		exceptions.Panicf("dataio.DatumToMat(%s): datum is encoded, decode it first", d)
	}
	channels, height, width := d.Shape()
	pix := layout.ToInterleaved(d.Data, channels, height, width)
	return imagecodec.MatFromBytes(pix, channels, height, width)
}

func decodeDatumToMat(codec imagecodec.Codec, d *datum.Datum, mode imagecodec.ColorMode) (*imagecodec.Mat, error) {
	if !d.Encoded {
		exceptions.Panicf("dataio: cannot decode %s, datum not encoded", d)
	}
	m, err := codec.Decode(d.Data, mode)
	if err != nil {
		klog.Errorf("Could not decode datum %s: %v", d, err)
		return nil, err
	}
	return m, nil
}

// DecodeDatumToMat decodes the image of an encoded datum in color or grayscale.
//
// It panics if d is not encoded. A corrupt or unsupported stream is logged and returned as an error.
func DecodeDatumToMat(codec imagecodec.Codec, d *datum.Datum, isColor bool) (*imagecodec.Mat, error) {
	return decodeDatumToMat(codec, d, imagecodec.ColorModeFor(isColor))
}

// DecodeDatumToMatNative decodes the image of an encoded datum keeping the channels of the stream.
//
// It panics if d is not encoded. A corrupt or unsupported stream is logged and returned as an error.
func DecodeDatumToMatNative(codec imagecodec.Codec, d *datum.Datum) (*imagecodec.Mat, error) {
	return decodeDatumToMat(codec, d, imagecodec.Unchanged)
}

func decodeDatum(codec imagecodec.Codec, d *datum.Datum, mode imagecodec.ColorMode) (bool, error) {
	if !d.Encoded {
		return false, nil
	}
	m, err := decodeDatumToMat(codec, d, mode)
	if err != nil {
		return true, err
	}
	MatToDatum(m, d)
	return true, nil
}

// DecodeDatum replaces the encoded image in d by its raw planar pixels, in color or grayscale.
//
// If d is not encoded, there is nothing to do: it returns false and d is untouched. Otherwise it
// returns true, and an error if the stream could not be decoded, in which case d is unchanged
// and should be treated as a missing sample.
func DecodeDatum(codec imagecodec.Codec, d *datum.Datum, isColor bool) (bool, error) {
	return decodeDatum(codec, d, imagecodec.ColorModeFor(isColor))
}

// DecodeDatumNative is like DecodeDatum, but keeps the number of channels encoded in the stream.
func DecodeDatumNative(codec imagecodec.Codec, d *datum.Datum) (bool, error) {
	return decodeDatum(codec, d, imagecodec.Unchanged)
}

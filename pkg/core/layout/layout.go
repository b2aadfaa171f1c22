// Copyright 2023-2026 The NVCaffe Authors. SPDX-License-Identifier: Apache-2.0

// Package layout transposes 8-bit image buffers between the interleaved (height, width, channels)
// order produced by image decoders and the planar (channels, height, width) order stored in
// datum records.
//
// Both directions are pure index permutations: no value is changed, and converting one way and back
// reproduces the original buffer byte for byte.
package layout

import (
	"github.com/gomlx/exceptions"
)

// Order indicates whether the channel axis comes last (interleaved, one pixel's samples are
// contiguous) or first (planar, one channel's samples are contiguous).
type Order uint8

const (
	// Interleaved is the "channels last" layout: index h*W*C + w*C + c.
	Interleaved Order = iota

	// Planar is the "channels first" layout: index c*H*W + h*W + w.
	Planar
)

// String implements fmt.Stringer.
func (o Order) String() string {
	switch o {
	case Interleaved:
		return "Interleaved"
	case Planar:
		return "Planar"
	}
	return "Unknown"
}

// InterleavedIndex returns the position of sample (c, h, w) in an interleaved buffer.
func InterleavedIndex(c, h, w, width, channels int) int {
	return (h*width+w)*channels + c
}

// PlanarIndex returns the position of sample (c, h, w) in a planar buffer.
func PlanarIndex(c, h, w, height, width int) int {
	return (c*height+h)*width + w
}

// checkShape panics if the shape is not strictly positive or doesn't match the buffer length.
func checkShape(fn string, buf []byte, channels, height, width int) {
	if channels <= 0 || height <= 0 || width <= 0 {
		exceptions.Panicf("layout.%s: invalid shape (channels=%d, height=%d, width=%d), all dimensions must be > 0",
			fn, channels, height, width)
	}
	if len(buf) != channels*height*width {
		exceptions.Panicf("layout.%s: buffer has %d bytes, but shape (channels=%d, height=%d, width=%d) requires %d",
			fn, len(buf), channels, height, width, channels*height*width)
	}
}

// ToPlanar converts an interleaved buffer shaped [height, width, channels] to a newly allocated
// planar buffer shaped [channels, height, width].
//
// It panics if any dimension is <= 0 or if len(interleaved) != channels*height*width.
func ToPlanar(interleaved []byte, channels, height, width int) []byte {
	checkShape("ToPlanar", interleaved, channels, height, width)
	planar := make([]byte, len(interleaved))
	planeSize := height * width
	src := 0
	for hw := 0; hw < planeSize; hw++ {
		dst := hw
		for c := 0; c < channels; c++ {
			planar[dst] = interleaved[src]
			src++
			dst += planeSize
		}
	}
	return planar
}

// ToInterleaved converts a planar buffer shaped [channels, height, width] to a newly allocated
// interleaved buffer shaped [height, width, channels].
//
// It panics if any dimension is <= 0 or if len(planar) != channels*height*width.
func ToInterleaved(planar []byte, channels, height, width int) []byte {
	checkShape("ToInterleaved", planar, channels, height, width)
	interleaved := make([]byte, len(planar))
	planeSize := height * width
	dst := 0
	for hw := 0; hw < planeSize; hw++ {
		src := hw
		for c := 0; c < channels; c++ {
			interleaved[dst] = planar[src]
			dst++
			src += planeSize
		}
	}
	return interleaved
}

// Transpose converts src from one Order to another. If from == to it returns a copy of src,
// after the same shape checks.
func Transpose(src []byte, from, to Order, channels, height, width int) []byte {
	switch {
	case from == Interleaved && to == Planar:
		return ToPlanar(src, channels, height, width)
	case from == Planar && to == Interleaved:
		return ToInterleaved(src, channels, height, width)
	case from == to && (from == Interleaved || from == Planar):
		checkShape("Transpose", src, channels, height, width)
		return append([]byte(nil), src...)
	}
	exceptions.Panicf("layout.Transpose(from=%s, to=%s): unknown order", from, to)
	return nil
}

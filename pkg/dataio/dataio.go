// Copyright 2023-2026 The NVCaffe Authors. SPDX-License-Identifier: Apache-2.0

// Package dataio builds datum records from image files and decodes them back to raw planar pixels.
//
// Ingestion goes file -> imagecodec.ReadImage -> ReadImageToDatum -> datum.Datum, where the record
// either keeps the source file bytes verbatim, holds the image re-encoded to a target format, or holds
// the raw pixels in planar order. DecodeDatum reverses it, turning an encoded record into a raw one.
//
// All functions are stateless and safe to call concurrently on different records.
package dataio

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/alpesis-fork/NVCaffe/pkg/core/datum"
	"github.com/alpesis-fork/NVCaffe/pkg/imagecodec"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Options configure how ReadImageToDatumWith builds a record.
type Options struct {
	// Height and Width to resize the image to. The image is resized only if both are > 0.
	Height, Width int

	// IsColor selects 3 channels (B,G,R) instead of 1 (grayscale).
	IsColor bool

	// Encoding is the target image format ("jpg", "png", ...). If empty, the raw pixels
	// are stored in planar order.
	Encoding string
}

// DefaultOptions stores color images, at native size, as raw planar pixels.
var DefaultOptions = Options{IsColor: true}

// normalizeFormat lower-cases a format name or extension, without its leading dot, and folds
// "jpeg" into "jpg".
func normalizeFormat(format string) string {
	format = strings.ToLower(strings.TrimPrefix(format, "."))
	if format == "jpeg" {
		return "jpg"
	}
	return format
}

// MatchExt returns whether the extension of filePath matches the encoding, case-insensitively.
// "jpg" and "jpeg" are equivalent, on either side. A path without an extension never matches.
func MatchExt(filePath, encoding string) bool {
	ext := normalizeFormat(filepath.Ext(filePath))
	enc := normalizeFormat(encoding)
	return ext != "" && ext == enc
}

// ReadFileToDatum stores the contents of filePath verbatim in d, with Encoded set.
//
// It is the path for payloads that are not images at all. It returns an error if the file can't
// be read, in which case d is not modified.
func ReadFileToDatum(filePath string, label int32, d *datum.Datum) error {
	contents, err := os.ReadFile(filePath)
	if err != nil {
		return errors.Wrapf(err, "failed to read %q into a datum", filePath)
	}
	d.Reset()
	d.Data = contents
	d.Label = label
	d.Encoded = true
	return nil
}

// ReadImageToDatum loads the image in filePath and stores it in d, tagged with label.
//
//   - encoding == "": the (possibly resized) pixels are stored raw, in planar order.
//   - encoding != "" and the file is already in that format, with no resize requested and with the
//     requested color mode: the file bytes are stored verbatim, avoiding a lossy re-encode.
//   - Otherwise the (possibly resized) image is re-encoded to the requested format.
//
// Resizing happens only if both height and width are > 0.
//
// It returns an error if the image can't be loaded or encoded, in which case d is not modified
// and the caller is expected to skip the sample.
func ReadImageToDatum(codec imagecodec.Codec, filePath string, label int32, height, width int, isColor bool,
	encoding string, d *datum.Datum) error {
	m, err := imagecodec.ReadImage(codec, filePath, height, width, isColor)
	if err != nil {
		return err
	}
	if encoding == "" {
		MatToDatum(m, d)
		d.Label = label
		return nil
	}
	if m.IsColor() == isColor && height == 0 && width == 0 && MatchExt(filePath, encoding) {
		klog.V(2).Infof("%q already encoded as %q, storing it verbatim", filePath, encoding)
		return ReadFileToDatum(filePath, label, d)
	}
	klog.V(2).Infof("re-encoding %q (%s) as %q", filePath, m, encoding)
	encoded, err := codec.Encode(m, encoding)
	if err != nil {
		return errors.WithMessagef(err, "file %q", filePath)
	}
	d.Reset()
	d.Data = encoded
	d.Label = label
	d.Encoded = true
	return nil
}

// ReadImageToDatumWith is ReadImageToDatum configured with Options.
func ReadImageToDatumWith(codec imagecodec.Codec, filePath string, label int32, opts Options, d *datum.Datum) error {
	return ReadImageToDatum(codec, filePath, label, opts.Height, opts.Width, opts.IsColor, opts.Encoding, d)
}

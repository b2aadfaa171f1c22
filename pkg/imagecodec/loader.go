// Copyright 2023-2026 The NVCaffe Authors. SPDX-License-Identifier: Apache-2.0

package imagecodec

import (
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ReadImage loads the image in filePath with the given codec, in color (3 channels) or grayscale
// (1 channel).
//
// If both height and width are > 0 the image is resized to exactly height x width, otherwise its
// native size is kept.
//
// A missing or corrupt file is logged and returned as an error with a nil Mat: callers scanning a
// dataset are expected to skip the sample and carry on.
func ReadImage(codec Codec, filePath string, height, width int, isColor bool) (*Mat, error) {
	m, err := codec.DecodeFile(filePath, ColorModeFor(isColor))
	if err != nil {
		klog.Errorf("Could not open or find file %q: %v", filePath, err)
		return nil, err
	}
	if height > 0 && width > 0 {
		resized, err := codec.Resize(m, height, width)
		if err != nil {
			err = errors.WithMessagef(err, "file %q", filePath)
			klog.Errorf("Could not resize %s to %dx%d: %v", m, height, width, err)
			return nil, err
		}
		m = resized
	}
	return m, nil
}

// ReadImageNative loads the image in filePath in color, with its native size.
func ReadImageNative(codec Codec, filePath string) (*Mat, error) {
	return ReadImage(codec, filePath, 0, 0, true)
}

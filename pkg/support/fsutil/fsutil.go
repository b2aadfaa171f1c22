// Copyright 2023-2026 The NVCaffe Authors. SPDX-License-Identifier: Apache-2.0

// Package fsutil contains utilities for the paths given on the command line: image roots, list files,
// record files and record databases.
package fsutil

import (
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// FileExists returns whether the file or directory exists or an error if something went wrong in the filesystem.
func FileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, errors.Wrapf(err, "failed to stat %q", path)
}

// IsDir returns whether path exists and is a directory.
//
// A record database is a directory, while a single record file is a regular file.
func IsDir(path string) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "failed to stat %q", path)
	}
	return info.IsDir(), nil
}

// ReplaceTildeInDir by the user's home directory. Returns dir if it doesn't start with "~".
//
// It returns an error if `dir` has an unknown user (e.g: `~unknown/...`).
func ReplaceTildeInDir(dir string) (string, error) {
	if dir == "" || dir[0] != '~' {
		return dir, nil
	}
	var userName, rest string
	if sepIdx := strings.IndexRune(dir, '/'); sepIdx == -1 {
		userName = dir[1:]
	} else {
		userName, rest = dir[1:sepIdx], dir[sepIdx+1:]
	}
	var usr *user.User
	var err error
	if userName == "" {
		usr, err = user.Current()
	} else {
		usr, err = user.Lookup(userName)
	}
	if err != nil {
		return "", errors.Wrapf(err, "failed to lookup home directory for user in path %q", dir)
	}
	return filepath.Join(usr.HomeDir, rest), nil
}

// ExpandPath replaces a leading "~" and cleans the path. Empty paths are returned unchanged.
func ExpandPath(path string) (string, error) {
	if path == "" {
		return path, nil
	}
	expanded, err := ReplaceTildeInDir(path)
	if err != nil {
		return "", err
	}
	return filepath.Clean(expanded), nil
}

// JoinRoot joins a sample path read from a list file to the image root directory.
// Absolute sample paths, and an empty root, leave the sample path as is.
func JoinRoot(root, sample string) string {
	if root == "" || filepath.IsAbs(sample) {
		return sample
	}
	return filepath.Join(root, sample)
}

// EnsureParentDir creates the parent directory of path, if it doesn't exist yet.
func EnsureParentDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create directory %q", dir)
	}
	return nil
}

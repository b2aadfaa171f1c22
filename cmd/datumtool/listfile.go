// Copyright 2023-2026 The NVCaffe Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"io"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// sample is one line of a list file: an image path relative to the root directory, and its label.
type sample struct {
	Path  string
	Label int32
}

// parseListFile reads lines "path label". The label is separated by the last space, so paths may
// contain spaces. Empty lines are skipped.
func parseListFile(r io.Reader) ([]sample, error) {
	var samples []sample
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimRight(scanner.Text(), " \t\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		sep := strings.LastIndexAny(line, " \t")
		if sep <= 0 {
			return nil, errors.Errorf("line %d: expected \"<path> <label>\", got %q", lineNum, line)
		}
		label, err := strconv.ParseInt(line[sep+1:], 10, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d: invalid label %q", lineNum, line[sep+1:])
		}
		samples = append(samples, sample{
			Path:  strings.TrimRight(line[:sep], " \t"),
			Label: int32(label),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read list file")
	}
	return samples, nil
}

// readListFile opens and parses the list file in path.
func readListFile(path string) ([]sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open list file %q", path)
	}
	defer func() { _ = f.Close() }()
	samples, err := parseListFile(f)
	if err != nil {
		return nil, errors.WithMessagef(err, "list file %q", path)
	}
	return samples, nil
}

// shuffleSamples in place, deterministically for a given seed.
func shuffleSamples(samples []sample, seed uint64) {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	rng.Shuffle(len(samples), func(i, j int) {
		samples[i], samples[j] = samples[j], samples[i]
	})
}

// Copyright 2023-2026 The NVCaffe Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/alpesis-fork/NVCaffe/pkg/core/datum"
	"github.com/alpesis-fork/NVCaffe/pkg/support/fsutil"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

var toTextCmd = &cobra.Command{
	Use:   "to-text IN OUT",
	Short: "Converts a binary record file to the text format",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := expandPaths(args)
		if err != nil {
			return err
		}
		return convertRecordFile(paths[0], paths[1], datum.ReadBinaryFile, datum.MustWriteTextFile)
	},
}

var toBinaryCmd = &cobra.Command{
	Use:   "to-binary IN OUT",
	Short: "Converts a text record file to the binary format",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := expandPaths(args)
		if err != nil {
			return err
		}
		return convertRecordFile(paths[0], paths[1], datum.ReadTextFile, datum.MustWriteBinaryFile)
	},
}

func init() {
	rootCmd.AddCommand(toTextCmd)
	rootCmd.AddCommand(toBinaryCmd)
}

// convertRecordFile reads the record in inPath and writes it to outPath.
//
// Write failures are fatal in the writer. The panic is caught here and returned as an error, so
// the command exits through the usual error path.
func convertRecordFile(inPath, outPath string, read func(string, *datum.Datum) error, mustWrite func(string, *datum.Datum)) error {
	d := &datum.Datum{}
	if err := read(inPath, d); err != nil {
		return err
	}
	if err := fsutil.EnsureParentDir(outPath); err != nil {
		return err
	}
	exception := exceptions.Try(func() { mustWrite(outPath, d) })
	if exception != nil {
		if err, ok := exception.(error); ok {
			return errors.WithMessagef(err, "converting %q", inPath)
		}
		return errors.Errorf("converting %q: %v", inPath, exception)
	}
	klog.V(1).Infof("Converted %s from %q to %q", d, inPath, outPath)
	return nil
}

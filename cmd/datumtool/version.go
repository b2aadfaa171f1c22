// Copyright 2023-2026 The NVCaffe Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionClean bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of datumtool",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if versionClean {
			fmt.Fprintln(cmd.OutOrStdout(), Version)
			return
		}
		fmt.Fprintf(cmd.OutOrStdout(), "datumtool version: %s\n", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVar(&versionClean, "clean", false, "Just write the version")
}

// Copyright 2023-2026 The NVCaffe Authors. SPDX-License-Identifier: Apache-2.0

// datumtool builds and inspects datasets of datum records.
//
// Examples:
//
//	datumtool convert --resize_height=256 --resize_width=256 --encoded ~/images train.txt ~/db/train
//	datumtool inspect --limit=20 --dump=/tmp/samples ~/db/train
//	datumtool to-text mean.binaryproto mean.prototxt
//
// Defaults for the convert flags can be set in $HOME/.datumtool/config.yaml (or --config) and in
// environment variables prefixed with DATUMTOOL_ (e.g. DATUMTOOL_CONVERT_GRAY=true).
package main

import (
	"flag"
	"os"
	"path/filepath"
	"strings"

	"github.com/alpesis-fork/NVCaffe/pkg/support/fsutil"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"k8s.io/klog/v2"
)

// Version of datumtool.
const Version = "v0.1.0"

// envPrefix for environment variables overriding the configuration.
const envPrefix = "DATUMTOOL"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "datumtool",
	Short: "Builds and inspects datasets of datum records",
	Long: `Builds and inspects datasets of datum records:
  datumtool convert ROOT LISTFILE DB
  datumtool inspect FILE|DB
  datumtool to-text IN OUT
  datumtool to-binary IN OUT
  `,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	defer klog.Flush()
	if err := rootCmd.Execute(); err != nil {
		klog.Errorf("%+v", err)
		klog.Flush()
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	klogFlags := flag.NewFlagSet("klog", flag.ExitOnError)
	klog.InitFlags(klogFlags)
	rootCmd.PersistentFlags().AddGoFlagSet(klogFlags)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.datumtool/config.yaml)")
	_ = viper.BindEnv("config", envPrefix+"_CONFIG")
}

// initConfig reads in the config file and environment variables, if set.
func initConfig() {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
	if cfgFile == "" {
		cfgFile = viper.GetString("config")
	}
	if cfgFile != "" {
		path, err := fsutil.ExpandPath(cfgFile)
		if err != nil {
			klog.Exitf("Invalid config file path: %v", err)
		}
		viper.SetConfigFile(path)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			klog.Warningf("Can not find home directory, no config file will be used: %v", err)
			return
		}
		viper.AddConfigPath(filepath.Join(home, ".datumtool"))
		viper.SetConfigName("config")
	}
	if err := viper.ReadInConfig(); err == nil {
		klog.V(1).Infof("Using config file: %s", viper.ConfigFileUsed())
	} else if cfgFile != "" {
		klog.Exitf("Config file %q can not be read: %v", cfgFile, err)
	} else {
		klog.V(1).Infof("No config file used: %v", err)
	}
}

// bindFlags binds every flag of a sub-command to the viper key "<section>.<flag name>", so values
// can come from the command line, the config file or the environment, in that order of priority.
func bindFlags(section string, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		if err := viper.BindPFlag(section+"."+f.Name, f); err != nil {
			klog.Fatalf("Failed to bind flag --%s: %v", f.Name, err)
		}
	})
}

// expandPaths tilde-expands all the positional path arguments.
func expandPaths(args []string) ([]string, error) {
	paths := make([]string, len(args))
	for ii, arg := range args {
		path, err := fsutil.ExpandPath(arg)
		if err != nil {
			return nil, errors.WithMessagef(err, "argument #%d", ii+1)
		}
		paths[ii] = path
	}
	return paths, nil
}

// Copyright 2023-2026 The NVCaffe Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alpesis-fork/NVCaffe/internal/workerspool"
	"github.com/alpesis-fork/NVCaffe/pkg/core/datum"
	"github.com/alpesis-fork/NVCaffe/pkg/dataio"
	"github.com/alpesis-fork/NVCaffe/pkg/imagecodec"
	"github.com/alpesis-fork/NVCaffe/pkg/recorddb"
	"github.com/alpesis-fork/NVCaffe/pkg/support/fsutil"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"k8s.io/klog/v2"
)

// convertConfig holds the configuration of one conversion.
type convertConfig struct {
	Root, ListFile, DBPath string

	Shuffle bool
	Seed    uint64

	// Height and Width to resize to, if both > 0.
	Height, Width int
	Gray          bool

	// Encoded stores encoded images. EncodeType is the target format; if empty each image keeps the
	// format given by its file extension.
	Encoded    bool
	EncodeType string

	// CheckSize requires all raw records to have the same data size.
	CheckSize bool

	Compress    bool
	Parallelism int
	CommitEvery int
	Progress    bool
}

// convertStats summarizes a conversion.
type convertStats struct {
	Written, Failed int

	// Raw counts records stored as raw pixels in an encoded conversion, because their encoding
	// could not be guessed from the file name.
	Raw int

	Bytes   uint64
	Elapsed time.Duration
}

var convertCmd = &cobra.Command{
	Use:   "convert ROOT LISTFILE DB",
	Short: "Converts a set of images to a record database",
	Long: `Converts a set of images to a record database.

LISTFILE has one sample per line, "<path relative to ROOT> <label>", e.g.:
  cat/1.jpg 0
  dog/7.jpg 1

Samples that fail to load are logged and skipped.
`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := expandPaths(args)
		if err != nil {
			return err
		}
		cfg := convertConfig{
			Root:        paths[0],
			ListFile:    paths[1],
			DBPath:      paths[2],
			Shuffle:     viper.GetBool("convert.shuffle"),
			Seed:        viper.GetUint64("convert.seed"),
			Height:      viper.GetInt("convert.resize_height"),
			Width:       viper.GetInt("convert.resize_width"),
			Gray:        viper.GetBool("convert.gray"),
			Encoded:     viper.GetBool("convert.encoded"),
			EncodeType:  viper.GetString("convert.encode_type"),
			CheckSize:   viper.GetBool("convert.check_size"),
			Compress:    viper.GetBool("convert.compress"),
			Parallelism: viper.GetInt("convert.parallelism"),
			CommitEvery: viper.GetInt("convert.commit_every"),
			Progress:    viper.GetBool("convert.progress"),
		}
		stats, err := runConvert(cfg)
		if err != nil {
			return err
		}
		klog.Infof("Wrote %s records (%s) to %q in %s, %s samples failed",
			humanize.Comma(int64(stats.Written)), humanize.Bytes(stats.Bytes), cfg.DBPath,
			stats.Elapsed.Round(time.Millisecond), humanize.Comma(int64(stats.Failed)))
		if stats.Raw > 0 {
			klog.Warningf("%s records were stored as raw pixels: their encoding could not be guessed",
				humanize.Comma(int64(stats.Raw)))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(convertCmd)
	flags := convertCmd.Flags()
	flags.Bool("shuffle", false, "Randomly shuffle the order of the samples")
	flags.Uint64("seed", 0, "Seed used by --shuffle")
	flags.Int("resize_height", 0, "Height images are resized to, if both --resize_height and --resize_width are > 0")
	flags.Int("resize_width", 0, "Width images are resized to, if both --resize_height and --resize_width are > 0")
	flags.Bool("gray", false, "Store images in grayscale")
	flags.Bool("encoded", false, "Store encoded images instead of raw pixels")
	flags.String("encode_type", "", "Format of the encoded images (\"png\", \"jpg\", ...). Defaults to each file's format")
	flags.Bool("check_size", false, "Check that all raw records have the same size")
	flags.Bool("compress", false, "Compress the records in the database with zstd")
	flags.Int("parallelism", -1, "Number of images decoded in parallel. 0 disables parallelism, -1 uses all CPUs")
	flags.Int("commit_every", 1000, "Number of records per database transaction")
	flags.Bool("progress", true, "Display a progress bar")
	bindFlags("convert", flags)
}

// encodingFor returns the target encoding of a sample. With no --encode_type it is guessed from
// the file extension; if there is none the sample is stored raw, and a warning is logged.
func (cfg *convertConfig) encodingFor(path string) string {
	if !cfg.Encoded {
		return ""
	}
	if cfg.EncodeType != "" {
		return cfg.EncodeType
	}
	encoding := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if encoding == "" {
		klog.Warningf("Failed to guess the encoding of %q, storing it as raw pixels", path)
	}
	return encoding
}

// newLoaderPool returns the pool loading the images. A negative parallelism uses all CPUs, 0 loads
// the images sequentially in the calling goroutine.
func newLoaderPool(parallelism int) *workerspool.Pool {
	pool := workerspool.New()
	if parallelism >= 0 {
		pool.SetMaxParallelism(parallelism)
	}
	if pool.IsEnabled() {
		klog.V(1).Infof("Loading up to %d images in parallel", pool.MaxParallelism())
	} else {
		klog.V(1).Infof("Loading images sequentially")
	}
	return pool
}

// runConvert converts all the samples of the list file into the record database.
//
// Samples are loaded in parallel in chunks of cfg.CommitEvery, and each chunk is written in one
// transaction, keyed by the sample's position in the (possibly shuffled) list.
func runConvert(cfg convertConfig) (stats convertStats, err error) {
	start := time.Now()
	samples, err := readListFile(cfg.ListFile)
	if err != nil {
		return
	}
	if cfg.Shuffle {
		klog.V(1).Infof("Shuffling %d samples", len(samples))
		shuffleSamples(samples, cfg.Seed)
	}
	klog.Infof("A total of %s samples", humanize.Comma(int64(len(samples))))
	if cfg.Encoded && cfg.EncodeType == "" {
		klog.Infof("No encode_type specified, each image keeps the format of its file extension")
	}
	if cfg.CommitEvery <= 0 {
		cfg.CommitEvery = 1000
	}
	if err = fsutil.EnsureParentDir(cfg.DBPath); err != nil {
		return
	}
	db, err := recorddb.Open(cfg.DBPath, recorddb.Options{Compress: cfg.Compress})
	if err != nil {
		return
	}
	defer func() {
		errClose := db.Close()
		if err == nil {
			err = errClose
		}
	}()
	txn := db.NewTransaction()
	defer func() { _ = txn.Close() }()

	var bar *progressbar.ProgressBar
	if cfg.Progress {
		bar = progressbar.NewOptions(len(samples),
			progressbar.OptionSetDescription("converting"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("images"),
			progressbar.OptionSetTheme(progressbar.ThemeASCII),
		)
	} else {
		bar = progressbar.DefaultSilent(int64(len(samples)))
	}
	defer func() { _ = bar.Finish() }()

	pool := newLoaderPool(cfg.Parallelism)
	opts := dataio.Options{Height: cfg.Height, Width: cfg.Width, IsColor: !cfg.Gray}
	dataSize := -1
	records := make([]*datum.Datum, cfg.CommitEvery)
	for chunkStart := 0; chunkStart < len(samples); chunkStart += cfg.CommitEvery {
		chunk := samples[chunkStart:min(chunkStart+cfg.CommitEvery, len(samples))]
		for ii, s := range chunk {
			pool.WaitToStart(func() {
				d := &datum.Datum{}
				sampleOpts := opts
				sampleOpts.Encoding = cfg.encodingFor(s.Path)
				path := fsutil.JoinRoot(cfg.Root, s.Path)
				if err := dataio.ReadImageToDatumWith(imagecodec.Default, path, s.Label, sampleOpts, d); err != nil {
					klog.Errorf("Skipping sample %q: %v", path, err)
					d = nil
				}
				records[ii] = d
				_ = bar.Add(1)
			})
		}
		pool.Wait()

		for ii, s := range chunk {
			record := records[ii]
			records[ii] = nil
			if record == nil {
				stats.Failed++
				continue
			}
			if cfg.CheckSize && !record.Encoded {
				if dataSize < 0 {
					dataSize = len(record.Data)
				} else if len(record.Data) != dataSize {
					err = errors.Errorf("incorrect data size for %q: got %d bytes, want %d", s.Path, len(record.Data), dataSize)
					return
				}
			}
			if err = txn.Put(recorddb.Key(chunkStart+ii, s.Path), record); err != nil {
				return
			}
			stats.Written++
			if cfg.Encoded && !record.Encoded {
				stats.Raw++
			}
			stats.Bytes += uint64(len(record.Data))
		}
		if err = txn.Commit(); err != nil {
			return
		}
		klog.V(1).Infof("Processed %d files", chunkStart+len(chunk))
	}
	stats.Elapsed = time.Since(start)
	return
}

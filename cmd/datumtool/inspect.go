// Copyright 2023-2026 The NVCaffe Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/alpesis-fork/NVCaffe/pkg/core/datum"
	"github.com/alpesis-fork/NVCaffe/pkg/dataio"
	"github.com/alpesis-fork/NVCaffe/pkg/imagecodec"
	"github.com/alpesis-fork/NVCaffe/pkg/recorddb"
	"github.com/alpesis-fork/NVCaffe/pkg/support/fsutil"
	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/disintegration/imaging"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

var (
	flagInspectText  bool
	flagInspectLimit int
	flagInspectDump  string
)

var inspectCmd = &cobra.Command{
	Use:   "inspect FILE|DB",
	Short: "Lists the records of a record file or database",
	Long: `Lists the records of a record file (binary, or text with --text) or of a record database
created by "datumtool convert". With --dump=DIR the records are also decoded and saved as PNG images.
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := expandPaths(args)
		if err != nil {
			return err
		}
		dumpDir, err := fsutil.ExpandPath(flagInspectDump)
		if err != nil {
			return err
		}
		return runInspect(cmd.OutOrStdout(), paths[0], flagInspectText, flagInspectLimit, dumpDir)
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().BoolVar(&flagInspectText, "text", false, "Read FILE in the text format")
	inspectCmd.Flags().IntVar(&flagInspectLimit, "limit", 100, "Maximum number of records listed from a database. 0 for all")
	inspectCmd.Flags().StringVar(&flagInspectDump, "dump", "", "Directory where to save the decoded records as PNG images")
}

var (
	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)
	oddRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFF")).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#999")).
			PaddingLeft(1).PaddingRight(1)
	titleStyle = lipgloss.NewStyle().Bold(true).Padding(1, 4, 0, 4)
)

func newRecordsTable() *lgtable.Table {
	return lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			if row == lgtable.HeaderRow {
				return headerRowStyle
			}
			if row%2 == 0 {
				s = evenRowStyle
			} else {
				s = oddRowStyle
			}
			if col == 0 {
				return s.Align(lipgloss.Left)
			}
			return s.Align(lipgloss.Right)
		}).
		Headers("Key", "Label", "Encoded", "Shape", "Size", "Float data")
}

// recordRow is the table row describing one record.
func recordRow(key string, d *datum.Datum) []string {
	shape := "-"
	if !d.Encoded {
		c, h, w := d.Shape()
		shape = fmt.Sprintf("%dx%dx%d", c, h, w)
	}
	return []string{
		key,
		fmt.Sprintf("%d", d.Label),
		fmt.Sprintf("%v", d.Encoded),
		shape,
		humanize.Bytes(uint64(len(d.Data))),
		humanize.Comma(int64(len(d.FloatData))),
	}
}

// errStopIteration ends the iteration over a database once the limit is reached.
var errStopIteration = errors.New("stop iteration")

// runInspect lists the records in path, a record file or a record database directory.
func runInspect(w io.Writer, path string, text bool, limit int, dumpDir string) error {
	isDB, err := fsutil.IsDir(path)
	if err != nil {
		return err
	}
	if dumpDir != "" {
		if err := os.MkdirAll(dumpDir, 0o755); err != nil {
			return errors.Wrapf(err, "failed to create dump directory %q", dumpDir)
		}
	}
	table := newRecordsTable()
	var count int
	var totalBytes uint64
	visit := func(key string, d *datum.Datum) error {
		table.Row(recordRow(key, d)...)
		count++
		totalBytes += uint64(len(d.Data))
		if dumpDir != "" {
			if err := dumpRecord(dumpDir, key, d); err != nil {
				// Non-image payloads are listed anyway.
				klog.Warningf("Record %q not dumped: %v", key, err)
			}
		}
		return nil
	}

	if isDB {
		db, err := recorddb.Open(path, recorddb.Options{ReadOnly: true})
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()
		err = db.Iterate(func(key []byte, d *datum.Datum) error {
			if limit > 0 && count >= limit {
				return errStopIteration
			}
			return visit(string(key), d)
		})
		if err != nil && !errors.Is(err, errStopIteration) {
			return err
		}
	} else {
		d := &datum.Datum{}
		if text {
			err = datum.ReadTextFile(path, d)
		} else {
			err = datum.ReadBinaryFile(path, d)
		}
		if err != nil {
			return err
		}
		if err = visit(filepath.Base(path), d); err != nil {
			return err
		}
	}

	_, _ = fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%s: %s records, %s", path,
		humanize.Comma(int64(count)), humanize.Bytes(totalBytes))))
	_, err = fmt.Fprintln(w, table.Render())
	return err
}

// dumpRecord decodes d and saves it as a PNG image in dir. The image file is named after the key.
func dumpRecord(dir, key string, d *datum.Datum) error {
	var m *imagecodec.Mat
	if d.Encoded {
		var err error
		m, err = dataio.DecodeDatumToMatNative(imagecodec.Default, d)
		if err != nil {
			return err
		}
	} else {
		if err := d.Validate(); err != nil {
			return err
		}
		m = dataio.DatumToMat(d)
	}
	img, err := m.ToImage()
	if err != nil {
		return err
	}
	name := strings.NewReplacer("/", "_", string(filepath.Separator), "_").Replace(key)
	name = strings.TrimSuffix(name, filepath.Ext(name)) + ".png"
	return errors.Wrapf(imaging.Save(img, filepath.Join(dir, name)), "failed to save %q", name)
}

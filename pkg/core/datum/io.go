// Copyright 2023-2026 The NVCaffe Authors. SPDX-License-Identifier: Apache-2.0

package datum

import (
	"io"
	"math"
	"os"

	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ReadBytesLimit is the maximum size of a binary record file: 2GB minus 1 byte.
//
// It guards against malformed or truncated length-prefixed streams asking for absurd allocations.
const ReadBytesLimit = math.MaxInt32

// ErrTooLarge is returned when a record file exceeds ReadBytesLimit.
var ErrTooLarge = errors.New("record file exceeds the read limit")

// writeFailureHint is appended to write errors: these are not recoverable at this layer.
const writeFailureHint = "Possible reasons: no disk space, no write permissions, the destination folder doesn't exist"

// readFileWithLimit reads at most limit bytes of the file, and fails with ErrTooLarge if there is more.
func readFileWithLimit(filePath string, limit int64) ([]byte, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "file not found: %q", filePath)
	}
	defer func() { _ = f.Close() }()
	b, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, errors.Wrapf(err, "failed reading %q", filePath)
	}
	if int64(len(b)) > limit {
		return nil, errors.Wrapf(ErrTooLarge, "%q is larger than %d bytes", filePath, limit)
	}
	return b, nil
}

// ReadBinaryFile parses the record stored in binary wire format in filePath into d.
//
// It returns an error if the file can't be opened, is larger than ReadBytesLimit or doesn't parse.
// d is only modified on success.
func ReadBinaryFile(filePath string, d *Datum) error {
	return readBinaryFileWithLimit(filePath, d, ReadBytesLimit)
}

func readBinaryFileWithLimit(filePath string, d *Datum, limit int64) error {
	b, err := readFileWithLimit(filePath, limit)
	if err != nil {
		return err
	}
	if err = Unmarshal(b, d); err != nil {
		return errors.WithMessagef(err, "while reading %q", filePath)
	}
	return nil
}

// ReadTextFile parses the record stored in text format in filePath into d.
//
// It returns an error if the file can't be opened or the text doesn't parse as a Datum.
// d is only modified on success.
func ReadTextFile(filePath string, d *Datum) error {
	b, err := readFileWithLimit(filePath, ReadBytesLimit)
	if err != nil {
		return err
	}
	if err = UnmarshalText(b, d); err != nil {
		return errors.WithMessagef(err, "while reading %q", filePath)
	}
	return nil
}

// writeFile creates (or truncates) filePath with mode 0644, writes the contents to it and syncs
// it to disk.
func writeFile(filePath string, contents []byte) (err error) {
	f, err := os.OpenFile(filePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return errors.Wrapf(err, "failed to create %q. %s", filePath, writeFailureHint)
	}
	return writeSyncClose(f, filePath, contents)
}

// syncFile is the part of *os.File used to write a record.
type syncFile interface {
	io.WriteCloser
	Sync() error
}

// writeSyncClose writes contents to f, syncs and closes it. The first error is returned.
// Some filesystems only report a full disk on sync.
func writeSyncClose(f syncFile, filePath string, contents []byte) (err error) {
	defer func() {
		errClose := f.Close()
		if err == nil && errClose != nil {
			err = errors.Wrapf(errClose, "failed to close %q. %s", filePath, writeFailureHint)
		}
	}()
	if _, err = f.Write(contents); err != nil {
		return errors.Wrapf(err, "failed to write %q. %s", filePath, writeFailureHint)
	}
	if err = f.Sync(); err != nil {
		return errors.Wrapf(err, "failed to sync %q. %s", filePath, writeFailureHint)
	}
	return nil
}

// WriteBinaryFile serializes d in binary wire format to filePath, truncating any existing file.
func WriteBinaryFile(filePath string, d *Datum) error {
	b, err := Marshal(d)
	if err != nil {
		return err
	}
	return writeFile(filePath, b)
}

// WriteTextFile serializes d in text format to filePath, truncating any existing file.
func WriteTextFile(filePath string, d *Datum) error {
	b, err := MarshalText(d)
	if err != nil {
		return err
	}
	return writeFile(filePath, b)
}

// MustWriteBinaryFile is like WriteBinaryFile, but a failure is fatal: it is logged and the
// goroutine panics. A partially written record is worse than stopping.
func MustWriteBinaryFile(filePath string, d *Datum) {
	err := WriteBinaryFile(filePath, d)
	if err != nil {
		klog.Errorf("Failed to write record %s: %v", d, err)
	}
	must.M(err)
}

// MustWriteTextFile is like WriteTextFile, but a failure is fatal: it is logged and the
// goroutine panics.
func MustWriteTextFile(filePath string, d *Datum) {
	err := WriteTextFile(filePath, d)
	if err != nil {
		klog.Errorf("Failed to print record %s as text: %v", d, err)
	}
	must.M(err)
}

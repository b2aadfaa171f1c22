package datum

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawDatum() *Datum {
	d := &Datum{Channels: 3, Height: 2, Width: 2, Label: 7}
	d.Data = make([]byte, 12)
	for ii := range d.Data {
		d.Data[ii] = byte(ii * 21)
	}
	return d
}

func encodedDatum() *Datum {
	// Includes bytes that need escaping in the text format.
	return &Datum{Data: []byte{0xFF, 0xD8, 0x00, '"', '\\', '\n', 0x7F, 0xD9}, Label: -3, Encoded: true}
}

func requireSameDatum(t *testing.T, want, got *Datum) {
	t.Helper()
	assert.Equal(t, want.Channels, got.Channels)
	assert.Equal(t, want.Height, got.Height)
	assert.Equal(t, want.Width, got.Width)
	assert.Equal(t, want.Label, got.Label)
	assert.Equal(t, want.Encoded, got.Encoded)
	assert.Equal(t, want.Data, got.Data)
	assert.Equal(t, len(want.FloatData), len(got.FloatData))
	for ii := range want.FloatData {
		assert.Equal(t, want.FloatData[ii], got.FloatData[ii])
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, rawDatum().Validate())
	require.NoError(t, encodedDatum().Validate())

	d := rawDatum()
	d.Data = d.Data[:11]
	require.Error(t, d.Validate())

	d = rawDatum()
	d.Channels = 0
	require.Error(t, d.Validate())
}

func TestCloneAndReset(t *testing.T) {
	d := rawDatum()
	d.FloatData = []float32{1, 2}
	c := d.Clone()
	requireSameDatum(t, d, c)
	c.Data[0] = 99
	c.FloatData[0] = 99
	assert.NotEqual(t, d.Data[0], c.Data[0])
	assert.NotEqual(t, d.FloatData[0], c.FloatData[0])

	c.Reset()
	assert.Empty(t, c.Data)
	assert.Zero(t, c.Channels)
	assert.Zero(t, c.Label)
	assert.False(t, c.Encoded)
}

func TestString(t *testing.T) {
	assert.Equal(t, "Datum(label=7, 3x2x2, 12 B)", rawDatum().String())
	assert.Equal(t, "Datum(label=-3, encoded, 8 B)", encodedDatum().String())
}

func TestMarshalUnmarshal(t *testing.T) {
	for _, want := range []*Datum{rawDatum(), encodedDatum(), {Data: []byte{1}, FloatData: []float32{0.5, -1.25}}} {
		b, err := Marshal(want)
		require.NoError(t, err)
		got := &Datum{Label: 1000, Channels: 5}
		require.NoError(t, Unmarshal(b, got))
		requireSameDatum(t, want, got)

		txt, err := MarshalText(want)
		require.NoError(t, err)
		got = &Datum{}
		require.NoError(t, UnmarshalText(txt, got))
		requireSameDatum(t, want, got)
	}
}

func TestWireCompatibility(t *testing.T) {
	// Hand-assembled caffe.Datum: channels=1, height=1, width=2, data="\x05\x06", label=3, encoded=false.
	b := []byte{
		0x08, 0x01,
		0x10, 0x01,
		0x18, 0x02,
		0x22, 0x02, 0x05, 0x06,
		0x28, 0x03,
		0x38, 0x00,
	}
	d := &Datum{}
	require.NoError(t, Unmarshal(b, d))
	requireSameDatum(t, &Datum{Channels: 1, Height: 1, Width: 2, Data: []byte{5, 6}, Label: 3}, d)

	encoded, err := Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, b, encoded)
}

func TestUnmarshalInvalid(t *testing.T) {
	d := rawDatum()
	// Field 4 (data) claims 100 bytes, but the stream ends after 2.
	require.Error(t, Unmarshal([]byte{0x22, 100, 1, 2}, d))
	requireSameDatum(t, rawDatum(), d)

	require.Error(t, UnmarshalText([]byte("channels: \"three\""), d))
	require.Error(t, UnmarshalText([]byte("unknown_field: 1"), d))
	requireSameDatum(t, rawDatum(), d)
}

func TestTextFormat(t *testing.T) {
	txt, err := MarshalText(rawDatum())
	require.NoError(t, err)
	for _, name := range []string{"channels:", "height:", "width:", "data:", "label:", "encoded:"} {
		assert.Contains(t, string(txt), name)
	}

	d := &Datum{}
	require.NoError(t, UnmarshalText([]byte("channels: 1 height: 1 width: 3 data: \"abc\" label: 4"), d))
	requireSameDatum(t, &Datum{Channels: 1, Height: 1, Width: 3, Data: []byte("abc"), Label: 4}, d)
}

func TestFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	for _, want := range []*Datum{rawDatum(), encodedDatum()} {
		binPath := filepath.Join(dir, "datum.binaryproto")
		require.NoError(t, WriteBinaryFile(binPath, want))
		got := &Datum{}
		require.NoError(t, ReadBinaryFile(binPath, got))
		requireSameDatum(t, want, got)

		txtPath := filepath.Join(dir, "datum.prototxt")
		require.NoError(t, WriteTextFile(txtPath, want))
		got = &Datum{}
		require.NoError(t, ReadTextFile(txtPath, got))
		requireSameDatum(t, want, got)
	}
}

func TestWriteTruncates(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "datum.binaryproto")
	require.NoError(t, os.WriteFile(filePath, []byte(strings.Repeat("x", 1000)), 0644))
	MustWriteBinaryFile(filePath, encodedDatum())
	got := &Datum{}
	require.NoError(t, ReadBinaryFile(filePath, got))
	requireSameDatum(t, encodedDatum(), got)
}

func TestReadMissingFile(t *testing.T) {
	d := rawDatum()
	missing := filepath.Join(t.TempDir(), "missing")
	require.Error(t, ReadBinaryFile(missing, d))
	require.Error(t, ReadTextFile(missing, d))
	requireSameDatum(t, rawDatum(), d)
}

func TestReadGarbage(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "garbage")
	require.NoError(t, os.WriteFile(filePath, []byte{0xFF, 0xFF, 0xFF}, 0644))
	d := &Datum{}
	require.Error(t, ReadBinaryFile(filePath, d))
	require.Error(t, ReadTextFile(filePath, d))
}

func TestReadLimit(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "datum.binaryproto")
	require.NoError(t, WriteBinaryFile(filePath, rawDatum()))
	info, err := os.Stat(filePath)
	require.NoError(t, err)

	d := &Datum{}
	require.NoError(t, readBinaryFileWithLimit(filePath, d, info.Size()))
	err = readBinaryFileWithLimit(filePath, d, info.Size()-1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTooLarge))
}

func TestWriteFailures(t *testing.T) {
	badPath := filepath.Join(t.TempDir(), "no", "such", "dir", "datum.binaryproto")
	require.Error(t, WriteBinaryFile(badPath, rawDatum()))
	require.Error(t, WriteTextFile(badPath, rawDatum()))
	require.Panics(t, func() { MustWriteBinaryFile(badPath, rawDatum()) })
	require.Panics(t, func() { MustWriteTextFile(badPath, rawDatum()) })
}

// fakeFile records the calls made by writeSyncClose and fails where configured.
type fakeFile struct {
	written           []byte
	writeErr, syncErr error
	synced, closed    bool
}

func (f *fakeFile) Write(p []byte) (int, error) {
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	f.written = append(f.written, p...)
	return len(p), nil
}

func (f *fakeFile) Sync() error {
	f.synced = true
	return f.syncErr
}

func (f *fakeFile) Close() error {
	f.closed = true
	return nil
}

func TestWriteSyncClose(t *testing.T) {
	f := &fakeFile{}
	require.NoError(t, writeSyncClose(f, "ok.binaryproto", []byte{1, 2, 3}))
	assert.Equal(t, []byte{1, 2, 3}, f.written)
	assert.True(t, f.synced)
	assert.True(t, f.closed)

	// A full disk reported only on sync is still a write failure.
	diskFull := errors.New("no space left on device")
	f = &fakeFile{syncErr: diskFull}
	err := writeSyncClose(f, "full.binaryproto", []byte{1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, diskFull))
	assert.Contains(t, err.Error(), "failed to sync")
	assert.Contains(t, err.Error(), "Possible reasons")
	assert.True(t, f.closed)

	f = &fakeFile{writeErr: diskFull}
	err = writeSyncClose(f, "full.binaryproto", []byte{1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to write")
	assert.False(t, f.synced, "nothing to sync after a failed write")
	assert.True(t, f.closed)
}

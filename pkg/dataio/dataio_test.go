package dataio

import (
	"bytes"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/alpesis-fork/NVCaffe/pkg/core/datum"
	"github.com/alpesis-fork/NVCaffe/pkg/imagecodec"
	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var codec = imagecodec.Default

// saveTestImage writes a width x height image to dir/name, in the format of the extension.
func saveTestImage(t *testing.T, dir, name string, width, height int, alpha uint8) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(20 * x), G: uint8(30 * y), B: 100, A: alpha})
		}
	}
	filePath := filepath.Join(dir, name)
	require.NoError(t, imaging.Save(img, filePath))
	return filePath
}

func requireUnchanged(t *testing.T, want, got *datum.Datum) {
	t.Helper()
	assert.Equal(t, want.Channels, got.Channels)
	assert.Equal(t, want.Height, got.Height)
	assert.Equal(t, want.Width, got.Width)
	assert.Equal(t, want.Label, got.Label)
	assert.Equal(t, want.Encoded, got.Encoded)
	assert.Equal(t, want.Data, got.Data)
}

func TestMatchExt(t *testing.T) {
	for _, tc := range []struct {
		path, encoding string
		want           bool
	}{
		{"a/b/img.jpg", "jpg", true},
		{"a/b/img.JPG", "jpg", true},
		{"img.jpeg", "jpg", true},
		{"img.jpeg", "JPEG", true},
		{"img.jpg", "jpeg", true},
		{"IMG.JPG", "JPEG", true},
		{"img.jpeg", ".jpeg", true},
		{"img.png", "jpeg", false},
		{"img.png", "png", true},
		{"img.png", ".png", true},
		{"img.png", "jpg", false},
		{"img.tar.gz", "gz", true},
		{"img", "jpg", false},
		{"jpg", "jpg", false},
		{"img.jpg", "", false},
	} {
		assert.Equalf(t, tc.want, MatchExt(tc.path, tc.encoding), "MatchExt(%q, %q)", tc.path, tc.encoding)
	}
}

func TestReadFileToDatum(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "blob.bin")
	contents := []byte{0, 1, 2, 0xFF, 'x'}
	require.NoError(t, os.WriteFile(filePath, contents, 0644))

	d := &datum.Datum{Channels: 3, Height: 2, Width: 2}
	require.NoError(t, ReadFileToDatum(filePath, 5, d))
	assert.True(t, d.Encoded)
	assert.Equal(t, int32(5), d.Label)
	assert.Equal(t, contents, d.Data)
	assert.Zero(t, d.Channels)

	before := d.Clone()
	require.Error(t, ReadFileToDatum(filePath+".missing", 6, d))
	requireUnchanged(t, before, d)
}

func TestReadImageToDatumRaw(t *testing.T) {
	filePath := saveTestImage(t, t.TempDir(), "img.png", 5, 4, 0xFF)
	d := &datum.Datum{}
	require.NoError(t, ReadImageToDatum(codec, filePath, 3, 0, 0, true, "", d))
	assert.False(t, d.Encoded)
	assert.Equal(t, int32(3), d.Label)
	assert.Equal(t, int32(3), d.Channels)
	assert.Equal(t, int32(4), d.Height)
	assert.Equal(t, int32(5), d.Width)
	require.NoError(t, d.Validate())

	// Planar: channel 2 (red) of pixel (h=1, w=2) is 20*2.
	assert.Equal(t, byte(40), d.Data[2*4*5+1*5+2])
	// Channel 0 (blue) is constant.
	for ii := 0; ii < 20; ii++ {
		assert.Equal(t, byte(100), d.Data[ii])
	}

	require.NoError(t, ReadImageToDatumWith(codec, filePath, 1, Options{Height: 2, Width: 3}, d))
	assert.Equal(t, int32(1), d.Channels)
	assert.Equal(t, int32(2), d.Height)
	assert.Equal(t, int32(3), d.Width)
	assert.Len(t, d.Data, 6)
}

func TestReadImageToDatumFastPath(t *testing.T) {
	dir := t.TempDir()
	for _, tc := range []struct{ name, encoding string }{
		{"img.jpg", "jpg"},
		{"img.jpeg", "jpg"},
		{"IMG.JPG", "jpg"},
		{"img.jpg", "jpeg"},
		{"IMG2.JPG", "JPEG"},
		{"img.png", "png"},
		{"img.png", "PNG"},
	} {
		filePath := saveTestImage(t, dir, tc.name, 8, 6, 0xFF)
		contents, err := os.ReadFile(filePath)
		require.NoError(t, err)

		d := &datum.Datum{}
		require.NoError(t, ReadImageToDatum(codec, filePath, 9, 0, 0, true, tc.encoding, d))
		assert.True(t, d.Encoded)
		assert.Equal(t, int32(9), d.Label)
		assert.Truef(t, bytes.Equal(contents, d.Data), "%s as %q should be stored verbatim", tc.name, tc.encoding)
	}
}

func TestReadImageToDatumReencode(t *testing.T) {
	dir := t.TempDir()
	pngPath := saveTestImage(t, dir, "img.png", 8, 6, 0xFF)
	pngContents, err := os.ReadFile(pngPath)
	require.NoError(t, err)

	// Different format: re-encoded to JPEG.
	d := &datum.Datum{}
	require.NoError(t, ReadImageToDatum(codec, pngPath, 2, 0, 0, true, "jpg", d))
	assert.True(t, d.Encoded)
	assert.Equal(t, []byte{0xFF, 0xD8}, d.Data[:2])

	// Same format, but resize requested: re-encoded with the requested size.
	d = &datum.Datum{}
	require.NoError(t, ReadImageToDatum(codec, pngPath, 2, 3, 5, true, "png", d))
	assert.True(t, d.Encoded)
	assert.False(t, bytes.Equal(pngContents, d.Data))
	decoded, err := codec.Decode(d.Data, imagecodec.Unchanged)
	require.NoError(t, err)
	assert.Equal(t, 3, decoded.Height())
	assert.Equal(t, 5, decoded.Width())

	changed, err := DecodeDatum(codec, d, true)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, int32(3), d.Height)
	assert.Equal(t, int32(5), d.Width)
	assert.Equal(t, int32(2), d.Label)
}

func TestReadImageToDatumFailures(t *testing.T) {
	dir := t.TempDir()
	original := &datum.Datum{Channels: 1, Height: 1, Width: 2, Data: []byte{7, 8}, Label: 4}
	d := original.Clone()

	require.Error(t, ReadImageToDatum(codec, filepath.Join(dir, "missing.jpg"), 1, 0, 0, true, "jpg", d))
	requireUnchanged(t, original, d)
	require.Error(t, ReadImageToDatum(codec, filepath.Join(dir, "missing.jpg"), 1, 0, 0, true, "", d))
	requireUnchanged(t, original, d)

	pngPath := saveTestImage(t, dir, "img.png", 4, 4, 0xFF)
	err := ReadImageToDatum(codec, pngPath, 1, 0, 0, true, "webp", d)
	require.Error(t, err)
	assert.True(t, errors.Is(err, imagecodec.ErrUnsupportedFormat))
	requireUnchanged(t, original, d)

	corrupt := filepath.Join(dir, "corrupt.png")
	require.NoError(t, os.WriteFile(corrupt, []byte("definitely not a png"), 0644))
	err = ReadImageToDatum(codec, corrupt, 1, 0, 0, true, "png", d)
	require.Error(t, err)
	assert.True(t, errors.Is(err, imagecodec.ErrDecode))
	requireUnchanged(t, original, d)
}

func TestDecodeDatumRawIsNoop(t *testing.T) {
	original := &datum.Datum{Channels: 1, Height: 2, Width: 2, Data: []byte{1, 2, 3, 4}, Label: 8}
	d := original.Clone()
	for _, decode := range []func() (bool, error){
		func() (bool, error) { return DecodeDatum(codec, d, true) },
		func() (bool, error) { return DecodeDatum(codec, d, false) },
		func() (bool, error) { return DecodeDatumNative(codec, d) },
	} {
		changed, err := decode()
		require.NoError(t, err)
		assert.False(t, changed)
		requireUnchanged(t, original, d)
	}
}

func TestDecodeDatum(t *testing.T) {
	dir := t.TempDir()
	pngPath := saveTestImage(t, dir, "img.png", 5, 4, 0xFF)
	encoded := &datum.Datum{}
	require.NoError(t, ReadFileToDatum(pngPath, 3, encoded))

	d := encoded.Clone()
	changed, err := DecodeDatum(codec, d, true)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.False(t, d.Encoded)
	assert.Equal(t, int32(3), d.Label)
	require.NoError(t, d.Validate())

	// Same result as reading the image directly as raw pixels.
	raw := &datum.Datum{}
	require.NoError(t, ReadImageToDatum(codec, pngPath, 3, 0, 0, true, "", raw))
	requireUnchanged(t, raw, d)

	d = encoded.Clone()
	_, err = DecodeDatum(codec, d, false)
	require.NoError(t, err)
	assert.Equal(t, int32(1), d.Channels)
	assert.Len(t, d.Data, 20)

	alphaPath := saveTestImage(t, dir, "alpha.png", 5, 4, 0x30)
	require.NoError(t, ReadFileToDatum(alphaPath, 3, d))
	_, err = DecodeDatumNative(codec, d)
	require.NoError(t, err)
	assert.Equal(t, int32(4), d.Channels)
	assert.Len(t, d.Data, 80)
}

func TestDecodeDatumCorrupt(t *testing.T) {
	original := &datum.Datum{Data: []byte("garbage"), Label: 1, Encoded: true}
	d := original.Clone()
	changed, err := DecodeDatum(codec, d, true)
	assert.True(t, changed)
	require.Error(t, err)
	assert.True(t, errors.Is(err, imagecodec.ErrDecode))
	requireUnchanged(t, original, d)

	m, err := DecodeDatumToMatNative(codec, d)
	require.Error(t, err)
	assert.Nil(t, m)
}

func TestDecodeDatumToMat(t *testing.T) {
	pngPath := saveTestImage(t, t.TempDir(), "img.png", 5, 4, 0xFF)
	d := &datum.Datum{}
	require.NoError(t, ReadFileToDatum(pngPath, 0, d))
	m, err := DecodeDatumToMat(codec, d, true)
	require.NoError(t, err)
	assert.Equal(t, 3, m.Channels())
	assert.True(t, d.Encoded, "DecodeDatumToMat must not modify the datum")

	require.Panics(t, func() {
		_, _ = DecodeDatumToMat(codec, &datum.Datum{Channels: 1, Height: 1, Width: 1, Data: []byte{0}}, true)
	})
}

func TestMatDatumRoundTrip(t *testing.T) {
	m := imagecodec.NewMat(3, 4, 4)
	d := &datum.Datum{Label: 6, Encoded: true}
	MatToDatum(m, d)
	assert.False(t, d.Encoded)
	assert.Equal(t, int32(6), d.Label)
	require.Len(t, d.Data, 48)
	assert.Equal(t, make([]byte, 48), d.Data)

	m.Set(2, 3, 1, 255)
	MatToDatum(m, d)
	for ii, v := range d.Data {
		if ii == 1*16+2*4+3 {
			assert.Equal(t, byte(255), v)
		} else {
			assert.Zerof(t, v, "d.Data[%d]", ii)
		}
	}
	assert.Equal(t, m.Bytes(), DatumToMat(d).Bytes())

	require.Panics(t, func() { DatumToMat(&datum.Datum{Data: []byte{1}, Encoded: true}) })
	require.Panics(t, func() { DatumToMat(&datum.Datum{Channels: 1, Height: 2, Width: 2, Data: []byte{1}}) })
}

// badMatrix has a shape inconsistent with its bytes.
type badMatrix struct{ channels, height, width int }

func (b badMatrix) Channels() int { return b.channels }
func (b badMatrix) Height() int   { return b.height }
func (b badMatrix) Width() int    { return b.width }
func (b badMatrix) Bytes() []byte { return make([]byte, 4) }

func TestMatToDatumInvalidShape(t *testing.T) {
	require.Panics(t, func() { MatToDatum(badMatrix{0, 2, 2}, &datum.Datum{}) })
	require.Panics(t, func() { MatToDatum(badMatrix{1, 0, 4}, &datum.Datum{}) })
	require.Panics(t, func() { MatToDatum(badMatrix{1, 4, 0}, &datum.Datum{}) })
	require.Panics(t, func() { MatToDatum(badMatrix{3, 2, 2}, &datum.Datum{}) })
	require.NotPanics(t, func() { MatToDatum(badMatrix{1, 2, 2}, &datum.Datum{}) })
}

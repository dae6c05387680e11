package npxl

import (
	"errors"
	stdimage "image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bodgit/npxl/image"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xfmoulet/qoi"
)

func readPNG(t *testing.T, file string) stdimage.Image {
	t.Helper()
	f, err := os.Open(file)
	require.NoError(t, err)
	defer f.Close()

	m, err := png.Decode(f)
	require.NoError(t, err)
	return m
}

func rgb(t *testing.T, m stdimage.Image) []uint8 {
	t.Helper()
	b := m.Bounds()
	var pix []uint8
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := m.At(x, y).RGBA()
			pix = append(pix, uint8(r>>8), uint8(g>>8), uint8(bl>>8))
		}
	}
	return pix
}

func TestConvertFile(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "binary.npxl", "2 1\n2 1\n10\n")

	r := New(nil, testLogger(), Options{}).ConvertFile(file)
	require.NoError(t, r.Err)
	assert.Equal(t, StatusComplete, r.Status)
	assert.Equal(t, filepath.Join(dir, "binary.png"), r.Output)

	m := readPNG(t, r.Output)
	assert.Equal(t, stdimage.Rect(0, 0, 2, 1), m.Bounds())
	assert.Equal(t, []uint8{255, 255, 255, 0, 0, 0}, rgb(t, m))
}

func TestConvertFileOptions(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	require.NoError(t, os.Mkdir(out, 0755))
	file := writeFile(t, dir, "rgb.npxl", "2 2\n16 3\nf000f0\n00ffff\n")

	r := New(nil, testLogger(), Options{Scale: 3, Colors: 4, OutputDir: out}).ConvertFile(file)
	require.NoError(t, r.Err)
	assert.Equal(t, filepath.Join(out, "rgb.png"), r.Output)

	m := readPNG(t, r.Output)
	assert.Equal(t, stdimage.Rect(0, 0, 6, 6), m.Bounds())

	_, ok := m.(*stdimage.Paletted)
	assert.True(t, ok)

	// Each source pixel becomes a 3x3 block
	assert.Equal(t, m.At(0, 0), m.At(2, 2))
	assert.Equal(t, m.At(3, 3), m.At(5, 5))
	assert.NotEqual(t, m.At(0, 0), m.At(3, 0))
}

func TestConvertFileColorsLimit(t *testing.T) {
	const digits = "0123456789abcdefghijklmnopqrstuvwxyz"

	var sb strings.Builder
	sb.WriteString("36 36\n36 3\n")
	for y := 0; y < 36; y++ {
		for x := 0; x < 36; x++ {
			sb.WriteByte(digits[x])
			sb.WriteByte(digits[y])
			sb.WriteByte(digits[(x+y)%36])
		}
		sb.WriteByte('\n')
	}
	file := writeFile(t, t.TempDir(), "many.npxl", sb.String())

	r := New(nil, testLogger(), Options{Colors: 1000}).ConvertFile(file)
	require.NoError(t, r.Err)
	assert.Equal(t, StatusComplete, r.Status)

	pm, ok := readPNG(t, r.Output).(*stdimage.Paletted)
	require.True(t, ok)
	assert.LessOrEqual(t, len(pm.Palette), MaxColors)

	// Negative is the same as no palette
	r = New(nil, testLogger(), Options{Colors: -1}).ConvertFile(file)
	require.NoError(t, r.Err)
	_, ok = readPNG(t, r.Output).(*stdimage.Paletted)
	assert.False(t, ok)
}

func TestConvertFileQOI(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "grey.npxl", "1 1\n4 1\n3\n")

	r := New(nil, testLogger(), Options{Format: FormatQOI}).ConvertFile(file)
	require.NoError(t, r.Err)
	assert.Equal(t, filepath.Join(dir, "grey.qoi"), r.Output)

	f, err := os.Open(r.Output)
	require.NoError(t, err)
	defer f.Close()

	m, err := qoi.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, []uint8{255, 255, 255}, rgb(t, m))
}

func TestConvertFileTruncated(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "short.npxl", "2 10\n2 1\n11\n11\n11\n11\n")

	r := New(nil, testLogger(), Options{}).ConvertFile(file)
	assert.Equal(t, StatusFailed, r.Status)
	assert.True(t, errors.Is(r.Err, image.ErrBufferSizeMismatch))
	assert.True(t, r.Result.Truncated())
	assert.NoFileExists(t, filepath.Join(dir, "short.png"))

	r = New(nil, testLogger(), Options{Decode: image.Options{Partial: true}}).ConvertFile(file)
	require.NoError(t, r.Err)
	assert.Equal(t, StatusTruncated, r.Status)
	assert.Equal(t, 4, r.Result.Rows)

	pix := rgb(t, readPNG(t, r.Output))
	for i, v := range pix {
		if i < 4*2*3 {
			assert.Equal(t, uint8(255), v)
		} else {
			assert.Equal(t, uint8(0), v)
		}
	}
}

func TestConvertFileIgnored(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "notes.txt", "2 1\n2 1\n10\n")

	r := New(nil, testLogger(), Options{}).ConvertFile(file)
	assert.Equal(t, StatusIgnored, r.Status)
	assert.NoError(t, r.Err)
}

func TestConvertFileMissing(t *testing.T) {
	r := New(nil, testLogger(), Options{}).ConvertFile(filepath.Join(t.TempDir(), "missing.npxl"))
	assert.Equal(t, StatusFailed, r.Status)
	assert.True(t, errors.Is(r.Err, os.ErrNotExist))
}

func TestConvertFileIdempotent(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "same.npxl", "3 2\n36 3\nzzz00aABC\nxyz123789\n")

	c := New(nil, testLogger(), Options{})

	r := c.ConvertFile(file)
	require.NoError(t, r.Err)
	first, err := os.ReadFile(r.Output)
	require.NoError(t, err)

	r = c.ConvertFile(file)
	require.NoError(t, r.Err)
	second, err := os.ReadFile(r.Output)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("QOI")
	require.NoError(t, err)
	assert.Equal(t, FormatQOI, f)
	assert.Equal(t, ".qoi", f.Extension())

	_, err = ParseFormat("bmp")
	assert.Error(t, err)
}

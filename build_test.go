package npxl

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bodgit/npxl/image"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeFile(t *testing.T, file string) *image.Buffer {
	t.Helper()
	f, err := os.Open(file)
	require.NoError(t, err)
	defer f.Close()

	b, _, err := image.Decode(f, image.Options{})
	require.NoError(t, err)
	return b
}

func TestBuild(t *testing.T) {
	dir := t.TempDir()
	bodies := []string{"1010\n0101\n", "1111\n", "0000\n0110"}
	writeFile(t, dir, "0.npxl", "4 5\n2 1\n")
	for i, body := range bodies {
		writeFile(t, dir, string(rune('1'+i))+".npxl", body)
	}
	// Not reached as 4.npxl is missing
	writeFile(t, dir, "5.npxl", "1111\n")

	n, err := New(nil, testLogger(), Options{}).Build(dir, "")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	out := filepath.Join(dir, BuildFilename)
	b, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "4 5\n2 1\n1010\n0101\n1111\n0000\n0110\n", string(b))

	// The same pixels as decoding each body on its own
	full := decodeFile(t, out)
	var pix []uint8
	for _, body := range bodies {
		rows := strings.Count(strings.TrimSuffix(body, "\n"), "\n") + 1
		part := writeFile(t, t.TempDir(), "part.npxl", "4 "+string(rune('0'+rows))+"\n2 1\n"+body)
		pix = append(pix, decodeFile(t, part).Pix...)
	}
	assert.Equal(t, pix, full.Pix)
}

func TestBuildOutput(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "0.npxl", "1 1\n2 1\n1\n")
	out := filepath.Join(t.TempDir(), "joined.npxl")

	n, err := New(nil, testLogger(), Options{}).Build(dir, out)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.FileExists(t, out)
}

func TestBuildNoHeader(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "1.npxl", "1111\n")

	_, err := New(nil, testLogger(), Options{}).Build(dir, "")
	assert.True(t, errors.Is(err, ErrNoHeader))
	assert.NoFileExists(t, filepath.Join(dir, BuildFilename))
}

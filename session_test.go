package npxl

import (
	"testing"
	"time"

	"github.com/bodgit/npxl/image"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "live.npxl", "1 2\n2 1\n1\n1\n")

	s, err := NewSession(file, image.Options{Mode: image.ModeViewer})
	require.NoError(t, err)
	assert.Equal(t, image.Header{Width: 1, Height: 2, Base: 2, Channels: 1}, s.Header())

	changed, err := s.Refresh()
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []uint8{127, 127, 127, 255, 127, 127, 127, 255}, s.Frame().Pix)
	assert.Equal(t, image.StateComplete, s.Result().State)

	// Nothing to do until invalidated
	writeFile(t, dir, "live.npxl", "1 2\n2 1\n0\n")
	changed, err = s.Refresh()
	require.NoError(t, err)
	assert.False(t, changed)

	// The missing second row keeps the previous frame
	s.Invalidate()
	changed, err = s.Refresh()
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []uint8{0, 0, 0, 255, 127, 127, 127, 255}, s.Frame().Pix)
	assert.True(t, s.Result().Truncated())

	// A new size starts from a blank frame
	writeFile(t, dir, "live.npxl", "2 1\n2 1\n1\n")
	s.Invalidate()
	changed, err = s.Refresh()
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 2, s.Header().Width)
	assert.Equal(t, []uint8{127, 127, 127, 255, 0, 0, 0, 255}, s.Frame().Pix)

	// A broken file keeps the last good frame
	writeFile(t, dir, "live.npxl", "oops\n")
	s.Invalidate()
	changed, err = s.Refresh()
	assert.Error(t, err)
	assert.False(t, changed)
	assert.Equal(t, 2, s.Header().Width)
}

func TestNewSessionBadHeader(t *testing.T) {
	file := writeFile(t, t.TempDir(), "bad.npxl", "0 0\n2 1\n")
	_, err := NewSession(file, image.Options{})
	assert.Error(t, err)
}

func TestSessionExpire(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "live.npxl", "1 1\n2 1\n1\n")

	s, err := NewSession(file, image.Options{})
	require.NoError(t, err)

	changed, err := s.Refresh()
	require.NoError(t, err)
	assert.True(t, changed)

	now := time.Now()
	assert.False(t, s.Expire(now, 0))
	assert.False(t, s.Expire(now, time.Hour))
	assert.True(t, s.Expire(now.Add(time.Hour), time.Hour))

	// A failed read also waits for the next interval
	writeFile(t, dir, "live.npxl", "oops\n")
	_, err = s.Refresh()
	assert.Error(t, err)

	assert.False(t, s.Expire(time.Now(), time.Hour))
	changed, err = s.Refresh()
	assert.NoError(t, err)
	assert.False(t, changed)
}

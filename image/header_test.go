package image

import (
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHeader(t *testing.T) {
	tables := []struct {
		name         string
		line0, line1 string
		header       Header
	}{
		{
			name:   "grey",
			line0:  "2 1",
			line1:  "2 1",
			header: Header{Width: 2, Height: 1, Base: 2, Channels: 1},
		},
		{
			name:   "rgb",
			line0:  "64 40",
			line1:  "16 3",
			header: Header{Width: 64, Height: 40, Base: 16, Channels: 3},
		},
		{
			name:   "extra fields",
			line0:  " 3   4 5 ",
			line1:  "36\t3 9",
			header: Header{Width: 3, Height: 4, Base: 36, Channels: 3},
		},
		{
			name:   "missing fields",
			line0:  "3",
			line1:  "",
			header: Header{Width: 3, Base: 2},
		},
	}

	for _, table := range tables {
		t.Run(table.name, func(t *testing.T) {
			h, err := ParseHeader(table.line0, table.line1)
			require.NoError(t, err)
			assert.Equal(t, table.header, h)
		})
	}
}

func TestParseHeaderBadField(t *testing.T) {
	_, err := ParseHeader("2 1", "2 x")
	require.Error(t, err)

	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 1, pe.Line)
	assert.Equal(t, "x", pe.Token)

	var ne *strconv.NumError
	assert.True(t, errors.As(err, &ne))
}

func TestDecodeHeader(t *testing.T) {
	tables := []struct {
		name  string
		input string
		err   error
		line  int
	}{
		{"ok", "4 4\n10 1\n", nil, 0},
		{"ok without body newline", "4 4\n10 1", nil, 0},
		{"empty", "", errMissingLine, 0},
		{"truncated", "4 4\n", errMissingLine, 1},
		{"zero width", "0 4\n10 1\n", ErrInvalidHeader, 0},
		{"degenerate", "4\n10 1\n", ErrInvalidHeader, 0},
		{"too large", "100000 100000\n2 1\n", ErrInvalidHeader, 0},
		{"overflowing", "3074457345618258603 1\n2 1\n", ErrInvalidHeader, 0},
		{"base too big", "4 4\n37 1\n", ErrInvalidHeader, 1},
		{"base too small", "4 4\n1 1\n", ErrInvalidHeader, 1},
		{"no channels", "4 4\n10\n", ErrInvalidHeader, 1},
		{"too many channels", "4 4\n10 99999999\n", ErrInvalidHeader, 1},
	}

	for _, table := range tables {
		t.Run(table.name, func(t *testing.T) {
			h, err := DecodeHeader(strings.NewReader(table.input))
			if table.err == nil {
				require.NoError(t, err)
				assert.Equal(t, Header{Width: 4, Height: 4, Base: 10, Channels: 1}, h)
				return
			}

			assert.True(t, errors.Is(err, table.err), "got %v", err)

			var pe *ParseError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, table.line, pe.Line)
		})
	}
}

func TestDecodeHeaderStopsAfterHeader(t *testing.T) {
	r := strings.NewReader("1 1\n2 1\n" + strings.Repeat("garbage", 10))
	_, err := DecodeHeader(r)
	require.NoError(t, err)
}

func TestHeaderValidateLimit(t *testing.T) {
	assert.NoError(t, Header{Width: MaxPixels, Height: 1, Base: 2, Channels: 1}.Validate())
	assert.NoError(t, Header{Width: 1 << 13, Height: 1 << 13, Base: 16, Channels: 3}.Validate())
	assert.ErrorIs(t, Header{Width: MaxPixels + 1, Height: 1, Base: 2, Channels: 1}.Validate(), ErrInvalidHeader)
	assert.ErrorIs(t, Header{Width: 1 << 30, Height: 1 << 30, Base: 2, Channels: 1}.Validate(), ErrInvalidHeader)
}

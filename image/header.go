package image

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var (
	// ErrInvalidHeader is returned when a header parses but describes an
	// image that cannot be decoded
	ErrInvalidHeader = errors.New("npxl: invalid header")

	errMissingLine = errors.New("npxl: missing header line")
)

// ParseError records a failure to read the header of an npxl file.
type ParseError struct {
	Line  int
	Token string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Token != "" {
		return fmt.Sprintf("npxl: header line %d: bad field %q: %v", e.Line, e.Token, e.Err)
	}
	return fmt.Sprintf("npxl: header line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Header describes the geometry and encoding of an npxl image.
type Header struct {
	Width    int
	Height   int
	Base     int
	Channels int
}

// Pixels returns the number of pixels described by the header
func (h Header) Pixels() int {
	return h.Width * h.Height
}

// RowLength returns the number of digits needed for one full row
func (h Header) RowLength() int {
	return h.Width * h.Channels
}

// MaxPixels is the largest image, in pixels, that will be decoded
const MaxPixels = 1 << 26

// check returns the header line holding the first bad field along with
// what is wrong with it
func (h Header) check() (int, error) {
	switch {
	case h.Width <= 0 || h.Height <= 0:
		return 0, fmt.Errorf("%w: dimensions %dx%d", ErrInvalidHeader, h.Width, h.Height)
	case h.Width > MaxPixels/h.Height:
		return 0, fmt.Errorf("%w: dimensions %dx%d exceed %d pixels", ErrInvalidHeader, h.Width, h.Height, MaxPixels)
	case h.Base < minBase || h.Base > maxBase:
		return 1, fmt.Errorf("%w: base %d not in %d-%d", ErrInvalidHeader, h.Base, minBase, maxBase)
	case h.Channels < 1:
		return 1, fmt.Errorf("%w: %d channels per pixel", ErrInvalidHeader, h.Channels)
	case h.Channels > maxLineLength/h.Width:
		return 1, fmt.Errorf("%w: %d channels per pixel exceed the longest row", ErrInvalidHeader, h.Channels)
	}
	return 0, nil
}

// Validate checks the header describes something that can be decoded.
func (h Header) Validate() error {
	_, err := h.check()
	return err
}

func (h Header) validate() error {
	if line, err := h.check(); err != nil {
		return &ParseError{Line: line, Err: err}
	}
	return nil
}

func (h Header) String() string {
	return fmt.Sprintf("%dx%d base %d, %d channel(s)", h.Width, h.Height, h.Base, h.Channels)
}

// Missing fields are left at their zero value
func parseFields(line int, s string, fields ...*int) error {
	for i, tok := range strings.Fields(s) {
		n, err := strconv.Atoi(tok)
		if err != nil {
			return &ParseError{Line: line, Token: tok, Err: err}
		}
		if i < len(fields) {
			*fields[i] = n
		}
	}
	return nil
}

// ParseHeader interprets the first two lines of an npxl file. The first
// line is "width height" and the second is "base channels". The returned
// header is not validated.
func ParseHeader(line0, line1 string) (Header, error) {
	h := Header{Base: minBase}
	if err := parseFields(0, line0, &h.Width, &h.Height); err != nil {
		return Header{}, err
	}
	if err := parseFields(1, line1, &h.Base, &h.Channels); err != nil {
		return Header{}, err
	}
	return h, nil
}

func readHeader(s *bufio.Scanner) (Header, error) {
	var lines [headerLines]string
	for i := range lines {
		if !s.Scan() {
			if err := s.Err(); err != nil {
				return Header{}, err
			}
			return Header{}, &ParseError{Line: i, Err: errMissingLine}
		}
		lines[i] = s.Text()
	}
	return ParseHeader(lines[0], lines[1])
}

// DecodeHeader reads and validates the header of an npxl file from r
// without reading any of the body.
func DecodeHeader(r io.Reader) (Header, error) {
	h, err := readHeader(newScanner(r))
	if err != nil {
		return Header{}, err
	}
	if err := h.validate(); err != nil {
		return Header{}, err
	}
	return h, nil
}

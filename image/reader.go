package image

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
)

// ErrBufferSizeMismatch is returned when the decoded pixels do not exactly
// fill the destination
var ErrBufferSizeMismatch = errors.New("npxl: buffer size mismatch")

// Rows can be long for wide RGB images
const maxLineLength = 16 << (10 * 2)

// Past this only the count of warnings is kept
const maxWarnings = 256

func newScanner(r io.Reader) *bufio.Scanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64<<10), maxLineLength)
	return s
}

// State is the progress of a single decode.
type State int

const (
	StateUnopened State = iota
	StateHeaderParsed
	StateDecoding
	StateComplete
	StateTruncated
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnopened:
		return "unopened"
	case StateHeaderParsed:
		return "header parsed"
	case StateDecoding:
		return "decoding"
	case StateComplete:
		return "complete"
	case StateTruncated:
		return "truncated"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Done reports whether no more rows will be produced
func (s State) Done() bool {
	return s >= StateComplete
}

// Options control decoding.
type Options struct {
	Mode Mode
	// Strict records a Warning for every invalid digit and short row.
	// Decoding carries on regardless
	Strict bool
	// Partial allows Decode to return an image that is not completely
	// filled instead of ErrBufferSizeMismatch
	Partial bool
}

// Warning describes a problem with the body that was decoded leniently.
type Warning struct {
	Row    int
	Column int
	Char   rune
	Short  bool
}

func (w Warning) String() string {
	if w.Short {
		return fmt.Sprintf("row %d: short row, %d digit(s)", w.Row, w.Column)
	}
	return fmt.Sprintf("row %d, column %d: invalid digit %q", w.Row, w.Column, w.Char)
}

// Result summarises a finished, or abandoned, decode.
type Result struct {
	Header   Header
	State    State
	Rows     int
	Pixels   int
	Warnings []Warning
	// Omitted counts warnings beyond those kept in Warnings
	Omitted int
}

// Truncated reports whether the body ran out before the last row
func (r Result) Truncated() bool {
	return r.State == StateTruncated
}

// Decoder reads an npxl file a row at a time.
type Decoder struct {
	s    *bufio.Scanner
	opts Options

	header Header
	scale  scale
	state  State
	err    error

	row      int
	pixels   int
	warnings []Warning
	omitted  int
}

// NewDecoder returns a Decoder reading from r. Nothing is read until the
// header or the first row is asked for.
func NewDecoder(r io.Reader, opts Options) *Decoder {
	return &Decoder{
		s:    newScanner(r),
		opts: opts,
	}
}

func (d *Decoder) fail(err error) error {
	d.state, d.err = StateFailed, err
	return err
}

// Header returns the validated header, reading it first if necessary.
func (d *Decoder) Header() (Header, error) {
	switch d.state {
	case StateUnopened:
	case StateFailed:
		return Header{}, d.err
	default:
		return d.header, nil
	}

	h, err := readHeader(d.s)
	if err != nil {
		return Header{}, d.fail(err)
	}
	if err := h.validate(); err != nil {
		return Header{}, d.fail(err)
	}

	d.header, d.scale, d.state = h, newScale(d.opts.Mode, h.Base), StateHeaderParsed
	return h, nil
}

// State returns the current state of the decode
func (d *Decoder) State() State {
	return d.state
}

// Row returns the number of rows produced so far
func (d *Decoder) Row() int {
	return d.row
}

// Next decodes the next row into row, which must hold at least Width
// pixels. It returns io.EOF once every row has been produced or the body
// ran out of lines; State tells the two apart.
func (d *Decoder) Next(row []Pixel) error {
	if _, err := d.Header(); err != nil {
		return err
	}

	switch {
	case d.state == StateFailed:
		return d.err
	case d.state.Done():
		return io.EOF
	case d.row == d.header.Height:
		d.state = StateComplete
		return io.EOF
	}

	if len(row) < d.header.Width {
		return fmt.Errorf("%w: row holds %d pixels, need %d", ErrBufferSizeMismatch, len(row), d.header.Width)
	}

	if !d.s.Scan() {
		if err := d.s.Err(); err != nil {
			return d.fail(err)
		}
		d.state = StateTruncated
		return io.EOF
	}

	d.state = StateDecoding
	d.decodeRow(d.s.Text(), row[:d.header.Width])
	d.row++

	return nil
}

func (d *Decoder) warn(w Warning) {
	if !d.opts.Strict {
		return
	}
	if len(d.warnings) >= maxWarnings {
		d.omitted++
		return
	}
	d.warnings = append(d.warnings, w)
}

func digit(r rune) int {
	switch {
	case '0' <= r && r <= '9':
		return int(r - '0')
	case 'a' <= r && r <= 'z':
		return int(r-'a') + 10
	case 'A' <= r && r <= 'Z':
		return int(r-'A') + 10
	}
	return -1
}

func (d *Decoder) decodeRow(line string, row []Pixel) {
	channels := d.header.Channels
	need := d.header.RowLength()

	n := 0
	for _, r := range line {
		if n == need {
			break
		}

		v := digit(r)
		if v < 0 || v >= d.header.Base {
			d.warn(Warning{Row: d.row, Column: n, Char: r})
			v = 0
		}
		c := d.scale[v]

		x := n / channels
		switch n % channels {
		case 0:
			if channels == 1 {
				row[x] = Pixel{c, c, c}
			} else {
				row[x] = Pixel{R: c}
			}
		case 1:
			row[x].G = c
		case 2:
			row[x].B = c
		}
		n++
	}

	// Anything the line did not reach is black
	for x := (n + channels - 1) / channels; x < len(row); x++ {
		row[x] = Pixel{}
	}
	if n < need {
		d.warn(Warning{Row: d.row, Column: n, Short: true})
	}

	d.pixels += n / channels
}

// Result returns a summary of the decode so far
func (d *Decoder) Result() Result {
	return Result{
		Header:   d.header,
		State:    d.state,
		Rows:     d.row,
		Pixels:   d.pixels,
		Warnings: d.warnings,
		Omitted:  d.omitted,
	}
}

// Materialize writes every remaining row of d to s in order. Rows missing
// from a truncated file are left as they were in s.
func Materialize(d *Decoder, s Surface) (Result, error) {
	h, err := d.Header()
	if err != nil {
		return d.Result(), err
	}

	if s.Width() != h.Width || s.Height() != h.Height {
		return d.Result(), fmt.Errorf("%w: surface is %dx%d, image is %dx%d", ErrBufferSizeMismatch, s.Width(), s.Height(), h.Width, h.Height)
	}

	row := make([]Pixel, h.Width)
	for {
		if err := d.Next(row); err != nil {
			if err == io.EOF {
				break
			}
			return d.Result(), err
		}
		y := d.Row() - 1
		for x, p := range row {
			s.SetPixel(x, y, p)
		}
	}

	return d.Result(), nil
}

// Decode reads a complete npxl image from r. Unless opts.Partial is set a
// file that does not fill every pixel is an error, although the buffer and
// result are still returned.
func Decode(r io.Reader, opts Options) (*Buffer, Result, error) {
	d := NewDecoder(r, opts)

	h, err := d.Header()
	if err != nil {
		return nil, d.Result(), err
	}

	b := NewBuffer(h.Width, h.Height)
	res, err := Materialize(d, b)
	if err != nil {
		return nil, res, err
	}

	if res.Pixels != h.Pixels() && !opts.Partial {
		return b, res, fmt.Errorf("%w: decoded %d of %d pixels", ErrBufferSizeMismatch, res.Pixels, h.Pixels())
	}

	return b, res, nil
}

// DecodeConfig returns the color model and dimensions of an npxl image
// without decoding the body.
func DecodeConfig(r io.Reader) (image.Config, error) {
	h, err := DecodeHeader(r)
	if err != nil {
		return image.Config{}, err
	}
	return image.Config{
		ColorModel: color.RGBAModel,
		Width:      h.Width,
		Height:     h.Height,
	}, nil
}

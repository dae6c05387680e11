package image

import (
	"bufio"
	"image"
	"image/color"
	"io"
	"strconv"
)

const digits = "0123456789abcdefghijklmnopqrstuvwxyz"

type encoder struct {
	w *bufio.Writer

	header     Header
	proportion int
}

// Nearest digit that ModeExport would scale back to v
func (e *encoder) digit(v uint8) byte {
	d := (int(v) + e.proportion/2) / e.proportion
	if d >= e.header.Base {
		d = e.header.Base - 1
	}
	return digits[d]
}

func (e *encoder) writeHeader() error {
	h := e.header
	for _, line := range [headerLines][2]int{{h.Width, h.Height}, {h.Base, h.Channels}} {
		if _, err := e.w.WriteString(strconv.Itoa(line[0]) + " " + strconv.Itoa(line[1]) + "\n"); err != nil {
			return err
		}
	}
	return nil
}

func (e *encoder) encode(m image.Image) error {
	if err := e.writeHeader(); err != nil {
		return err
	}

	b := m.Bounds()
	row := make([]byte, 0, e.header.RowLength()+1)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row = row[:0]
		for x := b.Min.X; x < b.Max.X; x++ {
			if e.header.Channels == 1 {
				g := color.GrayModel.Convert(m.At(x, y)).(color.Gray)
				row = append(row, e.digit(g.Y))
				continue
			}

			c := color.RGBAModel.Convert(m.At(x, y)).(color.RGBA)
			for i, v := range [3]uint8{c.R, c.G, c.B} {
				if i == e.header.Channels {
					break
				}
				row = append(row, e.digit(v))
			}
			// Padding for channels past blue
			for i := 3; i < e.header.Channels; i++ {
				row = append(row, '0')
			}
		}
		if _, err := e.w.Write(append(row, '\n')); err != nil {
			return err
		}
	}

	return e.w.Flush()
}

// Encode writes the Image m to w in npxl format using the given base and
// number of digits per pixel. Colors are rounded to the nearest digit.
func Encode(w io.Writer, m image.Image, base, channels int) error {
	b := m.Bounds()
	h := Header{
		Width:    b.Dx(),
		Height:   b.Dy(),
		Base:     base,
		Channels: channels,
	}
	if err := h.Validate(); err != nil {
		return err
	}

	e := encoder{
		w:          bufio.NewWriter(w),
		header:     h,
		proportion: ModeExport.Proportion(base),
	}

	return e.encode(m)
}

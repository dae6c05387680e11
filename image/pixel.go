package image

import (
	"image"
	"image/color"
)

// Pixel is a single decoded color.
type Pixel struct {
	R, G, B uint8
}

// RGBA implements the color.Color interface. Pixels are always opaque.
func (p Pixel) RGBA() (r, g, b, a uint32) {
	r = uint32(p.R)
	r |= r << 8
	g = uint32(p.G)
	g |= g << 8
	b = uint32(p.B)
	b |= b << 8
	return r, g, b, 0xffff
}

// Surface is anything decoded pixels can be written to.
type Surface interface {
	Width() int
	Height() int
	SetPixel(x, y int, p Pixel)
}

// Buffer is a flat RGB pixel buffer, three bytes per pixel, row-major. It
// implements image.Image.
type Buffer struct {
	Pix    []uint8
	width  int
	height int
}

// NewBuffer returns a black buffer of the given size
func NewBuffer(width, height int) *Buffer {
	return &Buffer{
		Pix:    make([]uint8, width*height*3),
		width:  width,
		height: height,
	}
}

func (b *Buffer) Width() int  { return b.width }
func (b *Buffer) Height() int { return b.height }

func (b *Buffer) SetPixel(x, y int, p Pixel) {
	i := (y*b.width + x) * 3
	b.Pix[i+0] = p.R
	b.Pix[i+1] = p.G
	b.Pix[i+2] = p.B
}

// Pixel returns the color at x, y
func (b *Buffer) Pixel(x, y int) Pixel {
	i := (y*b.width + x) * 3
	return Pixel{b.Pix[i+0], b.Pix[i+1], b.Pix[i+2]}
}

func (b *Buffer) ColorModel() color.Model {
	return color.RGBAModel
}

func (b *Buffer) Bounds() image.Rectangle {
	return image.Rect(0, 0, b.width, b.height)
}

func (b *Buffer) At(x, y int) color.Color {
	if !(image.Point{x, y}.In(b.Bounds())) {
		return Pixel{}
	}
	return b.Pixel(x, y)
}

// ToRGBA copies the buffer into a new opaque *image.RGBA
func (b *Buffer) ToRGBA() *image.RGBA {
	m := image.NewRGBA(b.Bounds())
	for i, j := 0, 0; i < len(b.Pix); i, j = i+3, j+4 {
		m.Pix[j+0] = b.Pix[i+0]
		m.Pix[j+1] = b.Pix[i+1]
		m.Pix[j+2] = b.Pix[i+2]
		m.Pix[j+3] = 0xff
	}
	return m
}

// RGBASurface adapts an *image.RGBA so it can be decoded into directly.
type RGBASurface struct {
	*image.RGBA
}

func (s RGBASurface) Width() int  { return s.Rect.Dx() }
func (s RGBASurface) Height() int { return s.Rect.Dy() }

func (s RGBASurface) SetPixel(x, y int, p Pixel) {
	i := s.PixOffset(s.Rect.Min.X+x, s.Rect.Min.Y+y)
	s.Pix[i+0] = p.R
	s.Pix[i+1] = p.G
	s.Pix[i+2] = p.B
	s.Pix[i+3] = 0xff
}

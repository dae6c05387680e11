package npxl

import (
	"errors"
	"fmt"
	stdimage "image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bodgit/npxl/image"
	"github.com/ericpauley/go-quantize/quantize"
	"github.com/nfnt/resize"
	"github.com/xfmoulet/qoi"
)

// Format is an output image format.
type Format int

const (
	FormatPNG Format = iota
	FormatQOI
)

// ParseFormat returns the Format with the given name
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "png", "":
		return FormatPNG, nil
	case "qoi":
		return FormatQOI, nil
	}
	return 0, fmt.Errorf("unknown output format %q", s)
}

func (f Format) String() string {
	if f == FormatQOI {
		return "qoi"
	}
	return "png"
}

// Extension returns the file extension for the format
func (f Format) Extension() string {
	return "." + f.String()
}

func (f Format) encode(w io.Writer, m stdimage.Image) error {
	if f == FormatQOI {
		return qoi.Encode(w, m)
	}
	return png.Encode(w, m)
}

// Status is the outcome of converting one file.
type Status string

const (
	StatusComplete  Status = "complete"
	StatusTruncated Status = "truncated"
	StatusFailed    Status = "failed"
	StatusIgnored   Status = "ignored"
	StatusUnchanged Status = "unchanged"
)

// Report describes what happened to a single file.
type Report struct {
	File     string
	Output   string
	Status   Status
	Result   image.Result
	Duration time.Duration
	Err      error
}

func (r Report) String() string {
	switch r.Status {
	case StatusFailed:
		return fmt.Sprintf("%s: %s: %v", r.File, r.Status, r.Err)
	case StatusComplete, StatusTruncated:
		return fmt.Sprintf("%s: %s, %d/%d rows -> %s", r.File, r.Status, r.Result.Rows, r.Result.Header.Height, r.Output)
	case StatusUnchanged:
		return fmt.Sprintf("%s: %s -> %s", r.File, r.Status, r.Output)
	}
	return fmt.Sprintf("%s: %s", r.File, r.Status)
}

func (c *Converter) outputFile(file string) string {
	dir := c.opts.OutputDir
	if dir == "" {
		dir = filepath.Dir(file)
	}
	return filepath.Join(dir, strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))+c.opts.Format.Extension())
}

func (c *Converter) render(b *image.Buffer) stdimage.Image {
	var m stdimage.Image = b.ToRGBA()

	if c.opts.Scale > 1 {
		m = resize.Resize(uint(b.Width()*c.opts.Scale), uint(b.Height()*c.opts.Scale), m, resize.NearestNeighbor)
	}

	if c.opts.Colors > 0 {
		q := quantize.MedianCutQuantizer{}
		r := m.Bounds()
		pm := stdimage.NewPaletted(r, q.Quantize(make(color.Palette, 0, c.opts.Colors), m))
		draw.Draw(pm, r, m, r.Min, draw.Src)
		m = pm
	}

	return m
}

// Written to a temporary file first so a reader never sees half an image
// and the last conversion of a file always wins
func (c *Converter) writeImage(file string, m stdimage.Image) (err error) {
	f, err := ioutil.TempFile(filepath.Dir(file), "."+filepath.Base(file)+".*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			os.Remove(f.Name())
		}
	}()

	if err = c.opts.Format.encode(f, m); err != nil {
		f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}

	return os.Rename(f.Name(), file)
}

func (c *Converter) convert(file string, r *Report) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	b, res, err := image.Decode(f, c.opts.Decode)
	r.Result = res
	if err != nil {
		return err
	}

	r.Output = c.outputFile(file)
	if err := c.writeImage(r.Output, c.render(b)); err != nil {
		return err
	}

	if res.Truncated() {
		r.Status = StatusTruncated
	} else {
		r.Status = StatusComplete
	}

	return nil
}

// fingerprint describes every option that changes the image written
func (c *Converter) fingerprint() string {
	return fmt.Sprintf("mode=%s partial=%t format=%s scale=%d colors=%d", c.opts.Decode.Mode, c.opts.Decode.Partial, c.opts.Format, c.opts.Scale, c.opts.Colors)
}

// unchanged reports whether the ledger already holds a good conversion of
// the file as it is now, made with the same options
func (c *Converter) unchanged(file, sum string) (bool, error) {
	if c.ledger == nil || c.opts.Force {
		return false, nil
	}

	e, err := c.ledger.Lookup(file)
	if err != nil || e == nil {
		return false, err
	}
	if e.SHA1 != sum || e.Status != StatusComplete || e.Output != c.outputFile(file) || e.Options != c.fingerprint() {
		return false, nil
	}

	if _, err := os.Stat(e.Output); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

// ConvertFile converts a single npxl file. Files without the npxl extension
// are ignored. Failures are recorded in the report rather than returned so
// a batch can carry on.
func (c *Converter) ConvertFile(file string) (r Report) {
	r.File = file

	if filepath.Ext(file) != image.Extension {
		r.Status = StatusIgnored
		return r
	}

	start := time.Now()
	defer func() {
		r.Duration = time.Since(start)
	}()

	var sum string
	if c.ledger != nil {
		var err error
		if sum, err = hashFile(file); err != nil {
			r.Status, r.Err = StatusFailed, err
			return r
		}

		ok, err := c.unchanged(file, sum)
		if err != nil {
			c.logger.Printf("Ledger lookup for \"%s\" failed: %v\n", file, err)
		}
		if ok {
			r.Status, r.Output = StatusUnchanged, c.outputFile(file)
			return r
		}
	}

	if err := c.convert(file, &r); err != nil {
		r.Status, r.Err = StatusFailed, err
		c.logger.Printf("Error while transforming \"%s\": %v\n", file, err)
	}

	if c.ledger != nil {
		if err := c.ledger.Record(r, sum, c.fingerprint()); err != nil {
			c.logger.Printf("Unable to record \"%s\" in ledger: %v\n", file, err)
		}
	}

	for _, w := range r.Result.Warnings {
		c.logger.Printf("%s: %s\n", file, w)
	}
	if r.Result.Omitted > 0 {
		c.logger.Printf("%s: %d more warning(s)\n", file, r.Result.Omitted)
	}
	if r.Status != StatusFailed {
		c.logger.Printf("completed %s in %d ms\n", file, time.Since(start).Milliseconds())
	}

	return r
}

/*
Package npxl converts npxl pixel-grid files into PNG or QOI images, either one
at a time, a directory at a time, or continuously as files change.
*/
package npxl

import (
	"log"
	"runtime"
	"time"

	"github.com/bodgit/npxl/image"
)

const (
	// DefaultDebounce is how long watch mode waits by default
	DefaultDebounce = 100 * time.Millisecond

	// MaxColors is the largest palette an image can be reduced to
	MaxColors = 256
)

// Options control how files are converted.
type Options struct {
	Decode image.Options
	Format Format
	// Scale enlarges the output by a whole number factor
	Scale int
	// Colors reduces the output to a palette of at most this many colors,
	// up to MaxColors
	Colors int
	// OutputDir is where images are written, by default alongside the input
	OutputDir string
	// Force converts files the ledger says are unchanged
	Force bool
	// Workers is the number of files converted at once
	Workers int
	// Debounce is how long watch mode waits for a file to settle
	Debounce time.Duration
}

type Converter struct {
	ledger *Ledger
	logger *log.Logger
	opts   Options
}

// New returns a Converter. The ledger may be nil in which case every file is
// always converted.
func New(ledger *Ledger, logger *log.Logger, opts Options) *Converter {
	if opts.Workers < 1 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Scale < 1 {
		opts.Scale = 1
	}
	switch {
	case opts.Colors < 0:
		opts.Colors = 0
	case opts.Colors > MaxColors:
		opts.Colors = MaxColors
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	return &Converter{
		ledger: ledger,
		logger: logger,
		opts:   opts,
	}
}

package image

import (
	"fmt"
	"strings"
)

// Mode selects how a digit is scaled to an 8-bit intensity.
type Mode int

const (
	// ModeExport scales by 255/(base-1) so the largest digit in the base
	// is as close to 255 as integer division allows
	ModeExport Mode = iota
	// ModeViewer scales by 255/base, never quite reaching 255. This is
	// what the live viewer has always shown
	ModeViewer
)

func (m Mode) String() string {
	switch m {
	case ModeExport:
		return "export"
	case ModeViewer:
		return "viewer"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode returns the Mode with the given name
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "export", "":
		return ModeExport, nil
	case "viewer", "view":
		return ModeViewer, nil
	}
	return 0, fmt.Errorf("npxl: unknown mode %q", s)
}

// Proportion returns the multiplier applied to every digit in the given base
func (m Mode) Proportion(base int) int {
	if base < minBase {
		base = minBase
	}
	if m == ModeViewer {
		return 255 / base
	}
	return 255 / (base - 1)
}

// Intensity scales digit d in the given base to 0-255. Out of range digits
// are clamped to the base.
func (m Mode) Intensity(d, base int) uint8 {
	if base < minBase {
		base = minBase
	}
	switch {
	case d < 0:
		d = 0
	case d >= base:
		d = base - 1
	}
	return uint8(d * m.Proportion(base))
}

// scale is a lookup from digit to intensity for a single base
type scale [maxBase]uint8

func newScale(m Mode, base int) (s scale) {
	for d := 0; d < base && d < maxBase; d++ {
		s[d] = m.Intensity(d, base)
	}
	return
}

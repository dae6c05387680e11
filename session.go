package npxl

import (
	stdimage "image"
	"os"
	"sync/atomic"
	"time"

	"github.com/bodgit/npxl/image"
)

// Session keeps the latest decoded frame of a single file for live viewing.
// The file is only decoded again after Invalidate is called, typically from
// a timer or a file change notification. Rows missing from a truncated file
// keep whatever the previous frame had there.
type Session struct {
	path  string
	opts  image.Options
	dirty atomic.Bool

	header image.Header
	frame  *stdimage.RGBA
	result image.Result
	read   time.Time
}

func blank(h image.Header) *stdimage.RGBA {
	m := stdimage.NewRGBA(stdimage.Rect(0, 0, h.Width, h.Height))
	for i := 3; i < len(m.Pix); i += 4 {
		m.Pix[i] = 0xff
	}
	return m
}

// NewSession reads the header of path and returns a session ready for its
// first Refresh.
func NewSession(path string, opts image.Options) (*Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	h, err := image.DecodeHeader(f)
	if err != nil {
		return nil, err
	}

	s := &Session{
		path:   path,
		opts:   opts,
		header: h,
		frame:  blank(h),
	}
	s.dirty.Store(true)

	return s, nil
}

// Path returns the file being viewed
func (s *Session) Path() string {
	return s.path
}

// Header returns the header of the current frame
func (s *Session) Header() image.Header {
	return s.header
}

// Frame returns the current frame. It is only modified by Refresh.
func (s *Session) Frame() *stdimage.RGBA {
	return s.frame
}

// Result returns the outcome of the last decode
func (s *Session) Result() image.Result {
	return s.result
}

// Invalidate marks the frame as stale. It is safe to call from any goroutine.
func (s *Session) Invalidate() {
	s.dirty.Store(true)
}

// Expire invalidates the frame if the file was last read, successfully or
// not, at least every before now. It reports whether it did.
func (s *Session) Expire(now time.Time, every time.Duration) bool {
	if every <= 0 || now.Sub(s.read) < every {
		return false
	}
	s.Invalidate()
	return true
}

// Refresh decodes the file again if the frame is stale and reports whether
// the frame changed. On error the previous frame is kept.
func (s *Session) Refresh() (bool, error) {
	if !s.dirty.Swap(false) {
		return false, nil
	}
	s.read = time.Now()

	f, err := os.Open(s.path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	d := image.NewDecoder(f, s.opts)
	h, err := d.Header()
	if err != nil {
		return false, err
	}

	frame := s.frame
	if h.Width != s.header.Width || h.Height != s.header.Height {
		frame = blank(h)
	}

	res, err := image.Materialize(d, image.RGBASurface{RGBA: frame})
	if err != nil {
		// Rows already written are kept
		return res.Rows > 0 && frame == s.frame, err
	}

	s.header, s.frame, s.result = h, frame, res

	return true, nil
}

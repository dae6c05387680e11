/*
Package viewer shows npxl files in a window, redrawing whenever a file
changes. With more than one file the arrow keys move between them.
*/
package viewer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/bodgit/npxl"
	"github.com/bodgit/npxl/image"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// Options control the viewer window.
type Options struct {
	Decode image.Options
	// Scale is the initial window scale
	Scale int
	// FrameTime draws how long the last decode took
	FrameTime bool
	// Interval re-reads the file on a timer, zero disables it
	Interval time.Duration
	// Watch re-reads a file whenever it changes on disk
	Watch    bool
	Debounce time.Duration
}

type game struct {
	sessions []*npxl.Session
	current  int
	logger   *log.Logger
	opts     Options

	img       *ebiten.Image
	frameTime time.Duration
}

func (g *game) session() *npxl.Session {
	return g.sessions[g.current]
}

func (g *game) show(i int) {
	g.current = (i + len(g.sessions)) % len(g.sessions)
	s := g.session()
	s.Invalidate()

	h := s.Header()
	ebiten.SetWindowTitle(filepath.Base(s.Path()))
	ebiten.SetWindowSize(h.Width*g.opts.Scale, h.Height*g.opts.Scale)
}

func (g *game) Update() error {
	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyArrowRight), inpututil.IsKeyJustPressed(ebiten.KeySpace):
		g.show(g.current + 1)
	case inpututil.IsKeyJustPressed(ebiten.KeyArrowLeft):
		g.show(g.current - 1)
	case inpututil.IsKeyJustPressed(ebiten.KeyQ), inpututil.IsKeyJustPressed(ebiten.KeyEscape):
		return ebiten.Termination
	}

	s := g.session()
	s.Expire(time.Now(), g.opts.Interval)

	start := time.Now()
	changed, err := s.Refresh()
	if err != nil {
		g.logger.Printf("Unable to refresh \"%s\": %v\n", s.Path(), err)
	}
	if !changed {
		return nil
	}
	g.frameTime = time.Since(start)

	frame := s.Frame()
	b := frame.Bounds()
	if g.img == nil || g.img.Bounds().Size() != b.Size() {
		if g.img != nil {
			g.img.Dispose()
		}
		g.img = ebiten.NewImage(b.Dx(), b.Dy())
	}
	g.img.WritePixels(frame.Pix)

	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	if g.img == nil {
		return
	}

	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(float64(g.opts.Scale), float64(g.opts.Scale))
	screen.DrawImage(g.img, op)

	if g.opts.FrameTime {
		ebitenutil.DebugPrint(screen, fmt.Sprintf("%d ms", g.frameTime.Milliseconds()))
	}
}

func (g *game) Layout(outsideWidth, outsideHeight int) (int, int) {
	h := g.session().Header()
	return h.Width * g.opts.Scale, h.Height * g.opts.Scale
}

// Show opens a window for the given files and blocks until it is closed.
func Show(files []string, logger *log.Logger, opts Options) error {
	if len(files) == 0 {
		return errors.New("no files to view")
	}
	if opts.Scale < 1 {
		opts.Scale = 1
	}
	if opts.Debounce <= 0 {
		opts.Debounce = npxl.DefaultDebounce
	}

	g := &game{
		logger: logger,
		opts:   opts,
	}

	byPath := make(map[string]*npxl.Session)
	for _, file := range files {
		s, err := npxl.NewSession(file, opts.Decode)
		if err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
		g.sessions = append(g.sessions, s)
		if abs, err := filepath.Abs(file); err == nil {
			byPath[abs] = s
		}
	}

	if opts.Watch {
		w, err := npxl.NewWatcher(logger, opts.Debounce, func(path string) {
			if s, ok := byPath[path]; ok {
				s.Invalidate()
			}
		})
		if err != nil {
			return err
		}
		defer w.Close()

		for _, file := range files {
			if err := w.Add(file); err != nil {
				return err
			}
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)
	}

	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	g.show(0)

	if err := ebiten.RunGame(g); err != nil && !errors.Is(err, ebiten.Termination) {
		return err
	}
	return nil
}

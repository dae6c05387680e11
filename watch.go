package npxl

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bodgit/npxl/image"
	"github.com/fsnotify/fsnotify"
)

type flight struct {
	running bool
	pending bool
}

// scheduler runs fn for a path once events for it have stopped arriving for
// delay. Runs for the same path never overlap; events during a run cause
// exactly one more run afterwards.
type scheduler struct {
	mu      sync.Mutex
	delay   time.Duration
	fn      func(string)
	timers  map[string]*time.Timer
	flights map[string]*flight
	stopped bool
	wg      sync.WaitGroup
}

func newScheduler(delay time.Duration, fn func(string)) *scheduler {
	return &scheduler{
		delay:   delay,
		fn:      fn,
		timers:  make(map[string]*time.Timer),
		flights: make(map[string]*flight),
	}
}

func (s *scheduler) trigger(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	if t, ok := s.timers[path]; ok {
		t.Reset(s.delay)
		return
	}
	s.timers[path] = time.AfterFunc(s.delay, func() {
		s.fire(path)
	})
}

func (s *scheduler) fire(path string) {
	s.mu.Lock()
	delete(s.timers, path)
	if s.stopped {
		s.mu.Unlock()
		return
	}

	f, ok := s.flights[path]
	if !ok {
		f = new(flight)
		s.flights[path] = f
	}
	if f.running {
		f.pending = true
		s.mu.Unlock()
		return
	}
	f.running = true
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		for {
			s.fn(path)

			s.mu.Lock()
			if !f.pending {
				delete(s.flights, path)
				s.mu.Unlock()
				return
			}
			f.pending = false
			s.mu.Unlock()
		}
	}()
}

// stop cancels anything waiting to fire and waits for running calls
func (s *scheduler) stop() {
	s.mu.Lock()
	s.stopped = true
	for path, t := range s.timers {
		t.Stop()
		delete(s.timers, path)
	}
	s.mu.Unlock()

	s.wg.Wait()
}

// Watcher calls a function whenever a watched npxl file is created or
// written to.
type Watcher struct {
	w      *fsnotify.Watcher
	s      *scheduler
	logger *log.Logger

	mu    sync.Mutex
	files map[string]struct{}
}

func NewWatcher(logger *log.Logger, delay time.Duration, fn func(string)) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		w:      w,
		s:      newScheduler(delay, fn),
		logger: logger,
		files:  make(map[string]struct{}),
	}, nil
}

func (w *Watcher) addDir(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if path != dir && hidden(info) {
			return filepath.SkipDir
		}
		w.logger.Printf("Watching \"%s\"\n", path)
		return w.w.Add(path)
	})
}

// Add watches path. A directory is watched recursively, including any
// directories created in it later. For a single file its directory is
// watched, as editors often replace files rather than write to them, and
// only that file is reported.
func (w *Watcher) Add(path string) error {
	path, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return w.addDir(path)
	}

	w.mu.Lock()
	w.files[path] = struct{}{}
	w.mu.Unlock()

	return w.w.Add(filepath.Dir(path))
}

func (w *Watcher) wanted(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.files) > 0 {
		_, ok := w.files[path]
		return ok
	}
	return filepath.Ext(path) == image.Extension && filepath.Base(path)[0] != '.'
}

func (w *Watcher) handle(e fsnotify.Event) {
	if !e.Has(fsnotify.Create) && !e.Has(fsnotify.Write) {
		return
	}

	if e.Has(fsnotify.Create) {
		if info, err := os.Stat(e.Name); err == nil && info.IsDir() && !hidden(info) {
			w.mu.Lock()
			recursive := len(w.files) == 0
			w.mu.Unlock()
			if recursive {
				if err := w.addDir(e.Name); err != nil {
					w.logger.Printf("Unable to watch \"%s\": %v\n", e.Name, err)
				}
			}
			return
		}
	}

	if w.wanted(e.Name) {
		w.s.trigger(e.Name)
	}
}

// Run dispatches events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.s.stop()

	for {
		select {
		case e, ok := <-w.w.Events:
			if !ok {
				return nil
			}
			w.handle(e)
		case err, ok := <-w.w.Errors:
			if !ok {
				return nil
			}
			w.logger.Printf("Watch error: %v\n", err)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (w *Watcher) Close() error {
	return w.w.Close()
}

// Watch converts npxl files under dir as they are created or changed until
// ctx is cancelled, passing each report to fn. Conversions of the same file
// never overlap and a burst of changes results in a single conversion of the
// final content.
func (c *Converter) Watch(ctx context.Context, dir string, fn func(Report)) error {
	w, err := NewWatcher(c.logger, c.opts.Debounce, func(file string) {
		r := c.ConvertFile(file)
		if fn != nil {
			fn(r)
		}
	})
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return err
	}

	return w.Run(ctx)
}

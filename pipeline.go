package npxl

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/bodgit/npxl/image"
)

func hidden(info os.FileInfo) bool {
	return info.Name()[0] == '.'
}

func (c *Converter) findFiles(ctx context.Context, base string) (<-chan string, <-chan error, error) {
	info, err := os.Stat(base)
	if err != nil {
		return nil, nil, err
	}
	if !info.IsDir() {
		return nil, nil, errors.New("not a directory")
	}

	out := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errc)
		errc <- filepath.Walk(base, func(file string, info os.FileInfo, err error) error {
			if err != nil {
				// One unreadable directory shouldn't stop the rest
				c.logger.Printf("Skipping \"%s\": %v\n", file, err)
				if info != nil && info.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			// Ignore any hidden files or directories, editors leave all sorts lying around
			if file != base && hidden(info) {
				if info.Mode().IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			if !info.Mode().IsRegular() || filepath.Ext(file) != image.Extension {
				return nil
			}

			select {
			case out <- file:
			case <-ctx.Done():
				return errors.New("walk cancelled")
			}

			return nil
		})
	}()
	return out, errc, nil
}

func feedFiles(ctx context.Context, files []string) (<-chan string, <-chan error) {
	out := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errc)
		for _, file := range files {
			select {
			case out <- file:
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			}
		}
	}()
	return out, errc
}

func (c *Converter) fileWorker(ctx context.Context, in <-chan string, out chan<- Report) (<-chan error, error) {
	errc := make(chan error, 1)
	go func() {
		defer close(errc)
		for file := range in {
			r := c.ConvertFile(file)
			select {
			case out <- r:
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			}
		}
	}()
	return errc, nil
}

// Drains every error channel, cancelling the pipeline on the first error
func waitForPipeline(cancel context.CancelFunc, errs ...<-chan error) error {
	var first error
	errc := mergeErrors(errs...)
	for err := range errc {
		if err != nil && first == nil {
			first = err
			cancel()
		}
	}
	return first
}

func mergeErrors(cs ...<-chan error) <-chan error {
	var wg sync.WaitGroup
	out := make(chan error, len(cs))
	wg.Add(len(cs))
	for _, c := range cs {
		go func(c <-chan error) {
			for n := range c {
				out <- n
			}
			wg.Done()
		}(c)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

func (c *Converter) run(ctx context.Context, cancel context.CancelFunc, files <-chan string, errcList []<-chan error) ([]Report, error) {
	out := make(chan Report)
	done := make(chan []Report)
	go func() {
		var reports []Report
		for r := range out {
			reports = append(reports, r)
		}
		sort.Slice(reports, func(i, j int) bool { return reports[i].File < reports[j].File })
		done <- reports
	}()

	for i := 0; i < c.opts.Workers; i++ {
		errc, err := c.fileWorker(ctx, files, out)
		if err != nil {
			return nil, err
		}
		errcList = append(errcList, errc)
	}

	err := waitForPipeline(cancel, errcList...)
	close(out)

	return <-done, err
}

// Convert converts each of the given files concurrently. Every file gets a
// report, whether it failed or not.
func (c *Converter) Convert(files ...string) ([]Report, error) {
	ctx, cancelFunc := context.WithCancel(context.Background())
	defer cancelFunc()

	in, errc := feedFiles(ctx, files)

	return c.run(ctx, cancelFunc, in, []<-chan error{errc})
}

// ConvertDir converts every npxl file found under path.
func (c *Converter) ConvertDir(path string) ([]Report, error) {
	dir, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	ctx, cancelFunc := context.WithCancel(context.Background())
	defer cancelFunc()

	files, errc, err := c.findFiles(ctx, dir)
	if err != nil {
		return nil, err
	}

	return c.run(ctx, cancelFunc, files, []<-chan error{errc})
}

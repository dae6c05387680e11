package npxl

import (
	"bufio"
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"

	"github.com/bodgit/npxl/image"
)

// BuildFilename is the file Build writes by default
const BuildFilename = "full" + image.Extension

// ErrNoHeader is returned by Build when there is no 0.npxl to start from
var ErrNoHeader = errors.New("no header file (0" + image.Extension + ") in directory")

func appendLines(w *bufio.Writer, file string) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	s := bufio.NewScanner(f)
	s.Buffer(make([]byte, 0, 64<<10), 16<<(10*2))
	for s.Scan() {
		if _, err := w.Write(s.Bytes()); err != nil {
			return err
		}
		if err := w.WriteByte('\n'); err != nil {
			return err
		}
	}
	return s.Err()
}

// Build concatenates 0.npxl, 1.npxl, 2.npxl and so on from dir into out,
// stopping at the first missing number. 0.npxl holds the header and each
// following file is just more rows. It returns the number of files used.
func (c *Converter) Build(dir, out string) (n int, err error) {
	if out == "" {
		out = filepath.Join(dir, BuildFilename)
	}

	if _, err := os.Stat(filepath.Join(dir, "0"+image.Extension)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, ErrNoHeader
		}
		return 0, err
	}

	f, err := ioutil.TempFile(filepath.Dir(out), "."+filepath.Base(out)+".*")
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(f.Name())
		}
	}()

	w := bufio.NewWriter(f)
	for ; ; n++ {
		file := filepath.Join(dir, strconv.Itoa(n)+image.Extension)
		if _, err := os.Stat(file); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				break
			}
			return 0, err
		}
		if err := appendLines(w, file); err != nil {
			return 0, fmt.Errorf("%s: %w", file, err)
		}
		c.logger.Printf("Appended \"%s\"\n", file)
	}

	if err = w.Flush(); err != nil {
		return 0, err
	}
	if err = f.Close(); err != nil {
		return 0, err
	}

	return n, os.Rename(f.Name(), out)
}

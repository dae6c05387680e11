package main

import (
	"context"
	"errors"
	"fmt"
	stdimage "image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io/ioutil"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/bodgit/npxl"
	"github.com/bodgit/npxl/image"
	"github.com/bodgit/npxl/viewer"
	"github.com/urfave/cli/v2"
)

func init() {
	cli.VersionFlag = &cli.BoolFlag{
		Name:    "version",
		Aliases: []string{"V"},
		Usage:   "print the version",
	}
}

func newLogger(c *cli.Context) *log.Logger {
	logger := log.New(ioutil.Discard, "", 0)
	if c.Bool("verbose") {
		logger.SetOutput(os.Stderr)
	}
	return logger
}

func decodeOptions(c *cli.Context, mode image.Mode) (image.Options, error) {
	if s := c.String("mode"); s != "" {
		var err error
		if mode, err = image.ParseMode(s); err != nil {
			return image.Options{}, err
		}
	}
	return image.Options{
		Mode:    mode,
		Strict:  c.Bool("strict"),
		Partial: c.Bool("partial"),
	}, nil
}

func newConverter(c *cli.Context) (*npxl.Converter, func(), error) {
	decode, err := decodeOptions(c, image.ModeExport)
	if err != nil {
		return nil, nil, err
	}

	format, err := npxl.ParseFormat(c.String("format"))
	if err != nil {
		return nil, nil, err
	}

	if n := c.Int("colors"); n < 0 || n > npxl.MaxColors {
		return nil, nil, fmt.Errorf("colors must be between 0 and %d", npxl.MaxColors)
	}

	var ledger *npxl.Ledger
	closer := func() {}
	if db := c.String("db"); db != "" {
		if ledger, err = npxl.NewLedger(db); err != nil {
			return nil, nil, err
		}
		closer = func() { ledger.Close() }
	}

	return npxl.New(ledger, newLogger(c), npxl.Options{
		Decode:    decode,
		Format:    format,
		Scale:     c.Int("scale"),
		Colors:    c.Int("colors"),
		OutputDir: c.String("output"),
		Force:     c.Bool("force"),
		Workers:   c.Int("jobs"),
		Debounce:  c.Duration("debounce"),
	}), closer, nil
}

func exportFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Value:   "png",
			Usage:   "output format, png or qoi",
		},
		&cli.IntFlag{
			Name:  "scale",
			Value: 1,
			Usage: "enlarge the output by this factor",
		},
		&cli.IntFlag{
			Name:  "colors",
			Usage: fmt.Sprintf("reduce the output to a palette of at most this many colors, up to %d", npxl.MaxColors),
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "directory to write images to, defaults to alongside each file",
		},
		&cli.BoolFlag{
			Name:  "partial",
			Usage: "write images for truncated files instead of failing",
		},
		&cli.BoolFlag{
			Name:  "force",
			Usage: "convert files even if the ledger says they are unchanged",
		},
		&cli.IntFlag{
			Name:    "jobs",
			Aliases: []string{"j"},
			Usage:   "number of files to convert at once, defaults to the number of CPUs",
		},
	}
}

func viewFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:  "scale",
			Value: 1,
			Usage: "window scale",
		},
		&cli.BoolFlag{
			Name:  "frame-time",
			Value: true,
			Usage: "show how long each redraw took",
		},
		&cli.DurationFlag{
			Name:  "interval",
			Usage: "re-read the file on a timer",
		},
		&cli.BoolFlag{
			Name:  "watch",
			Value: true,
			Usage: "re-read the file when it changes",
		},
	}
}

func printReports(reports []npxl.Report) error {
	var failed int
	for _, r := range reports {
		switch r.Status {
		case npxl.StatusFailed:
			failed++
			fmt.Fprintln(os.Stderr, r)
		default:
			fmt.Println(r)
		}
	}
	if failed > 0 {
		return cli.Exit(fmt.Sprintf("%d file(s) failed", failed), 1)
	}
	return nil
}

func view(c *cli.Context) error {
	if c.NArg() < 1 {
		cli.ShowAppHelpAndExit(c, 1)
	}

	decode, err := decodeOptions(c, image.ModeViewer)
	if err != nil {
		return cli.Exit(err, 1)
	}

	if err := viewer.Show(c.Args().Slice(), newLogger(c), viewer.Options{
		Decode:    decode,
		Scale:     c.Int("scale"),
		FrameTime: c.Bool("frame-time"),
		Interval:  c.Duration("interval"),
		Watch:     c.Bool("watch"),
		Debounce:  c.Duration("debounce"),
	}); err != nil {
		return cli.Exit(err, 1)
	}

	return nil
}

func main() {
	app := cli.NewApp()

	app.Name = "npxl"
	app.Usage = "npxl pixel grid viewer and converter"
	app.Version = "1.0.0"

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "db",
			EnvVars: []string{"NPXL_DB"},
			Usage:   "path to conversion ledger, disabled if empty",
		},
		&cli.StringFlag{
			Name:    "mode",
			EnvVars: []string{"NPXL_MODE"},
			Usage:   "intensity scaling, export or viewer",
		},
		&cli.BoolFlag{
			Name:  "strict",
			Usage: "log every invalid digit and short row, needs --verbose",
		},
		&cli.DurationFlag{
			Name:  "debounce",
			Value: npxl.DefaultDebounce,
			Usage: "how long to wait for a changed file to settle",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "increase verbosity",
		},
	}

	app.ArgsUsage = "FILE..."
	app.Action = view

	app.Commands = []*cli.Command{
		{
			Name:      "view",
			Usage:     "Show files in a window",
			ArgsUsage: "FILE...",
			Flags:     viewFlags(),
			Action:    view,
		},
		{
			Name:        "convert",
			Usage:       "Convert files or directories to images",
			Description: "Each FILE is converted to <name>.png, each DIRECTORY is searched for .npxl files.",
			ArgsUsage:   "FILE|DIRECTORY...",
			Flags:       exportFlags(),
			Action: func(c *cli.Context) error {
				if c.NArg() < 1 {
					cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
				}

				conv, closer, err := newConverter(c)
				if err != nil {
					return cli.Exit(err, 1)
				}
				defer closer()

				var files, reports []npxl.Report
				var paths []string
				for _, arg := range c.Args().Slice() {
					info, err := os.Stat(arg)
					if err != nil || !info.IsDir() {
						paths = append(paths, arg)
						continue
					}
					r, err := conv.ConvertDir(arg)
					if err != nil {
						return cli.Exit(err, 1)
					}
					reports = append(reports, r...)
				}

				if files, err = conv.Convert(paths...); err != nil {
					return cli.Exit(err, 1)
				}

				return printReports(append(reports, files...))
			},
		},
		{
			Name:      "build",
			Usage:     "Concatenate 0.npxl, 1.npxl, ... into a single file",
			ArgsUsage: "[DIRECTORY]",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "output",
					Aliases: []string{"o"},
					Usage:   "file to write, defaults to " + npxl.BuildFilename + " in DIRECTORY",
				},
			},
			Action: func(c *cli.Context) error {
				dir := "."
				if c.NArg() > 0 {
					dir = c.Args().First()
				}

				n, err := npxl.New(nil, newLogger(c), npxl.Options{}).Build(dir, c.String("output"))
				if err != nil {
					return cli.Exit(err, 1)
				}
				fmt.Printf("built from %d file(s)\n", n)

				return nil
			},
		},
		{
			Name:      "watch",
			Usage:     "Convert files as they are created or changed",
			ArgsUsage: "[DIRECTORY]",
			Flags:     exportFlags(),
			Action: func(c *cli.Context) error {
				dir := "."
				if c.NArg() > 0 {
					dir = c.Args().First()
				}

				conv, closer, err := newConverter(c)
				if err != nil {
					return cli.Exit(err, 1)
				}
				defer closer()

				ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
				defer stop()

				if err := conv.Watch(ctx, dir, func(r npxl.Report) {
					if r.Status == npxl.StatusFailed {
						fmt.Fprintf(os.Stderr, "encountered error while transforming %s: %v\n", r.File, r.Err)
						return
					}
					fmt.Println(r)
				}); err != nil && !errors.Is(err, context.Canceled) {
					return cli.Exit(err, 1)
				}

				return nil
			},
		},
		{
			Name:      "encode",
			Usage:     "Convert an image to npxl",
			ArgsUsage: "IMAGE",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:  "base",
					Value: 16,
					Usage: "numeric base of each digit",
				},
				&cli.IntFlag{
					Name:  "channels",
					Value: 3,
					Usage: "digits per pixel, 1 for grey",
				},
				&cli.StringFlag{
					Name:    "output",
					Aliases: []string{"o"},
					Usage:   "file to write, defaults to IMAGE with an .npxl extension",
				},
			},
			Action: func(c *cli.Context) error {
				if c.NArg() < 1 {
					cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
				}

				in := c.Args().First()
				out := c.String("output")
				if out == "" {
					out = strings.TrimSuffix(in, filepath.Ext(in)) + image.Extension
				}

				if err := encode(in, out, c.Int("base"), c.Int("channels")); err != nil {
					return cli.Exit(err, 1)
				}

				return nil
			},
		},
		{
			Name:  "status",
			Usage: "List the conversion ledger",
			Action: func(c *cli.Context) error {
				db := c.String("db")
				if db == "" {
					return cli.Exit("no ledger, set --db or NPXL_DB", 1)
				}

				ledger, err := npxl.NewLedger(db)
				if err != nil {
					return cli.Exit(err, 1)
				}
				defer ledger.Close()

				entries, err := ledger.Entries()
				if err != nil {
					return cli.Exit(err, 1)
				}

				w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
				fmt.Fprintln(w, "FILE\tSTATUS\tSIZE\tROWS\tUPDATED")
				for _, e := range entries {
					fmt.Fprintf(w, "%s\t%s\t%dx%d\t%d\t%s\n", e.Path, e.Status, e.Width, e.Height, e.Rows, e.Updated.Format("2006-01-02 15:04:05"))
				}

				return w.Flush()
			},
		},
	}

	app.Flags = append(app.Flags, viewFlags()...)

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// Written to a temporary file first so a failed encode never leaves a
// partial file behind or clobbers an existing one
func encode(in, out string, base, channels int) (err error) {
	f, err := os.Open(in)
	if err != nil {
		return err
	}
	defer f.Close()

	m, _, err := stdimage.Decode(f)
	if err != nil {
		return err
	}

	w, err := ioutil.TempFile(filepath.Dir(out), "."+filepath.Base(out)+".*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			os.Remove(w.Name())
		}
	}()

	if err = image.Encode(w, m, base, channels); err != nil {
		w.Close()
		return err
	}
	if err = w.Close(); err != nil {
		return err
	}

	return os.Rename(w.Name(), out)
}

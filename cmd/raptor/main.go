// Command raptor builds and queries interleaved Bloom filter indices
// over collections of biological sequence files. Subcommands mirror
// the CLI surface go-ethereum's geth binary uses urfave/cli/v2 for:
// one *cli.Command per subcommand, flags declared alongside it, an
// Action closure that validates input and dispatches to the driver
// package.
package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/raptor-ibf/raptor"
	"github.com/raptor-ibf/raptor/driver"
	"github.com/raptor-ibf/raptor/internal/rlog"
)

var app = &cli.App{
	Name:  "raptor",
	Usage: "approximate-membership search over large sequence collections",
	Commands: []*cli.Command{
		buildCommand,
		searchCommand,
		upgradeCommand,
		layoutCommand,
		prepareCommand,
	},
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "raptor:", err)
		os.Exit(1)
	}
}

func parseShape(c *cli.Context) (raptor.Shape, error) {
	if s := c.String("shape"); s != "" {
		return raptor.NewShape(s)
	}
	return raptor.NewUngappedShape(uint8(c.Int("kmer")))
}

// parseSizeBits parses --size (accepting go-humanize's byte-unit
// suffixes: "64KB", "128MB", "1GB", or a bare integer) into a bit
// count. Every value, a bare integer included, is read as a byte
// count and multiplied by 8; there is no form that gives an exact bit
// count.
func parseSizeBits(s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("parsing --size %q: %w", s, err)
	}
	return n * 8, nil
}

var buildCommand = &cli.Command{
	Name:  "build",
	Usage: "construct an interleaved Bloom filter index from a bin-list file",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "input", Required: true, Usage: "bin-list file: one line per technical bin"},
		&cli.StringFlag{Name: "output", Required: true, Usage: "path to write the index to"},
		&cli.IntFlag{Name: "kmer", Value: 20, Usage: "k-mer size, 1..32"},
		&cli.IntFlag{Name: "window", Usage: "minimiser window width in bases, >= shape span (defaults to the span, k for an ungapped shape)"},
		&cli.StringFlag{Name: "shape", Usage: "gapped shape bitstring, overrides --kmer"},
		&cli.StringFlag{Name: "size", Usage: "fixed bits-per-bin (e.g. 64MB); overrides --fpr sizing"},
		&cli.Float64Flag{Name: "fpr", Value: 0.05, Usage: "target false positive rate"},
		&cli.IntFlag{Name: "hash", Value: 2, Usage: "hash function count, 1..5"},
		&cli.Uint64Flag{Name: "parts", Value: 1, Usage: "partition count, power of two"},
		&cli.BoolFlag{Name: "compressed", Usage: "write a succinct compressed bit vector"},
		&cli.IntFlag{Name: "threads", Value: 1, Usage: "worker thread count"},
		&cli.BoolFlag{Name: "socks", Usage: "bin-list lines carry a leading 'colour:' token to strip"},
	},
	Action: func(c *cli.Context) error {
		shape, err := parseShape(c)
		if err != nil {
			return err
		}
		window := c.Int("window")
		if window == 0 {
			window = int(shape.Span())
		}

		binPaths, err := driver.ParseBinPaths(c.String("input"), c.Bool("socks"))
		if err != nil {
			return err
		}

		sizeBits, err := parseSizeBits(c.String("size"))
		if err != nil {
			return err
		}

		cfg := driver.BuildConfig{
			BinPaths:     binPaths,
			Shape:        shape,
			Window:       window,
			FPR:          c.Float64("fpr"),
			HashCount:    uint32(c.Int("hash")),
			Threads:      c.Int("threads"),
			Parts:        c.Uint64("parts"),
			Compressed:   c.Bool("compressed"),
			Output:       c.String("output"),
			SizeOverride: sizeBits,
		}

		rlog.Default.Info("build: starting", "bins", len(binPaths), "kmer", shape.K(), "window", window)
		return driver.Build(cfg, driver.NewCancelToken())
	},
}

var searchCommand = &cli.Command{
	Name:  "search",
	Usage: "query an index for the reads in a FASTA/FASTQ file",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "index", Required: true, Usage: "index base path (single file or partitioned manifest)"},
		&cli.StringFlag{Name: "query", Required: true, Usage: "FASTA/FASTQ file of query reads"},
		&cli.StringFlag{Name: "output", Usage: "output path; defaults to stdout"},
		&cli.IntFlag{Name: "error", Usage: "tolerated substitution error count"},
		&cli.Float64Flag{Name: "threshold", Usage: "override: bypass the probabilistic model with a flat fraction, 0..1"},
		&cli.Float64Flag{Name: "alpha", Value: 0.05, Usage: "confidence level feeding the threshold model"},
		&cli.IntFlag{Name: "threads", Value: 1, Usage: "worker thread count"},
		&cli.BoolFlag{Name: "quiet", Usage: "suppress informational logging"},
	},
	Action: func(c *cli.Context) error {
		out := os.Stdout
		if path := c.String("output"); path != "" {
			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("creating search output file: %w", err)
			}
			defer f.Close()
			cfg := driver.SearchConfig{
				IndexPath: c.String("index"),
				QueryPath: c.String("query"),
				Errors:    uint8(c.Int("error")),
				Alpha:     c.Float64("alpha"),
				Override:  c.Float64("threshold"),
				Threads:   c.Int("threads"),
			}
			return driver.Search(cfg, driver.NewCancelToken(), f)
		}

		cfg := driver.SearchConfig{
			IndexPath: c.String("index"),
			QueryPath: c.String("query"),
			Errors:    uint8(c.Int("error")),
			Alpha:     c.Float64("alpha"),
			Override:  c.Float64("threshold"),
			Threads:   c.Int("threads"),
		}
		return driver.Search(cfg, driver.NewCancelToken(), out)
	},
}

var upgradeCommand = &cli.Command{
	Name:  "upgrade",
	Usage: "rewrite a version-0 index under the current format",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "bins", Required: true, Usage: "bin-list file matching the original build"},
		&cli.StringFlag{Name: "input", Required: true, Usage: "index to upgrade; omit the _0 suffix for partitioned indices"},
		&cli.StringFlag{Name: "output", Required: true, Usage: "path for the upgraded index"},
		&cli.IntFlag{Name: "window", Required: true, Usage: "the original window size"},
		&cli.IntFlag{Name: "kmer", Required: true, Usage: "the original kmer size"},
		&cli.Uint64Flag{Name: "parts", Value: 1, Usage: "original index part count"},
		&cli.BoolFlag{Name: "compressed", Usage: "write the upgraded index in compressed form"},
	},
	Action: func(c *cli.Context) error {
		cfg := driver.UpgradeConfig{
			BinListPath: c.String("bins"),
			InputPath:   c.String("input"),
			OutputPath:  c.String("output"),
			Window:      c.Int("window"),
			Kmer:        uint8(c.Int("kmer")),
			Parts:       c.Uint64("parts"),
			Compressed:  c.Bool("compressed"),
		}
		return driver.Upgrade(cfg)
	},
}

var layoutCommand = &cli.Command{
	Name:  "layout",
	Usage: "estimate per-bin sizing ahead of a build",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "input", Required: true, Usage: "bin-list file"},
		&cli.IntFlag{Name: "kmer", Value: 20},
		&cli.IntFlag{Name: "window", Usage: "defaults to the shape's span (k when ungapped)"},
		&cli.StringFlag{Name: "shape"},
		&cli.Float64Flag{Name: "fpr", Value: 0.05},
		&cli.IntFlag{Name: "hash", Value: 2},
		&cli.IntFlag{Name: "threads", Value: 1},
	},
	Action: func(c *cli.Context) error {
		shape, err := parseShape(c)
		if err != nil {
			return err
		}
		window := c.Int("window")
		if window == 0 {
			window = int(shape.Span())
		}
		binPaths, err := driver.ParseBinPaths(c.String("input"), false)
		if err != nil {
			return err
		}

		cfg := driver.LayoutConfig{
			BinPaths:  binPaths,
			Shape:     shape,
			Window:    window,
			FPR:       c.Float64("fpr"),
			HashCount: uint32(c.Int("hash")),
			Threads:   c.Int("threads"),
		}
		return driver.Layout(cfg, driver.NewCancelToken(), os.Stdout)
	},
}

var prepareCommand = &cli.Command{
	Name:  "prepare",
	Usage: "precompute and cache per-file minimiser sidecars ahead of a build",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "input", Required: true, Usage: "bin-list file"},
		&cli.IntFlag{Name: "kmer", Value: 20},
		&cli.IntFlag{Name: "window", Usage: "defaults to the shape's span (k when ungapped)"},
		&cli.StringFlag{Name: "shape"},
		&cli.IntFlag{Name: "threads", Value: 1},
	},
	Action: func(c *cli.Context) error {
		shape, err := parseShape(c)
		if err != nil {
			return err
		}
		window := c.Int("window")
		if window == 0 {
			window = int(shape.Span())
		}
		binPaths, err := driver.ParseBinPaths(c.String("input"), false)
		if err != nil {
			return err
		}

		cfg := driver.PrepareConfig{
			BinPaths: binPaths,
			Shape:    shape,
			Window:   window,
			Threads:  c.Int("threads"),
		}
		return driver.Prepare(cfg, driver.NewCancelToken())
	},
}

package driver

import (
	"fmt"
	"io"
	"sort"

	"github.com/raptor-ibf/raptor"
	"github.com/raptor-ibf/raptor/ibf"
	"github.com/raptor-ibf/raptor/raptorerr"
)

// LayoutConfig mirrors raptor_layout.cpp's scope, scaled down to a
// single level: estimate each bin's minimiser count and recommend a
// bits-per-bin allocation that holds every bin at the target FPR. The
// original tool (chopper) additionally groups similarly-sized bins
// into a multi-level hierarchy of merged/split technical bins; that
// rebalancing step is out of scope here (see DESIGN.md), but the
// per-bin size estimation it depends on is the same sketching pass
// Build's own estimateBinSizes performs.
type LayoutConfig struct {
	BinPaths  [][]string
	Shape     raptor.Shape
	Window    int
	FPR       float64
	HashCount uint32
	Threads   int
	Seed      uint64
}

// BinLayout is one row of the layout report.
type BinLayout struct {
	Bin           int
	EstimatedSize uint64
	BitsPerBin    uint64
}

// Layout estimates per-bin minimiser counts and the bits-per-bin each
// would need at the target FPR in isolation, then writes a TSV report
// to out ordered by descending estimated size (the order chopper's
// layout uses to decide which bins are candidates for merging).
func Layout(cfg LayoutConfig, cancel *CancelToken, out io.Writer) error {
	if len(cfg.BinPaths) == 0 {
		return raptorerr.New(raptorerr.InvalidArgument, "no bins provided")
	}

	buildCfg := BuildConfig{
		BinPaths:  cfg.BinPaths,
		Shape:     cfg.Shape,
		Window:    cfg.Window,
		FPR:       cfg.FPR,
		HashCount: cfg.HashCount,
		Threads:   cfg.Threads,
		Parts:     1,
		Seed:      cfg.Seed,
	}
	counts, err := estimateBinSizes(buildCfg, cancel)
	if err != nil {
		return err
	}
	if cancel.Cancelled() {
		return raptorerr.New(raptorerr.Cancelled, "layout cancelled")
	}

	rows := make([]BinLayout, len(counts))
	for i, c := range counts {
		n := c
		if n == 0 {
			n = 1
		}
		rows[i] = BinLayout{
			Bin:           i,
			EstimatedSize: c,
			BitsPerBin:    ibf.BinSizeInBits(n, cfg.FPR, cfg.HashCount),
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].EstimatedSize > rows[j].EstimatedSize
	})

	for _, r := range rows {
		if _, err := fmt.Fprintf(out, "%d\t%d\t%d\n", r.Bin, r.EstimatedSize, r.BitsPerBin); err != nil {
			return raptorerr.Wrap(err, raptorerr.IoExhausted, "writing layout report")
		}
	}
	return nil
}

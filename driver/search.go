package driver

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/raptor-ibf/raptor"
	"github.com/raptor-ibf/raptor/ibf"
	"github.com/raptor-ibf/raptor/indexfile"
	"github.com/raptor-ibf/raptor/raptorerr"
	"github.com/raptor-ibf/raptor/threshold"
)

// SearchConfig carries the parameters the search phase needs, mapped
// from the CLI's search flags (spec.md §6).
type SearchConfig struct {
	IndexPath string // base path; a single file or a partitioned manifest
	QueryPath string
	Errors    uint8
	Alpha     float64
	Override  float64
	Threads   int
}

// searchBackend abstracts over a single raw/compressed index and a
// partitioned set of them, so the worker loop below doesn't need two
// copies of the counting logic.
type searchBackend interface {
	binCount() uint64
	shape() raptor.Shape
	window() int
	// count adds one occurrence to every bin that may contain x.
	count(x uint64, counts []uint64)
	close() error
}

type singleBackend struct {
	idx *indexfile.Index
}

func (b *singleBackend) binCount() uint64    { return b.idx.Manifest.BinCount }
func (b *singleBackend) shape() raptor.Shape { return b.idx.Manifest.Shape }
func (b *singleBackend) window() int         { return int(b.idx.Manifest.WindowSize) }
func (b *singleBackend) close() error        { return b.idx.Close() }

func (b *singleBackend) count(x uint64, counts []uint64) {
	if b.idx.Filter != nil {
		agent := b.idx.Filter.NewAgent()
		occ := agent.BulkContains(x)
		for bin := uint64(0); bin < b.idx.Manifest.BinCount; bin++ {
			if ibf.ContainsBin(occ, bin) {
				counts[bin]++
			}
		}
		agent.Close()
		return
	}
	seeds := ibf.Seeds()
	for bin := uint64(0); bin < b.idx.Manifest.BinCount; bin++ {
		if b.idx.Compressed.Contains(raptor.Avalanche, seeds, x, bin) {
			counts[bin]++
		}
	}
}

type partitionedBackend struct {
	p     *indexfile.Partitioned
	parts uint64
}

func (b *partitionedBackend) binCount() uint64 { return b.p.Indexes[0].Manifest.BinCount }
func (b *partitionedBackend) shape() raptor.Shape {
	return b.p.Indexes[0].Manifest.Shape
}
func (b *partitionedBackend) window() int { return int(b.p.Indexes[0].Manifest.WindowSize) }
func (b *partitionedBackend) close() error { return b.p.Close() }

func (b *partitionedBackend) count(x uint64, counts []uint64) {
	part := ibf.HashPartition(x, b.parts)
	idx := b.p.Indexes[part]

	if idx.Filter != nil {
		agent := idx.Filter.NewAgent()
		occ := agent.BulkContains(x)
		for bin := uint64(0); bin < idx.Manifest.BinCount; bin++ {
			if ibf.ContainsBin(occ, bin) {
				counts[bin]++
			}
		}
		agent.Close()
		return
	}
	seeds := ibf.Seeds()
	for bin := uint64(0); bin < idx.Manifest.BinCount; bin++ {
		if idx.Compressed.Contains(raptor.Avalanche, seeds, x, bin) {
			counts[bin]++
		}
	}
}

func openSearchBackend(path string) (searchBackend, error) {
	// A partition manifest is a plain-text list of part file paths; a
	// direct index file starts with the fixed "RAPTORIX" magic. Check
	// the magic first so a manifest-detection false positive can never
	// misroute a genuine single index file (see spec.md §6: "<base>_0,
	// _1, … plus a manifest <base> listing parts").
	if isIndexFile(path) {
		idx, err := indexfile.Open(path)
		if err != nil {
			return nil, err
		}
		return &singleBackend{idx: idx}, nil
	}

	p, err := indexfile.OpenAll(path)
	if err != nil {
		return nil, err
	}
	return &partitionedBackend{p: p, parts: uint64(len(p.Indexes))}, nil
}

func isIndexFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	var magic [8]byte
	n, err := f.Read(magic[:])
	return err == nil && n == 8 && string(magic[:]) == indexfile.Magic
}

// hitRecord is one query's result, kept in input order so parallel
// workers can write a stable output regardless of completion order.
type hitRecord struct {
	id   string
	bins []uint64
}

// Search runs the full query pipeline: open the index (or partitioned
// set), extract minimisers from every query record, tally per-bin
// occupancy counts, compare against the threshold table, and write
// "<id>\t<b1,b2,...>" lines to out in input order. Grounded on
// spec.md §4.E's description of the query loop and the
// bulk_contains-then-threshold comparison pattern; the worker-pool
// shape mirrors Build's.
func Search(cfg SearchConfig, cancel *CancelToken, out io.Writer) error {
	backend, err := openSearchBackend(cfg.IndexPath)
	if err != nil {
		return err
	}
	defer backend.close()

	records, err := readAllQueries(cfg.QueryPath)
	if err != nil {
		return err
	}

	table := threshold.NewTable(threshold.Params{
		Shape:    backend.shape(),
		Window:   backend.window(),
		Errors:   cfg.Errors,
		Alpha:    cfg.Alpha,
		Override: cfg.Override,
	})

	results := make([]hitRecord, len(records))
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	sem := make(chan struct{}, threadCount(cfg.Threads))
	for i, rec := range records {
		if cancel.Cancelled() {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, rec QueryRecord) {
			defer wg.Done()
			defer func() { <-sem }()

			bins, err := searchOne(backend, table, rec)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
					cancel.Cancel()
				}
				mu.Unlock()
				return
			}
			results[i] = hitRecord{id: rec.ID, bins: bins}
		}(i, rec)
	}
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	if cancel.Cancelled() {
		return raptorerr.New(raptorerr.Cancelled, "search cancelled")
	}

	bw := bufio.NewWriter(out)
	for _, r := range results {
		if err := writeHit(bw, r); err != nil {
			return raptorerr.Wrap(err, raptorerr.IoExhausted, "writing search result")
		}
	}
	return bw.Flush()
}

func searchOne(backend searchBackend, table *threshold.Table, rec QueryRecord) ([]uint64, error) {
	counts := make([]uint64, backend.binCount())

	stream := raptor.NewStream(raptor.NewSliceSource(rec.Sequence), backend.shape(), backend.window(), 0)
	for {
		m, ok := stream.Next()
		if !ok {
			break
		}
		backend.count(m.Hash, counts)
	}

	tau := table.Tau(len(rec.Sequence))
	var hits []uint64
	for bin, c := range counts {
		if c >= uint64(tau) {
			hits = append(hits, uint64(bin))
		}
	}
	return hits, nil
}

func writeHit(w *bufio.Writer, r hitRecord) error {
	if _, err := w.WriteString(r.id); err != nil {
		return err
	}
	if err := w.WriteByte('\t'); err != nil {
		return err
	}
	parts := make([]string, len(r.bins))
	for i, b := range r.bins {
		parts[i] = fmt.Sprintf("%d", b)
	}
	if _, err := w.WriteString(strings.Join(parts, ",")); err != nil {
		return err
	}
	return w.WriteByte('\n')
}

func readAllQueries(path string) ([]QueryRecord, error) {
	qr, err := OpenQueryReader(path)
	if err != nil {
		return nil, err
	}
	defer qr.Close()

	var records []QueryRecord
	for {
		rec, ok, err := qr.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		records = append(records, rec)
	}
	return records, nil
}

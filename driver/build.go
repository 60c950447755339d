package driver

import (
	"sync"

	"github.com/raptor-ibf/raptor"
	"github.com/raptor-ibf/raptor/ibf"
	"github.com/raptor-ibf/raptor/indexfile"
	"github.com/raptor-ibf/raptor/internal/rlog"
	"github.com/raptor-ibf/raptor/raptorerr"
)

// BuildConfig carries every parameter the build phase needs, mapped
// directly from the CLI's build flags (spec.md §6).
type BuildConfig struct {
	BinPaths   [][]string // one entry per technical bin
	Shape      raptor.Shape
	Window     int
	FPR        float64
	HashCount  uint32
	Threads    int
	Parts      uint64 // power-of-two part count; 1 means unpartitioned
	Compressed bool
	Output     string
	Seed       uint64

	// SizeOverride, when non-zero, fixes bits-per-bin directly
	// (spec.md §6's "--size <bits|k|m|g>") instead of deriving it from
	// FPR and the estimated element count.
	SizeOverride uint64
}

// Build runs the full build pipeline: estimate per-bin sizes, allocate
// one IBF per part, stream minimisers from each bin's files through a
// bounded worker pool emplacing into the shared bit vector(s), then
// serialize the result to disk. Grounded on the bin-parallel,
// atomic-OR-write worker pool spec.md §4.E and §5 describe; the
// worker-pool shape (bounded goroutines draining a job channel,
// first-error-wins via a mutex-guarded firstErr) follows the csvquery indexer's pipeline
// idiom (see internal/indexer/indexer.go in the pack).
func Build(cfg BuildConfig, cancel *CancelToken) error {
	if len(cfg.BinPaths) == 0 {
		return raptorerr.New(raptorerr.InvalidArgument, "no bins provided")
	}
	if cfg.Parts == 0 || (cfg.Parts&(cfg.Parts-1)) != 0 {
		return raptorerr.New(raptorerr.InvalidArgument, "part count must be a power of two")
	}

	log := rlog.Default

	estimates, err := estimateBinSizes(cfg, cancel)
	if err != nil {
		return err
	}

	var bitsPerBin uint64
	if cfg.SizeOverride > 0 {
		bitsPerBin = cfg.SizeOverride
	} else {
		var totalElements uint64
		for _, c := range estimates {
			totalElements += c
		}
		avgPerBin := totalElements / uint64(len(cfg.BinPaths))
		if avgPerBin == 0 {
			avgPerBin = 1
		}
		bitsPerBin = ibf.BinSizeInBits(avgPerBin, cfg.FPR, cfg.HashCount)
	}
	if cfg.Parts > 1 {
		correction := ibf.CorrectionFactor(cfg.FPR, cfg.HashCount, cfg.Parts)
		bitsPerBin = uint64(float64(bitsPerBin) * correction)
	}

	parts := make([]*ibf.IBF, cfg.Parts)
	for i := range parts {
		f, err := ibf.New(uint64(len(cfg.BinPaths)), bitsPerBin, cfg.HashCount)
		if err != nil {
			return err
		}
		parts[i] = f
	}

	if err := runBuildWorkers(cfg, parts, cancel); err != nil {
		return err
	}

	if cancel.Cancelled() {
		return raptorerr.New(raptorerr.Cancelled, "build cancelled")
	}

	log.Info("build: writing index", "parts", cfg.Parts, "bins", len(cfg.BinPaths), "bits_per_bin", bitsPerBin)

	return writeBuildOutput(cfg, parts)
}

func estimateBinSizes(cfg BuildConfig, cancel *CancelToken) ([]uint64, error) {
	estimates := make([]uint64, len(cfg.BinPaths))
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	sem := make(chan struct{}, threadCount(cfg.Threads))
	for i, files := range cfg.BinPaths {
		if cancel.Cancelled() {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(bin int, files []string) {
			defer wg.Done()
			defer func() { <-sem }()

			count, err := countMinimisers(files, cfg.Shape, cfg.Window, cfg.Seed)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
					cancel.Cancel()
				}
				return
			}
			estimates[bin] = count
		}(i, files)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return estimates, nil
}

func countMinimisers(files []string, shape raptor.Shape, window int, seed uint64) (uint64, error) {
	var count uint64
	for _, path := range files {
		src, err := OpenFASTABaseSource(path)
		if err != nil {
			return 0, err
		}
		stream := raptor.NewStream(src, shape, window, seed)
		for {
			_, ok := stream.Next()
			if !ok {
				break
			}
			count++
		}
		if err := src.Close(); err != nil {
			return 0, err
		}
	}
	return count, nil
}

func runBuildWorkers(cfg BuildConfig, parts []*ibf.IBF, cancel *CancelToken) error {
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	sem := make(chan struct{}, threadCount(cfg.Threads))
	for i, files := range cfg.BinPaths {
		if cancel.Cancelled() {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(bin uint64, files []string) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := emplaceBin(cfg, parts, bin, files, cancel); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
					cancel.Cancel()
				}
				mu.Unlock()
			}
		}(uint64(i), files)
	}
	wg.Wait()

	return firstErr
}

// emplaceBin streams minimisers from one technical bin's files and
// emplaces each into the appropriate part's IBF. Distinct bins never
// share a bit column's word beyond what atomic-OR already makes safe
// (spec.md's "thread discipline on the IBF"), so no further
// synchronization is required here.
func emplaceBin(cfg BuildConfig, parts []*ibf.IBF, bin uint64, files []string, cancel *CancelToken) error {
	for _, path := range files {
		if cancel.Cancelled() {
			return nil
		}
		src, err := OpenFASTABaseSource(path)
		if err != nil {
			return err
		}
		stream := raptor.NewStream(src, cfg.Shape, cfg.Window, cfg.Seed)
		for {
			m, ok := stream.Next()
			if !ok {
				break
			}
			partIdx := uint64(0)
			if cfg.Parts > 1 {
				partIdx = ibf.HashPartition(m.Hash, cfg.Parts)
			}
			if err := parts[partIdx].Emplace(m.Hash, bin); err != nil {
				src.Close()
				return err
			}
		}
		if err := src.Close(); err != nil {
			return err
		}
	}
	return nil
}

func writeBuildOutput(cfg BuildConfig, parts []*ibf.IBF) error {
	manifest := indexfile.Manifest{
		Version:       indexfile.Version,
		KmerSize:      cfg.Shape.K(),
		WindowSize:    uint32(cfg.Window),
		Shape:         cfg.Shape,
		HashCount:     uint8(cfg.HashCount),
		BinCount:      uint64(len(cfg.BinPaths)),
		BitsPerBin:    parts[0].BitsPerBin(),
		FPRCorrection: ibf.CorrectionFactor(cfg.FPR, cfg.HashCount, cfg.Parts),
		BinPaths:      cfg.BinPaths,
		Compressed:    cfg.Compressed,
	}

	if cfg.Parts == 1 {
		if err := indexfile.WriteFile(cfg.Output, manifest, parts[0]); err != nil {
			return err
		}
		return nil
	}

	for i, part := range parts {
		path := indexfile.PartPath(cfg.Output, i, int(cfg.Parts))
		if err := indexfile.WriteFile(path, manifest, part); err != nil {
			return err
		}
	}
	return indexfile.WriteManifest(cfg.Output, int(cfg.Parts))
}

func threadCount(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

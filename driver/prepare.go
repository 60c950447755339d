package driver

import (
	"os"
	"sync"

	"github.com/raptor-ibf/raptor"
	"github.com/raptor-ibf/raptor/raptorerr"
)

// PrepareConfig mirrors prepare_parsing.hpp's scope: compute and cache
// minimiser sidecars for every bin ahead of a build, so a later Build
// run (possibly repeated with different hash/bin-size choices) can
// skip rescanning the reference files. Grounded on
// compute_minimiser.hpp's per-bin precomputation step.
type PrepareConfig struct {
	BinPaths  [][]string
	Shape     raptor.Shape
	Window    int
	Seed      uint64
	Threads   int
	SidecarExt string // appended to each reference file's path; defaults to ".minimiser"
}

// Prepare writes one `<file><SidecarExt>` sidecar per reference file
// across all bins, in parallel, bounded by cfg.Threads.
func Prepare(cfg PrepareConfig, cancel *CancelToken) error {
	ext := cfg.SidecarExt
	if ext == "" {
		ext = ".minimiser"
	}

	var files []string
	for _, bin := range cfg.BinPaths {
		files = append(files, bin...)
	}
	if len(files) == 0 {
		return raptorerr.New(raptorerr.InvalidArgument, "no reference files to prepare")
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	sem := make(chan struct{}, threadCount(cfg.Threads))
	for _, path := range files {
		if cancel.Cancelled() {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(path string) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := prepareOne(path, path+ext, cfg.Shape, cfg.Window, cfg.Seed); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
					cancel.Cancel()
				}
				mu.Unlock()
			}
		}(path)
	}
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	if cancel.Cancelled() {
		return raptorerr.New(raptorerr.Cancelled, "prepare cancelled")
	}
	return nil
}

func prepareOne(srcPath, sidecarPath string, shape raptor.Shape, window int, seed uint64) (err error) {
	src, err := OpenFASTABaseSource(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()

	tmpPath := sidecarPath + ".tmp"
	out, err := os.Create(tmpPath)
	if err != nil {
		return raptorerr.Wrap(err, raptorerr.IoExhausted, "creating minimiser sidecar")
	}
	defer func() {
		if err != nil {
			out.Close()
			os.Remove(tmpPath)
			return
		}
	}()

	sw := raptor.NewSidecarWriter(out)
	stream := raptor.NewStream(src, shape, window, seed)
	for {
		m, ok := stream.Next()
		if !ok {
			break
		}
		if werr := sw.Write(m); werr != nil {
			err = raptorerr.Wrap(werr, raptorerr.IoExhausted, "writing minimiser sidecar")
			return err
		}
	}

	if cerr := sw.Close(); cerr != nil {
		err = raptorerr.Wrap(cerr, raptorerr.IoExhausted, "closing minimiser sidecar")
		return err
	}
	if cerr := out.Close(); cerr != nil {
		err = raptorerr.Wrap(cerr, raptorerr.IoExhausted, "closing minimiser sidecar file")
		return err
	}

	if err = os.Rename(tmpPath, sidecarPath); err != nil {
		err = raptorerr.Wrap(err, raptorerr.IoExhausted, "finalizing minimiser sidecar")
		return err
	}
	return nil
}

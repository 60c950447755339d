// Package driver implements the build/query driver (component E):
// bin-parallel index construction, persistence, and search, wired on
// top of the ibf, threshold, and indexfile packages. Grounded on
// shaia-BloomFilter's worker-pool-over-a-shared-bit-vector idiom,
// generalized from one filter built by N goroutines inserting into
// arbitrary positions to N goroutines each owning one disjoint
// technical bin.
package driver

import (
	"bufio"
	"os"
	"strings"

	"github.com/raptor-ibf/raptor/raptorerr"
)

// ParseBinPaths reads a bin-list file: one line per technical bin,
// each a whitespace-separated list of file paths. Empty lines are
// ignored. Ported from parse_bin_paths.cpp, adapted for spec.md §6's
// SOCKS-mode extension: when socks is true, a line's first token is
// treated as a colour name and stripped if it ends with ':' (the
// original tool always strips the first token unconditionally; this
// repo follows spec.md's tighter "colour name followed by ':'" rule
// so a non-SOCKS bin-list file accidentally run in SOCKS mode doesn't
// silently lose its first path).
func ParseBinPaths(path string, socks bool) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, raptorerr.Wrap(err, raptorerr.InputUnreadable, "opening bin-list file")
	}
	defer f.Close()

	var binPaths [][]string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		fields := strings.Fields(line)
		if socks && len(fields) > 0 && strings.HasSuffix(fields[0], ":") {
			fields = fields[1:]
		}
		if len(fields) == 0 {
			continue
		}

		paths := make([]string, len(fields))
		copy(paths, fields)
		binPaths = append(binPaths, paths)
	}
	if err := sc.Err(); err != nil {
		return nil, raptorerr.Wrap(err, raptorerr.InputUnreadable, "reading bin-list file")
	}

	return binPaths, nil
}

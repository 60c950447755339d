package indexfile

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/raptor-ibf/raptor/raptorerr"
)

// PartPath returns the file name for part i of a base path, matching
// spec.md §6's "<base>_0, _1, … _{P-1}" naming.
func PartPath(base string, i, parts int) string {
	return fmt.Sprintf("%s_%d", base, i)
}

// WriteManifest writes the part-list manifest file for a partitioned
// index: one part file name per line.
func WriteManifest(base string, parts int) error {
	f, err := os.Create(base)
	if err != nil {
		return raptorerr.Wrap(err, raptorerr.IoExhausted, "creating partition manifest")
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	for i := 0; i < parts; i++ {
		if _, err := fmt.Fprintln(bw, PartPath(base, i, parts)); err != nil {
			return raptorerr.Wrap(err, raptorerr.IoExhausted, "writing partition manifest entry")
		}
	}
	return bw.Flush()
}

// ReadManifest reads a partition manifest and returns the listed part
// file paths in order.
func ReadManifest(base string) ([]string, error) {
	f, err := os.Open(base)
	if err != nil {
		return nil, raptorerr.Wrap(err, raptorerr.InputUnreadable, "opening partition manifest")
	}
	defer f.Close()

	var parts []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		parts = append(parts, line)
	}
	if err := sc.Err(); err != nil {
		return nil, raptorerr.Wrap(err, raptorerr.InputUnreadable, "reading partition manifest")
	}
	return parts, nil
}

// Partitioned holds every part listed in a manifest, opened in order
// by OpenAll. Callers query a hash x by computing ibf.HashPartition(x, P)
// and dispatching to Indexes[p].
type Partitioned struct {
	Indexes []*Index
}

// OpenAll opens the manifest at base and every part it lists.
func OpenAll(base string) (*Partitioned, error) {
	paths, err := ReadManifest(base)
	if err != nil {
		return nil, err
	}

	p := &Partitioned{Indexes: make([]*Index, 0, len(paths))}
	for _, path := range paths {
		idx, err := Open(path)
		if err != nil {
			p.Close()
			return nil, err
		}
		p.Indexes = append(p.Indexes, idx)
	}
	return p, nil
}

// Close closes every opened part, collecting the first error.
func (p *Partitioned) Close() error {
	var first error
	for _, idx := range p.Indexes {
		if idx == nil {
			continue
		}
		if err := idx.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// PartCount parses the number of parts from the count of lines in the
// manifest; a convenience for validators that need P without opening
// every part.
func PartCount(base string) (int, error) {
	paths, err := ReadManifest(base)
	if err != nil {
		return 0, err
	}
	return len(paths), nil
}

// ParsePartIndex extracts the trailing _<i> suffix from a part path,
// for tooling that needs to recover which part a file represents.
func ParsePartIndex(path string) (int, error) {
	idx := strings.LastIndexByte(path, '_')
	if idx < 0 {
		return 0, raptorerr.New(raptorerr.InvalidArgument, "part path missing _<index> suffix")
	}
	n, err := strconv.Atoi(path[idx+1:])
	if err != nil {
		return 0, raptorerr.Wrap(err, raptorerr.InvalidArgument, "part path suffix is not numeric")
	}
	return n, nil
}

package driver

import (
	"github.com/raptor-ibf/raptor"
	"github.com/raptor-ibf/raptor/ibf"
	"github.com/raptor-ibf/raptor/indexfile"
	"github.com/raptor-ibf/raptor/raptorerr"
)

// UpgradeConfig mirrors the original upgrade tool's flags: a version-0
// index carries none of window/kmer/shape/fpr_correction/bin_paths, so
// every one of those is supplied explicitly rather than recovered from
// the file being upgraded.
type UpgradeConfig struct {
	BinListPath string
	InputPath   string // base path; "_0".."_{P-1}" appended per part when Parts > 1
	OutputPath  string
	Window      int
	Kmer        uint8
	Parts       uint64
	Compressed  bool
}

// Upgrade reads one or more version-0 index parts and rewrites them in
// the current format, grounded on upgrade.cpp's run_upgrade: parse the
// bin-list file fresh (one bin per line, whitespace-separated paths, no SOCKS
// colour-name stripping for upgrade) and attach it plus the supplied
// kmer/window to each part's legacy bit vector.
func Upgrade(cfg UpgradeConfig) error {
	if cfg.Parts == 0 || (cfg.Parts&(cfg.Parts-1)) != 0 {
		return raptorerr.New(raptorerr.InvalidArgument, "part count must be a power of two")
	}

	binPaths, err := ParseBinPaths(cfg.BinListPath, false)
	if err != nil {
		return err
	}
	if len(binPaths) == 0 {
		return raptorerr.New(raptorerr.InvalidArgument, "bin list is empty")
	}

	shape, err := raptor.NewUngappedShape(cfg.Kmer)
	if err != nil {
		return err
	}

	if cfg.Parts == 1 {
		return upgradeOnePart(cfg.InputPath, cfg.OutputPath, shape, cfg, binPaths)
	}

	for i := 0; i < int(cfg.Parts); i++ {
		in := indexfile.PartPath(cfg.InputPath, i, int(cfg.Parts))
		out := indexfile.PartPath(cfg.OutputPath, i, int(cfg.Parts))
		if err := upgradeOnePart(in, out, shape, cfg, binPaths); err != nil {
			return err
		}
	}
	return indexfile.WriteManifest(cfg.OutputPath, int(cfg.Parts))
}

func upgradeOnePart(inPath, outPath string, shape raptor.Shape, cfg UpgradeConfig, binPaths [][]string) error {
	legacy, words, err := indexfile.ReadLegacyFile(inPath)
	if err != nil {
		return err
	}

	filter, err := ibf.FromRawWords(legacy.BinCount, legacy.BitsPerBin, uint32(legacy.HashCount), words)
	if err != nil {
		return err
	}

	manifest := indexfile.Manifest{
		Version:    indexfile.Version,
		KmerSize:   cfg.Kmer,
		WindowSize: uint32(cfg.Window),
		Shape:      shape,
		HashCount:  legacy.HashCount,
		BinCount:   legacy.BinCount,
		BitsPerBin: legacy.BitsPerBin,
		// The legacy format carried no correction factor; 1.0 (no
		// correction) is the only value we can attribute without
		// knowing the original build's target FPR.
		FPRCorrection: 1.0,
		BinPaths:      binPaths,
		Compressed:    cfg.Compressed,
	}

	return indexfile.WriteFile(outPath, manifest, filter)
}

// Package dirclass implements the per-package directory classifier from
// spec.md §4.4: for each entry of a package's DIRNAMES, decide whether its
// files must be kept unconditionally (a bindir), checked individually
// against the fingerprint set, or dropped outright.
//
// Grounded on spec.md §4.4 directly; there is no original_source
// equivalent function (the C implementation inlines this as part of its
// blob-walking loop rather than as a standalone step), so the split here
// follows the spec's own decomposition, in the same explicit-table style
// internal/header uses for EntryInfo.
package dirclass

import (
	"github.com/alt-tools/genbasedir/internal/bindir"
	"github.com/alt-tools/genbasedir/internal/fingerprint"
)

// Need is a directory's classification.
type Need int

//go:generate stringer -type=Need

const (
	// Skip means no file under this directory can survive stripping.
	Skip Need = iota
	// Bin means every file under this directory survives unconditionally.
	Bin
	// Check means a file under this directory survives only if its own
	// (dir, basename) fingerprint is present in the dependency set.
	Check
)

// Dir holds one DIRNAMES entry's classification, plus the directory
// fingerprint already computed for Check directories (so the per-file walk
// in internal/striphdr and internal/stripblob never rehashes the dirname).
type Dir struct {
	Need Need
	FP   uint64 // only meaningful when Need == Check
}

// Table is the per-package classification of every DIRNAMES entry, indexed
// the same way DIRNAMES itself is.
type Table struct {
	Dirs []Dir
	// Useful is true if at least one entry is Bin or Check; if false, the
	// caller should drop the package's entire file list without looking at
	// individual files (spec.md §4.4: "If the flag is false the entire
	// file list is dropped").
	Useful bool
}

// Classify builds a Table for dirnames against fp.
func Classify(dirnames []string, fp *fingerprint.Set) Table {
	t := Table{Dirs: make([]Dir, len(dirnames))}
	for i, dn := range dirnames {
		switch {
		case bindir.Is(dn):
			t.Dirs[i] = Dir{Need: Bin}
			t.Useful = true
		default:
			dirFP := fp.DirFP(dn)
			if fp.Contains(dirFP) {
				t.Dirs[i] = Dir{Need: Check, FP: dirFP}
				t.Useful = true
			} else {
				t.Dirs[i] = Dir{Need: Skip}
			}
		}
	}
	return t
}

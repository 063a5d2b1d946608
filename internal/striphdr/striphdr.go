// Package striphdr implements the header-form file-list stripper from
// spec.md §4.5: given a source header and a destination header builder,
// rewrite the (BASENAMES, DIRNAMES, DIRINDEXES) triple down to only the
// files the dependency fingerprint set says matter, remapping directory
// indices as it goes.
//
// Grounded on spec.md §4.4/§4.5 and holocm-holo-build's rpm/metadata.go
// findOrAppend pattern for building a deduplicated output array while
// walking a parallel input array.
package striphdr

import (
	"fmt"

	"github.com/alt-tools/genbasedir/internal/dirclass"
	"github.com/alt-tools/genbasedir/internal/fingerprint"
	"github.com/alt-tools/genbasedir/internal/header"
)

// Strip reads h1's file triple, keeps only files whose directory is BIN or
// whose (dir, basename) fingerprint is present in fp, and writes the
// surviving BASENAMES/DIRNAMES/DIRINDEXES into b. If h1 has no file triple,
// or every file is dropped, b is left untouched and ok is false.
func Strip(h1 *header.Header, fp *fingerprint.Set, b *header.Builder) (ok bool, err error) {
	dnE, ok := h1.Find(header.TagDirNames)
	if !ok {
		return false, nil
	}
	dirnames, err := h1.StringArray(dnE)
	if err != nil {
		return false, fmt.Errorf("striphdr: DIRNAMES: %w", err)
	}

	tbl := dirclass.Classify(dirnames, fp)
	if !tbl.Useful {
		return false, nil
	}

	bnE, ok := h1.Find(header.TagBasenames)
	if !ok {
		return false, fmt.Errorf("striphdr: DIRNAMES present without BASENAMES")
	}
	diE, ok := h1.Find(header.TagDirIndexes)
	if !ok {
		return false, fmt.Errorf("striphdr: DIRNAMES present without DIRINDEXES")
	}
	basenames, err := h1.StringArray(bnE)
	if err != nil {
		return false, fmt.Errorf("striphdr: BASENAMES: %w", err)
	}
	dirindexes, err := h1.Int32Array(diE)
	if err != nil {
		return false, fmt.Errorf("striphdr: DIRINDEXES: %w", err)
	}
	if len(basenames) != len(dirindexes) {
		return false, fmt.Errorf("striphdr: BASENAMES/DIRINDEXES length mismatch: %d != %d", len(basenames), len(dirindexes))
	}

	var (
		outBasenames []string
		outDirnames  []string
		outDirindex  []int32
		dj           = make([]int32, len(dirnames))
	)
	for i := range dj {
		dj[i] = -1
	}

	for i, base := range basenames {
		di := int(dirindexes[i])
		if di < 0 || di >= len(tbl.Dirs) {
			return false, fmt.Errorf("striphdr: DIRINDEXES[%d]=%d out of range [0,%d)", i, di, len(tbl.Dirs))
		}
		d := tbl.Dirs[di]
		switch d.Need {
		case dirclass.Skip:
			continue
		case dirclass.Bin:
			// kept unconditionally
		case dirclass.Check:
			if !fp.Contains(fingerprint.FileFP(d.FP, base)) {
				continue
			}
		}

		if dj[di] == -1 {
			dj[di] = int32(len(outDirnames))
			outDirnames = append(outDirnames, dirnames[di])
		}
		outBasenames = append(outBasenames, base)
		outDirindex = append(outDirindex, dj[di])
	}

	if len(outBasenames) == 0 {
		return false, nil
	}

	// Written in this order — DIRINDEXES, then BASENAMES, then DIRNAMES —
	// so the physical byte layout in b.Data matches internal/stripblob's
	// assumption that DIRINDEXES' offset marks the start of the file-triple
	// region, with BASENAMES/DIRNAMES immediately following it.
	b.AddInt32(header.TagDirIndexes, outDirindex)
	b.AddStringArray(header.TagBasenames, outBasenames)
	b.AddStringArray(header.TagDirNames, outDirnames)
	return true, nil
}

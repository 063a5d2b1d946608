// Package depfiles implements the two filename-dependency collectors from
// spec.md §4.3: one over a parsed header (the "H" form), one over a raw
// header blob (the "B" form). Both populate a fingerprint.Set with
// (directory, basename) pairs found in a package's REQUIRENAME/PROVIDENAME/
// (optionally CONFLICTNAME) tags.
//
// Grounded on original_source/depfiles.h's function contracts
// (findDepFilesH, findDepFilesB, readDepFiles) and spec.md §4.3 in full,
// including the blob form's positional PROVIDENAME shortcut — but per
// spec.md §9's open question, every landing is verified against the actual
// tag number rather than trusted blindly; a violated adjacency is reported
// as an error (spec.md §7's Fatal disposition: malformed header shape),
// not silently papered over.
package depfiles

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/alt-tools/genbasedir/internal/bindir"
	"github.com/alt-tools/genbasedir/internal/fingerprint"
	"github.com/alt-tools/genbasedir/internal/header"
)

// errTagNotPresent distinguishes a tag's legitimate absence (CONFLICTNAME is
// optional) from a violated adjacency guess, which is a distinct, fatal
// error that must never be swallowed alongside it.
var errTagNotPresent = errors.New("depfiles: tag not present")

// splitDep splits a filename-looking dependency into (dir, base), or
// reports ok=false if it isn't a filename dependency worth fingerprinting:
// spec.md §4.3 step 1 (must start with "/" and not end with ")", which
// rejects synthetic expressions like "/usr/lib64/firefox/libxul.so()(64bit)"
// or "/etc/rc.d/init.d(status)").
func splitDep(dep string) (dir, base string, ok bool) {
	if !strings.HasPrefix(dep, "/") || strings.HasSuffix(dep, ")") {
		return "", "", false
	}
	i := strings.LastIndexByte(dep, '/')
	return dep[:i+1], dep[i+1:], true
}

// add feeds one (dir, base) dependency into fp, per spec.md §4.3 steps 2-4:
// bindirs are skipped (their files are kept unconditionally at strip time
// regardless of being depended upon), everything else gets both a
// directory fingerprint and a two-level (dir, basename) fingerprint.
func add(fp *fingerprint.Set, dir, base string) {
	if bindir.Is(dir) {
		return
	}
	dirFP := fp.DirFP(dir)
	fp.Add(dirFP)
	fp.Add(fingerprint.FileFP(dirFP, base))
}

// feedNames runs splitDep+add over every entry of names.
func feedNames(fp *fingerprint.Set, names []string) {
	for _, dep := range names {
		if dir, base, ok := splitDep(dep); ok {
			add(fp, dir, base)
		}
	}
}

// CollectFromHeader is the structured-header-API form ("H" in spec.md
// §4.3): REQUIRENAME and PROVIDENAME are required tags; CONFLICTNAME is
// optional. OBSOLETENAME is deliberately never consulted — obsoletes name
// packages, not paths.
func CollectFromHeader(h *header.Header, fp *fingerprint.Set) error {
	req, ok := h.Find(header.TagRequireName)
	if !ok {
		return fmt.Errorf("depfiles: header has no REQUIRENAME")
	}
	prov, ok := h.Find(header.TagProvideName)
	if !ok {
		return fmt.Errorf("depfiles: header has no PROVIDENAME")
	}
	reqNames, err := h.StringArray(req)
	if err != nil {
		return fmt.Errorf("depfiles: REQUIRENAME: %w", err)
	}
	provNames, err := h.StringArray(prov)
	if err != nil {
		return fmt.Errorf("depfiles: PROVIDENAME: %w", err)
	}
	feedNames(fp, reqNames)
	feedNames(fp, provNames)

	if conf, ok := h.Find(header.TagConflictName); ok {
		confNames, err := h.StringArray(conf)
		if err != nil {
			return fmt.Errorf("depfiles: CONFLICTNAME: %w", err)
		}
		feedNames(fp, confNames)
	}
	return nil
}

const (
	preambleSize  = 8
	entryInfoSize = 16
)

type rawEntry struct {
	tag    header.Tag
	typ    header.Kind
	offset int32
	count  int32
}

// CollectFromBlob is the raw-blob form ("B" in spec.md §4.3): it locates
// PROVIDENAME/REQUIRENAME/CONFLICTNAME without building a full []EntryInfo
// decode of every tag, using the canonical tag-adjacency shortcut
// (PROVIDENAME sits at index 13, or 14 if EPOCH is present; REQUIRENAME
// sits two entries after PROVIDENAME, and CONFLICTNAME three entries after
// REQUIRENAME) — then verifies
// every guess against the actual tag number before trusting it, per
// spec.md §9's resolution of the blob-form's brittleness.
func CollectFromBlob(blob []byte, fp *fingerprint.Set) error {
	if len(blob) < preambleSize {
		return fmt.Errorf("depfiles: blob too small")
	}
	il := int(binary.BigEndian.Uint32(blob[0:4]))
	dl := int(binary.BigEndian.Uint32(blob[4:8]))
	idxBase := preambleSize
	dataBase := idxBase + il*entryInfoSize
	if dataBase+dl > len(blob) {
		return fmt.Errorf("depfiles: blob shorter than header declares")
	}

	entryAt := func(i int) rawEntry {
		b := blob[idxBase+i*entryInfoSize:]
		return rawEntry{
			tag:    header.Tag(int32(binary.BigEndian.Uint32(b[0:4]))),
			typ:    header.Kind(binary.BigEndian.Uint32(b[4:8])),
			offset: int32(binary.BigEndian.Uint32(b[8:12])),
			count:  int32(binary.BigEndian.Uint32(b[12:16])),
		}
	}

	// Positional shortcut: does EPOCH (tag 1003) appear before PROVIDENAME?
	// If so every later entry shifts by one.
	hasEpoch := false
	for i := 0; i < il; i++ {
		t := entryAt(i).tag
		if t == header.TagEpoch {
			hasEpoch = true
		}
		if t >= header.TagProvideName {
			break
		}
	}
	provIdx := 13
	if hasEpoch {
		provIdx = 14
	}

	find := func(guess int, want header.Tag) (rawEntry, int, error) {
		if guess >= 0 && guess < il {
			if e := entryAt(guess); e.tag == want {
				return e, guess, nil
			}
		}
		// Adjacency violated: per spec.md §9, verify rather than assume,
		// and treat the violation as fatal (a malformed/unexpected header
		// shape), falling back to a linear scan only to produce a useful
		// error, not to silently recover.
		for i := 0; i < il; i++ {
			if e := entryAt(i); e.tag == want {
				return rawEntry{}, -1, fmt.Errorf("depfiles: tag %d found at index %d, expected %d (blob-form adjacency violated)", want, i, guess)
			}
		}
		return rawEntry{}, -1, fmt.Errorf("%w: %d", errTagNotPresent, want)
	}

	prov, provPos, err := find(provIdx, header.TagProvideName)
	if err != nil {
		return err
	}
	req, reqPos, err := find(provPos+2, header.TagRequireName)
	if err != nil {
		return err
	}
	conf, confPos, confErr := find(reqPos+3, header.TagConflictName)
	if confErr != nil && !errors.Is(confErr, errTagNotPresent) {
		return confErr
	}

	nextOffset := func(pos int) int {
		if pos+1 < il {
			return int(entryAt(pos + 1).offset)
		}
		return dl
	}

	walk := func(e rawEntry, pos int) error {
		if e.typ != header.KindStringArray {
			return fmt.Errorf("depfiles: tag %d is not a string array", e.tag)
		}
		lo, hi := int(e.offset), nextOffset(pos)
		if lo < 0 || hi > dl || lo > hi {
			return fmt.Errorf("depfiles: tag %d has bad bounds [%d,%d)", e.tag, lo, hi)
		}
		block := blob[dataBase+lo : dataBase+hi]
		for len(block) > 0 {
			nul := bytes.IndexByte(block, 0)
			var name []byte
			if nul < 0 {
				name, block = block, nil
			} else {
				name, block = block[:nul], block[nul+1:]
			}
			if len(name) == 0 || name[0] != '/' {
				continue // not a filename dependency; skip without a full string compare
			}
			if dir, base, ok := splitDep(string(name)); ok {
				add(fp, dir, base)
			}
		}
		return nil
	}

	if err := walk(prov, provPos); err != nil {
		return err
	}
	if err := walk(req, reqPos); err != nil {
		return err
	}
	if confErr == nil {
		if err := walk(conf, confPos); err != nil {
			return err
		}
	}
	return nil
}

// ReadUsefulFiles feeds an external "useful files" seed list (spec.md
// §4.3's optional --useful-files source) into fp: one `/`-prefixed
// filename dependency per line, `#` comments permitted, delimited by delim
// (LF for --useful-files(-from), NUL for --useful-files0-from).
func ReadUsefulFiles(path string, delim byte, fp *fingerprint.Set) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("depfiles: %s: %w", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 4096), 1<<20)
	sc.Split(splitOn(delim))
	for sc.Scan() {
		line := sc.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if dir, base, ok := splitDep(line); ok {
			add(fp, dir, base)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("depfiles: %s: %w", path, err)
	}
	return nil
}

func splitOn(delim byte) bufio.SplitFunc {
	return func(data []byte, atEOF bool) (advance int, token []byte, err error) {
		if atEOF && len(data) == 0 {
			return 0, nil, nil
		}
		if i := bytes.IndexByte(data, delim); i >= 0 {
			return i + 1, data[:i], nil
		}
		if atEOF {
			return len(data), data, nil
		}
		return 0, nil, nil
	}
}

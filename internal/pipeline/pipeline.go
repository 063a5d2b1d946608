// Package pipeline implements the two-pass driver from spec.md §4.9:
// pass 1 feeds every package's Requires/Provides/Conflicts into the
// fingerprint set, pass 2 strips each package's file list against that
// set and emits the result to the output stream.
//
// Grounded on original_source/genpkglist.c's option handling (the
// --bloat/--useful-files* flags and their interaction) and
// original_source/prevout.h's reuse contract (identity by
// CRPMTAG_FILENAME, guarded by CRPMTAG_FILESIZE). The CLI argument
// parsing itself belongs to cmd/genpkglist and cmd/gensrclist; this
// package only drives the two passes once the options are resolved.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/quay/zlog"

	"github.com/alt-tools/genbasedir/internal/depfiles"
	"github.com/alt-tools/genbasedir/internal/digestcache"
	"github.com/alt-tools/genbasedir/internal/fingerprint"
	"github.com/alt-tools/genbasedir/internal/header"
	"github.com/alt-tools/genbasedir/internal/prevout"
	"github.com/alt-tools/genbasedir/internal/rpmfile"
	"github.com/alt-tools/genbasedir/internal/striphdr"
	"github.com/alt-tools/genbasedir/internal/stripblob"
	"github.com/alt-tools/genbasedir/internal/zpkglist"
)

// UsefulFileSource is one --useful-files(-from)/--useful-files0-from seed.
type UsefulFileSource struct {
	Path  string
	Delim byte // '\n' or 0
}

// Options configures a Pipeline run.
type Options struct {
	// Directory is the CRPMTAG_DIRECTORY value attached to every emitted
	// header, e.g. "RPMS.classic" or "SRPMS.classic".
	Directory string
	// Source is true when processing source rpms (gensrclist), selecting
	// the bounded FindSrc previous-output search; false selects the
	// unbounded FindPkg search (genpkglist).
	Source bool
	// Bloat disables file-list stripping entirely.
	Bloat bool
	// UsefulFiles are folded into the fingerprint set after pass 1 and
	// before pass 2, per spec.md §4.9 step 4.
	UsefulFiles []UsefulFileSource
	// PrevOutput is the previous run's output stream, or nil to disable
	// reuse.
	PrevOutput io.ReadSeeker
}

// Pipeline runs the two-pass strip-and-emit process over a sorted list of
// rpm paths.
type Pipeline struct {
	opts  Options
	fp    *fingerprint.Set
	cache *digestcache.Cache
	prev  *prevout.Reader
}

// New opens the digest cache and, if configured, the previous-output
// stream, returning a Pipeline ready for Run.
func New(opts Options) (*Pipeline, error) {
	cache, err := digestcache.Open(opts.Source)
	if err != nil {
		return nil, err
	}
	var prev *prevout.Reader
	if opts.PrevOutput != nil {
		prev, err = prevout.Open(opts.PrevOutput)
		if err != nil {
			cache.Close()
			return nil, err
		}
	}
	return &Pipeline{opts: opts, fp: fingerprint.New(), cache: cache, prev: prev}, nil
}

// Close releases the digest cache handle.
func (p *Pipeline) Close() error {
	return p.cache.Close()
}

// Run executes pass 1 and pass 2 over rpmPaths (assumed already sorted by
// the caller, per spec.md §4.9 step 2) and writes the resulting zpkglist
// stream to w.
func (p *Pipeline) Run(ctx context.Context, rpmPaths []string, w io.Writer) error {
	zlog.Debug(ctx).Int("packages", len(rpmPaths)).Msg("pass 1: collecting dependencies")
	for _, path := range rpmPaths {
		h, _, err := p.obtainHeader(path)
		if err != nil {
			return err
		}
		if err := depfiles.CollectFromHeader(h, p.fp); err != nil {
			return fmt.Errorf("pipeline: %s: %w", path, err)
		}
	}

	for _, uf := range p.opts.UsefulFiles {
		if err := depfiles.ReadUsefulFiles(uf.Path, uf.Delim, p.fp); err != nil {
			return err
		}
	}

	if p.prev != nil {
		if err := p.prev.Rewind(); err != nil {
			return err
		}
	}

	zlog.Debug(ctx).Msg("pass 2: stripping and emitting")
	zw := zpkglist.NewWriter(w)
	for _, path := range rpmPaths {
		blob, err := p.buildOutput(path)
		if err != nil {
			return err
		}
		if err := zw.Append(blob); err != nil {
			return err
		}
	}
	return zw.Close()
}

// obtainHeader returns path's header, preferring a matching previous-output
// blob over re-reading the rpm, plus whether it was reused.
func (p *Pipeline) obtainHeader(path string) (*header.Header, bool, error) {
	base := filepath.Base(path)
	if p.prev != nil {
		var (
			ph  *prevout.Header
			err error
		)
		if p.opts.Source {
			ph, err = p.prev.FindSrc(base)
		} else {
			ph, err = p.prev.FindPkg(base)
		}
		if err != nil {
			return nil, false, err
		}
		if ph != nil {
			fi, err := os.Stat(path)
			if err != nil {
				return nil, false, fmt.Errorf("pipeline: %s: %w", path, err)
			}
			if int64(ph.FileSize) != fi.Size() {
				return nil, false, fmt.Errorf("pipeline: %s: file size mismatch against previous output (previous %d, current %d)", base, ph.FileSize, fi.Size())
			}
			return ph.Header, true, nil
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, false, fmt.Errorf("pipeline: %w", err)
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return nil, false, fmt.Errorf("pipeline: %s: %w", path, err)
	}
	h, err := rpmfile.Open(f, fi.Size())
	if err != nil {
		return nil, false, fmt.Errorf("pipeline: %s: %w", path, err)
	}
	return h, false, nil
}

// buildOutput produces the final emitted blob for path: credentials
// attached, file list stripped (unless --bloat).
func (p *Pipeline) buildOutput(path string) ([]byte, error) {
	h, reused, err := p.obtainHeader(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("pipeline: %s: %w", path, err)
	}
	md5hex, err := p.cache.Lookup(filepath.Base(path), fi.Size(), fi.ModTime().Unix(), f)
	if err != nil {
		return nil, err
	}

	if reused {
		if current, err := currentMD5(h); err == nil && current == md5hex {
			return p.stripReused(h)
		}
		// The embedded digest no longer matches what's on disk despite a
		// name+size match: per original_source/prevout.h, size alone is
		// an insufficient overwrite guard. Fall back to a fresh read
		// rather than emitting a blob with a stale CRPMTAG_MD5.
		h, err = p.readFresh(path)
		if err != nil {
			return nil, err
		}
	}

	return p.buildFresh(h, filepath.Base(path), fi.Size(), md5hex)
}

func (p *Pipeline) readFresh(path string) (*header.Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("pipeline: %s: %w", path, err)
	}
	h, err := rpmfile.Open(f, fi.Size())
	if err != nil {
		return nil, fmt.Errorf("pipeline: %s: %w", path, err)
	}
	return h, nil
}

func currentMD5(h *header.Header) (string, error) {
	e, ok := h.Find(header.TagMD5)
	if !ok {
		return "", fmt.Errorf("pipeline: reused header has no CRPMTAG_MD5")
	}
	return h.String(e)
}

// stripReused strips h in place: it already carries the right
// CRPMTAG_DIRECTORY/FILENAME/FILESIZE/MD5 from the previous run.
func (p *Pipeline) stripReused(h *header.Header) ([]byte, error) {
	if !p.opts.Bloat {
		if _, err := stripblob.Strip(h, p.fp); err != nil {
			return nil, err
		}
	}
	return h.Bytes(), nil
}

// buildFresh constructs a new header carrying every non-file-triple tag
// from h unchanged, the stripped (or, under --bloat, untouched) file
// triple, and the four synthetic credential tags.
func (p *Pipeline) buildFresh(h *header.Header, filename string, filesize int64, md5hex string) ([]byte, error) {
	var b header.Builder
	for _, e := range h.Entries {
		switch e.Tag {
		case header.TagDirIndexes, header.TagBasenames, header.TagDirNames:
			continue
		}
		b.CopyTag(h, e.Tag)
	}

	if p.opts.Bloat {
		b.CopyTag(h, header.TagDirIndexes)
		b.CopyTag(h, header.TagBasenames)
		b.CopyTag(h, header.TagDirNames)
	} else {
		if _, err := striphdr.Strip(h, p.fp, &b); err != nil {
			return nil, err
		}
	}

	b.AddString(header.TagDirectory, p.opts.Directory)
	b.AddString(header.TagFilename, filename)
	b.AddInt32(header.TagFileSize, []int32{int32(filesize)})
	b.AddString(header.TagMD5, md5hex)

	return b.Build().Bytes(), nil
}

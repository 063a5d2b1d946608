// Package prevout implements the previous-output reader from spec.md
// §4.8: a one-shot forward iterator, plus rewind, over the header blobs of
// an earlier pipeline run, exposing each blob's filename/filesize
// credentials so unchanged packages can skip re-reading the source rpm.
//
// Grounded on original_source/prevout.c/prevout.h: the credential scan
// (CRPMTAG_FILENAME expected among the last 8 index entries, immediately
// followed by CRPMTAG_FILESIZE) and the sorted-vs-unbounded distinction
// between FindSrc and FindPkg are carried over directly; blob ownership
// transfer (malloc'd blob, caller frees) has no Go analogue and is
// dropped, since the garbage collector already owns that concern.
package prevout

import (
	"bytes"
	"fmt"
	"io"

	"github.com/alt-tools/genbasedir/internal/header"
	"github.com/alt-tools/genbasedir/internal/zpkglist"
)

// Header is one yielded entry: the parsed header plus its credentials.
type Header struct {
	Blob     []byte
	Header   *header.Header
	RPM      string
	FileSize int32
}

// Reader streams Headers out of a prior run's output file.
type Reader struct {
	r    io.ReadSeeker
	z    *zpkglist.Reader
	peek *Header
	eof  bool
}

// Open opens a previous-output stream. It returns (nil, nil) — not an
// error — on an empty input, mirroring original_source/prevout.c's
// warn-and-return-NULL handling of an empty stream (spec.md §7's
// warn-and-continue disposition; the caller decides whether to log it).
func Open(r io.ReadSeeker) (*Reader, error) {
	z, err := zpkglist.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("prevout: %w", err)
	}
	pr := &Reader{r: r, z: z}
	h, err := pr.readNext()
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, nil
	}
	pr.peek = h
	return pr, nil
}

// Rewind resets the stream to its beginning, discarding any buffered
// lookahead blob, so a second pass can run over the same previous output.
func (p *Reader) Rewind() error {
	p.peek = nil
	p.eof = false
	if _, err := p.r.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("prevout: rewind: %w", err)
	}
	z, err := zpkglist.NewReader(p.r)
	if err != nil {
		return fmt.Errorf("prevout: rewind: %w", err)
	}
	p.z = z
	h, err := p.readNext()
	if err != nil {
		return err
	}
	p.peek = h
	return nil
}

// Next returns the next header in the stream, or (nil, nil) at EOF.
func (p *Reader) Next() (*Header, error) {
	if p.peek != nil {
		h := p.peek
		p.peek = nil
		return h, nil
	}
	return p.readNext()
}

func (p *Reader) readNext() (*Header, error) {
	if p.eof {
		return nil, nil
	}
	blob, err := p.z.Next()
	if err != nil {
		if err == io.EOF {
			p.eof = true
			return nil, nil
		}
		return nil, fmt.Errorf("prevout: reading next blob: %w", err)
	}
	return parse(blob)
}

// parse builds a Header from a raw blob and extracts its credentials,
// scanning the last up to 8 index entries for CRPMTAG_FILENAME per
// spec.md §4.8's tag-adjacency argument.
func parse(blob []byte) (*Header, error) {
	h, err := header.Parse(bytes.NewReader(blob), int64(len(blob)))
	if err != nil {
		return nil, fmt.Errorf("prevout: %w", err)
	}

	entries := h.Entries
	start := 0
	if len(entries) > 8 {
		start = len(entries) - 8
	}
	fnIdx := -1
	for i := start; i < len(entries); i++ {
		if entries[i].Tag == header.TagFilename {
			fnIdx = i
			break
		}
	}
	if fnIdx < 0 {
		return nil, fmt.Errorf("prevout: cannot find CRPMTAG_FILENAME in last %d entries", len(entries)-start)
	}
	fsIdx := fnIdx + 1
	if fsIdx >= len(entries) || entries[fsIdx].Tag != header.TagFileSize {
		return nil, fmt.Errorf("prevout: CRPMTAG_FILESIZE does not immediately follow CRPMTAG_FILENAME")
	}

	rpm, err := h.String(entries[fnIdx])
	if err != nil {
		return nil, fmt.Errorf("prevout: CRPMTAG_FILENAME: %w", err)
	}
	fsize, err := h.Int32Array(entries[fsIdx])
	if err != nil {
		return nil, fmt.Errorf("prevout: CRPMTAG_FILESIZE: %w", err)
	}
	if len(fsize) != 1 {
		return nil, fmt.Errorf("prevout: CRPMTAG_FILESIZE count = %d, want 1", len(fsize))
	}

	return &Header{Blob: blob, Header: h, RPM: rpm, FileSize: fsize[0]}, nil
}

// FindSrc scans forward for rpm, assuming headers are sorted by filename
// (true for srclists). If a lexicographically greater name is seen first,
// rpm is absent; the peeked header is pushed back so the next call
// resumes from it, and (nil, nil) is returned.
func (p *Reader) FindSrc(rpm string) (*Header, error) {
	return p.find(rpm, true)
}

// FindPkg scans forward for rpm without assuming any ordering (true for
// pkglists, which are grouped by source package, not sorted by filename).
// A miss may traverse the entire remaining stream.
func (p *Reader) FindPkg(rpm string) (*Header, error) {
	return p.find(rpm, false)
}

func (p *Reader) find(rpm string, sorted bool) (*Header, error) {
	for {
		h, err := p.Next()
		if err != nil {
			return nil, err
		}
		if h == nil {
			return nil, nil
		}
		switch {
		case h.RPM == rpm:
			return h, nil
		case sorted && h.RPM > rpm:
			p.peek = h
			return nil, nil
		}
	}
}

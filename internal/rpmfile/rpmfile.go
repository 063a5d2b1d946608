// Package rpmfile implements the minimal reader spec.md §1 treats as an
// external collaborator: enough of the rpm file format to skip the lead
// and signature section and hand the main header section's bytes to
// internal/header.
//
// Grounded on the reverse of _examples/holocm-holo-build's rpm package
// (src/holo-build/rpm/lead.go, header.go — a writer for the same three
// sections), since no reader appears anywhere in the retrieval pack: the
// 96-byte lead layout, the header-structure preamble (8-byte magic+
// reserved, then il+dl, mirroring the plain il/dl preamble internal/header
// already parses), and the 8-byte alignment padding after the signature
// section are all taken from there.
package rpmfile

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/alt-tools/genbasedir/internal/header"
)

const (
	leadSize = 96

	headerMagicSize = 8 // 4-byte magic + 4-byte reserved
	preambleSize    = 8 // il + dl, each big-endian uint32
	entrySize       = 16
)

var leadMagic = [4]byte{0xed, 0xab, 0xee, 0xdb}
var headerMagic = [4]byte{0x8e, 0xad, 0xe8, 0x01}

// sectionSize reads a 16-byte header-structure preamble (8 bytes of
// magic+reserved, then il and dl) at off and returns the full section size including the
// il-entry array and data area, but excluding any trailing alignment
// padding.
func sectionSize(r io.ReaderAt, off int64) (int64, error) {
	var buf [headerMagicSize + preambleSize]byte
	if _, err := r.ReadAt(buf[:], off); err != nil {
		return 0, fmt.Errorf("rpmfile: reading section header at %d: %w", off, err)
	}
	if [4]byte(buf[0:4]) != headerMagic {
		return 0, fmt.Errorf("rpmfile: bad header magic at offset %d", off)
	}
	il := binary.BigEndian.Uint32(buf[8:12])
	dl := binary.BigEndian.Uint32(buf[12:16])
	return headerMagicSize + preambleSize + int64(il)*entrySize + int64(dl), nil
}

// align8 rounds n up to the next multiple of 8.
func align8(n int64) int64 {
	if r := n % 8; r != 0 {
		return n + (8 - r)
	}
	return n
}

// Open reads an rpm file's lead and signature section, then hands the
// main header section — the only part genbasedir cares about — to
// internal/header.Parse. size is the total byte length of r's content.
func Open(r io.ReaderAt, size int64) (*header.Header, error) {
	if size < leadSize {
		return nil, fmt.Errorf("rpmfile: file too small for a lead (%d bytes)", size)
	}
	var lead [leadSize]byte
	if _, err := r.ReadAt(lead[:], 0); err != nil {
		return nil, fmt.Errorf("rpmfile: reading lead: %w", err)
	}
	if [4]byte(lead[0:4]) != leadMagic {
		return nil, fmt.Errorf("rpmfile: not an rpm file (bad lead magic)")
	}

	sigSize, err := sectionSize(r, leadSize)
	if err != nil {
		return nil, fmt.Errorf("rpmfile: signature section: %w", err)
	}
	headerOff := leadSize + align8(sigSize)

	hdrEntrySize, err := sectionSize(r, headerOff)
	if err != nil {
		return nil, fmt.Errorf("rpmfile: header section: %w", err)
	}
	if headerOff+hdrEntrySize > size {
		return nil, fmt.Errorf("rpmfile: header section runs past end of file (%d > %d)", headerOff+hdrEntrySize, size)
	}

	// The "header structure" wraps its own magic+reserved bytes around
	// exactly the {il, dl, entries, data} layout internal/header already
	// understands; skip past the 8-byte wrapper and hand the rest over.
	sr := io.NewSectionReader(r, headerOff+headerMagicSize, hdrEntrySize-headerMagicSize)
	h, err := header.Parse(sr, hdrEntrySize-headerMagicSize)
	if err != nil {
		return nil, fmt.Errorf("rpmfile: %w", err)
	}
	return h, nil
}

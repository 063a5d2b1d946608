package header

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
)

const (
	preambleSize  = 8  // il (4) + dl (4)
	entryInfoSize = 16 // tag, type, off, cnt; all int32
)

// EntryInfo is one 16-byte index entry: {tag, type, off, cnt}.
type EntryInfo struct {
	Tag    Tag
	Type   Kind
	Offset int32
	Count  int32
}

func (e EntryInfo) marshal(b []byte) {
	binary.BigEndian.PutUint32(b[0:4], uint32(e.Tag))
	binary.BigEndian.PutUint32(b[4:8], uint32(e.Type))
	binary.BigEndian.PutUint32(b[8:12], uint32(e.Offset))
	binary.BigEndian.PutUint32(b[12:16], uint32(e.Count))
}

func unmarshalEntry(b []byte) EntryInfo {
	return EntryInfo{
		Tag:    Tag(int32(binary.BigEndian.Uint32(b[0:4]))),
		Type:   Kind(binary.BigEndian.Uint32(b[4:8])),
		Offset: int32(binary.BigEndian.Uint32(b[8:12])),
		Count:  int32(binary.BigEndian.Uint32(b[12:16])),
	}
}

// Header is a parsed RPM header blob: the sorted entry index plus its data
// area. See spec §3 for the on-disk layout this mirrors.
type Header struct {
	Entries []EntryInfo
	Data    []byte
}

// Parse reads a header blob of the given size from r.
//
// Unlike a full RPM header parser, this does not expect or verify a leading
// region tag (HEADER_IMMUTABLE); genbasedir only ever reads the header
// section already extracted by internal/rpmfile, which has none to offer
// beyond what's already implied by il/dl.
func Parse(r io.ReaderAt, size int64) (*Header, error) {
	if size < preambleSize {
		return nil, fmt.Errorf("header: blob too small (%d bytes)", size)
	}
	pre := make([]byte, preambleSize)
	if _, err := r.ReadAt(pre, 0); err != nil {
		return nil, fmt.Errorf("header: reading preamble: %w", err)
	}
	il := binary.BigEndian.Uint32(pre[0:4])
	dl := binary.BigEndian.Uint32(pre[4:8])
	want := preambleSize + int64(il)*entryInfoSize + int64(dl)
	if want != size {
		return nil, fmt.Errorf("header: size mismatch: header says %d, got %d", want, size)
	}

	idx := make([]byte, int64(il)*entryInfoSize)
	if _, err := r.ReadAt(idx, preambleSize); err != nil {
		return nil, fmt.Errorf("header: reading index: %w", err)
	}
	entries := make([]EntryInfo, il)
	for i := range entries {
		entries[i] = unmarshalEntry(idx[i*entryInfoSize : (i+1)*entryInfoSize])
	}
	if !sort.SliceIsSorted(entries, func(i, j int) bool { return entries[i].Tag < entries[j].Tag }) {
		return nil, fmt.Errorf("header: entries not sorted by tag")
	}

	data := make([]byte, dl)
	if dl > 0 {
		if _, err := r.ReadAt(data, preambleSize+int64(il)*entryInfoSize); err != nil {
			return nil, fmt.Errorf("header: reading data area: %w", err)
		}
	}

	return &Header{Entries: entries, Data: data}, nil
}

// Find returns the entry for tag, if present. Entries are sorted by tag so
// this is a binary search.
func (h *Header) Find(tag Tag) (EntryInfo, bool) {
	i := sort.Search(len(h.Entries), func(i int) bool { return h.Entries[i].Tag >= tag })
	if i < len(h.Entries) && h.Entries[i].Tag == tag {
		return h.Entries[i], true
	}
	return EntryInfo{}, false
}

// StringArray reads the STRING_ARRAY value for e out of h's data area.
func (h *Header) StringArray(e EntryInfo) ([]string, error) {
	if e.Type != KindStringArray {
		return nil, fmt.Errorf("header: tag %d is not a string array", e.Tag)
	}
	out := make([]string, 0, e.Count)
	sc := bufio.NewScanner(bytes.NewReader(h.Data[e.Offset:]))
	sc.Split(splitCString)
	for len(out) < int(e.Count) && sc.Scan() {
		out = append(out, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("header: reading string array tag %d: %w", e.Tag, err)
	}
	if len(out) != int(e.Count) {
		return nil, fmt.Errorf("header: tag %d: expected %d strings, found %d", e.Tag, e.Count, len(out))
	}
	return out, nil
}

// Int32Array reads the INT32 value for e out of h's data area.
func (h *Header) Int32Array(e EntryInfo) ([]int32, error) {
	if e.Type != KindInt32 {
		return nil, fmt.Errorf("header: tag %d is not an int32 array", e.Tag)
	}
	need := int(e.Count) * 4
	if int(e.Offset)+need > len(h.Data) {
		return nil, fmt.Errorf("header: tag %d: int32 array runs past data area", e.Tag)
	}
	out := make([]int32, e.Count)
	for i := range out {
		out[i] = int32(binary.BigEndian.Uint32(h.Data[int(e.Offset)+i*4:]))
	}
	return out, nil
}

// String reads the STRING value for e.
func (h *Header) String(e EntryInfo) (string, error) {
	if e.Type != KindString {
		return "", fmt.Errorf("header: tag %d is not a string", e.Tag)
	}
	end := bytes.IndexByte(h.Data[e.Offset:], 0)
	if end < 0 {
		return "", fmt.Errorf("header: tag %d: unterminated string", e.Tag)
	}
	return string(h.Data[int(e.Offset) : int(e.Offset)+end]), nil
}

func splitCString(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexByte(data, 0); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// Builder assembles a new header from scratch, used by the striphdr path to
// construct an output header from a source header's surviving file list.
type Builder struct {
	entries []EntryInfo
	data    []byte
}

// CopyTag copies tag verbatim (entry + underlying bytes) from src.
func (b *Builder) CopyTag(src *Header, tag Tag) {
	e, ok := src.Find(tag)
	if !ok {
		return
	}
	var raw []byte
	switch e.Type {
	case KindInt32:
		for len(b.data)%4 != 0 {
			b.data = append(b.data, 0)
		}
		n := int(e.Count) * 4
		raw = src.Data[e.Offset : int(e.Offset)+n]
	default:
		raw = rawEntryBytes(src, e)
	}
	b.entries = append(b.entries, EntryInfo{Tag: e.Tag, Type: e.Type, Offset: int32(len(b.data)), Count: e.Count})
	b.data = append(b.data, raw...)
}

func rawEntryBytes(src *Header, e EntryInfo) []byte {
	// For STRING/STRING_ARRAY/BIN the extent isn't separately recorded;
	// recompute it the same way the blob stripper does, by scanning.
	switch e.Type {
	case KindString:
		end := bytes.IndexByte(src.Data[e.Offset:], 0)
		return src.Data[e.Offset : int(e.Offset)+end+1]
	case KindStringArray:
		off := int(e.Offset)
		for i := 0; i < int(e.Count); i++ {
			end := bytes.IndexByte(src.Data[off:], 0)
			off += end + 1
		}
		return src.Data[e.Offset:off]
	case KindBin:
		return src.Data[e.Offset : int(e.Offset)+int(e.Count)]
	case KindInt32:
		return src.Data[e.Offset : int(e.Offset)+int(e.Count)*4]
	default:
		panic(fmt.Sprintf("header: rawEntryBytes: unsupported kind %d", e.Type))
	}
}

// RawBytes returns e's raw serialised bytes out of h's data area, exactly as
// they'd be written back out. Used by internal/stripblob to carry entries
// forward unchanged while rewriting the ones around them.
func (h *Header) RawBytes(e EntryInfo) []byte {
	return rawEntryBytes(h, e)
}

// AddStringArray appends a STRING_ARRAY tag.
func (b *Builder) AddStringArray(tag Tag, vals []string) {
	off := len(b.data)
	for _, s := range vals {
		b.data = append(b.data, s...)
		b.data = append(b.data, 0)
	}
	b.entries = append(b.entries, EntryInfo{Tag: tag, Type: KindStringArray, Offset: int32(off), Count: int32(len(vals))})
}

// AddInt32 appends an INT32 tag, 4-byte aligning the data area first.
func (b *Builder) AddInt32(tag Tag, vals []int32) {
	for len(b.data)%4 != 0 {
		b.data = append(b.data, 0)
	}
	off := len(b.data)
	buf := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.BigEndian.PutUint32(buf[i*4:], uint32(v))
	}
	b.data = append(b.data, buf...)
	b.entries = append(b.entries, EntryInfo{Tag: tag, Type: KindInt32, Offset: int32(off), Count: int32(len(vals))})
}

// AddString appends a STRING tag.
func (b *Builder) AddString(tag Tag, s string) {
	off := len(b.data)
	b.data = append(b.data, s...)
	b.data = append(b.data, 0)
	b.entries = append(b.entries, EntryInfo{Tag: tag, Type: KindString, Offset: int32(off), Count: 1})
}

// Build finalizes the header: sorts entries by tag (stable, so same-tag ties
// keep insertion order, though that never happens here) and returns it.
func (b *Builder) Build() *Header {
	sort.SliceStable(b.entries, func(i, j int) bool { return b.entries[i].Tag < b.entries[j].Tag })
	return &Header{Entries: b.entries, Data: b.data}
}

// Bytes serializes h back to the on-disk blob form.
func (h *Header) Bytes() []byte {
	var buf bytes.Buffer
	pre := make([]byte, preambleSize)
	binary.BigEndian.PutUint32(pre[0:4], uint32(len(h.Entries)))
	binary.BigEndian.PutUint32(pre[4:8], uint32(len(h.Data)))
	buf.Write(pre)
	ent := make([]byte, entryInfoSize)
	for _, e := range h.Entries {
		e.marshal(ent)
		buf.Write(ent)
	}
	buf.Write(h.Data)
	return buf.Bytes()
}

// Size is the total blob size this header would serialize to.
func (h *Header) Size() int64 {
	return preambleSize + int64(len(h.Entries))*entryInfoSize + int64(len(h.Data))
}

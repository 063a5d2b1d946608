// Package zpkglist implements the on-disk output stream format: a zstd
// stream framing a concatenation of length-prefixed header blobs. spec.md
// §6 treats the real "zpkglist" format as opaque to the core and owned by
// an external collaborator; this package is that collaborator, grounded on
// the pooled zstd reader/writer pattern in
// github.com/quay/claircore's pkg/tarfs package rather than on any detail
// of the original binary format (which this module never needs to
// interoperate with).
package zpkglist

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
)

var (
	encoderPool sync.Pool
	decoderPool sync.Pool
)

func getEncoder(w io.Writer) *zstd.Encoder {
	if e, ok := encoderPool.Get().(*zstd.Encoder); ok {
		e.Reset(w)
		return e
	}
	e, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		// Only fails on invalid options; this module never passes any.
		panic(fmt.Sprintf("zpkglist: creating zstd encoder: %v", err))
	}
	return e
}

func putEncoder(e *zstd.Encoder) { encoderPool.Put(e) }

func getDecoder(r io.Reader) (*zstd.Decoder, error) {
	if d, ok := decoderPool.Get().(*zstd.Decoder); ok {
		if err := d.Reset(r); err != nil {
			return nil, err
		}
		return d, nil
	}
	return zstd.NewReader(r)
}

func putDecoder(d *zstd.Decoder) { decoderPool.Put(d) }

// Writer appends header blobs to a zstd-compressed stream: each blob is
// written as a big-endian uint32 length prefix followed by the blob bytes.
type Writer struct {
	enc *zstd.Encoder
	n   int
}

// NewWriter wraps w as a zpkglist output stream.
func NewWriter(w io.Writer) *Writer {
	return &Writer{enc: getEncoder(w)}
}

// Append writes blob as the next entry in the stream.
func (w *Writer) Append(blob []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(blob)))
	if _, err := w.enc.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("zpkglist: writing length prefix: %w", err)
	}
	if _, err := w.enc.Write(blob); err != nil {
		return fmt.Errorf("zpkglist: writing blob: %w", err)
	}
	w.n++
	return nil
}

// Close flushes the underlying zstd frame and releases the encoder back to
// the pool. It does not close the wrapped writer.
func (w *Writer) Close() error {
	err := w.enc.Close()
	putEncoder(w.enc)
	w.enc = nil
	if err != nil {
		return fmt.Errorf("zpkglist: closing stream: %w", err)
	}
	return nil
}

// Reader reads blobs back out of a zpkglist stream in order.
type Reader struct {
	dec *zstd.Decoder
	br  *bufio.Reader
}

// NewReader wraps r as a zpkglist input stream.
func NewReader(r io.Reader) (*Reader, error) {
	dec, err := getDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("zpkglist: creating zstd decoder: %w", err)
	}
	return &Reader{dec: dec, br: bufio.NewReader(dec)}, nil
}

// Next returns the next blob in the stream, or io.EOF when exhausted.
func (r *Reader) Next() ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r.br, lenBuf[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("zpkglist: truncated length prefix: %w", err)
		}
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	blob := make([]byte, n)
	if _, err := io.ReadFull(r.br, blob); err != nil {
		return nil, fmt.Errorf("zpkglist: truncated blob (wanted %d bytes): %w", n, err)
	}
	return blob, nil
}

// Close releases the decoder back to the pool.
func (r *Reader) Close() error {
	putDecoder(r.dec)
	r.dec = nil
	return nil
}

// Package container implements the on-disk index format: a `filters.rkyv`
// header (column pool, source identity, config echo, per-column filters,
// per-column chunk index) designed for eager whole-file load, plus a
// `data.bin` blob of concatenated chunk payloads addressed by (offset,
// length) and fetched lazily, one byte range per touched chunk.
package container

import (
	"fmt"
	"math"
)

// Magic identifies a filters.rkyv file. Little-endian throughout.
var Magic = [4]byte{'K', 'I', 'D', 'X'}

// FormatVersion is the current on-disk format version tag.
const FormatVersion uint32 = 1

type byteWriter struct {
	buf []byte
}

func (w *byteWriter) u8(v uint8)   { w.buf = append(w.buf, v) }
func (w *byteWriter) u16(v uint16) { w.buf = append(w.buf, byte(v), byte(v>>8)) }
func (w *byteWriter) u32(v uint32) {
	w.buf = append(w.buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}
func (w *byteWriter) u64(v uint64) {
	w.buf = append(w.buf,
		byte(v), byte(v>>8), byte(v>>16), byte(v>>24),
		byte(v>>32), byte(v>>40), byte(v>>48), byte(v>>56))
}
func (w *byteWriter) f64(v float64) { w.u64(math.Float64bits(v)) }
func (w *byteWriter) bytes(b []byte) {
	w.buf = append(w.buf, b...)
}
func (w *byteWriter) str16(s string) {
	w.u16(uint16(len(s)))
	w.buf = append(w.buf, s...)
}

type byteReader struct {
	buf []byte
	pos int
}

func (r *byteReader) remaining() int { return len(r.buf) - r.pos }

func (r *byteReader) u8() (uint8, error) {
	if r.remaining() < 1 {
		return 0, fmt.Errorf("container: truncated reading u8")
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *byteReader) u16() (uint16, error) {
	if r.remaining() < 2 {
		return 0, fmt.Errorf("container: truncated reading u16")
	}
	v := uint16(r.buf[r.pos]) | uint16(r.buf[r.pos+1])<<8
	r.pos += 2
	return v, nil
}

func (r *byteReader) u32() (uint32, error) {
	if r.remaining() < 4 {
		return 0, fmt.Errorf("container: truncated reading u32")
	}
	b := r.buf[r.pos:]
	v := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
	r.pos += 4
	return v, nil
}

func (r *byteReader) u64() (uint64, error) {
	if r.remaining() < 8 {
		return 0, fmt.Errorf("container: truncated reading u64")
	}
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(r.buf[r.pos+i]) << (8 * i)
	}
	r.pos += 8
	return v, nil
}

func (r *byteReader) f64() (float64, error) {
	v, err := r.u64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

func (r *byteReader) bytesN(n int) ([]byte, error) {
	if r.remaining() < n {
		return nil, fmt.Errorf("container: truncated reading %d bytes", n)
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *byteReader) str16() (string, error) {
	n, err := r.u16()
	if err != nil {
		return "", err
	}
	b, err := r.bytesN(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

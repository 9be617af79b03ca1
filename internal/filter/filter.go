// Package filter implements per-column membership oracles: an exact hash
// set for small keyword sets, and a sized bloom filter (xxhash
// double-hashing) for large ones, chosen by the BLOOM_THRESHOLD policy.
package filter

import (
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
)

// Kind tags which filter variant a column uses, matching the header's
// `kind u8 {0=hashset,1=bloom}` encoding.
type Kind uint8

const (
	KindHashSet Kind = 0
	KindBloom   Kind = 1
)

// DefaultThreshold is BLOOM_THRESHOLD: columns with fewer distinct keywords
// than this use the exact hash-set variant.
const DefaultThreshold = 1024

// Filter answers "may this column contain keyword" with no false negatives.
type Filter interface {
	Kind() Kind
	MayContain(keyword []byte) bool
	// Marshal encodes the filter's payload bytes for the container header.
	Marshal() []byte
}

// Build chooses and constructs the filter variant for a column's keyword
// set: bloom when len(keywords) >= threshold, else an exact hash set.
// keywords need not be sorted or deduplicated by the caller.
func Build(keywords [][]byte, fpr float64, threshold int) (Filter, error) {
	if fpr <= 0 || fpr >= 1 {
		return nil, fmt.Errorf("filter: false positive rate must be in (0,1), got %f", fpr)
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	dedup := dedupeSorted(keywords)
	if len(dedup) >= threshold {
		return newBloom(dedup, fpr), nil
	}
	return newHashSet(dedup), nil
}

func dedupeSorted(keywords [][]byte) [][]byte {
	seen := make(map[string]struct{}, len(keywords))
	out := make([][]byte, 0, len(keywords))
	for _, k := range keywords {
		s := string(k)
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, k)
	}
	return out
}

// HashSet is the exact filter variant: no false positives.
type HashSet struct {
	members map[string]struct{}
}

func newHashSet(keywords [][]byte) *HashSet {
	m := make(map[string]struct{}, len(keywords))
	for _, k := range keywords {
		m[string(k)] = struct{}{}
	}
	return &HashSet{members: m}
}

func (h *HashSet) Kind() Kind { return KindHashSet }

// MayContain reports exact membership; the hash-set variant never has
// false positives.
func (h *HashSet) MayContain(keyword []byte) bool {
	_, ok := h.members[string(keyword)]
	return ok
}

// Marshal encodes the set as a length-prefixed sequence of keyword bytes.
func (h *HashSet) Marshal() []byte {
	var buf []byte
	buf = appendUint32(buf, uint32(len(h.members)))
	for k := range h.members {
		buf = appendUint16(buf, uint16(len(k)))
		buf = append(buf, k...)
	}
	return buf
}

// UnmarshalHashSet decodes a payload produced by HashSet.Marshal.
func UnmarshalHashSet(payload []byte) (*HashSet, error) {
	if len(payload) < 4 {
		return nil, fmt.Errorf("filter: truncated hashset payload")
	}
	count := readUint32(payload)
	payload = payload[4:]
	members := make(map[string]struct{}, count)
	for i := uint32(0); i < count; i++ {
		if len(payload) < 2 {
			return nil, fmt.Errorf("filter: truncated hashset entry")
		}
		klen := int(readUint16(payload))
		payload = payload[2:]
		if len(payload) < klen {
			return nil, fmt.Errorf("filter: truncated hashset key bytes")
		}
		members[string(payload[:klen])] = struct{}{}
		payload = payload[klen:]
	}
	return &HashSet{members: members}, nil
}

// Bloom is the probabilistic filter variant: sized bit array with k
// independent probes derived by double-hashing two xxhash seeds, in the
// manner of a classic Kirsch-Mitzenmacher bloom filter.
type Bloom struct {
	bits []uint8
	m    uint64 // number of bits
	k    int    // number of hash probes
}

// newBloom sizes a bloom filter for n keywords at the given false-positive
// rate using the standard formulas m = -n*ln(p)/(ln2)^2, k = (m/n)*ln2, then
// inserts every keyword.
func newBloom(keywords [][]byte, fpr float64) *Bloom {
	n := len(keywords)
	if n == 0 {
		n = 1
	}
	m := optimalM(n, fpr)
	k := optimalK(m, n)

	b := &Bloom{
		bits: make([]uint8, (m+7)/8),
		m:    m,
		k:    k,
	}
	for _, kw := range keywords {
		b.add(kw)
	}
	return b
}

func optimalM(n int, fpr float64) uint64 {
	m := -float64(n) * math.Log(fpr) / (math.Ln2 * math.Ln2)
	if m < 8 {
		m = 8
	}
	return uint64(math.Ceil(m))
}

func optimalK(m uint64, n int) int {
	k := int(math.Round((float64(m) / float64(n)) * math.Ln2))
	if k < 1 {
		k = 1
	}
	if k > 30 {
		k = 30
	}
	return k
}

// probeHashes derives the k probe positions for keyword via double hashing:
// h_i = (h1 + i*h2) mod m, using two independently-seeded xxhash sums.
func (b *Bloom) probeHashes(keyword []byte) []uint64 {
	h1 := xxhash.Sum64(keyword)
	h2 := xxhash.Sum64(append(append([]byte{}, keyword...), 0xA5))

	out := make([]uint64, b.k)
	for i := 0; i < b.k; i++ {
		out[i] = (h1 + uint64(i)*h2) % b.m
	}
	return out
}

func (b *Bloom) add(keyword []byte) {
	for _, pos := range b.probeHashes(keyword) {
		b.bits[pos/8] |= 1 << (pos % 8)
	}
}

func (b *Bloom) Kind() Kind { return KindBloom }

// MayContain reports possible membership; false positives are possible at
// approximately the configured rate, false negatives are impossible.
func (b *Bloom) MayContain(keyword []byte) bool {
	for _, pos := range b.probeHashes(keyword) {
		if b.bits[pos/8]&(1<<(pos%8)) == 0 {
			return false
		}
	}
	return true
}

// Marshal encodes m, k, and the bit array.
func (b *Bloom) Marshal() []byte {
	var buf []byte
	buf = appendUint64(buf, b.m)
	buf = appendUint32(buf, uint32(b.k))
	buf = appendUint32(buf, uint32(len(b.bits)))
	buf = append(buf, b.bits...)
	return buf
}

// UnmarshalBloom decodes a payload produced by Bloom.Marshal.
func UnmarshalBloom(payload []byte) (*Bloom, error) {
	if len(payload) < 16 {
		return nil, fmt.Errorf("filter: truncated bloom payload")
	}
	m := readUint64(payload)
	k := int(readUint32(payload[8:]))
	nbits := int(readUint32(payload[12:]))
	payload = payload[16:]
	if len(payload) < nbits {
		return nil, fmt.Errorf("filter: truncated bloom bit array")
	}
	bits := make([]uint8, nbits)
	copy(bits, payload[:nbits])
	return &Bloom{bits: bits, m: m, k: k}, nil
}

// Unmarshal decodes a filter payload given its tagged kind, as read from
// the container header's per-column filter metadata.
func Unmarshal(kind Kind, payload []byte) (Filter, error) {
	switch kind {
	case KindHashSet:
		return UnmarshalHashSet(payload)
	case KindBloom:
		return UnmarshalBloom(payload)
	default:
		return nil, fmt.Errorf("filter: unknown kind tag %d", kind)
	}
}

// --- little-endian helpers shared with package container's wire format ---

func appendUint16(buf []byte, v uint16) []byte {
	return append(buf, byte(v), byte(v>>8))
}

func appendUint32(buf []byte, v uint32) []byte {
	return append(buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func appendUint64(buf []byte, v uint64) []byte {
	return append(buf,
		byte(v), byte(v>>8), byte(v>>16), byte(v>>24),
		byte(v>>32), byte(v>>40), byte(v>>48), byte(v>>56))
}

func readUint16(b []byte) uint16 {
	return uint16(b[0]) | uint16(b[1])<<8
}

func readUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func readUint64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}

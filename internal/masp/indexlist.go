package masp

import (
	"fmt"
	"sort"
)

// IndexList is an ordered sequence of Index records, normally kept sorted
// ascending by (Height, Tx).
type IndexList []Index

// Bytes concatenates the 12-byte encoding of every entry in order.
func (l IndexList) Bytes() []byte {
	out := make([]byte, 0, len(l)*EncodedLen)
	for _, ix := range l {
		b := ix.Bytes()
		out = append(out, b[:]...)
	}
	return out
}

// IndexListFromBytes decodes a concatenated sequence of 12-byte records.
// The length of b must be a multiple of EncodedLen.
func IndexListFromBytes(b []byte) (IndexList, error) {
	if len(b)%EncodedLen != 0 {
		return nil, fmt.Errorf("masp: index list must be a multiple of %d bytes, got %d", EncodedLen, len(b))
	}
	n := len(b) / EncodedLen
	out := make(IndexList, 0, n)
	for i := 0; i < n; i++ {
		ix, err := IndexFromBytes(b[i*EncodedLen : (i+1)*EncodedLen])
		if err != nil {
			return nil, err
		}
		out = append(out, ix)
	}
	return out, nil
}

// Contains reports whether target appears in l, assuming l is sorted.
func (l IndexList) Contains(target Index) bool {
	i := sort.Search(len(l), func(i int) bool { return !l[i].Less(target) })
	return i < len(l) && l[i] == target
}

// Union returns the sorted, deduplicated merge of a and b.
func Union(a, b IndexList) IndexList {
	out := make(IndexList, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			out = append(out, a[i])
			i++
			j++
		case a[i].Less(b[j]):
			out = append(out, a[i])
			i++
		default:
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}

func maxHeight(l IndexList) uint64 {
	var h uint64
	for _, ix := range l {
		if ix.Height > h {
			h = ix.Height
		}
	}
	return h
}

// Combine merges two lists, each claiming to be synced to their own
// respective maximum height. Given Ha = max(a's heights) and
// Hb = max(b's heights) with Ha >= Hb (the lower-height list determines
// the overlap boundary), the result is:
//
//	(a ∩ b, restricted to height <= Hb) ∪ (a, restricted to height > Hb)
//
// when Ha >= Hb, or the symmetric computation with a and b swapped when
// Hb > Ha. Combine is therefore symmetric under argument swap, and an
// empty list combined with x yields x.
func Combine(a, b IndexList) IndexList {
	if len(a) == 0 {
		return b
	}
	if len(b) == 0 {
		return a
	}

	ha, hb := maxHeight(a), maxHeight(b)
	hi, lo := a, b
	loMax := hb
	if hb > ha {
		hi, lo = b, a
		loMax = ha
	}

	loSet := make(map[Index]struct{}, len(lo))
	for _, ix := range lo {
		loSet[ix] = struct{}{}
	}

	var out IndexList
	for _, ix := range hi {
		if ix.Height > loMax {
			out = append(out, ix)
			continue
		}
		if _, ok := loSet[ix]; ok {
			out = append(out, ix)
		}
	}
	return out
}

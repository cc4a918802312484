// Package masp holds the domain types shared by every process: the
// transaction index encoding, the per-user encrypted response envelope,
// and the host's gap-tolerant range tracker over fetched block heights.
package masp

import (
	"encoding/binary"
	"fmt"
)

// EncodedLen is the exact wire and storage size of an Index record.
const EncodedLen = 12

// Index identifies one MASP transaction by block height and its ordinal
// position within that block. The total order is lexicographic on
// (Height, Tx).
type Index struct {
	Height uint64
	Tx     uint32
}

// Less reports whether ix sorts strictly before other.
func (ix Index) Less(other Index) bool {
	if ix.Height != other.Height {
		return ix.Height < other.Height
	}
	return ix.Tx < other.Tx
}

// Bytes encodes ix as 8 little-endian height bytes followed by 4
// little-endian tx bytes.
func (ix Index) Bytes() [EncodedLen]byte {
	var out [EncodedLen]byte
	binary.LittleEndian.PutUint64(out[0:8], ix.Height)
	binary.LittleEndian.PutUint32(out[8:12], ix.Tx)
	return out
}

// IndexFromBytes decodes b into an Index. b must be exactly EncodedLen
// bytes long.
func IndexFromBytes(b []byte) (Index, error) {
	if len(b) != EncodedLen {
		return Index{}, fmt.Errorf("masp: index record must be %d bytes, got %d", EncodedLen, len(b))
	}
	return Index{
		Height: binary.LittleEndian.Uint64(b[0:8]),
		Tx:     binary.LittleEndian.Uint32(b[8:12]),
	}, nil
}

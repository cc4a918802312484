// Package indexer is the boundary to the external MASP indexer: an
// HTTP service that exposes the chain's shielded transactions. The
// concrete indexer API is an external collaborator; this package only
// fixes the two methods the fetch pipeline needs.
package indexer

import (
	"context"

	"github.com/anoma/kassandra-service/internal/masp"
)

// TxEntry is one on-chain MASP transaction as reported by the indexer.
type TxEntry struct {
	Index masp.Index
	Data  []byte
	// Flag is the JSON-encoded FMD flag ciphertext, or nil if the
	// producer attached none.
	Flag []byte
}

// Indexer is the fetch pipeline's view of the external indexer.
type Indexer interface {
	// LastBlockHeight returns the indexer's current chain tip.
	LastBlockHeight(ctx context.Context) (uint64, error)
	// FetchShieldedTransfers returns every MASP transaction in the
	// closed height range [from, to].
	FetchShieldedTransfers(ctx context.Context, from, to uint64) ([]TxEntry, error)
}

package clientapi

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/anoma/kassandra-service/internal/masp"
	"github.com/anoma/kassandra-service/internal/wire"
)

// ErrWrongOwner is returned when a host answers an index query with an
// envelope addressed to a different key hash than the one queried.
var ErrWrongOwner = errors.New("clientapi: response owned by a different key")

// QueryIndices asks the host on the other end of conn for the most
// recent encrypted index set belonging to key, decrypts it, and
// returns the resulting index list along with the height the host
// reports being synced to.
func QueryIndices(conn *wire.Conn, key masp.EncKey) (masp.IndexList, uint64, error) {
	hash := key.Hash()
	if err := conn.WriteFrame(wire.ClientMsg{RequestIndices: &wire.RequestIndicesMsg{KeyHash: hash}}); err != nil {
		return nil, 0, fmt.Errorf("clientapi: send RequestIndices: %w", err)
	}

	var resp wire.ServerMsg
	if err := conn.ReadFrame(&resp); err != nil {
		return nil, 0, fmt.Errorf("clientapi: read indices response: %w", err)
	}
	if resp.Error != nil {
		return nil, 0, fmt.Errorf("clientapi: host reported error: %s", *resp.Error)
	}
	if resp.IndicesResponse == nil {
		return nil, 0, ErrUnexpectedMessage
	}
	envelope := *resp.IndicesResponse
	if envelope.Owner != hash {
		return nil, 0, ErrWrongOwner
	}

	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, 0, fmt.Errorf("clientapi: construct aead: %w", err)
	}
	plaintext, err := aead.Open(nil, envelope.Nonce[:], envelope.Indices, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("clientapi: decrypt indices: %w", err)
	}

	list, err := masp.IndexListFromBytes(plaintext)
	if err != nil {
		return nil, 0, fmt.Errorf("clientapi: decode index list: %w", err)
	}
	return list, envelope.Height, nil
}

// Dialer connects to a registered host's URL, returning a framed
// connection ready for QueryIndices or RegisterKey.
type Dialer func(url string) (*wire.Conn, error)

// ServiceQuery names one host a key share was registered with.
type ServiceQuery struct {
	URL string
}

// QueryAll queries every service in services for key's index set and
// combines the results pairwise with masp.Combine: up to the highest
// height in the lower of the two lists, only indices both lists report
// are kept; above that height, the higher list's indices are kept whole.
// A service that fails to answer is skipped rather than aborting the
// whole query.
func QueryAll(dial Dialer, services []ServiceQuery, key masp.EncKey) (masp.IndexList, error) {
	var combined masp.IndexList
	for _, svc := range services {
		conn, err := dial(svc.URL)
		if err != nil {
			continue
		}
		list, _, err := QueryIndices(conn, key)
		if err != nil {
			continue
		}
		combined = masp.Combine(combined, list)
	}
	return combined, nil
}

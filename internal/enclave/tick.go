package enclave

import (
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/anoma/kassandra-service/internal/fmd"
	"github.com/anoma/kassandra-service/internal/masp"
	"github.com/anoma/kassandra-service/internal/wire"
)

// ErrMissingFlagsAtCursor is returned by Tick when the host-supplied
// flags cover at least one height, but omit the exact next() height for
// some eligible key. The enclave assumes the host queries by exact
// height ranges; a partial omission is indistinguishable from a host bug
// and must not silently advance that key's cursor past missing data.
var ErrMissingFlagsAtCursor = errors.New("enclave: host omitted flags at a registered key's cursor height")

// Tick runs one FMD pass: every registered key whose cursor trails
// syncedTo advances by exactly one height, producing a fresh
// EncryptedResponse. flags is empty to mean "nothing to report this
// round" (legal - every key's cursor height still had zero matching
// input rows); otherwise every eligible key's Next() height must appear
// among flags, or the round is rejected entirely and no cursor advances.
func Tick(ks *KeyStore, scheme fmd.Scheme, entropy io.Reader, syncedTo uint64, flags []wire.FlagEntry) ([]masp.EncryptedResponse, error) {
	byHeight := make(map[uint64][]wire.FlagEntry, len(flags))
	for _, f := range flags {
		byHeight[f.Index.Height] = append(byHeight[f.Index.Height], f)
	}

	if len(flags) > 0 {
		for _, rk := range ks.All() {
			if rk.Set.SyncedTo >= syncedTo {
				continue
			}
			if _, ok := byHeight[rk.Set.Next()]; !ok {
				return nil, fmt.Errorf("%w: height %d", ErrMissingFlagsAtCursor, rk.Set.Next())
			}
		}
	}

	var responses []masp.EncryptedResponse
	for _, rk := range ks.All() {
		if rk.Set.SyncedTo >= syncedTo {
			continue
		}

		next := rk.Set.Next()
		for _, entry := range byHeight[next] {
			matched := entry.Flag == nil
			if !matched {
				matched = scheme.Detect(rk.Registration.FmdKey, entry.Flag)
			}
			if matched {
				rk.Set.Indices = append(rk.Set.Indices, entry.Index)
			}
		}

		resp, err := encryptResponse(rk, entropy)
		if err != nil {
			return nil, fmt.Errorf("enclave: encrypt fmd response: %w", err)
		}
		responses = append(responses, resp)
		rk.Set.SyncedTo++
	}
	return responses, nil
}

func encryptResponse(rk *RegisteredKey, entropy io.Reader) (masp.EncryptedResponse, error) {
	aead, err := chacha20poly1305.New(rk.Registration.EncKey[:])
	if err != nil {
		return masp.EncryptedResponse{}, fmt.Errorf("construct aead: %w", err)
	}

	var nonce [masp.NonceLen]byte
	if _, err := io.ReadFull(entropy, nonce[:]); err != nil {
		return masp.EncryptedResponse{}, fmt.Errorf("draw nonce: %w", err)
	}

	ciphertext := aead.Seal(nil, nonce[:], rk.Set.Indices.Bytes(), nil)
	return masp.EncryptedResponse{
		Owner:   rk.Registration.EncKey.Hash(),
		Nonce:   nonce,
		Indices: ciphertext,
		Height:  rk.Set.Next(),
	}, nil
}

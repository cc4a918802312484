package enclave

import (
	"github.com/anoma/kassandra-service/internal/fmd"
	"github.com/anoma/kassandra-service/internal/masp"
)

// FmdKeyRegistration is the payload transported by a completed RA-TLS
// handshake. It only ever exists in plaintext inside the enclave, or
// inside RA-TLS ciphertext while in flight.
type FmdKeyRegistration struct {
	FmdKey   fmd.DetectionKey `cbor:"fmd_key"`
	EncKey   masp.EncKey      `cbor:"enc_key"`
	Birthday *uint64          `cbor:"birthday,omitempty"`
}

// IndexSet is the enclave-side cursor and accumulated match set for one
// registered key. SyncedTo is the last height fully processed; Next is
// the next height this key's cursor expects to see.
type IndexSet struct {
	SyncedTo uint64
	Indices  masp.IndexList
}

// Next returns the next height this key's cursor expects flags for.
func (s *IndexSet) Next() uint64 {
	return s.SyncedTo + 1
}

// RegisteredKey pairs a completed registration with its detection cursor.
type RegisteredKey struct {
	Registration FmdKeyRegistration
	Set          IndexSet
}

// KeyStore is the enclave's ordered, append-only registered-key list.
// Entries are appended on successful registration and never removed or
// reordered, bounded by the enclave process lifetime.
type KeyStore struct {
	keys []*RegisteredKey
}

// Register appends a new RegisteredKey for reg, starting its cursor at
// reg.Birthday if set, else 1.
func (ks *KeyStore) Register(reg FmdKeyRegistration) *RegisteredKey {
	syncedTo := uint64(1)
	if reg.Birthday != nil {
		syncedTo = *reg.Birthday
	}
	rk := &RegisteredKey{Registration: reg, Set: IndexSet{SyncedTo: syncedTo}}
	ks.keys = append(ks.keys, rk)
	return rk
}

// All returns every registered key, in registration order.
func (ks *KeyStore) All() []*RegisteredKey {
	return ks.keys
}

// Len reports how many keys are registered.
func (ks *KeyStore) Len() int {
	return len(ks.keys)
}

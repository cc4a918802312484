// Package ratls implements the bespoke, minimal, one-shot secure channel
// used to transport a single key registration from an untrusted client
// into an attested enclave. It has exactly two states: a Connection is
// either in handshake (holding an ephemeral key pair) or initialized
// (holding a derived symmetric key), and the transition is one-way.
package ratls

import (
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"

	"github.com/anoma/kassandra-service/internal/wire"
)

// ErrNonContributory is returned by Initialize when the computed shared
// secret is the all-zero (identity/low-order) point, which signals a
// potential man-in-the-middle or malformed peer key. The handshake MUST
// abort without registering on this error.
var ErrNonContributory = errors.New("ratls: non-contributory key exchange")

// ErrAlreadyInitialized is returned when Initialize is called more than
// once on the same Connection.
var ErrAlreadyInitialized = errors.New("ratls: connection already initialized")

// ErrNotInitialized is returned by EncryptMsg/DecryptMsg before
// Initialize has succeeded.
var ErrNotInitialized = errors.New("ratls: connection not yet initialized")

type state int

const (
	stateHandshake state = iota
	stateInitialized
)

// Connection is the RA-TLS state machine. The zero value is not usable;
// construct one with New.
type Connection struct {
	st            state
	ephemeralPriv [32]byte
	ephemeralPub  [32]byte
	aead          cipher.AEAD
}

// New generates a fresh X25519 ephemeral key pair and returns a
// Connection in the Handshake state.
func New() (*Connection, error) {
	var priv [32]byte
	if _, err := rand.Read(priv[:]); err != nil {
		return nil, fmt.Errorf("ratls: generate ephemeral key: %w", err)
	}
	pub, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("ratls: derive ephemeral public key: %w", err)
	}
	c := &Connection{st: stateHandshake}
	copy(c.ephemeralPriv[:], priv[:])
	copy(c.ephemeralPub[:], pub)
	return c, nil
}

// EphemeralPublicKey returns this side's ephemeral X25519 public key, to
// be sent to the peer as part of the handshake.
func (c *Connection) EphemeralPublicKey() [32]byte {
	return c.ephemeralPub
}

// Initialize computes the shared secret against peerPub and derives the
// ChaCha20-Poly1305 key for the Initialized state. It rejects a
// non-contributory (all-zero) shared secret.
func (c *Connection) Initialize(peerPub [32]byte) error {
	if c.st != stateHandshake {
		return ErrAlreadyInitialized
	}

	shared, err := curve25519.X25519(c.ephemeralPriv[:], peerPub[:])
	if err != nil {
		// With fixed 32-byte inputs, X25519 fails only when the shared
		// secret comes out all-zero (a low-order peer key).
		return fmt.Errorf("%w: %v", ErrNonContributory, err)
	}
	if !isContributory(shared) {
		return ErrNonContributory
	}

	aead, err := chacha20poly1305.New(shared)
	if err != nil {
		return fmt.Errorf("ratls: construct aead: %w", err)
	}

	c.aead = aead
	c.st = stateInitialized
	for i := range c.ephemeralPriv {
		c.ephemeralPriv[i] = 0
	}
	return nil
}

// isContributory reports whether the shared secret is not the all-zero
// identity point produced by a low-order or malformed peer key.
func isContributory(shared []byte) bool {
	var nonzero byte
	for _, b := range shared {
		nonzero |= b
	}
	return nonzero != 0
}

// EncryptMsg seals plaintext under the derived key with a fresh random
// nonce.
func (c *Connection) EncryptMsg(plaintext []byte) (wire.TlsCiphertext, error) {
	if c.st != stateInitialized {
		return wire.TlsCiphertext{}, ErrNotInitialized
	}
	var nonce [chacha20poly1305.NonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return wire.TlsCiphertext{}, fmt.Errorf("ratls: generate nonce: %w", err)
	}
	ciphertext := c.aead.Seal(nil, nonce[:], plaintext, nil)
	return wire.TlsCiphertext{Payload: ciphertext, Nonce: nonce}, nil
}

// DecryptMsg opens a TlsCiphertext under the derived key.
func (c *Connection) DecryptMsg(ct wire.TlsCiphertext) ([]byte, error) {
	if c.st != stateInitialized {
		return nil, ErrNotInitialized
	}
	plaintext, err := c.aead.Open(nil, ct.Nonce[:], ct.Payload, nil)
	if err != nil {
		return nil, fmt.Errorf("ratls: decrypt message: %w", err)
	}
	return plaintext, nil
}

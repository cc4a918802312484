// Package fmd defines the boundary between the enclave's tick loop and
// the fuzzy-message-detection cryptographic scheme itself, which is
// treated as an external, swappable black box.
package fmd

// DetectionKey is an opaque per-user detection key, derived client-side
// and only ever held in plaintext inside the enclave.
type DetectionKey []byte

// FlagCiphertext is the per-transaction flag ciphertext a producer
// attaches to a MASP transaction, or absent when the producer attached
// none.
type FlagCiphertext []byte

// Scheme is the fuzzy-message-detection primitive: given a detection key
// and a flag ciphertext, decide whether the flag matches. A real
// implementation (e.g. an fmd2-compact scheme) is wired in at the
// application's composition root; the enclave tick loop never depends on
// the concrete scheme.
type Scheme interface {
	Detect(key DetectionKey, flag FlagCiphertext) bool
}

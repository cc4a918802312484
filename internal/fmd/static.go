package fmd

import "bytes"

// Static is a deterministic Scheme used in tests: it reports a match
// whenever flag has key as a byte-slice prefix. It makes no cryptographic
// claims and must never be wired into a production enclave.
type Static struct{}

var _ Scheme = Static{}

// Detect reports whether flag starts with key's bytes.
func (Static) Detect(key DetectionKey, flag FlagCiphertext) bool {
	return bytes.HasPrefix(flag, key)
}

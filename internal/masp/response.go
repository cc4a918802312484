package masp

// NonceLen is the size of a ChaCha20-Poly1305 nonce in bytes.
const NonceLen = 12

// EncryptedResponse is the envelope the enclave emits once per registered
// user per FMD tick: the ChaCha20-Poly1305 ciphertext of that user's
// IndexList encoding, under the user's own EncKey.
type EncryptedResponse struct {
	Owner   string         `cbor:"owner"`
	Nonce   [NonceLen]byte `cbor:"nonce"`
	Indices []byte         `cbor:"indices"`
	Height  uint64         `cbor:"height"`
}

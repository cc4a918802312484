package wire

import "github.com/anoma/kassandra-service/internal/masp"

// Every message taxonomy below is encoded as a "oneof struct": exactly one
// field is non-nil per value, tagged with its variant name and
// `omitempty` so CBOR only emits the active variant. fxamacker/cbor has no
// native analogue of an externally-tagged Rust enum, so this is the
// idiomatic Go stand-in — a map/struct with one populated key.

// ClientMsg is sent client -> host.
type ClientMsg struct {
	RegisterKey    *RegisterKeyMsg    `cbor:"RegisterKey,omitempty"`
	RequestReport  *RequestReportMsg  `cbor:"RequestReport,omitempty"`
	RATLSAck       *AckType           `cbor:"RATLSAck,omitempty"`
	RequestUUID    *struct{}          `cbor:"RequestUUID,omitempty"`
	RequestIndices *RequestIndicesMsg `cbor:"RequestIndices,omitempty"`
}

// ServerMsg is sent host -> client.
type ServerMsg struct {
	RATLS           *RATLSMsg               `cbor:"RATLS,omitempty"`
	Error           *string                 `cbor:"Error,omitempty"`
	KeyRegSuccess   *struct{}               `cbor:"KeyRegSuccess,omitempty"`
	UUID            *string                 `cbor:"UUID,omitempty"`
	IndicesResponse *masp.EncryptedResponse `cbor:"IndicesResponse,omitempty"`
}

// MsgFromHost is sent host -> enclave.
type MsgFromHost struct {
	RegisterKey    *RegisterKeyMsg    `cbor:"RegisterKey,omitempty"`
	RequestReport  *RequestReportMsg  `cbor:"RequestReport,omitempty"`
	RATLSAck       *AckType           `cbor:"RATLSAck,omitempty"`
	RequiredBlocks *struct{}          `cbor:"RequiredBlocks,omitempty"`
	RequestedFlags *RequestedFlagsMsg `cbor:"RequestedFlags,omitempty"`
}

// MsgToHost is sent enclave -> host.
type MsgToHost struct {
	RATLS          *RATLSMsg                `cbor:"RATLS,omitempty"`
	Error          *string                  `cbor:"Error,omitempty"`
	ErrorForClient *string                  `cbor:"ErrorForClient,omitempty"`
	KeyRegSuccess  *struct{}                `cbor:"KeyRegSuccess,omitempty"`
	Report         []byte                   `cbor:"Report,omitempty"`
	BlockRequests  []uint64                 `cbor:"BlockRequests,omitempty"`
	FmdResults     []masp.EncryptedResponse `cbor:"FmdResults,omitempty"`
}

// AckType is the client's (or, by re-use, the enclave's) verdict on an
// RA-TLS handshake in flight.
type AckType struct {
	Success *TlsCiphertext `cbor:"Success,omitempty"`
	Fail    *struct{}      `cbor:"Fail,omitempty"`
}

// RegisterKeyMsg carries the client's ephemeral X25519 public key and a
// fresh nonce, the first message of the RA-TLS handshake.
type RegisterKeyMsg struct {
	Nonce uint64   `cbor:"nonce"`
	Pk    [32]byte `cbor:"pk"`
}

// RequestReportMsg asks the enclave to attest over an arbitrary 64-byte
// payload, independent of any key registration.
type RequestReportMsg struct {
	UserData [64]byte `cbor:"user_data"`
}

// RequestIndicesMsg asks the host for the most recent encrypted index set
// belonging to the given key hash.
type RequestIndicesMsg struct {
	KeyHash string `cbor:"key_hash"`
}

// RATLSMsg carries a raw attestation quote from enclave to client.
type RATLSMsg struct {
	Report []byte `cbor:"report"`
}

// TlsCiphertext is the AEAD-sealed FmdKeyRegistration sent as the client's
// handshake acknowledgement on success.
type TlsCiphertext struct {
	Payload []byte              `cbor:"payload"`
	Nonce   [masp.NonceLen]byte `cbor:"nonce"`
}

// FlagEntry pairs a transaction index with its optional FMD flag
// ciphertext, as supplied by the host to the enclave's FMD tick.
type FlagEntry struct {
	Index masp.Index `cbor:"index"`
	Flag  []byte     `cbor:"flag,omitempty"`
}

// RequestedFlagsMsg drives one FMD tick: the declared fully-synced horizon
// and the flags the host gathered at the heights each registered key's
// cursor currently points at.
type RequestedFlagsMsg struct {
	SyncedTo uint64      `cbor:"synced_to"`
	Flags    []FlagEntry `cbor:"flags"`
}

package ratls

import "encoding/binary"

// BuildReportData assembles the 64-byte attestation payload the enclave
// requests a quote over during a key-registration handshake:
// bytes[0:32] = enclave's ephemeral public key, bytes[32:40] = the
// client's nonce (little-endian), bytes[40:64] = zero padding.
func BuildReportData(enclavePub [32]byte, nonce uint64) [64]byte {
	var out [64]byte
	copy(out[0:32], enclavePub[:])
	binary.LittleEndian.PutUint64(out[32:40], nonce)
	return out
}

// ExtractEphemeralPub reads the enclave's ephemeral public key back out
// of a report_data payload.
func ExtractEphemeralPub(reportData [64]byte) [32]byte {
	var pub [32]byte
	copy(pub[:], reportData[0:32])
	return pub
}

// ExtractNonce reads the nonce back out of a report_data payload.
func ExtractNonce(reportData [64]byte) uint64 {
	return binary.LittleEndian.Uint64(reportData[32:40])
}

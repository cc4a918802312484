// Package wire implements the framed byte-stream protocol shared by every
// channel in the system: client<->host over TCP, host<->enclave over either
// a serial-like port or TCP. A frame is COBS(CBOR(payload)) followed by a
// trailing 0x00 sentinel byte.
package wire

import "errors"

// ErrCorruptFrame indicates the COBS-encoded bytes could not be decoded.
var ErrCorruptFrame = errors.New("wire: corrupt COBS frame")

// errTargetTooSmall signals the destination buffer passed to cobsDecode
// could not hold the decoded payload; the caller grows its buffer and
// retries the same input.
var errTargetTooSmall = errors.New("wire: decode target buffer too small")

// cobsEncode returns the Consistent-Overhead-Byte-Stuffing encoding of data
// with 0x00 as the sentinel byte. The caller is responsible for appending
// the trailing sentinel that delimits the frame on the wire.
func cobsEncode(data []byte) []byte {
	out := make([]byte, 0, len(data)+len(data)/254+1)
	out = append(out, 0) // placeholder for the first code byte
	codeIdx := 0
	code := byte(1)

	flush := func() {
		out[codeIdx] = code
		codeIdx = len(out)
		out = append(out, 0)
		code = 1
	}

	for _, b := range data {
		if b == 0 {
			flush()
			continue
		}
		out = append(out, b)
		code++
		if code == 0xFF {
			flush()
		}
	}
	out[codeIdx] = code
	return out
}

// cobsDecode decodes src (a COBS frame without its trailing sentinel) into
// dst, returning the number of bytes written. It returns errTargetTooSmall
// if dst cannot hold the decoded payload, in which case the caller should
// grow dst and retry with the same src; it returns ErrCorruptFrame if src
// is not a well-formed COBS encoding.
func cobsDecode(src, dst []byte) (int, error) {
	read, write := 0, 0
	for read < len(src) {
		code := src[read]
		if code == 0 {
			return 0, ErrCorruptFrame
		}
		read++
		for i := byte(1); i < code; i++ {
			if read >= len(src) {
				return 0, ErrCorruptFrame
			}
			if write >= len(dst) {
				return 0, errTargetTooSmall
			}
			dst[write] = src[read]
			write++
			read++
		}
		if code < 0xFF && read < len(src) {
			if write >= len(dst) {
				return 0, errTargetTooSmall
			}
			dst[write] = 0
			write++
		}
	}
	return write, nil
}

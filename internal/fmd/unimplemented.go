package fmd

import (
	"errors"
	"fmt"
)

// ErrUnsupported names the condition Unimplemented reports: no real
// detection scheme is linked into this build, which this project never
// vendors (see Scheme's doc comment). Unimplemented.Detect panics with a
// message carrying this error's text.
var ErrUnsupported = errors.New("fmd: no detection scheme linked into this build")

// Unimplemented is the placeholder Scheme that cmd/enclave wires in when
// no real detection scheme is linked. It has no error-returning path:
// its Detect panics on the first call, the same way
// internal/attestation.TDX documents its quoting methods as requiring a
// linked library.
type Unimplemented struct{}

var _ Scheme = Unimplemented{}

// Detect always panics: there is no safe boolean fallback for "scheme
// not linked", and reporting false silently would mean no message is
// ever detected. A production enclave must replace Unimplemented before
// Tick is ever called.
func (Unimplemented) Detect(key DetectionKey, flag FlagCiphertext) bool {
	panic(fmt.Sprintf("%v: wire a real fmd.Scheme before running a production enclave", ErrUnsupported))
}

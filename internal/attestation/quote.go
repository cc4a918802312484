// Package attestation models the TEE quote lifecycle the RA-TLS handshake
// depends on: generating a quote over an arbitrary 64-byte payload inside
// the enclave, and verifying one against a configured measurement policy
// on the client. The concrete TDX quote parsing/signing library is an
// external collaborator (out of scope); this package defines the
// boundary interface plus a deterministic mock used in tests and in the
// "transparent" deployment.
package attestation

import (
	"context"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ErrMeasurementMismatch indicates a quote's platform measurements did not
// match the verifying policy.
var ErrMeasurementMismatch = errors.New("attestation: platform measurement mismatch")

// ErrSignatureInvalid indicates a quote's signature chain failed
// verification against the TEE vendor's trust root.
var ErrSignatureInvalid = errors.New("attestation: quote signature invalid")

// ErrUnsupported indicates the verifier cannot operate in the requested
// mode (e.g. a hardware quote requested from a build with no TDX quoting
// library linked in).
var ErrUnsupported = errors.New("attestation: unsupported in this build")

// Quote is a TEE-signed assertion that a specific measured platform
// produced a given 64-byte user payload. MRTD/RTMR0/RTMR1 are TDX
// terminology; other TEEs would populate analogous identity fields
// through the same struct.
type Quote struct {
	ReportData [64]byte
	MRTD       string
	RTMR0      string
	RTMR1      string
	Raw        []byte
}

// Policy is the set of expected measurement values a client checks an
// incoming quote against before trusting it.
type Policy struct {
	MRTD  string
	RTMR0 string
	RTMR1 string
}

// Matches reports whether q's measurements equal p exactly.
func (p Policy) Matches(q Quote) bool {
	return p.MRTD == q.MRTD && p.RTMR0 == q.RTMR0 && p.RTMR1 == q.RTMR1
}

// quoteWire is the on-the-wire encoding of a Quote. A real TDX deployment
// would instead carry the vendor's binary quote format, self-describing
// its own report_data and measurement fields; this CBOR encoding is this
// project's stand-in, since the concrete attestation library is an
// external collaborator this project never vendors.
type quoteWire struct {
	ReportData [64]byte `cbor:"report_data"`
	MRTD       string   `cbor:"mrtd"`
	RTMR0      string   `cbor:"rtmr0"`
	RTMR1      string   `cbor:"rtmr1"`
	Raw        []byte   `cbor:"raw"`
}

// Bytes serialises q into the form carried over the wire as a RATLS
// report / health-check Report.
func (q Quote) Bytes() ([]byte, error) {
	b, err := cbor.Marshal(quoteWire{
		ReportData: q.ReportData,
		MRTD:       q.MRTD,
		RTMR0:      q.RTMR0,
		RTMR1:      q.RTMR1,
		Raw:        q.Raw,
	})
	if err != nil {
		return nil, fmt.Errorf("attestation: encode quote: %w", err)
	}
	return b, nil
}

// ParseQuote decodes the bytes produced by Quote.Bytes.
func ParseQuote(raw []byte) (Quote, error) {
	var w quoteWire
	if err := cbor.Unmarshal(raw, &w); err != nil {
		return Quote{}, fmt.Errorf("attestation: decode quote: %w", err)
	}
	return Quote{
		ReportData: w.ReportData,
		MRTD:       w.MRTD,
		RTMR0:      w.RTMR0,
		RTMR1:      w.RTMR1,
		Raw:        w.Raw,
	}, nil
}

// Quoter is the enclave-side capability: produce a quote over an
// arbitrary payload. Used both for RA-TLS handshakes (report_data =
// enclave_pub || nonce || padding) and for standalone health-check
// reports (RequestReport).
type Quoter interface {
	GenerateQuote(ctx context.Context, reportData [64]byte) (Quote, error)
}

// Verifier is the client-side capability: check a received quote's
// measurements against policy and its signature chain against the
// vendor trust root.
type Verifier interface {
	VerifyQuote(ctx context.Context, quote Quote, policy Policy) error
}

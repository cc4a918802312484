package attestation

import (
	"context"
	"crypto/sha256"
)

// Mock is a deterministic Quoter and Verifier used in tests and in the
// "transparent" deployment, where no real TEE is present. It reports
// whatever measurement values it was configured with and never checks a
// signature chain, mirroring the original's explicit mock-mode escape
// hatch for non-hardware builds.
type Mock struct {
	Measurements Policy
}

var _ Quoter = (*Mock)(nil)
var _ Verifier = (*Mock)(nil)

// NewMock returns a Mock reporting the given measurement values.
func NewMock(measurements Policy) *Mock {
	return &Mock{Measurements: measurements}
}

// GenerateQuote returns a quote carrying m's configured measurements and
// a raw payload derived deterministically from reportData, so repeated
// calls over the same input are reproducible in tests.
func (m *Mock) GenerateQuote(ctx context.Context, reportData [64]byte) (Quote, error) {
	h := sha256.New()
	h.Write([]byte("mock-quote"))
	h.Write(reportData[:])
	return Quote{
		ReportData: reportData,
		MRTD:       m.Measurements.MRTD,
		RTMR0:      m.Measurements.RTMR0,
		RTMR1:      m.Measurements.RTMR1,
		Raw:        h.Sum(nil),
	}, nil
}

// VerifyQuote checks quote's measurements against policy. No signature
// chain exists to verify in mock mode.
func (m *Mock) VerifyQuote(ctx context.Context, quote Quote, policy Policy) error {
	if !policy.Matches(quote) {
		return ErrMeasurementMismatch
	}
	return nil
}

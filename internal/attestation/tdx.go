package attestation

import (
	"context"
	"fmt"
)

// TDX is the hardware quoting/verification path. It is left unimplemented:
// the concrete TDX quote parsing/signing library is an external
// collaborator per this project's scope, the same way the teacher's
// tee/enclave.Runtime leaves ModeHardware's EREPORT/EGETKEY calls as a
// documented placeholder rather than a vendored stub. Wire a real
// implementation of Quoter/Verifier in its place for a genuine TDX
// deployment.
type TDX struct {
	EnclaveID string
}

var _ Quoter = (*TDX)(nil)
var _ Verifier = (*TDX)(nil)

// NewTDX returns a TDX quoting/verification backend for the given
// enclave identity.
func NewTDX(enclaveID string) *TDX {
	return &TDX{EnclaveID: enclaveID}
}

func (t *TDX) GenerateQuote(ctx context.Context, reportData [64]byte) (Quote, error) {
	return Quote{}, fmt.Errorf("%w: hardware quote generation requires a linked TDX quoting library", ErrUnsupported)
}

func (t *TDX) VerifyQuote(ctx context.Context, quote Quote, policy Policy) error {
	return fmt.Errorf("%w: hardware quote verification requires a linked TDX DCAP client", ErrUnsupported)
}

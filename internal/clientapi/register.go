// Package clientapi implements the client side of the two operations a
// key holder performs against a host: registering a detection-key
// share through an RA-TLS handshake, and querying a host for that
// share's most recent encrypted index set.
package clientapi

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/anoma/kassandra-service/internal/attestation"
	"github.com/anoma/kassandra-service/internal/fmd"
	"github.com/anoma/kassandra-service/internal/masp"
	"github.com/anoma/kassandra-service/internal/ratls"
	"github.com/anoma/kassandra-service/internal/wire"
)

// Registration is the client-side mirror of enclave.FmdKeyRegistration:
// the plaintext sealed into the handshake's Ack ciphertext. Field names
// and CBOR tags must stay in lockstep with that type since the enclave
// decodes this exact shape.
type Registration struct {
	FmdKey   fmd.DetectionKey `cbor:"fmd_key"`
	EncKey   masp.EncKey      `cbor:"enc_key"`
	Birthday *uint64          `cbor:"birthday,omitempty"`
}

// ErrRegistrationRejected is returned when the host or enclave reports
// an error instead of completing the handshake.
var ErrRegistrationRejected = errors.New("clientapi: key registration rejected")

// ErrUnexpectedMessage is returned when the peer sends a message the
// handshake state machine does not expect in its current state.
var ErrUnexpectedMessage = errors.New("clientapi: unexpected message from host")

// RegisterKey drives one full RA-TLS handshake over conn, registering
// fmdKey (this holder's share of the detection key, already derived per
// the N-of-N key-sharding scheme) and encKey with the enclave on the
// other end: it sends the client's ephemeral public key and a fresh
// nonce, validates the returned attestation quote against policy and
// against that nonce, derives the shared channel key, and seals a
// registration payload for transmission. birthday, if non-nil, seeds
// the enclave's cursor for this key at that height instead of 1. conn
// is a wire.Conn already connected to a host; RegisterKey does not dial.
func RegisterKey(ctx context.Context, conn *wire.Conn, verifier attestation.Verifier, policy attestation.Policy, fmdKey fmd.DetectionKey, encKey masp.EncKey, birthday *uint64) error {
	session, err := ratls.New()
	if err != nil {
		return fmt.Errorf("clientapi: start handshake: %w", err)
	}

	nonce, err := randomNonce()
	if err != nil {
		return fmt.Errorf("clientapi: generate nonce: %w", err)
	}

	pub := session.EphemeralPublicKey()
	if err := conn.WriteFrame(wire.ClientMsg{RegisterKey: &wire.RegisterKeyMsg{Nonce: nonce, Pk: pub}}); err != nil {
		return fmt.Errorf("clientapi: send RegisterKey: %w", err)
	}

	var fromHost wire.ServerMsg
	if err := conn.ReadFrame(&fromHost); err != nil {
		return fmt.Errorf("clientapi: read RATLS quote: %w", err)
	}
	if fromHost.Error != nil {
		return fmt.Errorf("%w: %s", ErrRegistrationRejected, *fromHost.Error)
	}
	if fromHost.RATLS == nil {
		return ErrUnexpectedMessage
	}

	quote, err := attestation.ParseQuote(fromHost.RATLS.Report)
	if err != nil {
		return abort(conn, fmt.Errorf("clientapi: parse attestation quote: %w", err))
	}
	if err := verifier.VerifyQuote(ctx, quote, policy); err != nil {
		return abort(conn, fmt.Errorf("clientapi: verify attestation quote: %w", err))
	}
	if ratls.ExtractNonce(quote.ReportData) != nonce {
		return abort(conn, errors.New("clientapi: attestation quote nonce does not match handshake nonce"))
	}

	enclavePub := ratls.ExtractEphemeralPub(quote.ReportData)
	if err := session.Initialize(enclavePub); err != nil {
		return abort(conn, fmt.Errorf("clientapi: derive session key: %w", err))
	}

	payload, err := cbor.Marshal(Registration{FmdKey: fmdKey, EncKey: encKey, Birthday: birthday})
	if err != nil {
		return fmt.Errorf("clientapi: encode registration: %w", err)
	}
	ciphertext, err := session.EncryptMsg(payload)
	if err != nil {
		return fmt.Errorf("clientapi: seal registration: %w", err)
	}
	if err := conn.WriteFrame(wire.ClientMsg{RATLSAck: &wire.AckType{Success: &ciphertext}}); err != nil {
		return fmt.Errorf("clientapi: send Ack: %w", err)
	}

	var verdict wire.ServerMsg
	if err := conn.ReadFrame(&verdict); err != nil {
		return fmt.Errorf("clientapi: read registration verdict: %w", err)
	}
	switch {
	case verdict.KeyRegSuccess != nil:
		return nil
	case verdict.Error != nil:
		return fmt.Errorf("%w: %s", ErrRegistrationRejected, *verdict.Error)
	default:
		return ErrUnexpectedMessage
	}
}

// abort sends Ack(Fail) to unwind a handshake in progress, then returns
// cause so the caller's error still surfaces.
func abort(conn *wire.Conn, cause error) error {
	_ = conn.WriteFrame(wire.ClientMsg{RATLSAck: &wire.AckType{Fail: &struct{}{}}})
	return cause
}

func randomNonce() (uint64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

package enclave

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
	"github.com/rs/zerolog"

	"github.com/anoma/kassandra-service/internal/attestation"
	"github.com/anoma/kassandra-service/internal/fmd"
	"github.com/anoma/kassandra-service/internal/ratls"
	"github.com/anoma/kassandra-service/internal/wire"
)

// Runtime bundles the three capability sets the enclave main loop is
// parameterised over: host communication, remote attestation, and
// entropy. A single generic instantiation is built per deployment rather
// than sharing a polymorphic object at runtime.
type Runtime struct {
	Conn    *wire.Conn
	Quoter  attestation.Quoter
	Entropy io.Reader
	Scheme  fmd.Scheme
	Keys    *KeyStore
	Log     zerolog.Logger
}

// Run executes the single-threaded, message-driven main loop: block on
// one host frame, process it to completion, then loop. It never returns
// except via ctx cancellation, matching the enclave's "runs until its VM
// is torn down" lifetime; a transport error on the host channel produces
// a MsgToHost.Error frame and the loop continues.
func (rt *Runtime) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var msg wire.MsgFromHost
		if err := rt.Conn.ReadFrame(&msg); err != nil {
			rt.Log.Warn().Err(err).Msg("host channel read error")
			if werr := rt.sendError(fmt.Sprintf("read error: %v", err)); werr != nil {
				rt.Log.Error().Err(werr).Msg("failed to report read error to host")
			}
			continue
		}

		if err := rt.dispatch(ctx, msg); err != nil {
			rt.Log.Error().Err(err).Msg("dispatch failed")
		}
	}
}

func (rt *Runtime) dispatch(ctx context.Context, msg wire.MsgFromHost) error {
	switch {
	case msg.RegisterKey != nil:
		return rt.handleRegisterKey(ctx, msg.RegisterKey)
	case msg.RequestReport != nil:
		return rt.handleRequestReport(ctx, msg.RequestReport)
	case msg.RequiredBlocks != nil:
		return rt.handleRequiredBlocks()
	case msg.RequestedFlags != nil:
		return rt.handleRequestedFlags(msg.RequestedFlags)
	default:
		// RATLSAck arriving outside a RegisterKey exchange, or any
		// message from a newer host, is silently ignored for
		// forward-compatibility.
		return nil
	}
}

func (rt *Runtime) sendError(description string) error {
	return rt.Conn.WriteFrame(wire.MsgToHost{Error: &description})
}

func (rt *Runtime) sendErrorForClient(description string) error {
	return rt.Conn.WriteFrame(wire.MsgToHost{ErrorForClient: &description})
}

// handleRegisterKey runs steps 2-6 of the RA-TLS handshake: derive this
// side's ephemeral key, attest over it, relay the quote, and block for
// exactly one more frame (the client's Ack) before concluding.
func (rt *Runtime) handleRegisterKey(ctx context.Context, m *wire.RegisterKeyMsg) error {
	conn, err := ratls.New()
	if err != nil {
		return rt.sendError(fmt.Sprintf("handshake setup: %v", err))
	}

	if err := conn.Initialize(m.Pk); err != nil {
		if errors.Is(err, ratls.ErrNonContributory) {
			return rt.sendErrorForClient("non-contributory key exchange")
		}
		return rt.sendError(fmt.Sprintf("handshake init: %v", err))
	}

	reportData := ratls.BuildReportData(conn.EphemeralPublicKey(), m.Nonce)
	quote, err := rt.Quoter.GenerateQuote(ctx, reportData)
	if err != nil {
		return rt.sendError(fmt.Sprintf("generate quote: %v", err))
	}
	quoteBytes, err := quote.Bytes()
	if err != nil {
		return rt.sendError(fmt.Sprintf("encode quote: %v", err))
	}

	if err := rt.Conn.WriteFrame(wire.MsgToHost{RATLS: &wire.RATLSMsg{Report: quoteBytes}}); err != nil {
		return fmt.Errorf("enclave: relay quote: %w", err)
	}

	var ackMsg wire.MsgFromHost
	if err := rt.Conn.ReadFrame(&ackMsg); err != nil {
		return fmt.Errorf("enclave: read ack: %w", err)
	}
	if ackMsg.RATLSAck == nil {
		return rt.sendError("expected RATLSAck")
	}
	ack := ackMsg.RATLSAck

	if ack.Fail != nil {
		return rt.sendErrorForClient("client aborted handshake")
	}
	if ack.Success == nil {
		return rt.sendError("malformed ack")
	}

	plaintext, err := conn.DecryptMsg(*ack.Success)
	if err != nil {
		return rt.sendErrorForClient("decrypt registration failed")
	}

	var reg FmdKeyRegistration
	if err := cbor.Unmarshal(plaintext, &reg); err != nil {
		return rt.sendErrorForClient("decode registration failed")
	}

	rt.Keys.Register(reg)
	return rt.Conn.WriteFrame(wire.MsgToHost{KeyRegSuccess: &struct{}{}})
}

func (rt *Runtime) handleRequestReport(ctx context.Context, m *wire.RequestReportMsg) error {
	quote, err := rt.Quoter.GenerateQuote(ctx, m.UserData)
	if err != nil {
		return rt.sendError(fmt.Sprintf("generate report: %v", err))
	}
	quoteBytes, err := quote.Bytes()
	if err != nil {
		return rt.sendError(fmt.Sprintf("encode report: %v", err))
	}
	return rt.Conn.WriteFrame(wire.MsgToHost{Report: quoteBytes})
}

func (rt *Runtime) handleRequiredBlocks() error {
	heights := make([]uint64, 0, rt.Keys.Len())
	for _, rk := range rt.Keys.All() {
		heights = append(heights, rk.Set.Next())
	}
	return rt.Conn.WriteFrame(wire.MsgToHost{BlockRequests: heights})
}

func (rt *Runtime) handleRequestedFlags(m *wire.RequestedFlagsMsg) error {
	responses, err := Tick(rt.Keys, rt.Scheme, rt.Entropy, m.SyncedTo, m.Flags)
	if err != nil {
		if errors.Is(err, ErrMissingFlagsAtCursor) {
			return rt.sendErrorForClient(fmt.Sprintf("fmd tick: %v", err))
		}
		return rt.sendError(fmt.Sprintf("fmd tick: %v", err))
	}
	return rt.Conn.WriteFrame(wire.MsgToHost{FmdResults: responses})
}

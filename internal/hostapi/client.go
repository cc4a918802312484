// Package hostapi implements the host's two operator-facing surfaces:
// the per-connection client handler (§4.7) and the FMD tick
// orchestration that drives the enclave once per scheduler default
// (§4.8). Both share the single long-lived connection to the enclave;
// the scheduler ensures only one runs at a time.
package hostapi

import (
	"context"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/anoma/kassandra-service/internal/store"
	"github.com/anoma/kassandra-service/internal/wire"
)

// DefaultReadTimeout bounds how long a client connection may sit idle
// before the host gives up on it.
const DefaultReadTimeout = 30 * time.Second

// Handler serves client connections and drives enclave FMD ticks over
// a single shared enclave connection.
type Handler struct {
	Enclave     *wire.Conn
	Store       *store.Store
	HostUUID    string
	Log         zerolog.Logger
	ReadTimeout time.Duration
}

func (h *Handler) readTimeout() time.Duration {
	if h.ReadTimeout == 0 {
		return DefaultReadTimeout
	}
	return h.ReadTimeout
}

// HandleClient serves exactly one request from conn per §4.7's table,
// then returns; the caller is responsible for closing conn.
func (h *Handler) HandleClient(ctx context.Context, conn net.Conn) {
	if err := conn.SetReadDeadline(time.Now().Add(h.readTimeout())); err != nil {
		h.Log.Error().Err(err).Msg("failed to set client read deadline")
		return
	}
	wc := wire.NewConn(conn)

	var msg wire.ClientMsg
	if err := wc.ReadFrame(&msg); err != nil {
		h.Log.Error().Err(err).Msg("failed to read client frame")
		return
	}

	switch {
	case msg.RequestUUID != nil:
		h.handleRequestUUID(wc)
	case msg.RequestIndices != nil:
		h.handleRequestIndices(ctx, wc, msg.RequestIndices)
	case msg.RegisterKey != nil:
		h.handleRegisterKey(wc, msg.RegisterKey)
	default:
		h.Log.Warn().Msg("RequestReport/RATLSAck received outside a RegisterKey exchange, ignoring")
	}
}

func (h *Handler) handleRequestUUID(wc *wire.Conn) {
	uuid := h.HostUUID
	if err := wc.WriteFrame(wire.ServerMsg{UUID: &uuid}); err != nil {
		h.Log.Error().Err(err).Msg("failed to write UUID response")
	}
}

func (h *Handler) handleRequestIndices(ctx context.Context, wc *wire.Conn, m *wire.RequestIndicesMsg) {
	resp, err := h.Store.LatestIndices(ctx, m.KeyHash)
	if err != nil {
		desc := err.Error()
		if werr := wc.WriteFrame(wire.ServerMsg{Error: &desc}); werr != nil {
			h.Log.Error().Err(werr).Msg("failed to write indices error response")
		}
		return
	}
	if err := wc.WriteFrame(wire.ServerMsg{IndicesResponse: &resp}); err != nil {
		h.Log.Error().Err(err).Msg("failed to write indices response")
	}
}

// handleRegisterKey relays the RA-TLS handshake between the client and
// the enclave: RegisterKey forwards straight through, the enclave's
// RATLS quote is forwarded to the client, the client's Ack is forwarded
// to the enclave, and the enclave's final verdict is forwarded back.
// Any unexpected message from either side aborts with Ack(Fail) sent
// to the enclave.
func (h *Handler) handleRegisterKey(wc *wire.Conn, m *wire.RegisterKeyMsg) {
	if err := h.Enclave.WriteFrame(wire.MsgFromHost{RegisterKey: m}); err != nil {
		h.Log.Error().Err(err).Msg("failed to forward RegisterKey to enclave")
		return
	}

	var fromEnclave wire.MsgToHost
	if err := h.Enclave.ReadFrame(&fromEnclave); err != nil {
		h.Log.Error().Err(err).Msg("failed to read RATLS quote from enclave")
		return
	}
	if fromEnclave.RATLS == nil {
		h.Log.Warn().Msg("enclave sent unexpected message instead of RATLS quote, aborting")
		h.abortToEnclave()
		return
	}
	if err := wc.WriteFrame(wire.ServerMsg{RATLS: fromEnclave.RATLS}); err != nil {
		h.Log.Error().Err(err).Msg("failed to forward RATLS quote to client")
		h.abortToEnclave()
		return
	}

	var fromClient wire.ClientMsg
	if err := wc.ReadFrame(&fromClient); err != nil {
		h.Log.Error().Err(err).Msg("failed to read Ack from client")
		h.abortToEnclave()
		return
	}
	if fromClient.RATLSAck == nil {
		h.Log.Warn().Msg("client sent unexpected message instead of Ack, aborting")
		h.abortToEnclave()
		return
	}
	if err := h.Enclave.WriteFrame(wire.MsgFromHost{RATLSAck: fromClient.RATLSAck}); err != nil {
		h.Log.Error().Err(err).Msg("failed to forward Ack to enclave")
		return
	}

	var verdict wire.MsgToHost
	if err := h.Enclave.ReadFrame(&verdict); err != nil {
		h.Log.Error().Err(err).Msg("failed to read registration verdict from enclave")
		return
	}
	switch {
	case verdict.KeyRegSuccess != nil:
		if err := wc.WriteFrame(wire.ServerMsg{KeyRegSuccess: &struct{}{}}); err != nil {
			h.Log.Error().Err(err).Msg("failed to forward KeyRegSuccess to client")
		}
	case verdict.ErrorForClient != nil:
		if err := wc.WriteFrame(wire.ServerMsg{Error: verdict.ErrorForClient}); err != nil {
			h.Log.Error().Err(err).Msg("failed to forward registration error to client")
		}
	default:
		h.Log.Warn().Msg("enclave sent unexpected registration verdict")
		h.abortToEnclave()
	}
}

// abortToEnclave sends Ack(Fail) to the enclave to unwind an
// in-progress handshake after an unexpected message from either side.
func (h *Handler) abortToEnclave() {
	ack := &wire.AckType{Fail: &struct{}{}}
	if err := h.Enclave.WriteFrame(wire.MsgFromHost{RATLSAck: ack}); err != nil {
		h.Log.Error().Err(err).Msg("failed to send Ack(Fail) to enclave")
	}
}

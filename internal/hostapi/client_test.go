package hostapi

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/anoma/kassandra-service/internal/masp"
	"github.com/anoma/kassandra-service/internal/store"
	"github.com/anoma/kassandra-service/internal/wire"
)

func newTestHandler(t *testing.T) (*Handler, sqlmock.Sqlmock, *wire.Conn) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	enclaveHost, enclaveFake := net.Pipe()
	t.Cleanup(func() { enclaveHost.Close(); enclaveFake.Close() })

	h := &Handler{
		Enclave:     wire.NewConn(enclaveHost),
		Store:       store.New(sqlx.NewDb(db, "postgres")),
		HostUUID:    "11111111-1111-1111-1111-111111111111",
		Log:         zerolog.Nop(),
		ReadTimeout: 2 * time.Second,
	}
	return h, mock, wire.NewConn(enclaveFake)
}

func TestHandleClientRequestUUID(t *testing.T) {
	h, _, _ := newTestHandler(t)
	clientSide, hostSide := net.Pipe()
	defer clientSide.Close()
	defer hostSide.Close()

	go h.HandleClient(context.Background(), hostSide)

	require.NoError(t, wire.NewConn(clientSide).WriteFrame(wire.ClientMsg{RequestUUID: &struct{}{}}))
	var resp wire.ServerMsg
	require.NoError(t, wire.NewConn(clientSide).ReadFrame(&resp))
	require.NotNil(t, resp.UUID)
	require.Equal(t, h.HostUUID, *resp.UUID)
}

func TestHandleClientRequestIndicesFound(t *testing.T) {
	h, mock, _ := newTestHandler(t)
	clientSide, hostSide := net.Pipe()
	defer clientSide.Close()
	defer hostSide.Close()

	want := masp.EncryptedResponse{Owner: "owner-1", Indices: []byte("ciphertext"), Height: 9}
	rows := sqlmock.NewRows([]string{"nonce", "ciphertext", "height"}).
		AddRow(want.Nonce[:], want.Indices, want.Height)
	mock.ExpectQuery("SELECT nonce, ciphertext, height").WithArgs("owner-1").WillReturnRows(rows)

	go h.HandleClient(context.Background(), hostSide)

	cc := wire.NewConn(clientSide)
	require.NoError(t, cc.WriteFrame(wire.ClientMsg{RequestIndices: &wire.RequestIndicesMsg{KeyHash: "owner-1"}}))

	var resp wire.ServerMsg
	require.NoError(t, cc.ReadFrame(&resp))
	require.NotNil(t, resp.IndicesResponse)
	require.Equal(t, want.Indices, resp.IndicesResponse.Indices)
	require.Equal(t, want.Height, resp.IndicesResponse.Height)
}

func TestHandleClientRequestIndicesNotFound(t *testing.T) {
	h, mock, _ := newTestHandler(t)
	clientSide, hostSide := net.Pipe()
	defer clientSide.Close()
	defer hostSide.Close()

	mock.ExpectQuery("SELECT nonce, ciphertext, height").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"nonce", "ciphertext", "height"}))

	go h.HandleClient(context.Background(), hostSide)

	cc := wire.NewConn(clientSide)
	require.NoError(t, cc.WriteFrame(wire.ClientMsg{RequestIndices: &wire.RequestIndicesMsg{KeyHash: "missing"}}))

	var resp wire.ServerMsg
	require.NoError(t, cc.ReadFrame(&resp))
	require.NotNil(t, resp.Error)
}

func TestHandleRegisterKeyRelaysFullHandshake(t *testing.T) {
	h, _, enclaveFake := newTestHandler(t)
	clientSide, hostSide := net.Pipe()
	defer clientSide.Close()
	defer hostSide.Close()

	go h.HandleClient(context.Background(), hostSide)

	enclaveDone := make(chan struct{})
	go func() {
		defer close(enclaveDone)
		var fromHost wire.MsgFromHost
		require.NoError(t, enclaveFake.ReadFrame(&fromHost))
		require.NotNil(t, fromHost.RegisterKey)

		require.NoError(t, enclaveFake.WriteFrame(wire.MsgToHost{RATLS: &wire.RATLSMsg{Report: []byte("quote")}}))

		var ack wire.MsgFromHost
		require.NoError(t, enclaveFake.ReadFrame(&ack))
		require.NotNil(t, ack.RATLSAck)
		require.NotNil(t, ack.RATLSAck.Success)

		require.NoError(t, enclaveFake.WriteFrame(wire.MsgToHost{KeyRegSuccess: &struct{}{}}))
	}()

	cc := wire.NewConn(clientSide)
	require.NoError(t, cc.WriteFrame(wire.ClientMsg{RegisterKey: &wire.RegisterKeyMsg{Nonce: 1, Pk: [32]byte{1}}}))

	var quote wire.ServerMsg
	require.NoError(t, cc.ReadFrame(&quote))
	require.NotNil(t, quote.RATLS)
	require.Equal(t, []byte("quote"), quote.RATLS.Report)

	require.NoError(t, cc.WriteFrame(wire.ClientMsg{RATLSAck: &wire.AckType{Success: &wire.TlsCiphertext{Payload: []byte("blob")}}}))

	var verdict wire.ServerMsg
	require.NoError(t, cc.ReadFrame(&verdict))
	require.NotNil(t, verdict.KeyRegSuccess)

	<-enclaveDone
}

func TestHandleRegisterKeyAbortsOnUnexpectedClientMessage(t *testing.T) {
	h, _, enclaveFake := newTestHandler(t)
	clientSide, hostSide := net.Pipe()
	defer clientSide.Close()
	defer hostSide.Close()

	go h.HandleClient(context.Background(), hostSide)

	enclaveDone := make(chan struct{})
	go func() {
		defer close(enclaveDone)
		var fromHost wire.MsgFromHost
		require.NoError(t, enclaveFake.ReadFrame(&fromHost))
		require.NoError(t, enclaveFake.WriteFrame(wire.MsgToHost{RATLS: &wire.RATLSMsg{Report: []byte("quote")}}))

		var abort wire.MsgFromHost
		require.NoError(t, enclaveFake.ReadFrame(&abort))
		require.NotNil(t, abort.RATLSAck)
		require.NotNil(t, abort.RATLSAck.Fail)
	}()

	cc := wire.NewConn(clientSide)
	require.NoError(t, cc.WriteFrame(wire.ClientMsg{RegisterKey: &wire.RegisterKeyMsg{Nonce: 1, Pk: [32]byte{1}}}))

	var quote wire.ServerMsg
	require.NoError(t, cc.ReadFrame(&quote))

	require.NoError(t, cc.WriteFrame(wire.ClientMsg{RequestUUID: &struct{}{}}))

	<-enclaveDone
}

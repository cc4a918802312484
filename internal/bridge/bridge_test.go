package bridge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anoma/kassandra-service/internal/wire"
)

func TestConnectTCPRoundTrip(t *testing.T) {
	listener, err := Listen("127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	accepted := make(chan *wire.Conn, 1)
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			accepted <- nil
			return
		}
		accepted <- wire.NewConn(conn)
	}()

	clientConn, closer, err := Connect(context.Background(), Config{
		Mode:    ModeTCP,
		Address: listener.Addr().String(),
	})
	require.NoError(t, err)
	defer closer()

	serverConn := <-accepted
	require.NotNil(t, serverConn)

	msg := wire.ClientMsg{RequestUUID: &struct{}{}}
	require.NoError(t, clientConn.WriteFrame(msg))

	var got wire.ClientMsg
	require.NoError(t, serverConn.ReadFrame(&got))
	require.Equal(t, msg, got)
}

func TestConnectRejectsUnknownMode(t *testing.T) {
	_, _, err := Connect(context.Background(), Config{Mode: "bogus"})
	require.Error(t, err)
}

func TestConnectTCPRequiresAddress(t *testing.T) {
	_, _, err := Connect(context.Background(), Config{Mode: ModeTCP})
	require.Error(t, err)
}

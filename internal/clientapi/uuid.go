package clientapi

import (
	"fmt"

	"github.com/anoma/kassandra-service/internal/wire"
)

// QueryUUID asks the host on the other end of conn for its stable
// identity, used to label a service in diagnostics and log output
// without leaking which keys are registered to it.
func QueryUUID(conn *wire.Conn) (string, error) {
	if err := conn.WriteFrame(wire.ClientMsg{RequestUUID: &struct{}{}}); err != nil {
		return "", fmt.Errorf("clientapi: send RequestUUID: %w", err)
	}
	var resp wire.ServerMsg
	if err := conn.ReadFrame(&resp); err != nil {
		return "", fmt.Errorf("clientapi: read UUID response: %w", err)
	}
	if resp.UUID == nil {
		return "", ErrUnexpectedMessage
	}
	return *resp.UUID, nil
}

// Package bridge establishes the byte channel between host and enclave:
// a TCP socket when the enclave runs "transparent" (development/testing,
// no real TEE), or a serial-like port device when the enclave is
// TEE-backed. Both ends feed the same internal/wire framing.
package bridge

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/anoma/kassandra-service/internal/wire"
)

// Mode selects the transport used to reach the enclave.
type Mode string

const (
	// ModeTCP dials a plain TCP listener, used by the transparent
	// enclave deployment.
	ModeTCP Mode = "tcp"
	// ModeSerial opens a serial-like character device, used when the
	// enclave is TEE-backed and communicates over a virtio/UART port.
	ModeSerial Mode = "serial"
)

// Config describes how to reach the enclave.
type Config struct {
	Mode Mode

	// Address is a host:port, required when Mode is ModeTCP.
	Address string
	// DialTimeout bounds the TCP dial. Defaults to 10s.
	DialTimeout time.Duration

	// DevicePath is the character device path, required when Mode is
	// ModeSerial (e.g. "/dev/ttyS1").
	DevicePath string
}

// Connect opens the enclave channel per cfg and wraps it in a framed
// Conn. The returned closer releases the underlying transport.
func Connect(ctx context.Context, cfg Config) (*wire.Conn, func() error, error) {
	switch cfg.Mode {
	case ModeTCP:
		return connectTCP(ctx, cfg)
	case ModeSerial:
		return connectSerial(cfg)
	default:
		return nil, nil, fmt.Errorf("bridge: unknown mode %q", cfg.Mode)
	}
}

func connectTCP(ctx context.Context, cfg Config) (*wire.Conn, func() error, error) {
	if cfg.Address == "" {
		return nil, nil, fmt.Errorf("bridge: tcp mode requires an address")
	}
	timeout := cfg.DialTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", cfg.Address)
	if err != nil {
		return nil, nil, fmt.Errorf("bridge: dial enclave at %s: %w", cfg.Address, err)
	}
	return wire.NewConn(conn), conn.Close, nil
}

func connectSerial(cfg Config) (*wire.Conn, func() error, error) {
	if cfg.DevicePath == "" {
		return nil, nil, fmt.Errorf("bridge: serial mode requires a device path")
	}
	f, err := os.OpenFile(cfg.DevicePath, os.O_RDWR, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("bridge: open serial device %s: %w", cfg.DevicePath, err)
	}
	return wire.NewConn(f), f.Close, nil
}

// Listen starts a TCP listener for the transparent enclave process to
// accept a single incoming host connection on.
func Listen(address string) (net.Listener, error) {
	l, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("bridge: listen on %s: %w", address, err)
	}
	return l, nil
}

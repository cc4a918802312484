// Command enclave runs the TEE-side fuzzy-message-detection loop: a
// single-threaded, message-driven process that registers detection-key
// shares via RA-TLS and answers FMD ticks, reachable over a serial-like
// channel to its host.
package main

import (
	"context"
	"crypto/rand"
	"flag"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/anoma/kassandra-service/internal/attestation"
	"github.com/anoma/kassandra-service/internal/bridge"
	"github.com/anoma/kassandra-service/internal/enclave"
	"github.com/anoma/kassandra-service/internal/fmd"
)

func main() {
	devicePath := flag.String("serial-device", "/dev/ttyS1", "Serial device path used to reach the host")
	enclaveID := flag.String("enclave-id", "kassandra-enclave", "Enclave identity presented in attestation quotes")
	flag.Parse()

	log := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Str("process", "enclave").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, closeConn, err := bridge.Connect(ctx, bridge.Config{Mode: bridge.ModeSerial, DevicePath: *devicePath})
	if err != nil {
		log.Fatal().Err(err).Msg("connect to host")
	}
	defer closeConn()

	rt := &enclave.Runtime{
		Conn:    conn,
		Quoter:  attestation.NewTDX(*enclaveID),
		Entropy: rand.Reader,
		Scheme:  fmd.Unimplemented{},
		Keys:    &enclave.KeyStore{},
		Log:     log,
	}

	log.Info().Str("device", *devicePath).Str("enclave_id", *enclaveID).Msg("enclave ready")
	if err := rt.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("enclave loop stopped")
	}
}

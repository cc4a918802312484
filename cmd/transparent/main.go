// Command transparent runs a development stand-in for the TEE-backed
// enclave: it listens on a plain TCP socket instead of a serial device,
// and reports attestation quotes from a deterministic Mock instead of
// real hardware measurements. It is not suitable for any deployment
// that needs the confidentiality guarantees the real enclave provides.
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
	"github.com/anoma/kassandra-service/internal/wire"
)

func main() {
	listenAddr := flag.String("listen-address", "127.0.0.1:12345", "TCP address to accept the host's single connection on")
	mrtd := flag.String("mrtd", "0000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000", "Measurement value reported in mock quotes")
	rtmr0 := flag.String("rtmr0", "0000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000", "Measurement value reported in mock quotes")
	rtmr1 := flag.String("rtmr1", "0000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000", "Measurement value reported in mock quotes")
	flag.Parse()

	log := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Str("process", "transparent").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	listener, err := bridge.Listen(*listenAddr)
	if err != nil {
		log.Fatal().Err(err).Msg("listen for host connection")
	}
	defer listener.Close()

	log.Info().Str("listen", *listenAddr).Msg("transparent enclave waiting for host")
	conn, err := listener.Accept()
	if err != nil {
		log.Fatal().Err(err).Msg("accept host connection")
	}
	defer conn.Close()

	policy := attestation.Policy{MRTD: *mrtd, RTMR0: *rtmr0, RTMR1: *rtmr1}
	rt := &enclave.Runtime{
		Conn:    wire.NewConn(conn),
		Quoter:  attestation.NewMock(policy),
		Entropy: rand.Reader,
		Scheme:  fmd.Static{},
		Keys:    &enclave.KeyStore{},
		Log:     log,
	}

	log.Info().Msg("transparent enclave ready")
	if err := rt.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("enclave loop stopped")
	}
}

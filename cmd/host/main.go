// Command host runs the Kassandra host process: it keeps a Postgres-backed
// record of MASP transactions in sync with an external indexer, drives
// periodic FMD ticks against a connected enclave, and serves client
// connections wanting to register a detection-key share or query their
// most recent results.
package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/anoma/kassandra-service/internal/bridge"
	"github.com/anoma/kassandra-service/internal/config"
	"github.com/anoma/kassandra-service/internal/fetch"
	"github.com/anoma/kassandra-service/internal/hostapi"
	"github.com/anoma/kassandra-service/internal/indexer"
	"github.com/anoma/kassandra-service/internal/metrics"
	"github.com/anoma/kassandra-service/internal/scheduler"
	"github.com/anoma/kassandra-service/internal/store"
)

func main() {
	dataDir := flag.String("data-dir", "", "Directory holding config.toml and fetcher.dat (default ~/.kassandra)")
	bridgeMode := flag.String("bridge-mode", "tcp", "Transport to the enclave: tcp or serial")
	serialDevice := flag.String("serial-device", "", "Serial device path, required when -bridge-mode=serial")
	migrationsDir := flag.String("migrations-dir", "internal/store/migrations", "Path to the Postgres migration files")
	flag.Parse()

	log := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Str("process", "host").Logger()

	dir := *dataDir
	if dir == "" {
		var err error
		dir, err = config.DataDir()
		if err != nil {
			log.Fatal().Err(err).Msg("resolve data directory")
		}
	}

	cfg, err := config.LoadOrInitHostConfig(dir)
	if err != nil {
		log.Fatal().Err(err).Msg("load host config")
	}

	if err := store.Migrate(cfg.DatabaseURL, *migrationsDir); err != nil {
		log.Fatal().Err(err).Msg("run database migrations")
	}
	db, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer db.Close()
	st := store.New(db)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hostID, err := st.HostUUID(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("resolve host identity")
	}
	log.Info().Str("host_uuid", hostID).Msg("host identity resolved")

	bridgeCfg := bridge.Config{Mode: bridge.Mode(*bridgeMode), Address: cfg.EnclaveURL, DevicePath: *serialDevice}
	enclaveConn, closeEnclave, err := bridge.Connect(ctx, bridgeCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("connect to enclave")
	}
	defer closeEnclave()

	idx, err := indexer.NewHTTPClient(indexer.Config{BaseURL: cfg.IndexerURL})
	if err != nil {
		log.Fatal().Err(err).Msg("construct indexer client")
	}

	fetcher, err := fetch.New(idx, st, fetch.Config{MaxWALSize: cfg.MaxWALSize, StateDir: dir}, log.With().Str("component", "fetch").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("construct fetcher")
	}

	handler := &hostapi.Handler{
		Enclave:     enclaveConn,
		Store:       st,
		HostUUID:    hostID,
		ReadTimeout: cfg.ListenTimeout,
		Log:         log.With().Str("component", "hostapi").Logger(),
	}

	listener, err := net.Listen("tcp", cfg.ListenURL)
	if err != nil {
		log.Fatal().Err(err).Str("address", cfg.ListenURL).Msg("listen for clients")
	}
	defer listener.Close()

	sched := scheduler.New(listener, scheduler.DefaultTimeout, log.With().Str("component", "scheduler").Logger())

	metricsSrv := &http.Server{Addr: cfg.MetricsURL, Handler: metrics.Router()}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server stopped")
		}
	}()

	// The event loop stops on a shutdown signal or as soon as the fetch
	// pipeline returns, whichever comes first.
	loopCtx, stopLoop := context.WithCancel(ctx)
	defer stopLoop()
	fetchErrs := make(chan error, 1)
	go func() {
		fetchErrs <- fetcher.Run(ctx)
		stopLoop()
	}()

	log.Info().Str("listen", cfg.ListenURL).Str("enclave", cfg.EnclaveURL).Msg("host ready")
	runEventLoop(loopCtx, sched, handler, fetcher, log)

	if err := <-fetchErrs; err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("fetch pipeline stopped unexpectedly")
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
}

// runEventLoop drives the host's scheduler until ctx is cancelled,
// handling one client connection or one FMD tick per iteration per
// the Interrupt > Accept > PerformFmd priority.
func runEventLoop(ctx context.Context, sched *scheduler.Scheduler, handler *hostapi.Handler, fetcher *fetch.Fetcher, log zerolog.Logger) {
	for {
		ev := sched.Next(ctx)
		switch ev.Kind {
		case scheduler.Interrupt:
			return
		case scheduler.Accept:
			handler.HandleClient(ctx, ev.Conn)
			ev.Conn.Close()
		case scheduler.PerformFmd:
			start := time.Now()
			if err := handler.PerformFmd(ctx, fetcher.SyncedTo); err != nil {
				log.Error().Err(err).Msg("fmd tick failed")
				metrics.RecordFmdTick("error", time.Since(start))
				continue
			}
			metrics.RecordFmdTick("ok", time.Since(start))
		}
	}
}

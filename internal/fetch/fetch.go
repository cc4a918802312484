// Package fetch keeps the host's persisted record of MASP transactions
// in sync with the external indexer: it polls the indexer's chain tip,
// downloads missing block ranges with bounded concurrency, and buffers
// results in a write-ahead log before flushing them to the store.
package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/anoma/kassandra-service/internal/indexer"
	"github.com/anoma/kassandra-service/internal/masp"
	"github.com/anoma/kassandra-service/internal/store"
)

// BatchSize is the number of blocks requested from the indexer per
// fetch task, matching the original's BATCH_SIZE.
const BatchSize = 30

// DefaultConcurrency bounds the number of fetch tasks in flight at
// once, matching the original's DEFAULT_BUF_SIZE.
const DefaultConcurrency = 32

// DefaultMaxWALSize is the number of buffered entries the Fetcher holds
// in memory before flushing to the store.
const DefaultMaxWALSize = 1000

// DefaultPollInterval is how long Run sleeps between sync passes once
// caught up to the indexer's tip.
const DefaultPollInterval = 10 * time.Second

// Config configures a Fetcher.
type Config struct {
	BatchSize    int
	Concurrency  int
	MaxWALSize   int
	PollInterval time.Duration
	StateDir     string
}

func (c Config) withDefaults() Config {
	if c.BatchSize == 0 {
		c.BatchSize = BatchSize
	}
	if c.Concurrency == 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.MaxWALSize == 0 {
		c.MaxWALSize = DefaultMaxWALSize
	}
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
	return c
}

// Fetcher keeps the persisted store in sync with an indexer.Indexer.
type Fetcher struct {
	indexer indexer.Indexer
	store   *store.Store
	cfg     Config
	log     zerolog.Logger

	ranges *masp.FetchedRanges
	wal    []store.TxRecord

	// SyncedTo broadcasts the highest height fully synced to the store,
	// consumed by the FMD tick orchestration to decide which heights
	// are safe to request flags for.
	SyncedTo *Watch[uint64]
}

// New creates a Fetcher, loading any persisted FetchedRanges from
// cfg.StateDir.
func New(idx indexer.Indexer, st *store.Store, cfg Config, log zerolog.Logger) (*Fetcher, error) {
	cfg = cfg.withDefaults()
	ranges, err := loadRanges(cfg.StateDir)
	if err != nil {
		return nil, err
	}
	syncedTo := uint64(0)
	if ranges.First() > 1 {
		syncedTo = ranges.First() - 1
	}
	return &Fetcher{
		indexer:  idx,
		store:    st,
		cfg:      cfg,
		log:      log,
		ranges:   ranges,
		SyncedTo: NewWatch(syncedTo),
	}, nil
}

// Run polls the indexer and fetches until ctx is cancelled, persisting
// the FetchedRanges before returning.
func (f *Fetcher) Run(ctx context.Context) error {
	defer func() {
		if err := f.save(); err != nil {
			f.log.Error().Err(err).Msg("failed to persist fetch ranges on exit")
		}
	}()

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if err := f.sync(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(f.cfg.PollInterval):
		}
	}
}

type fetchResult struct {
	from, to uint64
	entries  []indexer.TxEntry
	err      error
}

// sync fetches every block range up to the indexer's current tip that
// isn't already covered by f.ranges.
func (f *Fetcher) sync(ctx context.Context) error {
	latest, err := f.indexer.LastBlockHeight(ctx)
	if err != nil {
		return fmt.Errorf("fetch: sync: last block height: %w", err)
	}

	from := f.ranges.First()
	if from > latest {
		return nil
	}

	sem := make(chan struct{}, f.cfg.Concurrency)
	results := make(chan fetchResult)
	active := 0

	spawn := func(lo, hi uint64) {
		active++
		go func() {
			sem <- struct{}{}
			defer func() { <-sem }()
			entries, err := f.indexer.FetchShieldedTransfers(ctx, lo, hi)
			results <- fetchResult{from: lo, to: hi, entries: entries, err: err}
		}()
	}

	batch := uint64(f.cfg.BatchSize)
	for lo := from; lo <= latest; lo += batch {
		hi := lo + batch - 1
		if hi > latest {
			hi = latest
		}
		for _, rng := range f.ranges.BlocksLeftToFetch(lo, hi) {
			spawn(rng[0], rng[1])
		}
	}

	interrupted := false
	for active > 0 {
		if ctx.Err() != nil {
			interrupted = true
		}
		res := <-results
		active--

		if interrupted {
			continue
		}
		if res.err != nil {
			f.log.Error().Err(res.err).Uint64("from", res.from).Uint64("to", res.to).Msg("fetch task failed, retrying")
			spawn(res.from, res.to)
			continue
		}

		f.ranges.Insert(res.from, res.to)
		f.SyncedTo.Set(f.ranges.First() - 1)
		if err := saveRanges(f.cfg.StateDir, f.ranges); err != nil {
			f.log.Error().Err(err).Msg("failed to persist fetch ranges after insertion")
		}
		if err := f.append(ctx, res.entries); err != nil {
			return err
		}
	}

	if interrupted {
		return ctx.Err()
	}
	return nil
}

// append buffers fetched entries in the WAL, flushing to the store once
// it holds MaxWALSize entries or more.
func (f *Fetcher) append(ctx context.Context, entries []indexer.TxEntry) error {
	for _, e := range entries {
		f.wal = append(f.wal, store.TxRecord{Index: e.Index, Data: e.Data, Flag: e.Flag})
	}
	if len(f.wal) < f.cfg.MaxWALSize {
		return nil
	}
	return f.flush(ctx)
}

// flush writes the buffered WAL to the store and clears it.
func (f *Fetcher) flush(ctx context.Context) error {
	if len(f.wal) == 0 {
		return nil
	}
	if err := f.store.AppendTxs(ctx, f.wal); err != nil {
		return fmt.Errorf("fetch: flush wal: %w", err)
	}
	f.wal = f.wal[:0]
	return nil
}

// save persists the FetchedRanges and flushes any buffered WAL entries.
func (f *Fetcher) save() error {
	if err := f.flush(context.Background()); err != nil {
		return err
	}
	return saveRanges(f.cfg.StateDir, f.ranges)
}

// Package store is the host's persistent record of fetched MASP
// transactions, the latest encrypted index set delivered per owner, and
// the host's own stable identity. It backs the three logical tables
// spec.md names (Txs, Indices, UUID) with PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/anoma/kassandra-service/internal/masp"
)

// ErrNotFound is returned when a lookup finds no matching row, mirroring
// the teacher's sql.ErrNoRows propagation style.
var ErrNotFound = errors.New("store: not found")

// Open connects to the PostgreSQL database at databaseURL.
func Open(databaseURL string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	return db, nil
}

// Store implements the host's on-disk record backed by a PostgreSQL
// handle.
type Store struct {
	db *sqlx.DB
}

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// TxRecord is one fetched MASP transaction as persisted in the Txs
// table: the raw ciphertext plus an optional FMD flag ciphertext.
type TxRecord struct {
	Index masp.Index
	Data  []byte
	Flag  []byte
}

// AppendTxs inserts a batch of fetched transactions, the WAL-flush
// target of the host's fetch pipeline. Safe to call with duplicate
// (height, tx) pairs across retried batches; duplicates are ignored.
func (s *Store) AppendTxs(ctx context.Context, records []TxRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: append txs: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO txs (height, tx, data, flag)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (height, tx) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("store: append txs: prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, r.Index.Height, r.Index.Tx, r.Data, r.Flag); err != nil {
			return fmt.Errorf("store: append txs: insert (%d,%d): %w", r.Index.Height, r.Index.Tx, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: append txs: commit: %w", err)
	}
	return nil
}

// TxsSince returns every persisted transaction at height >= from,
// ordered by height then tx.
func (s *Store) TxsSince(ctx context.Context, from uint64) ([]TxRecord, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT height, tx, data, flag
		FROM txs
		WHERE height >= $1
		ORDER BY height, tx
	`, from)
	if err != nil {
		return nil, fmt.Errorf("store: txs since %d: %w", from, err)
	}
	defer rows.Close()

	var out []TxRecord
	for rows.Next() {
		var r TxRecord
		if err := rows.Scan(&r.Index.Height, &r.Index.Tx, &r.Data, &r.Flag); err != nil {
			return nil, fmt.Errorf("store: txs since %d: scan: %w", from, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// TxsAtHeights returns every persisted transaction at exactly the given
// heights, backing the FMD tick orchestration's per-cursor flag lookup.
func (s *Store) TxsAtHeights(ctx context.Context, heights []uint64) ([]TxRecord, error) {
	if len(heights) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryxContext(ctx, `
		SELECT height, tx, data, flag
		FROM txs
		WHERE height = ANY($1)
		ORDER BY height, tx
	`, pq.Array(heights))
	if err != nil {
		return nil, fmt.Errorf("store: txs at heights: %w", err)
	}
	defer rows.Close()

	var out []TxRecord
	for rows.Next() {
		var r TxRecord
		if err := rows.Scan(&r.Index.Height, &r.Index.Tx, &r.Data, &r.Flag); err != nil {
			return nil, fmt.Errorf("store: txs at heights: scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpsertIndices records the latest EncryptedResponse delivered for
// owner, replacing any previous entry. The Indices table only ever
// holds the most recent response per owner; a client resumes from it
// by height on reconnect.
func (s *Store) UpsertIndices(ctx context.Context, owner string, resp masp.EncryptedResponse) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO indices (owner, nonce, ciphertext, height)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (owner) DO UPDATE
		SET nonce = $2, ciphertext = $3, height = $4
	`, owner, resp.Nonce[:], resp.Indices, resp.Height)
	if err != nil {
		return fmt.Errorf("store: upsert indices for %s: %w", owner, err)
	}
	return nil
}

// LatestIndices returns the most recent EncryptedResponse delivered for
// owner, or ErrNotFound if none has ever been recorded.
func (s *Store) LatestIndices(ctx context.Context, owner string) (masp.EncryptedResponse, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT nonce, ciphertext, height
		FROM indices
		WHERE owner = $1
	`, owner)

	var (
		resp  masp.EncryptedResponse
		nonce []byte
	)
	resp.Owner = owner
	if err := row.Scan(&nonce, &resp.Indices, &resp.Height); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return masp.EncryptedResponse{}, ErrNotFound
		}
		return masp.EncryptedResponse{}, fmt.Errorf("store: latest indices for %s: %w", owner, err)
	}
	if len(nonce) != masp.NonceLen {
		return masp.EncryptedResponse{}, fmt.Errorf("store: latest indices for %s: stored nonce has length %d, want %d", owner, len(nonce), masp.NonceLen)
	}
	copy(resp.Nonce[:], nonce)
	return resp, nil
}

// HostUUID returns the host's stable identity, creating and persisting
// one on first call.
func (s *Store) HostUUID(ctx context.Context) (string, error) {
	row := s.db.QueryRowContext(ctx, `SELECT uuid FROM host_identity WHERE id = 1`)
	var id string
	switch err := row.Scan(&id); {
	case err == nil:
		return id, nil
	case errors.Is(err, sql.ErrNoRows):
		id = uuid.NewString()
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO host_identity (id, uuid) VALUES (1, $1)
			ON CONFLICT (id) DO NOTHING
		`, id)
		if err != nil {
			return "", fmt.Errorf("store: create host uuid: %w", err)
		}
		return s.HostUUID(ctx)
	default:
		return "", fmt.Errorf("store: host uuid: %w", err)
	}
}

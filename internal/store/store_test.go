package store

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/anoma/kassandra-service/internal/masp"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(sqlx.NewDb(db, "postgres")), mock
}

func TestAppendTxsInsertsEachRecordInATransaction(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO txs")
	mock.ExpectExec("INSERT INTO txs").
		WithArgs(uint64(1), uint32(0), []byte("a"), []byte(nil)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO txs").
		WithArgs(uint64(1), uint32(1), []byte("b"), []byte("flag")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.AppendTxs(context.Background(), []TxRecord{
		{Index: masp.Index{Height: 1, Tx: 0}, Data: []byte("a")},
		{Index: masp.Index{Height: 1, Tx: 1}, Data: []byte("b"), Flag: []byte("flag")},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendTxsEmptyBatchIsNoOp(t *testing.T) {
	s, mock := newMockStore(t)
	require.NoError(t, s.AppendTxs(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTxsSinceScansRows(t *testing.T) {
	s, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"height", "tx", "data", "flag"}).
		AddRow(uint64(5), uint32(0), []byte("a"), nil).
		AddRow(uint64(6), uint32(2), []byte("b"), []byte("f"))
	mock.ExpectQuery("SELECT height, tx, data, flag").
		WithArgs(uint64(5)).
		WillReturnRows(rows)

	got, err := s.TxsSince(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, masp.Index{Height: 6, Tx: 2}, got[1].Index)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTxsAtHeightsScansMatchingRowsOnly(t *testing.T) {
	s, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"height", "tx", "data", "flag"}).
		AddRow(uint64(3), uint32(0), []byte("a"), nil).
		AddRow(uint64(7), uint32(1), []byte("b"), []byte("f"))
	mock.ExpectQuery("SELECT height, tx, data, flag").
		WithArgs(pq.Array([]uint64{3, 7})).
		WillReturnRows(rows)

	got, err := s.TxsAtHeights(context.Background(), []uint64{3, 7})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, masp.Index{Height: 3, Tx: 0}, got[0].Index)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTxsAtHeightsEmptyInputIsNoOp(t *testing.T) {
	s, mock := newMockStore(t)
	got, err := s.TxsAtHeights(context.Background(), nil)
	require.NoError(t, err)
	require.Nil(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertAndLatestIndicesRoundTrip(t *testing.T) {
	s, mock := newMockStore(t)

	resp := masp.EncryptedResponse{Owner: "owner-1", Indices: []byte("ciphertext"), Height: 7}
	mock.ExpectExec("INSERT INTO indices").
		WithArgs("owner-1", resp.Nonce[:], resp.Indices, resp.Height).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.UpsertIndices(context.Background(), "owner-1", resp))

	rows := sqlmock.NewRows([]string{"nonce", "ciphertext", "height"}).
		AddRow(resp.Nonce[:], resp.Indices, resp.Height)
	mock.ExpectQuery("SELECT nonce, ciphertext, height").
		WithArgs("owner-1").
		WillReturnRows(rows)

	got, err := s.LatestIndices(context.Background(), "owner-1")
	require.NoError(t, err)
	require.Equal(t, resp.Indices, got.Indices)
	require.Equal(t, resp.Height, got.Height)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestIndicesReturnsErrNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT nonce, ciphertext, height").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"nonce", "ciphertext", "height"}))

	_, err := s.LatestIndices(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHostUUIDCreatesOnFirstCall(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT uuid FROM host_identity").
		WillReturnRows(sqlmock.NewRows([]string{"uuid"}))
	mock.ExpectExec("INSERT INTO host_identity").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT uuid FROM host_identity").
		WillReturnRows(sqlmock.NewRows([]string{"uuid"}).AddRow("11111111-1111-1111-1111-111111111111"))

	id, err := s.HostUUID(context.Background())
	require.NoError(t, err)
	require.Equal(t, "11111111-1111-1111-1111-111111111111", id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHostUUIDReturnsExisting(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT uuid FROM host_identity").
		WillReturnRows(sqlmock.NewRows([]string{"uuid"}).AddRow("22222222-2222-2222-2222-222222222222"))

	id, err := s.HostUUID(context.Background())
	require.NoError(t, err)
	require.Equal(t, "22222222-2222-2222-2222-222222222222", id)
	require.NoError(t, mock.ExpectationsWereMet())
}

package hostapi

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/anoma/kassandra-service/internal/fetch"
	"github.com/anoma/kassandra-service/internal/masp"
	"github.com/anoma/kassandra-service/internal/wire"
)

func TestDedupSortedRemovesDuplicatesAndSorts(t *testing.T) {
	require.Equal(t, []uint64{1, 2, 5}, dedupSorted([]uint64{5, 1, 2, 1, 5}))
	require.Nil(t, dedupSorted(nil))
}

func TestPerformFmdNoRequiredHeightsIsNoOp(t *testing.T) {
	h, _, enclaveFake := newTestHandler(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		var m wire.MsgFromHost
		require.NoError(t, enclaveFake.ReadFrame(&m))
		require.NotNil(t, m.RequiredBlocks)
		require.NoError(t, enclaveFake.WriteFrame(wire.MsgToHost{BlockRequests: nil}))
	}()

	require.NoError(t, h.PerformFmd(context.Background(), nil))
	<-done
}

func TestPerformFmdHappyPathPersistsResults(t *testing.T) {
	h, mock, enclaveFake := newTestHandler(t)

	mock.ExpectQuery("SELECT height, tx, data, flag").
		WillReturnRows(sqlmock.NewRows([]string{"height", "tx", "data", "flag"}).
			AddRow(uint64(3), uint32(0), []byte("a"), nil))
	mock.ExpectExec("INSERT INTO indices").
		WithArgs("owner-1", sqlmock.AnyArg(), sqlmock.AnyArg(), uint64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	done := make(chan struct{})
	go func() {
		defer close(done)
		var required wire.MsgFromHost
		require.NoError(t, enclaveFake.ReadFrame(&required))
		require.NotNil(t, required.RequiredBlocks)
		require.NoError(t, enclaveFake.WriteFrame(wire.MsgToHost{BlockRequests: []uint64{3}}))

		var flagsMsg wire.MsgFromHost
		require.NoError(t, enclaveFake.ReadFrame(&flagsMsg))
		require.NotNil(t, flagsMsg.RequestedFlags)
		require.Equal(t, uint64(7), flagsMsg.RequestedFlags.SyncedTo)
		require.Len(t, flagsMsg.RequestedFlags.Flags, 1)
		require.Equal(t, masp.Index{Height: 3, Tx: 0}, flagsMsg.RequestedFlags.Flags[0].Index)

		require.NoError(t, enclaveFake.WriteFrame(wire.MsgToHost{
			FmdResults: []masp.EncryptedResponse{{Owner: "owner-1", Indices: []byte("ct"), Height: 4}},
		}))
	}()

	synced := fetch.NewWatch(uint64(7))
	require.NoError(t, h.PerformFmd(context.Background(), synced))
	<-done
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPerformFmdReturnsErrorOnErrorForClient(t *testing.T) {
	h, mock, enclaveFake := newTestHandler(t)

	mock.ExpectQuery("SELECT height, tx, data, flag").
		WillReturnRows(sqlmock.NewRows([]string{"height", "tx", "data", "flag"}).
			AddRow(uint64(3), uint32(0), []byte("a"), nil))

	done := make(chan struct{})
	go func() {
		defer close(done)
		var required wire.MsgFromHost
		require.NoError(t, enclaveFake.ReadFrame(&required))
		require.NotNil(t, required.RequiredBlocks)
		require.NoError(t, enclaveFake.WriteFrame(wire.MsgToHost{BlockRequests: []uint64{3}}))

		var flagsMsg wire.MsgFromHost
		require.NoError(t, enclaveFake.ReadFrame(&flagsMsg))
		require.NotNil(t, flagsMsg.RequestedFlags)

		description := "missing flags at cursor"
		require.NoError(t, enclaveFake.WriteFrame(wire.MsgToHost{ErrorForClient: &description}))
	}()

	synced := fetch.NewWatch(uint64(7))
	err := h.PerformFmd(context.Background(), synced)
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing flags at cursor")
	<-done
	require.NoError(t, mock.ExpectationsWereMet())
}

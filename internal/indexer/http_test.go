package indexer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTTPClientLastBlockHeight(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/height", r.URL.Path)
		json.NewEncoder(w).Encode(heightResponse{Height: 42})
	}))
	defer srv.Close()

	c, err := NewHTTPClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	h, err := c.LastBlockHeight(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 42, h)
}

func TestHTTPClientFetchShieldedTransfers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/transfers", r.URL.Path)
		require.Equal(t, "1", r.URL.Query().Get("from"))
		require.Equal(t, "5", r.URL.Query().Get("to"))
		json.NewEncoder(w).Encode([]transferEntry{
			{Height: 1, Tx: 0, Data: []byte("a")},
			{Height: 3, Tx: 1, Data: []byte("b"), Flag: []byte("f")},
		})
	}))
	defer srv.Close()

	c, err := NewHTTPClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	entries, err := c.FetchShieldedTransfers(context.Background(), 1, 5)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.EqualValues(t, 1, entries[0].Index.Height)
	require.Nil(t, entries[0].Flag)
	require.Equal(t, []byte("f"), entries[1].Flag)
}

func TestHTTPClientRejectsNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := NewHTTPClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.LastBlockHeight(context.Background())
	require.Error(t, err)
}

func TestNewHTTPClientRequiresBaseURL(t *testing.T) {
	_, err := NewHTTPClient(Config{})
	require.Error(t, err)
}

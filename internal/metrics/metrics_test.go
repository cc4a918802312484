package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRouterServesHealthz(t *testing.T) {
	srv := httptest.NewServer(Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouterServesMetrics(t *testing.T) {
	RecordClientRequest("request_uuid", "ok", time.Millisecond)
	SetWALDepth(3)
	SetSyncedToHeight(42)

	srv := httptest.NewServer(Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRecordFmdTickDoesNotPanic(t *testing.T) {
	require.NotPanics(t, func() {
		RecordFmdTick("ok", 5*time.Millisecond)
		RecordFmdTick("error", time.Microsecond)
	})
}

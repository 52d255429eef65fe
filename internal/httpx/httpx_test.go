package httpx_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/marketfeed/internal/httpx"
	"github.com/sawpanic/marketfeed/internal/pair"
	"github.com/sawpanic/marketfeed/internal/ratelimit"
	"github.com/sawpanic/marketfeed/internal/xerrors"
)

func TestGetReturnsBodyOnSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := httpx.NewClient(srv.Client(), ratelimit.NewManager(100, 10))
	body, err := c.Get(context.Background(), pair.Binance, srv.URL)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
}

func TestGetRetriesOnceOnGatewayTimeout(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusGatewayTimeout)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := httpx.NewClient(srv.Client(), ratelimit.NewManager(100, 10))
	body, err := c.Get(context.Background(), pair.Okex, srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestGetFailsAfterSecondGatewayTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGatewayTimeout)
	}))
	defer srv.Close()

	c := httpx.NewClient(srv.Client(), ratelimit.NewManager(100, 10))
	_, err := c.Get(context.Background(), pair.Kucoin, srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, xerrors.ErrGatewayTimeout)
}

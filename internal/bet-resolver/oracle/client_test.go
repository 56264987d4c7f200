package oracle

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ticker/price", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"symbol":"BTCUSDT","price":"64123.45000000"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "BTCUSDT")
	price, err := c.Current(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "64123.45", price.StringFixed(2))
}

func TestCurrentHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, "BTCUSDT")
	_, err := c.Current(context.Background())

	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestCurrentBadPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"symbol":"BTCUSDT","price":"not-a-number"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "BTCUSDT")
	_, err := c.Current(context.Background())

	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestCurrentConnectionRefused(t *testing.T) {
	c := New("http://127.0.0.1:1", "BTCUSDT")
	_, err := c.Current(context.Background())

	assert.ErrorIs(t, err, ErrUnavailable)
}

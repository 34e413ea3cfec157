package geckoterminal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"holdersync/internal/provider"
)

func TestPriceOf(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/networks/polygon_pos/tokens/0x1111111111111111111111111111111111111111":
			_, _ = w.Write([]byte(`{"data":{"id":"x","attributes":{"symbol":"WMATIC","price_usd":"0.7125"}}}`))
		case "/networks/eth/tokens/0x2222222222222222222222222222222222222222":
			_, _ = w.Write([]byte(`{"data":{"id":"y","attributes":{"symbol":"NEW","price_usd":null}}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := New(srv.URL, provider.HTTPConfig{Timeout: 5 * time.Second, RetryBackoff: time.Millisecond}, nil)

	price, ok, err := client.PriceOf(context.Background(), "0x1111111111111111111111111111111111111111", "polygon")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, price.Equal(decimal.RequireFromString("0.7125")))

	_, ok, err = client.PriceOf(context.Background(), "0x2222222222222222222222222222222222222222", "ethereum")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = client.PriceOf(context.Background(), "0x3333333333333333333333333333333333333333", "ethereum")
	require.NoError(t, err)
	assert.False(t, ok)
}

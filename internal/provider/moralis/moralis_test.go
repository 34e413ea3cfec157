package moralis

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"holdersync/internal/provider"
)

const token = "0xA0b86991c6218b36c1d19d4a2e9eb0ce3606eB48"

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, "key", provider.HTTPConfig{Timeout: 5 * time.Second, RetryBackoff: time.Millisecond}, nil)
}

func TestListHoldersPaginates(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/erc20/0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48/owners", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.Header.Get("X-API-Key"))
		assert.Equal(t, "base", r.URL.Query().Get("chain"))
		assert.Equal(t, "DESC", r.URL.Query().Get("order"))
		if r.URL.Query().Get("cursor") == "" {
			_, _ = w.Write([]byte(`{"cursor":"next","result":[
				{"owner_address":"0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA","balance":"300"},
				{"owner_address":"0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb","balance":"200"}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"cursor":"","result":[
			{"owner_address":"0xcccccccccccccccccccccccccccccccccccccccc","balance":"100"}]}`))
	})

	client := newTestClient(t, mux)
	holders, err := client.ListHolders(context.Background(), token, "base", 10)
	require.NoError(t, err)
	require.Len(t, holders, 3)
	assert.Equal(t, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", holders[0].Address)
	assert.Equal(t, "100", holders[2].Balance)
}

func TestListHoldersUnsupportedChain(t *testing.T) {
	client := New("http://127.0.0.1:0", "key", provider.DefaultHTTPConfig, nil)
	_, err := client.ListHolders(context.Background(), token, "sonic", 10)
	assert.True(t, errors.Is(err, provider.ErrUnsupported))
}

func TestCountHolders(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/erc20/0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48/holders", r.URL.Path)
		_, _ = w.Write([]byte(`{"totalHolders":250,"holderSupply":{}}`))
	}))

	count, err := client.CountHolders(context.Background(), token, "ethereum")
	require.NoError(t, err)
	assert.Equal(t, int64(250), count)
}

func TestPriceOf(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/erc20/0x0000000000000000000000000000000000000001/price" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"usdPrice":1.0004,"tokenSymbol":"USDC"}`))
	}))

	price, ok, err := client.PriceOf(context.Background(), token, "ethereum")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, price.Equal(decimal.RequireFromString("1.0004")))

	_, ok, err = client.PriceOf(context.Background(), "0x0000000000000000000000000000000000000001", "ethereum")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWalletValue(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "eth", r.URL.Query().Get("chains[0]"))
		_, _ = w.Write([]byte(`{"total_networth_usd":"15234.75","chains":[]}`))
	}))

	value, err := client.WalletValue(context.Background(), "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", "ethereum")
	require.NoError(t, err)
	assert.True(t, value.Equal(decimal.RequireFromString("15234.75")))
}

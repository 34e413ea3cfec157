package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHTTPConfig() HTTPConfig {
	return HTTPConfig{Timeout: 5 * time.Second, MaxRetries: 2, RetryBackoff: time.Millisecond}
}

func TestGetJSONRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		_, _ = w.Write([]byte(`{"value":"42"}`))
	}))
	defer srv.Close()

	client := NewHTTPClient("test", testHTTPConfig(), nil)
	var out struct {
		Value string `json:"value"`
	}
	err := client.GetJSON(context.Background(), srv.URL, map[string]string{"X-API-Key": "secret"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "42", out.Value)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGetJSONRateLimitedIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewHTTPClient("test", testHTTPConfig(), nil)
	err := client.GetJSON(context.Background(), srv.URL, nil, &struct{}{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRateLimited))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, "rate_limited", StatusOf(err, false))
}

func TestGetJSONNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	client := NewHTTPClient("test", testHTTPConfig(), nil)
	err := client.GetJSON(context.Background(), srv.URL+"/missing?key=abc", nil, &struct{}{})
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestWithRetryStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := WithRetry(ctx, 10, 50*time.Millisecond, func(context.Context) error {
		attempts++
		cancel()
		return errors.New("boom")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestNormalizeChain(t *testing.T) {
	assert.Equal(t, ChainEthereum, NormalizeChain(""))
	assert.Equal(t, ChainEthereum, NormalizeChain("ETH"))
	assert.Equal(t, ChainBase, NormalizeChain("8453"))
	assert.Equal(t, ChainPolygon, NormalizeChain("matic"))
	assert.Equal(t, "sonic", NormalizeChain("Sonic"))
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, "success", StatusOf(nil, false))
	assert.Equal(t, "empty", StatusOf(nil, true))
	assert.Equal(t, "error", StatusOf(errors.New("x"), false))
}

package httputil

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/krxvalue/pkg/config"
	"github.com/wonny/krxvalue/pkg/logger"
)

func testConfig() *config.Config {
	return &config.Config{
		Env: "development",
		Gateway: config.GatewayConfig{
			RequestTimeout: 5 * time.Second,
			RatePerSecond:  1000,
			Burst:          100,
		},
	}
}

func TestNew(t *testing.T) {
	cfg := testConfig()
	cfg.Gateway.MaxRetries = 4
	client := New(cfg, logger.NewNop())
	require.NotNil(t, client)

	assert.NotNil(t, client.limiter)
	assert.Equal(t, 4, client.retries)
	assert.Equal(t, 5*time.Second, client.http.Timeout)

	assert.Equal(t, 0, client.DisableRetry().retries)
}

func TestNew_Defaults(t *testing.T) {
	client := New(&config.Config{}, logger.NewNop())
	assert.Nil(t, client.limiter)
	assert.Equal(t, 0, client.retries)
	assert.Equal(t, defaultTimeout, client.http.Timeout)
}

// fastClient retries with millisecond backoff
func fastClient(retries int) *Client {
	cfg := testConfig()
	cfg.Gateway.MaxRetries = retries
	c := New(cfg, logger.NewNop())
	c.backoff = 5 * time.Millisecond
	return c
}

func TestGetSetsBrowserHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		assert.Equal(t, "https://finance.naver.com/", r.Header.Get("Referer"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(testConfig(), logger.NewNop())
	resp, err := client.Get(context.Background(), server.URL, map[string]string{
		"Referer": "https://finance.naver.com/",
	})
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPostFormRetriesWithBody(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)

		body, _ := io.ReadAll(r.Body)
		values, _ := url.ParseQuery(string(body))
		assert.Equal(t, "STK", values.Get("mktId"), "body must be resent on retry")

		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := fastClient(3)
	resp, err := client.PostForm(context.Background(), server.URL, url.Values{"mktId": {"STK"}}, nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestNoRetryWhenDisabled(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := New(testConfig(), logger.NewNop()).DisableRetry()
	resp, err := client.Get(context.Background(), server.URL, nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestDo_GivesUpAfterRetries(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	resp, err := fastClient(2).Get(context.Background(), server.URL, nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestDo_CancelDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "5")
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := fastClient(3).Get(ctx, server.URL, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		code int
		want bool
	}{
		{200, false},
		{404, false},
		{429, true},
		{500, true},
		{503, true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, retryable(tt.code), "status %d", tt.code)
	}
}

func TestRetryAfter(t *testing.T) {
	assert.Equal(t, 3*time.Second, retryAfter("3"))
	assert.Equal(t, time.Duration(0), retryAfter(""))
	assert.Equal(t, time.Duration(0), retryAfter("-1"))
	assert.Equal(t, time.Duration(0), retryAfter("Wed, 21 Oct 2015 07:28:00 GMT"))
}

package resilience

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoRetriesServerErrors(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := DefaultHTTPConfig("test")
	cfg.BaseDelay = time.Millisecond
	cfg.MaxDelay = time.Millisecond
	executor := NewHTTPExecutor(cfg)

	resp, err := Do(context.Background(), executor, nil, server.Client(), func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	})
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 3, attempts.Load())
}

func TestDoDoesNotRetryClientErrors(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	executor := NewHTTPExecutor(HTTPConfig{Name: "test", MaxRetries: 3, BaseDelay: time.Millisecond})
	resp, err := Do(context.Background(), executor, nil, server.Client(), func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	})
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.EqualValues(t, 1, attempts.Load())
}

func TestRetryUnsentStopsOnceRequestWasHandled(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	cfg := HTTPConfig{Name: "test", MaxRetries: 3, BaseDelay: time.Millisecond, ShouldRetry: RetryUnsent, DisableBreaker: true}
	resp, err := Do(context.Background(), NewHTTPExecutor(cfg), RetryUnsent, server.Client(), func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodPost, server.URL, nil)
	})
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.EqualValues(t, 1, attempts.Load())
}

func TestRetryUnsent(t *testing.T) {
	dialErr := &url.Error{Op: "Post", URL: "http://ledger", Err: &net.OpError{Op: "dial", Err: errors.New("connection refused")}}
	assert.True(t, RetryUnsent(nil, dialErr))
	assert.False(t, RetryUnsent(nil, io.ErrUnexpectedEOF))
	assert.False(t, RetryUnsent(nil, &net.OpError{Op: "read", Err: errors.New("connection reset")}))
	assert.True(t, RetryUnsent(&http.Response{StatusCode: http.StatusServiceUnavailable}, nil))
	assert.True(t, RetryUnsent(&http.Response{StatusCode: http.StatusTooManyRequests}, nil))
	assert.False(t, RetryUnsent(&http.Response{StatusCode: http.StatusInternalServerError}, nil))
	assert.False(t, RetryUnsent(nil, nil))
}

func TestNormalizeBoundsConfig(t *testing.T) {
	cfg := normalize(HTTPConfig{MaxRetries: -1, BreakerFailures: 20, BreakerWindow: 4})
	assert.Zero(t, cfg.MaxRetries)
	assert.EqualValues(t, 2, cfg.BreakerFailures)
	assert.NotNil(t, cfg.ShouldRetry)
	assert.NotNil(t, cfg.Logger)
}

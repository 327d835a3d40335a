package fetcher

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/sells-group/ward-stats/internal/resilience"
)

func newTestFetcher() *HTTPFetcher {
	return NewHTTPFetcher(HTTPOptions{
		UserAgent: "test-agent",
		Timeout:   5 * time.Second,
	})
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Write([]byte("hello world"))
	}))
	defer srv.Close()

	f := newTestFetcher()
	body, err := f.Download(context.Background(), srv.URL+"/data")
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func TestGet_MergesQueryParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "DOWNLOAD", r.URL.Query().Get("accessType"))
		assert.Equal(t, "01", r.URL.Query().Get("ward"))
		assert.Equal(t, "07", r.URL.Query().Get("division"))
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := newTestFetcher()
	body, err := f.Get(context.Background(), srv.URL+"/rows.csv?accessType=DOWNLOAD", url.Values{
		"ward":     {"01"},
		"division": {"07"},
	})
	require.NoError(t, err)
	body.Close()
}

func TestGet_NoRetryOnServerError(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := newTestFetcher()
	_, err := f.Download(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, int32(1), attempts.Load())

	var he *resilience.HTTPError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, http.StatusServiceUnavailable, he.StatusCode)
	assert.True(t, resilience.IsRetryable(err))
}

func TestGet_ClientErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := newTestFetcher()
	_, err := f.Download(context.Background(), srv.URL)
	require.Error(t, err)
	assert.False(t, resilience.IsRetryable(err))
}

func TestGet_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	addr := srv.URL
	srv.Close()

	f := newTestFetcher()
	_, err := f.Download(context.Background(), addr)
	require.Error(t, err)
	assert.True(t, resilience.IsRetryable(err))
}

func TestGet_InvalidURL(t *testing.T) {
	f := newTestFetcher()
	_, err := f.Download(context.Background(), "://bad")
	assert.Error(t, err)
}

func TestGet_RateLimiterCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := newTestFetcher()
	require.NoError(t, f.SetRateLimit(srv.URL, 0.001))

	// The first request spends the only token.
	body, err := f.Download(context.Background(), srv.URL)
	require.NoError(t, err)
	body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = f.Download(ctx, srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limiter wait")
}

func TestSetRateLimit(t *testing.T) {
	f := newTestFetcher()
	require.NoError(t, f.SetRateLimit("http://api.example.test/v1/", 5))

	u, _ := url.Parse("http://api.example.test/other")
	lim := f.limiterFor(u)
	assert.Equal(t, rate.Limit(5), lim.Limit())
	assert.Equal(t, 5, lim.Burst())

	require.NoError(t, f.SetRateLimit("http://slow.example.test/", 0.5))
	u, _ = url.Parse("http://slow.example.test/")
	assert.Equal(t, 1, f.limiterFor(u).Burst())

	assert.Error(t, f.SetRateLimit("://bad", 1))
}

func TestNewHTTPFetcher_Defaults(t *testing.T) {
	f := NewHTTPFetcher(HTTPOptions{})
	assert.Equal(t, 30*time.Second, f.client.Timeout)
	assert.Equal(t, "ward-stats/1.0", f.opts.UserAgent)

	u, _ := url.Parse("http://unlimited.example.test/")
	assert.Equal(t, rate.Inf, f.limiterFor(u).Limit())
}

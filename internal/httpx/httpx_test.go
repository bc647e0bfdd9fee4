package httpx

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClientDo_SetsUserAgentAndHeaders(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "label-agent/1.0", r.Header.Get("User-Agent"))
		require.Equal(t, "application/json", r.Header.Get("Accept"))
		require.Equal(t, "keep", r.Header.Get("X-Custom"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(2 * time.Second)
	c.Headers = map[string]string{"Accept": "application/json", "X-Custom": "default"}

	req, err := http.NewRequest(http.MethodGet, srv.URL, http.NoBody)
	require.NoError(t, err)
	req.Header.Set("X-Custom", "keep")

	resp, err := c.Doer().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestCheckStatus(t *testing.T) {
	t.Parallel()

	ok := &http.Response{StatusCode: 200, Body: io.NopCloser(strings.NewReader(""))}
	require.NoError(t, CheckStatus(ok))

	bad := &http.Response{StatusCode: 503, Body: io.NopCloser(strings.NewReader(strings.Repeat("x", 1000)))}
	err := CheckStatus(bad)
	require.Error(t, err)
	require.True(t, IsStatus(err, 503))
	var se *StatusError
	require.ErrorAs(t, err, &se)
	require.Len(t, se.Body, 400)
}

func TestBackoff_RetriesOn429ThenSucceeds(t *testing.T) {
	t.Parallel()

	// Arrange: first call rate limited, second succeeds
	calls := 0
	doer := DoerFunc(func(req *http.Request) (*http.Response, error) {
		calls++
		if calls == 1 {
			return &http.Response{StatusCode: http.StatusTooManyRequests, Body: io.NopCloser(strings.NewReader(""))}, nil
		}
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader("ok"))}, nil
	})
	var slept []time.Duration
	b := Backoff{Attempts: 2, Base: time.Second, Sleep: func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}}

	// Act
	resp, err := b.Do(t.Context(), doer, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, "http://example.invalid", http.NoBody)
	})

	// Assert
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 2, calls)
	require.Equal(t, []time.Duration{time.Second}, slept)
}

func TestBackoff_GivesUpAfterAttempts(t *testing.T) {
	t.Parallel()

	calls := 0
	doer := DoerFunc(func(req *http.Request) (*http.Response, error) {
		calls++
		return &http.Response{StatusCode: http.StatusTooManyRequests, Body: io.NopCloser(strings.NewReader(""))}, nil
	})
	var slept []time.Duration
	b := Backoff{Attempts: 3, Base: time.Second, Sleep: func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}}

	resp, err := b.Do(t.Context(), doer, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, "http://example.invalid", http.NoBody)
	})

	require.Nil(t, resp)
	require.True(t, IsStatus(err, http.StatusTooManyRequests))
	require.Equal(t, 3, calls)
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second}, slept)
}

func TestBackoff_NonRetryableErrorReturnsImmediately(t *testing.T) {
	t.Parallel()

	calls := 0
	doer := DoerFunc(func(req *http.Request) (*http.Response, error) {
		calls++
		return nil, errors.New("connection refused")
	})

	_, err := Backoff{Attempts: 3}.Do(t.Context(), doer, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, "http://example.invalid", http.NoBody)
	})
	require.Error(t, err)
	require.Equal(t, 1, calls)
}

func TestBackoff_RetriesTimeouts(t *testing.T) {
	t.Parallel()

	calls := 0
	doer := DoerFunc(func(req *http.Request) (*http.Response, error) {
		calls++
		return nil, context.DeadlineExceeded
	})
	b := Backoff{Attempts: 2, Sleep: func(context.Context, time.Duration) error { return nil }}

	_, err := b.Do(t.Context(), doer, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, "http://example.invalid", http.NoBody)
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, 2, calls)
}

func TestSleepContext_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	require.ErrorIs(t, SleepContext(ctx, time.Hour), context.Canceled)
}

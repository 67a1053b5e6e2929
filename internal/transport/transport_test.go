package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nmnduy/claude-c-sub001/internal/interrupt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPost_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewClient(nil)
	result := c.Post(context.Background(), srv.URL, nil, []byte(`{}`))
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Equal(t, `{"ok":true}`, result.RawResponseText)
	assert.False(t, result.IsRetryable)
	assert.False(t, result.Interrupted)
}

func TestPost_RetryableStatuses(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusRequestTimeout, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
		{http.StatusForbidden, false},
	}
	for _, tc := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			w.Write([]byte(`{"error":"x"}`))
		}))
		c := NewClient(nil)
		result := c.Post(context.Background(), srv.URL, nil, []byte(`{}`))
		assert.Equal(t, tc.want, result.IsRetryable, "status %d", tc.status)
		srv.Close()
	}
}

func TestPost_EmptyResponseIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(nil)
	result := c.Post(context.Background(), srv.URL, nil, []byte(`{}`))
	assert.True(t, result.IsRetryable)
	assert.Equal(t, "empty response", result.ErrorMessage)
}

func TestPost_InterruptBeforeSendAborts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("should not get here in assertions"))
	}))
	defer srv.Close()

	bus := interrupt.New()
	bus.Request()
	c := NewClient(bus)
	result := c.Post(context.Background(), srv.URL, nil, []byte(`{}`))
	assert.True(t, result.Interrupted)
	assert.False(t, result.IsRetryable)
	assert.Equal(t, "interrupted by user", result.ErrorMessage)
}

func TestPost_InterruptMidTransferAborts(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	bus := interrupt.New()
	c := NewClient(bus)

	go func() {
		<-started
		time.Sleep(50 * time.Millisecond)
		bus.Request()
		close(release)
	}()

	result := c.Post(context.Background(), srv.URL, nil, []byte(`{}`))
	assert.True(t, result.Interrupted)
	assert.False(t, result.IsRetryable)
}

func TestPost_RequestJSONAlwaysPopulated(t *testing.T) {
	c := NewClient(nil)
	result := c.Post(context.Background(), "http://127.0.0.1:0/unreachable", nil, []byte(`{"a":1}`))
	require.Equal(t, []byte(`{"a":1}`), result.RequestJSON)
	assert.True(t, result.IsRetryable)
}

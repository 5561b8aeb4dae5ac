package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dgallion1/docbridge/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastClient(url string) *Client {
	c := NewClient(url, "key")
	c.backoff = func(int) time.Duration { return time.Millisecond }
	return c
}

func TestCall_RetriesBusy(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tools/read_paragraphs", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":{"kind":"Busy","message":"busy","retryable":true}}`))
			return
		}
		w.Write([]byte(`{"result":{"total":3}}`))
	}))
	defer srv.Close()

	res, err := fastClient(srv.URL).Call(context.Background(), "read_paragraphs", map[string]any{"locator": "heading:1"})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())

	var out map[string]int
	require.NoError(t, json.Unmarshal(res, &out))
	assert.Equal(t, 3, out["total"])
}

func TestCall_NonRetryableReturnsImmediately(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"kind":"OrphanedLocator","message":"bookmark gone","retryable":false}}`))
	}))
	defer srv.Close()

	_, err := fastClient(srv.URL).Call(context.Background(), "read_paragraphs", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrOrphanedLocator)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCall_GivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusGatewayTimeout)
		w.Write([]byte(`{"error":{"kind":"Timeout","message":"slow","retryable":true}}`))
	}))
	defer srv.Close()

	_, err := fastClient(srv.URL).WithRetries(2).Call(context.Background(), "get_paragraph_count", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrTimeout)
	assert.Equal(t, int32(3), calls.Load())
}

func TestCall_AuthFailureNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid api key"}`))
	}))
	defer srv.Close()

	_, err := fastClient(srv.URL).Call(context.Background(), "list_documents", nil)
	require.Error(t, err)
	assert.False(t, IsRetryable(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestUpload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/documents", r.URL.Path)
		file, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		assert.Equal(t, "notes.md", header.Filename)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"result":{"id":"d1"}}`))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "notes.md")
	require.NoError(t, os.WriteFile(path, []byte("# Notes\n"), 0o644))

	res, err := fastClient(srv.URL).Upload(context.Background(), path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"d1"}`, string(res))
}

func TestBackoff(t *testing.T) {
	for attempt := 0; attempt < 10; attempt++ {
		d := Backoff(attempt)
		if d <= 0 {
			t.Errorf("attempt %d: expected positive backoff, got %v", attempt, d)
		}
		if d > 7500*time.Millisecond {
			t.Errorf("attempt %d: expected at most 7.5s, got %v", attempt, d)
		}
	}
}

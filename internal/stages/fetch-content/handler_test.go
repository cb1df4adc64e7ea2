package fetchcontent

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "positioning-analyzer/internal/common/errors"
	"positioning-analyzer/internal/common/logger"
)

var longContent = strings.Repeat("Acme ships faster than anyone. ", 20)

func newTestHandler(cfg *Config, cache *redis.Client) (*Handler, *[]time.Duration) {
	h := NewHandler(cfg, cache, logger.NewNop())
	var sleeps []time.Duration
	h.sleep = func(d time.Duration) { sleeps = append(sleeps, d) }
	return h, &sleeps
}

func TestExecute_ReaderMode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/plain", r.Header.Get("Accept"))
		assert.Contains(t, r.URL.String(), "example.com")
		w.Write([]byte(longContent))
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.ReaderBaseURL = srv.URL
	h, _ := newTestHandler(cfg, nil)

	content, err := h.Execute(context.Background(), "https://example.com/pricing")
	require.NoError(t, err)
	assert.Equal(t, strings.TrimSpace(longContent), content)
}

func TestExecute_DirectModeConvertsHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<h1>Ship faster</h1><p>" + longContent + "</p>"))
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.ReaderBaseURL = ""
	h, _ := newTestHandler(cfg, nil)

	content, err := h.Execute(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Contains(t, content, "# Ship faster")
}

func TestExecute_RetriesWithDoublingBackoff(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(longContent))
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.ReaderBaseURL = srv.URL
	h, sleeps := newTestHandler(cfg, nil)

	_, err := h.Execute(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second}, *sleeps)
}

func TestExecute_ExhaustsAttempts(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.ReaderBaseURL = srv.URL
	h, sleeps := newTestHandler(cfg, nil)

	_, err := h.Execute(context.Background(), "https://example.com")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeFetchFailed, apperrors.CodeOf(err))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Len(t, *sleeps, 2)
}

func TestExecute_RejectsShortContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("too short"))
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.ReaderBaseURL = srv.URL
	h, _ := newTestHandler(cfg, nil)

	_, err := h.Execute(context.Background(), "https://example.com")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeFetchFailed, apperrors.CodeOf(err))

	var stdErr *apperrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Contains(t, stdErr.Details, "minimum")
}

func TestExecute_CacheHitSkipsNetwork(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(longContent))
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.ReaderBaseURL = srv.URL
	h, _ := newTestHandler(cfg, cache)

	first, err := h.Execute(context.Background(), "https://example.com")
	require.NoError(t, err)

	second, err := h.Execute(context.Background(), "https://example.com")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

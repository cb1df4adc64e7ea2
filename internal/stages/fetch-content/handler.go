// internal/stages/fetch-content/handler.go
package fetchcontent

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/redis/go-redis/v9"

	apperrors "positioning-analyzer/internal/common/errors"
	"positioning-analyzer/internal/common/logger"
	"positioning-analyzer/internal/common/metrics"
)

const StageName = "fetch-content"

// Handler fetches one URL as markdown. In reader mode the reader service
// does the conversion; in direct mode the page HTML is converted locally.
type Handler struct {
	config    *Config
	client    *http.Client
	cache     *redis.Client // nil disables caching
	converter *md.Converter
	logger    logger.Logger

	// sleep is swappable so tests can assert backoff without waiting.
	sleep func(time.Duration)
}

func NewHandler(config *Config, cache *redis.Client, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		// No client-level timeout: each attempt carries its own context.
		client:    &http.Client{},
		cache:     cache,
		converter: md.NewConverter("", true, nil),
		logger:    log.With(map[string]interface{}{"stage": StageName}),
		sleep:     time.Sleep,
	}
}

// Execute returns the page markdown or a terminal error for this URL. The
// error never aborts the session; the caller records it on the page row.
func (h *Handler) Execute(ctx context.Context, url string) (string, error) {
	start := time.Now()
	defer func() {
		metrics.PipelineStageDuration.WithLabelValues(StageName).Observe(time.Since(start).Seconds())
	}()

	if content, ok := h.cacheGet(ctx, url); ok {
		metrics.PagesScraped.WithLabelValues("cache_hit").Inc()
		return content, nil
	}

	attempts := h.config.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if ctx.Err() != nil {
				break
			}
			// 1s, 2s, 4s with the default base.
			h.sleep(h.config.BackoffBase << (attempt - 2))
		}

		content, err := h.fetchOnce(ctx, url)
		if err == nil {
			h.cacheSet(ctx, url, content)
			metrics.PagesScraped.WithLabelValues("success").Inc()
			return content, nil
		}
		lastErr = err

		h.logger.Warn("fetch attempt failed", map[string]interface{}{
			"url":     url,
			"attempt": attempt,
			"error":   err.Error(),
		})
	}

	metrics.PagesScraped.WithLabelValues("failed").Inc()
	metrics.PipelineStageFailures.WithLabelValues(StageName, string(apperrors.CodeOf(lastErr))).Inc()
	return "", apperrors.NewFetchFailedError(url, attempts, lastErr)
}

func (h *Handler) fetchOnce(ctx context.Context, url string) (string, error) {
	attemptCtx := ctx
	if h.config.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, h.config.Timeout)
		defer cancel()
	}

	var (
		content string
		err     error
	)
	if h.config.ReaderBaseURL != "" {
		content, err = h.fetchViaReader(attemptCtx, url)
	} else {
		content, err = h.fetchDirect(attemptCtx, url)
	}
	if err != nil {
		if attemptCtx.Err() == context.DeadlineExceeded {
			return "", apperrors.NewFetchTimeoutError(url)
		}
		return "", err
	}

	trimmed := strings.TrimSpace(content)
	if len(trimmed) < h.config.MinContentLength {
		return "", apperrors.NewContentTooShortError(url, len(trimmed), h.config.MinContentLength)
	}
	return trimmed, nil
}

// fetchViaReader asks the reader service for a markdown rendition of url.
func (h *Handler) fetchViaReader(ctx context.Context, url string) (string, error) {
	readerURL := strings.TrimSuffix(h.config.ReaderBaseURL, "/") + "/" + url
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, readerURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/plain")

	body, err := h.doRead(req)
	if err != nil {
		return "", err
	}
	return body, nil
}

// fetchDirect gets the raw page and converts its HTML to markdown.
func (h *Handler) fetchDirect(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	body, err := h.doRead(req)
	if err != nil {
		return "", err
	}

	markdown, err := h.converter.ConvertString(body)
	if err != nil {
		return "", fmt.Errorf("convert html: %w", err)
	}
	return markdown, nil
}

func (h *Handler) doRead(req *http.Request) (string, error) {
	resp, err := h.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func cacheKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return "page:" + hex.EncodeToString(sum[:])
}

func (h *Handler) cacheGet(ctx context.Context, url string) (string, bool) {
	if h.cache == nil {
		return "", false
	}
	content, err := h.cache.Get(ctx, cacheKey(url)).Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		// Cache trouble never fails a fetch.
		h.logger.Warn("cache read failed", map[string]interface{}{"url": url, "error": err.Error()})
		return "", false
	}
	return content, true
}

func (h *Handler) cacheSet(ctx context.Context, url, content string) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Set(ctx, cacheKey(url), content, h.config.CacheTTL).Err(); err != nil {
		h.logger.Warn("cache write failed", map[string]interface{}{"url": url, "error": err.Error()})
	}
}

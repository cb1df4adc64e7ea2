// internal/stages/fetch-content/config.go
package fetchcontent

import (
	"time"

	"positioning-analyzer/internal/common/config"
)

type Config struct {
	// ReaderBaseURL points at a markdown reader service. Empty means fetch
	// the page directly and convert the HTML locally.
	ReaderBaseURL    string
	Timeout          time.Duration // per attempt
	MaxRetries       int           // total attempts
	BackoffBase      time.Duration
	MinContentLength int
	CacheTTL         time.Duration
}

// NewConfig maps the application scraper settings onto the stage config.
func NewConfig(s config.ScraperConfig, cacheTTLSeconds int) *Config {
	return &Config{
		ReaderBaseURL:    s.ReaderBaseURL,
		Timeout:          time.Duration(s.Timeout) * time.Millisecond,
		MaxRetries:       s.MaxRetries,
		BackoffBase:      time.Duration(s.BackoffBase) * time.Millisecond,
		MinContentLength: s.MinContentLength,
		CacheTTL:         time.Duration(cacheTTLSeconds) * time.Second,
	}
}

func DefaultConfig() *Config {
	return &Config{
		Timeout:          45 * time.Second,
		MaxRetries:       3,
		BackoffBase:      1 * time.Second,
		MinContentLength: 100,
		CacheTTL:         time.Hour,
	}
}

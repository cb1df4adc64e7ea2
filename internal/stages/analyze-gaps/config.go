// internal/stages/analyze-gaps/config.go
package analyzegaps

import (
	"time"

	"positioning-analyzer/internal/common/config"
)

// MaxMarkdownChars bounds per-page raw content in the gap analysis prompt.
const MaxMarkdownChars = 1500

type Config struct {
	Timeout time.Duration
}

func NewConfig(sc config.StageConfig) *Config {
	cfg := &Config{Timeout: time.Duration(sc.Timeout) * time.Millisecond}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Minute
	}
	return cfg
}

func DefaultConfig() *Config {
	return &Config{Timeout: 3 * time.Minute}
}

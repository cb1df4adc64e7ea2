// internal/stages/build-evidence/config.go
package buildevidence

import (
	"time"

	"positioning-analyzer/internal/common/config"
)

// MaxMarkdownChars bounds how much raw page content goes into the prompt.
const MaxMarkdownChars = 3000

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

// internal/stages/annotate-page/config.go
package annotatepage

import (
	"time"

	"positioning-analyzer/internal/common/config"
)

type Config struct {
	Timeout time.Duration
}

func NewConfig(sc config.StageConfig) *Config {
	cfg := &Config{Timeout: time.Duration(sc.Timeout) * time.Millisecond}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return cfg
}

func DefaultConfig() *Config {
	return &Config{Timeout: 2 * time.Minute}
}

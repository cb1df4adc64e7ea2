// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig              `mapstructure:"app"`
	Server   ServerConfig           `mapstructure:"server"`
	Database DatabaseConfig         `mapstructure:"database"`
	APIs     APIsConfig             `mapstructure:"apis"`
	Pipeline PipelineConfig         `mapstructure:"pipeline"`
	Stages   map[string]StageConfig `mapstructure:"stages"`
	Logging  LoggingConfig          `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address         string `mapstructure:"address"`
	ReadTimeout     int    `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int    `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string.
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// CacheTTL bounds how long fetched page content is reused, in seconds.
	CacheTTL int `mapstructure:"cache_ttl"`
}

// --- External API Config ---

type APIsConfig struct {
	GenAI   GenAIConfig   `mapstructure:"genai"`
	Scraper ScraperConfig `mapstructure:"scraper"`
}

type GenAIConfig struct {
	BaseURL     string  `mapstructure:"base_url"`
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
	Timeout     int     `mapstructure:"timeout"` // milliseconds
	MaxRetries  int     `mapstructure:"max_retries"`
}

// ScraperConfig drives the fetch-content stage. ReaderBaseURL points at a
// markdown reader service (e.g. https://r.jina.ai); when empty, pages are
// fetched directly and converted from HTML locally.
type ScraperConfig struct {
	ReaderBaseURL    string `mapstructure:"reader_base_url"`
	Timeout          int    `mapstructure:"timeout"` // milliseconds, per attempt
	MaxRetries       int    `mapstructure:"max_retries"`
	BackoffBase      int    `mapstructure:"backoff_base"` // milliseconds
	MinContentLength int    `mapstructure:"min_content_length"`
}

// --- Pipeline Config ---

type PipelineConfig struct {
	// MaxURLsPerSession bounds how many pages one session may analyze.
	MaxURLsPerSession int `mapstructure:"max_urls_per_session"`
	// SweepInterval is how often the reconciler looks for stale runs, in
	// milliseconds. StaleAfter is the processing age past which a session is
	// considered orphaned and force-failed.
	SweepInterval int `mapstructure:"sweep_interval"`
	StaleAfter    int `mapstructure:"stale_after"`
}

// StageConfig holds the core settings applicable to every pipeline stage.
type StageConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Timeout int  `mapstructure:"timeout"` // milliseconds
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

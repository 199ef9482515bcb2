// Package config loads process configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/shanjing/adk-lab/logging"
)

// Model providers understood by Config.ModelProvider.
const (
	ProviderMock      = "mock"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config is the environment-derived configuration of the CLI and facade.
type Config struct {
	AppName string `env:"AGENT_APP_NAME" envDefault:"noname_app"`
	UserID  string `env:"USER_ID" envDefault:"default_user"`

	DataDir       string `env:"ADK_DATA_DIR" envDefault:"."`
	LedgerPath    string `env:"ADK_LEDGER_PATH"`
	SessionDBPath string `env:"ADK_SESSION_DB_PATH"`

	ModelProvider   string `env:"ADK_MODEL_PROVIDER" envDefault:"mock"`
	Model           string `env:"CLOUD_AI_MODEL"`
	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`
	MaxModelCalls   int    `env:"ADK_MAX_MODEL_CALLS" envDefault:"10"`

	LogLevel  string `env:"ADK_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"ADK_LOG_FORMAT" envDefault:"text"`
	Debug     bool   `env:"ADK_DEBUG" envDefault:"false"`

	Timeout time.Duration `env:"ADK_RUN_TIMEOUT" envDefault:"2m"`
}

// Load parses the environment, fills derived defaults and validates.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	c.ModelProvider = strings.ToLower(strings.TrimSpace(c.ModelProvider))
	if c.LedgerPath == "" {
		c.LedgerPath = filepath.Join(c.DataDir, "adk_agent_memory.db")
	}
	if c.SessionDBPath == "" {
		c.SessionDBPath = filepath.Join(c.DataDir, "travel_agent_sessions.db")
	}
	if c.Model == "" {
		switch c.ModelProvider {
		case ProviderOpenAI:
			c.Model = "gpt-4o-mini"
		case ProviderAnthropic:
			c.Model = "claude-3-5-haiku-latest"
		default:
			c.Model = "mock"
		}
	}
}

// Validate reports configuration that cannot work.
func (c Config) Validate() error {
	var errs []error
	switch c.ModelProvider {
	case ProviderMock:
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required for provider openai"))
		}
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			errs = append(errs, errors.New("ANTHROPIC_API_KEY is required for provider anthropic"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown model provider %q", c.ModelProvider))
	}
	if c.MaxModelCalls < 1 {
		errs = append(errs, fmt.Errorf("ADK_MAX_MODEL_CALLS must be positive, got %d", c.MaxModelCalls))
	}
	if f := strings.ToLower(c.LogFormat); f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Logger builds the application logger writing to out. Debug mode forces
// debug level so state snapshots are visible.
func (c Config) Logger(out io.Writer) *logging.AppLogger {
	level := logging.ParseLevel(c.LogLevel)
	if c.Debug {
		level = logging.LogLevelDebug
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:     level,
		Format:    strings.ToLower(c.LogFormat),
		Output:    out,
		Component: c.AppName,
	})
}

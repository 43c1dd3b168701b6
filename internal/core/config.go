// Package core provides the dispatch engine and configuration management for featurebot.
//
// The core package connects one messaging transport with a fixed table of command
// handlers. It handles:
//
//   - Configuration loading and validation (YAML file plus environment)
//   - Command registration and the closed set of inline-button actions
//   - Dispatching events to handlers with timeout and failure recovery
//   - Per-conversation ordering and reply delivery with retry
//
// # Main Components
//
//   - Registry: Command name to handler table, sealed at startup
//   - Dispatcher: Resolves an Event to exactly one handler invocation
//   - Engine: Owns the transport and the per-conversation workers
//   - Config: Configuration structure and loading
//
// # Configuration
//
// Configuration is loaded from an optional YAML file, then overlaid with the
// environment. Tokens are normally supplied through the environment only:
//
//	transport: telegram
//	command_prefix: "/"
//	telegram:
//	  token: "${TELEGRAM_BOT_TOKEN}"
//	  poll_timeout: 60s
//	dispatch:
//	  timeout: 10s
//	retry:
//	  max_attempts: 3
//	  initial_delay: 500ms
//	  max_delay: 5s
//	logging:
//	  level: info
package core

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/keepmind9/featurebot/internal/calc"
	"github.com/keepmind9/featurebot/internal/logger"
	"github.com/keepmind9/featurebot/pkg/constants"
	"gopkg.in/yaml.v3"
)

const (
	TransportTelegram = "telegram"
	TransportDiscord  = "discord"

	DefaultCommandPrefix = "/"
	DefaultLogLevel      = "info"

	TelegramTokenEnv = "TELEGRAM_BOT_TOKEN"
	DiscordTokenEnv  = "DISCORD_BOT_TOKEN"
)

// ErrMissingToken is returned when the selected transport has no token
var ErrMissingToken = errors.New("bot token is not configured")

// Config represents the complete featurebot configuration
type Config struct {
	Transport     string         `yaml:"transport" env:"FEATUREBOT_TRANSPORT"`
	CommandPrefix string         `yaml:"command_prefix"`
	Telegram      TelegramConfig `yaml:"telegram"`
	Discord       DiscordConfig  `yaml:"discord"`
	Dispatch      DispatchConfig `yaml:"dispatch"`
	Calc          CalcConfig     `yaml:"calc"`
	Retry         RetryConfig    `yaml:"retry"`
	Logging       LoggingConfig  `yaml:"logging"`
}

// TelegramConfig represents Telegram transport configuration
type TelegramConfig struct {
	Token       string `yaml:"token" env:"TELEGRAM_BOT_TOKEN"`
	PollTimeout string `yaml:"poll_timeout"` // Long polling timeout, e.g. "60s"
	Debug       bool   `yaml:"debug"`        // Enables tgbotapi request logging
}

// DiscordConfig represents Discord transport configuration
type DiscordConfig struct {
	Token string `yaml:"token" env:"DISCORD_BOT_TOKEN"`
}

// DispatchConfig represents handler execution limits
type DispatchConfig struct {
	Timeout     string `yaml:"timeout"`      // Per-dispatch wall-clock budget
	IdleTimeout string `yaml:"idle_timeout"` // Conversation worker idle lifetime
	SendTimeout string `yaml:"send_timeout"` // Bound for one send attempt
}

// CalcConfig represents evaluator limits
type CalcConfig struct {
	MaxMagnitude float64 `yaml:"max_magnitude"`
	MaxLength    int     `yaml:"max_length"`
	MaxDepth     int     `yaml:"max_depth"`
}

// RetryConfig represents reply delivery retry settings
type RetryConfig struct {
	MaxAttempts  int    `yaml:"max_attempts"`
	InitialDelay string `yaml:"initial_delay"`
	MaxDelay     string `yaml:"max_delay"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level" env:"FEATUREBOT_LOG_LEVEL"`
	Format       string `yaml:"format"` // text or json, empty picks by level
	File         string `yaml:"file" env:"FEATUREBOT_LOG_FILE"`
	MaxSize      int    `yaml:"max_size"`    // MB
	MaxBackups   int    `yaml:"max_backups"` // Number of old files to keep
	MaxAge       int    `yaml:"max_age"`     // Days
	Compress     *bool  `yaml:"compress"`
	EnableStdout *bool  `yaml:"enable_stdout"`
}

// LoadConfig loads configuration from an optional file, overlays the environment
// and validates the result. An empty path reads the environment only.
func LoadConfig(configPath string) (*Config, error) {
	var config Config

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		expandedData, err := expandEnv(string(data))
		if err != nil {
			return nil, fmt.Errorf("failed to expand environment variables: %w", err)
		}

		if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := env.Parse(&config); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// expandEnv replaces ${VAR_NAME} patterns with environment variable values
func expandEnv(input string) (string, error) {
	var missingVars []string

	result := os.Expand(input, func(key string) string {
		if val := os.Getenv(key); val != "" {
			return val
		}
		missingVars = append(missingVars, key)
		return ""
	})

	if len(missingVars) > 0 {
		return "", fmt.Errorf("missing required environment variables: %s",
			strings.Join(missingVars, ", "))
	}

	return result, nil
}

// validateConfig fills defaults and checks the configuration
func validateConfig(config *Config) error {
	if config.Transport == "" {
		config.Transport = TransportTelegram
	}
	config.Transport = strings.ToLower(strings.TrimSpace(config.Transport))

	switch config.Transport {
	case TransportTelegram:
		if config.Telegram.Token == "" {
			return fmt.Errorf("%w: set %s", ErrMissingToken, TelegramTokenEnv)
		}
	case TransportDiscord:
		if config.Discord.Token == "" {
			return fmt.Errorf("%w: set %s", ErrMissingToken, DiscordTokenEnv)
		}
	default:
		return fmt.Errorf("unknown transport %q (expected %s or %s)",
			config.Transport, TransportTelegram, TransportDiscord)
	}

	if config.CommandPrefix == "" {
		config.CommandPrefix = DefaultCommandPrefix
	}
	if strings.ContainsAny(config.CommandPrefix, " \t\n") {
		return fmt.Errorf("command_prefix %q must not contain whitespace", config.CommandPrefix)
	}

	if err := defaultDuration(&config.Telegram.PollTimeout, constants.DefaultPollTimeout, "telegram.poll_timeout"); err != nil {
		return err
	}
	if err := defaultDuration(&config.Dispatch.Timeout, constants.DefaultDispatchTimeout, "dispatch.timeout"); err != nil {
		return err
	}
	if err := defaultDuration(&config.Dispatch.IdleTimeout, constants.DefaultConversationIdle, "dispatch.idle_timeout"); err != nil {
		return err
	}
	if err := defaultDuration(&config.Dispatch.SendTimeout, constants.DefaultSendTimeout, "dispatch.send_timeout"); err != nil {
		return err
	}
	if err := defaultDuration(&config.Retry.InitialDelay, constants.DefaultRetryDelay, "retry.initial_delay"); err != nil {
		return err
	}
	if err := defaultDuration(&config.Retry.MaxDelay, constants.DefaultMaxRetryDelay, "retry.max_delay"); err != nil {
		return err
	}
	if config.RetryPolicy().MaxDelay < config.RetryPolicy().InitialDelay {
		return fmt.Errorf("retry.max_delay (%s) must not be less than retry.initial_delay (%s)",
			config.Retry.MaxDelay, config.Retry.InitialDelay)
	}

	if config.Retry.MaxAttempts == 0 {
		config.Retry.MaxAttempts = constants.DefaultSendAttempts
	}
	if config.Retry.MaxAttempts < 1 || config.Retry.MaxAttempts > constants.MaxSendAttempts {
		return fmt.Errorf("retry.max_attempts must be between 1 and %d, got %d",
			constants.MaxSendAttempts, config.Retry.MaxAttempts)
	}

	if config.Calc.MaxMagnitude == 0 {
		config.Calc.MaxMagnitude = calc.DefaultMaxMagnitude
	}
	if config.Calc.MaxLength == 0 {
		config.Calc.MaxLength = calc.DefaultMaxLength
	}
	if config.Calc.MaxDepth == 0 {
		config.Calc.MaxDepth = calc.DefaultMaxDepth
	}
	if config.Calc.MaxMagnitude < 0 || config.Calc.MaxLength < 0 || config.Calc.MaxDepth < 0 {
		return fmt.Errorf("calc limits must be positive")
	}

	if config.Logging.Level == "" {
		config.Logging.Level = DefaultLogLevel
	}
	switch config.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", config.Logging.Format)
	}
	if config.Logging.MaxSize == 0 {
		config.Logging.MaxSize = constants.DefaultLogMaxSize
	}
	if config.Logging.MaxBackups == 0 {
		config.Logging.MaxBackups = constants.DefaultLogMaxBackups
	}
	if config.Logging.MaxAge == 0 {
		config.Logging.MaxAge = constants.DefaultLogMaxAge
	}

	return nil
}

// defaultDuration sets *value to def when empty and checks it parses to a
// positive duration.
func defaultDuration(value *string, def time.Duration, field string) error {
	if *value == "" {
		*value = def.String()
	}
	d, err := time.ParseDuration(*value)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", field, *value, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive, got %s", field, *value)
	}
	return nil
}

func parseDuration(value string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// Token returns the token of the selected transport
func (c *Config) Token() string {
	if c.Transport == TransportDiscord {
		return c.Discord.Token
	}
	return c.Telegram.Token
}

// PollTimeout returns the parsed Telegram long polling timeout
func (c *Config) PollTimeout() time.Duration {
	return parseDuration(c.Telegram.PollTimeout, constants.DefaultPollTimeout)
}

// DispatchTimeout returns the parsed per-dispatch budget
func (c *Config) DispatchTimeout() time.Duration {
	return parseDuration(c.Dispatch.Timeout, constants.DefaultDispatchTimeout)
}

// EngineOptions returns the engine settings derived from the configuration
func (c *Config) EngineOptions() EngineOptions {
	return EngineOptions{
		Retry:       c.RetryPolicy(),
		IdleTimeout: parseDuration(c.Dispatch.IdleTimeout, constants.DefaultConversationIdle),
		SendTimeout: parseDuration(c.Dispatch.SendTimeout, constants.DefaultSendTimeout),
	}
}

// RetryPolicy returns the parsed retry settings
func (c *Config) RetryPolicy() RetryPolicy {
	attempts := c.Retry.MaxAttempts
	if attempts <= 0 {
		attempts = constants.DefaultSendAttempts
	}
	return RetryPolicy{
		MaxAttempts:  attempts,
		InitialDelay: parseDuration(c.Retry.InitialDelay, constants.DefaultRetryDelay),
		MaxDelay:     parseDuration(c.Retry.MaxDelay, constants.DefaultMaxRetryDelay),
	}
}

// Evaluator returns a calculator bounded by the configured limits
func (c *Config) Evaluator() *calc.Evaluator {
	return &calc.Evaluator{
		MaxMagnitude: c.Calc.MaxMagnitude,
		MaxLength:    c.Calc.MaxLength,
		MaxDepth:     c.Calc.MaxDepth,
	}
}

// LoggerConfig converts the logging section for logger.InitLogger
func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{
		Level:        c.Logging.Level,
		Format:       c.Logging.Format,
		File:         c.Logging.File,
		MaxSize:      c.Logging.MaxSize,
		MaxBackups:   c.Logging.MaxBackups,
		MaxAge:       c.Logging.MaxAge,
		Compress:     boolOr(c.Logging.Compress, true),
		EnableStdout: boolOr(c.Logging.EnableStdout, true),
	}
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

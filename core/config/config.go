package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds Telegram bot related settings.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	AdminID int64  `yaml:"admin_id" envconfig:"ADMIN_ID"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
	// HTTPRetries is the number of transport-level retries for Bot API calls.
	// Zero keeps every call attempt-once.
	HTTPRetries int `yaml:"http_retries" envconfig:"TELEGRAM_HTTP_RETRIES"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format      string `yaml:"format" envconfig:"LOG_FORMAT"`
	KeysOrder   string `yaml:"keys_order" envconfig:"LOG_KEYS_ORDER"`
	DebugSample string `yaml:"debug_sample" envconfig:"LOG_DEBUG_SAMPLE"`
	Dir         string `yaml:"dir" envconfig:"LOG_DIR"`
	BotFile     string `yaml:"bot_file" envconfig:"LOG_FILE"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

// HTTPConfig configures the liveness listener.
type HTTPConfig struct {
	Port int `yaml:"port" envconfig:"PORT"`
	// Enabled forces the listener on outside production hosting.
	Enabled bool `yaml:"enabled" envconfig:"HTTP_ENABLED"`
}

// KeepAliveConfig configures the outbound self-ping prober.
type KeepAliveConfig struct {
	URL      string        `yaml:"url" envconfig:"APP_URL"`
	Interval time.Duration `yaml:"interval" envconfig:"KEEPALIVE_INTERVAL"`
	Delay    time.Duration `yaml:"delay" envconfig:"KEEPALIVE_DELAY"`
}

// HostingConfig captures variables exported by hosting platforms.
// Production mode is inferred from them.
type HostingConfig struct {
	Render              string `yaml:"-" envconfig:"RENDER"`
	RenderExternalURL   string `yaml:"-" envconfig:"RENDER_EXTERNAL_URL"`
	RailwayEnvironment  string `yaml:"-" envconfig:"RAILWAY_ENVIRONMENT"`
	RailwayPublicDomain string `yaml:"-" envconfig:"RAILWAY_PUBLIC_DOMAIN"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

const (
	// UpdateCallback identifies callback updates for rate limit exclusions.
	UpdateCallback = "callback"
	// UpdateMessage identifies message updates for rate limit exclusions.
	UpdateMessage = "message"
	// UpdateInlineQuery identifies inline query updates for rate limit exclusions.
	UpdateInlineQuery = "inline_query"
)

const (
	// DefaultHTTPPort is used when PORT is not provided.
	DefaultHTTPPort = 8000
	// DefaultKeepAliveInterval separates two keep-alive probes.
	DefaultKeepAliveInterval = 10 * time.Minute
	// DefaultKeepAliveDelay postpones the first keep-alive probe after start.
	DefaultKeepAliveDelay = 5 * time.Minute
)

// RateLimitConfig holds settings for rate limiting.
// ExcludeUpdates accepts update types to bypass limiting:
// - "callback": Telegram callback button presses
// - "message": standard text messages
// - "inline_query": inline query updates
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// Config aggregates the configuration that belongs to the reusable core.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	HTTP      HTTPConfig      `yaml:"http"`
	KeepAlive KeepAliveConfig `yaml:"keepalive"`
	Hosting   HostingConfig   `yaml:"-"`
}

// Production reports whether the process runs on a known hosting platform.
func (c *Config) Production() bool {
	if c == nil {
		return false
	}
	return strings.TrimSpace(c.Hosting.Render) != "" || strings.TrimSpace(c.Hosting.RailwayEnvironment) != ""
}

// HTTPListenerEnabled reports whether the liveness listener should run.
func (c *Config) HTTPListenerEnabled() bool {
	if c == nil {
		return false
	}
	return c.HTTP.Enabled || c.Production()
}

// KeepAliveURL resolves the self-ping target. Platform provided URLs win over
// the explicit APP_URL; an empty string disables the prober.
func (c *Config) KeepAliveURL() string {
	if c == nil {
		return ""
	}
	for _, raw := range []string{c.Hosting.RenderExternalURL, c.Hosting.RailwayPublicDomain, c.KeepAlive.URL} {
		u := strings.TrimSpace(raw)
		if u == "" {
			continue
		}
		if !strings.Contains(u, "://") {
			u = "https://" + u
		}
		return strings.TrimRight(u, "/")
	}
	return ""
}

// LoadDotEnv loads variables from the given dotenv files into the process
// environment. Missing files are ignored; variables already set win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// Decode fills target from an optional YAML file and the environment.
// An empty path skips the YAML step.
func Decode(path string, target any) error {
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, target); err != nil {
			return fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}
	if err := envconfig.Process("", target); err != nil {
		return fmt.Errorf("failed to process env: %w", err)
	}
	return nil
}

// Load reads core configuration from an optional YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize performs basic validation of required configuration fields and adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
	}
	if cfg.Telegram.AdminID <= 0 {
		return fmt.Errorf("telegram admin id is required")
	}
	if cfg.Telegram.HTTPRetries < 0 {
		return fmt.Errorf("telegram.http_retries must be >= 0")
	}

	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = DefaultHTTPPort
	}
	if cfg.HTTP.Port < 0 || cfg.HTTP.Port > 65535 {
		return fmt.Errorf("http.port %d is out of range", cfg.HTTP.Port)
	}
	if cfg.KeepAlive.Interval <= 0 {
		cfg.KeepAlive.Interval = DefaultKeepAliveInterval
	}
	if cfg.KeepAlive.Delay < 0 {
		return fmt.Errorf("keepalive.delay must be >= 0")
	}
	if cfg.KeepAlive.Delay == 0 {
		cfg.KeepAlive.Delay = DefaultKeepAliveDelay
	}

	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if rm == "" {
		rm = RunModeLongpoll
	}
	if rm == "polling" { // accept alias
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			return fmt.Errorf("webhook.url is required when telegram.run_mode is 'webhook'")
		}
		if strings.TrimSpace(cfg.Webhook.Listen) == "" {
			return fmt.Errorf("webhook.listen is required when telegram.run_mode is 'webhook'")
		}
		if cfg.Webhook.Port <= 0 {
			return fmt.Errorf("webhook.port must be > 0 when telegram.run_mode is 'webhook'")
		}
		if cfg.HTTPListenerEnabled() && cfg.Webhook.Port == cfg.HTTP.Port {
			return fmt.Errorf("webhook.port %d collides with the liveness listener port", cfg.Webhook.Port)
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = rm

	allowed := map[string]struct{}{
		UpdateCallback:    {},
		UpdateMessage:     {},
		UpdateInlineQuery: {},
	}
	for i, v := range cfg.RateLimit.ExcludeUpdates {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if _, ok := allowed[key]; !ok {
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: callback, message, inline_query", v)
		}
		cfg.RateLimit.ExcludeUpdates[i] = key
	}
	return nil
}

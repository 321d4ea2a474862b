// Package config loads the pushdeploy configuration once at process start.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/oar-cd/pushdeploy/domain"
)

const (
	DefaultProjectsRoot    = "/var/www"
	DefaultBranch          = "main"
	DefaultTelegramAPIURL  = "https://api.telegram.org"
	DefaultOutputTailLines = 20
)

// EnvProvider abstracts environment variable access for testing
type EnvProvider interface {
	Getenv(key string) string
}

// DefaultEnvProvider reads the process environment, falling back to
// values loaded from .env files. Real environment variables always win.
type DefaultEnvProvider struct {
	dotenv map[string]string
}

// NewDefaultEnvProvider loads the given .env files. Missing files are
// skipped; unreadable or malformed ones are an error.
func NewDefaultEnvProvider(envFiles ...string) (*DefaultEnvProvider, error) {
	p := &DefaultEnvProvider{dotenv: map[string]string{}}
	for _, file := range envFiles {
		if file == "" {
			continue
		}
		if _, err := os.Stat(file); errors.Is(err, os.ErrNotExist) {
			continue
		}
		values, err := godotenv.Read(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read env file %s: %w", file, err)
		}
		for k, v := range values {
			if _, exists := p.dotenv[k]; !exists {
				p.dotenv[k] = v
			}
		}
	}
	return p, nil
}

func (p *DefaultEnvProvider) Getenv(key string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return p.dotenv[key]
}

// Config holds configuration for all components. It is built once and
// must not be mutated after NewConfig returns.
type Config struct {
	// Webhook
	WebhookSecret string
	TargetBranch  string

	// Projects
	ProjectsRoot    string
	ScriptName      string
	OutputTailLines int

	// HTTP server
	HTTPHost        string
	HTTPPort        int
	ShutdownTimeout time.Duration

	// Telegram
	TelegramToken  string
	TelegramChatID string
	TelegramAPIURL string
	NotifyTimeout  time.Duration
	NotifyOnStart  bool

	// Logging
	LogLevel  string
	LogFormat string
	LogFile   string

	env EnvProvider
}

// fileConfig mirrors the YAML layout of the configuration file
type fileConfig struct {
	Webhook struct {
		Secret string `yaml:"secret"`
		Branch string `yaml:"branch"`
	} `yaml:"webhook"`
	Projects struct {
		Root            string `yaml:"root"`
		Script          string `yaml:"script"`
		OutputTailLines int    `yaml:"output_tail_lines"`
	} `yaml:"projects"`
	HTTP struct {
		Host            string        `yaml:"host"`
		Port            int           `yaml:"port"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"http"`
	Telegram struct {
		Token         string        `yaml:"token"`
		ChatID        string        `yaml:"chat_id"`
		APIURL        string        `yaml:"api_url"`
		Timeout       time.Duration `yaml:"timeout"`
		NotifyOnStart *bool         `yaml:"notify_on_start"`
	} `yaml:"telegram"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		File   string `yaml:"file"`
	} `yaml:"log"`
}

// NewConfig creates the configuration from defaults, an optional YAML
// file, .env in the working directory and the process environment.
func NewConfig(configPath string) (*Config, error) {
	env, err := NewDefaultEnvProvider(".env")
	if err != nil {
		return nil, err
	}
	return NewConfigWithEnv(configPath, env)
}

// NewConfigWithEnv creates a configuration with a custom environment provider
func NewConfigWithEnv(configPath string, env EnvProvider) (*Config, error) {
	c := &Config{env: env}

	c.setDefaults()

	if configPath != "" {
		if err := c.loadFromFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := c.loadFromEnv(); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}

	if err := c.normalize(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return c, nil
}

func (c *Config) setDefaults() {
	c.TargetBranch = DefaultBranch
	c.ProjectsRoot = DefaultProjectsRoot
	c.ScriptName = domain.DefaultScriptName
	c.OutputTailLines = DefaultOutputTailLines
	c.HTTPHost = "0.0.0.0"
	c.HTTPPort = 8000
	c.ShutdownTimeout = 30 * time.Second
	c.TelegramAPIURL = DefaultTelegramAPIURL
	c.NotifyTimeout = 5 * time.Second
	c.NotifyOnStart = true
	c.LogLevel = "info"
	c.LogFormat = "text"
	// No default webhook secret - it must be provided explicitly
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	setString(&c.WebhookSecret, fc.Webhook.Secret)
	setString(&c.TargetBranch, fc.Webhook.Branch)
	setString(&c.ProjectsRoot, fc.Projects.Root)
	setString(&c.ScriptName, fc.Projects.Script)
	setString(&c.HTTPHost, fc.HTTP.Host)
	setString(&c.TelegramToken, fc.Telegram.Token)
	setString(&c.TelegramChatID, fc.Telegram.ChatID)
	setString(&c.TelegramAPIURL, fc.Telegram.APIURL)
	setString(&c.LogLevel, fc.Log.Level)
	setString(&c.LogFormat, fc.Log.Format)
	setString(&c.LogFile, fc.Log.File)

	if fc.Projects.OutputTailLines != 0 {
		c.OutputTailLines = fc.Projects.OutputTailLines
	}
	if fc.HTTP.Port != 0 {
		c.HTTPPort = fc.HTTP.Port
	}
	if fc.HTTP.ShutdownTimeout != 0 {
		c.ShutdownTimeout = fc.HTTP.ShutdownTimeout
	}
	if fc.Telegram.Timeout != 0 {
		c.NotifyTimeout = fc.Telegram.Timeout
	}
	if fc.Telegram.NotifyOnStart != nil {
		c.NotifyOnStart = *fc.Telegram.NotifyOnStart
	}

	return nil
}

// loadFromEnv overrides values with environment variables. Unlike the
// file, a malformed number or duration here is reported.
func (c *Config) loadFromEnv() error {
	setString(&c.WebhookSecret, c.env.Getenv("WEBHOOK_SECRET"))
	setString(&c.TargetBranch, c.env.Getenv("TARGET_BRANCH"))
	setString(&c.ProjectsRoot, c.env.Getenv("PROJECTS_ROOT"))
	setString(&c.ScriptName, c.env.Getenv("DEPLOY_SCRIPT"))
	setString(&c.HTTPHost, c.env.Getenv("HTTP_HOST"))
	setString(&c.TelegramToken, c.env.Getenv("TG_BOT_TOKEN"))
	setString(&c.TelegramChatID, c.env.Getenv("TG_CHAT_ID"))
	setString(&c.TelegramAPIURL, c.env.Getenv("TG_API_URL"))
	setString(&c.LogLevel, c.env.Getenv("LOG_LEVEL"))
	setString(&c.LogFormat, c.env.Getenv("LOG_FORMAT"))
	setString(&c.LogFile, c.env.Getenv("LOG_FILE"))

	if v := c.env.Getenv("HTTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HTTP_PORT: %w", err)
		}
		c.HTTPPort = port
	}
	if v := c.env.Getenv("OUTPUT_TAIL_LINES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("OUTPUT_TAIL_LINES: %w", err)
		}
		c.OutputTailLines = n
	}
	if v := c.env.Getenv("SHUTDOWN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SHUTDOWN_TIMEOUT: %w", err)
		}
		c.ShutdownTimeout = d
	}
	if v := c.env.Getenv("NOTIFY_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("NOTIFY_TIMEOUT: %w", err)
		}
		c.NotifyTimeout = d
	}
	if v := c.env.Getenv("NOTIFY_ON_START"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("NOTIFY_ON_START: %w", err)
		}
		c.NotifyOnStart = enabled
	}

	return nil
}

// normalize puts values into their canonical form
func (c *Config) normalize() error {
	// Accept "refs/heads/main" as well as "main"
	c.TargetBranch = domain.NormalizeBranch(c.TargetBranch)

	root, err := filepath.Abs(c.ProjectsRoot)
	if err != nil {
		return fmt.Errorf("failed to resolve projects root %s: %w", c.ProjectsRoot, err)
	}
	c.ProjectsRoot = root

	return nil
}

func (c *Config) validate() error {
	if c.WebhookSecret == "" {
		return fmt.Errorf("webhook secret is required - set WEBHOOK_SECRET or webhook.secret in the config file")
	}

	if c.TargetBranch == "" {
		return fmt.Errorf("target branch must be a branch name or a refs/heads/ ref")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warning": true, "error": true, "silent": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warning, error, or silent)", c.LogLevel)
	}

	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.LogFormat)
	}

	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d (must be 1-65535)", c.HTTPPort)
	}

	// IsLocal rejects empty, absolute and ".."-escaping paths
	if !filepath.IsLocal(c.ScriptName) {
		return fmt.Errorf("deploy script must be a path inside the project directory, got: %q", c.ScriptName)
	}

	if c.OutputTailLines < 1 {
		return fmt.Errorf("output tail lines must be positive, got: %d", c.OutputTailLines)
	}

	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive, got: %v", c.ShutdownTimeout)
	}

	if c.NotifyTimeout <= 0 {
		return fmt.Errorf("notify timeout must be positive, got: %v", c.NotifyTimeout)
	}

	return nil
}

// NotificationsEnabled reports whether both Telegram credentials are set.
// Missing credentials disable notifications rather than failing startup.
func (c *Config) NotificationsEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChatID != ""
}

// Address returns the listen address of the HTTP server
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.HTTPHost, c.HTTPPort)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

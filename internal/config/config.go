package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Slack    SlackConfig    `koanf:"slack"`
	Groq     GroqConfig     `koanf:"groq"`
	Delivery DeliveryConfig `koanf:"delivery"`
	Models   []ModelOption  `koanf:"models"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
}

type SlackConfig struct {
	SigningSecret string        `koanf:"signing_secret"`
	BotToken      string        `koanf:"bot_token"`
	APIURL        string        `koanf:"api_url"` // Optional: alternate Slack API endpoint, must end with "/"
	Timeout       time.Duration `koanf:"timeout"`
}

type GroqConfig struct {
	APIKey    string        `koanf:"api_key"`
	BaseURL   string        `koanf:"base_url"` // Optional: alternate OpenAI-compatible endpoint
	Timeout   time.Duration `koanf:"timeout"`
	MaxTokens int64         `koanf:"max_tokens"`
}

type DeliveryConfig struct {
	Mode string `koanf:"mode"` // ephemeral or channel
}

// ModelOption is one entry in the model-select menu offered to users.
type ModelOption struct {
	Label string `koanf:"label"`
	ID    string `koanf:"id"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

func Load() (*Config, error) {
	return LoadFile("config.yaml")
}

func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	// Try to load from the config file first
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		// File not found is OK, we'll use env vars
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	// Load environment variables (can override file config)
	if err := k.Load(env.Provider("", ".", envKey), nil); err != nil {
		return nil, err
	}

	// Default values
	if !k.Exists("server.port") {
		k.Set("server.port", 8080)
	}
	if !k.Exists("slack.timeout") {
		k.Set("slack.timeout", "10s")
	}
	if !k.Exists("groq.timeout") {
		k.Set("groq.timeout", "90s")
	}
	if !k.Exists("groq.max_tokens") {
		k.Set("groq.max_tokens", 256)
	}
	if !k.Exists("delivery.mode") {
		k.Set("delivery.mode", "ephemeral")
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	// Substitute ${VAR} references so config.yaml can be committed without
	// inlining secrets
	cfg.Slack.SigningSecret = substituteEnvVars(cfg.Slack.SigningSecret)
	cfg.Slack.BotToken = substituteEnvVars(cfg.Slack.BotToken)
	cfg.Groq.APIKey = substituteEnvVars(cfg.Groq.APIKey)

	if len(cfg.Models) == 0 {
		cfg.Models = DefaultModels()
	}

	return &cfg, nil
}

// envKey maps the well-known environment variable names onto config keys.
// These names predate the config file and stay as-is; anything unrecognized
// is skipped.
func envKey(s string) string {
	switch s {
	case "PORT":
		return "server.port"
	case "SLACK_SIGNING_SECRET":
		return "slack.signing_secret"
	case "SLACK_BOT_TOKEN":
		return "slack.bot_token"
	case "SLACK_API_URL":
		return "slack.api_url"
	case "SLACK_TIMEOUT":
		return "slack.timeout"
	case "GROQ_API_KEY":
		return "groq.api_key"
	case "GROQ_BASE_URL":
		return "groq.base_url"
	case "GROQ_TIMEOUT":
		return "groq.timeout"
	case "GROQ_MAX_TOKENS":
		return "groq.max_tokens"
	case "DELIVERY_MODE":
		return "delivery.mode"
	}
	return ""
}

// DefaultModels is the menu offered when none is configured.
func DefaultModels() []ModelOption {
	return []ModelOption{
		{Label: "LLaMA 4 Scout", ID: "meta-llama/llama-4-scout-17b-16e-instruct"},
		{Label: "LLaMA 3 70B", ID: "meta-llama/llama-3-70b-instruct"},
	}
}

// Validate reports whether the process can start with this configuration.
// The Slack and Groq credentials have no workable defaults.
func (c *Config) Validate() error {
	var missing []string
	if c.Groq.APIKey == "" {
		missing = append(missing, "GROQ_API_KEY")
	}
	if c.Slack.SigningSecret == "" {
		missing = append(missing, "SLACK_SIGNING_SECRET")
	}
	if c.Slack.BotToken == "" {
		missing = append(missing, "SLACK_BOT_TOKEN")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if len(c.Models) < 2 {
		return fmt.Errorf("need at least two models in the menu, got %d", len(c.Models))
	}
	for i, m := range c.Models {
		if m.Label == "" || m.ID == "" {
			return fmt.Errorf("model entry %d needs both label and id", i)
		}
	}

	return nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

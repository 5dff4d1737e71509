// Package config loads scholar settings from defaults, an optional YAML
// file and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable scholar reads.
const EnvPrefix = "SCHOLAR"

// Web search backends.
const (
	WebDuckDuckGo = "duckduckgo"
	WebBrave      = "brave"
	WebTavily     = "tavily"
)

// Config is the full application configuration.
type Config struct {
	Server    ServerConfig `mapstructure:"server"`
	Log       LogConfig    `mapstructure:"log"`
	LLM       LLMConfig    `mapstructure:"llm"`
	Search    SearchConfig `mapstructure:"search"`
	Agent     AgentConfig  `mapstructure:"agent"`
	TeamsFile string       `mapstructure:"teams_file"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Format      string `mapstructure:"format"`
	Development bool   `mapstructure:"development"`
}

// LLMConfig selects the chat model backend. APIKey is a server-side
// fallback used when a session does not carry its own credential.
type LLMConfig struct {
	Provider    string        `mapstructure:"provider"`
	Model       string        `mapstructure:"model"`
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// SearchConfig configures the search capabilities.
type SearchConfig struct {
	Web          string        `mapstructure:"web"`
	BraveAPIKey  string        `mapstructure:"brave_api_key"`
	TavilyAPIKey string        `mapstructure:"tavily_api_key"`
	TavilyDepth  string        `mapstructure:"tavily_depth"`
	Timeout      time.Duration `mapstructure:"timeout"`
	Cost         float64       `mapstructure:"cost"`

	// AllowPrivateFetch lets agents read pages on loopback and private networks.
	AllowPrivateFetch bool `mapstructure:"allow_private_fetch"`
}

// AgentConfig holds agent loop limits.
type AgentConfig struct {
	MaxIterations int `mapstructure:"max_iterations"`
}

// LoadDotEnv loads .env from the working directory if it exists.
func LoadDotEnv() {
	_ = godotenv.Load()
}

// Load reads configuration. When path is empty, config.yaml is looked up in
// the working directory and ./config, and a missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindEnv(v); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "5m")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.development", false)

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.max_tokens", 0)
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.timeout", "2m")

	v.SetDefault("search.web", WebDuckDuckGo)
	v.SetDefault("search.brave_api_key", "")
	v.SetDefault("search.tavily_api_key", "")
	v.SetDefault("search.tavily_depth", "basic")
	v.SetDefault("search.timeout", "20s")
	v.SetDefault("search.cost", 0.0)
	v.SetDefault("search.allow_private_fetch", false)

	v.SetDefault("agent.max_iterations", 5)
	v.SetDefault("teams_file", "")
}

// bindEnv adds the conventional vendor variable names next to the
// SCHOLAR_* ones.
func bindEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"llm.api_key":           {"SCHOLAR_LLM_API_KEY", "OPENAI_API_KEY"},
		"search.brave_api_key":  {"SCHOLAR_SEARCH_BRAVE_API_KEY", "BRAVE_API_KEY"},
		"search.tavily_api_key": {"SCHOLAR_SEARCH_TAVILY_API_KEY", "TAVILY_API_KEY"},
	}
	for key, envs := range bindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	return nil
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Address) == "" {
		return errors.New("server.address is required")
	}
	switch strings.ToLower(c.Search.Web) {
	case WebDuckDuckGo, WebBrave, WebTavily:
	default:
		return fmt.Errorf("search.web: unsupported backend %q", c.Search.Web)
	}
	if c.Agent.MaxIterations <= 0 {
		return errors.New("agent.max_iterations must be positive")
	}
	if c.LLM.Timeout <= 0 {
		return errors.New("llm.timeout must be positive")
	}
	return nil
}

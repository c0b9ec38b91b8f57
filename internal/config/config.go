// Package config loads agentd's runtime configuration (§6): the model
// provider/parameters recognized per request, read from a TOML file with
// environment-variable overrides, hot-reloading when the file changes on
// disk.
package config

import (
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Config is the TOML-shaped configuration file (§6 "Configuration").
type Config struct {
	Server ServerConfig `toml:"server"`
	AI     AIConfig     `toml:"ai"`
}

// ServerConfig controls the HTTP transport (§6 "HTTP surface").
type ServerConfig struct {
	ListenAddr string `toml:"listen_addr"`
}

// AIConfig mirrors the fields spec.md §6 recognizes in a request's
// ai_config, used as defaults when a request omits them.
type AIConfig struct {
	Provider         string  `toml:"provider"`
	Model            string  `toml:"model"`
	Temperature      float64 `toml:"temperature"`
	MaxTokens        int     `toml:"max_tokens"`
	TopP             float64 `toml:"top_p"`
	FrequencyPenalty float64 `toml:"frequency_penalty"`
	PresencePenalty  float64 `toml:"presence_penalty"`
	MaxIterations    int     `toml:"max_iterations"`
	MaxContextTokens int     `toml:"max_context_tokens"`

	AnthropicAPIKey string `toml:"anthropic_api_key"`
	OpenAIAPIKey    string `toml:"openai_api_key"`
}

// Default returns a Config with every field set to a usable default
// (§4.G: "max_iterations default 999... 0 means unbounded" is a
// config-layer default, not the engine's own).
func Default() Config {
	return Config{
		Server: ServerConfig{ListenAddr: ":8080"},
		AI: AIConfig{
			Provider:         "anthropic",
			Model:            "claude-sonnet-4-5-20250929",
			Temperature:      0.7,
			MaxTokens:        8192,
			TopP:             1.0,
			MaxIterations:    999,
			MaxContextTokens: 150000,
		},
	}
}

// Load reads config: defaults -> TOML file -> env vars (env wins), the
// same precedence nevindra-oasis's internal/config.Load applies. A
// missing file is not an error; the defaults (and any env overrides)
// still apply.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = "agentd.toml"
	}

	if data, err := os.ReadFile(path); err == nil {
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AGENTD_LISTEN_ADDR"); v != "" {
		cfg.Server.ListenAddr = v
	}
	if v := os.Getenv("AGENTD_PROVIDER"); v != "" {
		cfg.AI.Provider = v
	}
	if v := os.Getenv("AGENTD_MODEL"); v != "" {
		cfg.AI.Model = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.AI.AnthropicAPIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.AI.OpenAIAPIKey = v
	}
	if v := os.Getenv("AGENTD_MAX_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.AI.MaxIterations = n
		}
	}
	if v := os.Getenv("AGENTD_MAX_CONTEXT_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.AI.MaxContextTokens = n
		}
	}
}

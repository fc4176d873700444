// Package config holds the service configuration for the resurrection
// engine: provider credentials, sandbox settings, and server options.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

// Config is the root configuration document.
type Config struct {
	Server  Server  `yaml:"server" json:"server"`
	LLM     LLM     `yaml:"llm" json:"llm"`
	GitHub  GitHub  `yaml:"github" json:"github"`
	Sandbox Sandbox `yaml:"sandbox" json:"sandbox"`
	Memory  Memory  `yaml:"memory" json:"memory"`
	Engine  Engine  `yaml:"engine" json:"engine"`
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// Server configures the HTTP listener.
type Server struct {
	Addr string `yaml:"addr" json:"addr"`
}

// LLM selects and configures the text generation provider.
type LLM struct {
	// Provider is "gemini" or "openai".
	Provider string `yaml:"provider" json:"provider"`
	Model    string `yaml:"model" json:"model"`
	APIKey   string `yaml:"api_key" json:"api_key"`
}

// GitHub configures the source host client.
type GitHub struct {
	Token   string `yaml:"token" json:"token"`
	BaseURL string `yaml:"base_url" json:"base_url"`
}

// Sandbox configures deployment session provisioning and health polling.
type Sandbox struct {
	Image          string        `yaml:"image" json:"image"`
	SessionTimeout time.Duration `yaml:"session_timeout" json:"session_timeout"`
	HealthAttempts int           `yaml:"health_attempts" json:"health_attempts"`
	HealthInterval time.Duration `yaml:"health_interval" json:"health_interval"`
}

// Memory configures the durable per-repository store.
type Memory struct {
	Dir string `yaml:"dir" json:"dir"`
}

// Engine bounds the retry loop and the regeneration error context.
type Engine struct {
	MaxRetries          int `yaml:"max_retries" json:"max_retries"`
	ErrorContextEntries int `yaml:"error_context_entries" json:"error_context_entries"`
	ErrorContextChars   int `yaml:"error_context_chars" json:"error_context_chars"`
}

func defaults() *Config {
	return &Config{
		Server:   Server{Addr: ":8000"},
		LLM:      LLM{Provider: "gemini"},
		Memory:   Memory{Dir: "resurrection_memory"},
		LogLevel: "info",
	}
}

// Default returns a configuration with every field at its default, with
// credentials pulled from the environment.
func Default() *Config {
	cfg := defaults()
	cfg.applyEnvironment()
	return cfg
}

// applyEnvironment fills credential fields from environment variables when
// the document left them empty.
func (c *Config) applyEnvironment() {
	if c.LLM.APIKey == "" {
		switch c.LLM.Provider {
		case "openai":
			c.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		default:
			c.LLM.APIKey = os.Getenv("GEMINI_API_KEY")
			if c.LLM.APIKey == "" {
				c.LLM.APIKey = os.Getenv("GOOGLE_API_KEY")
			}
		}
	}
	if c.GitHub.Token == "" {
		c.GitHub.Token = os.Getenv("GITHUB_TOKEN")
	}
}

func (c *Config) validate() error {
	switch c.LLM.Provider {
	case "", "gemini", "openai":
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}
	if c.Engine.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative")
	}
	return nil
}

// ParseFile loads a Config from a file. The extension selects the format.
func ParseFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		return ParseJSON(data)
	case ".yml", ".yaml":
		return ParseYAML(data)
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// ParseYAML loads a Config from YAML. Unknown fields are rejected.
func ParseYAML(data []byte) (*Config, error) {
	config := defaults()
	if err := yaml.UnmarshalWithOptions(data, config, yaml.Strict()); err != nil {
		return nil, err
	}
	config.applyEnvironment()
	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// ParseJSON loads a Config from JSON.
func ParseJSON(data []byte) (*Config, error) {
	config := defaults()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, err
	}
	config.applyEnvironment()
	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

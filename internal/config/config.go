// Package config loads settings shared by the tool server and the chat client.
//
// Values come from built-in defaults, then an optional YAML file, then the
// environment. Environment variables always win.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	// URL is a full connection string. When set it takes precedence over
	// the individual fields below.
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Schema   string `yaml:"schema"`
}

// OllamaConfig holds language model settings.
type OllamaConfig struct {
	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
	// RequestsPerMinute caps outgoing model requests. Zero disables the limit.
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
}

// AgentConfig controls the tool-calling loop in the chat client.
type AgentConfig struct {
	ServerCommand    string        `yaml:"server_command"`
	UseTools         bool          `yaml:"use_tools"`
	// Mode is directive or native. Tools taking arrays of objects, such as
	// crud_create_records_batch, need native.
	Mode             string        `yaml:"mode"`
	MaxIterations    int           `yaml:"max_iterations"`
	ModelTimeout     time.Duration `yaml:"model_timeout"`
	ToolTimeout      time.Duration `yaml:"tool_timeout"`
	ReportToolErrors bool          `yaml:"report_tool_errors"`
	ValidateArgs     bool          `yaml:"validate_args"`
	KeepHistory      bool          `yaml:"keep_history"`
}

// DiagramConfig controls diagram rendering.
type DiagramConfig struct {
	OutputDir string `yaml:"output_dir"`
	APIBase   string `yaml:"api_base"`
	// DisableCLI skips the mermaid-cli probe and always uses the HTTP API.
	DisableCLI bool `yaml:"disable_cli"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
	Debug bool   `yaml:"debug"`
}

// Config is the complete configuration for both binaries.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Ollama   OllamaConfig   `yaml:"ollama"`
	Agent    AgentConfig    `yaml:"agent"`
	Diagrams DiagramConfig  `yaml:"diagrams"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// Agent loop modes.
const (
	ModeDirective = "directive"
	ModeNative    = "native"
)

// Default returns a configuration with every field populated.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:   "localhost",
			Port:   5432,
			User:   "postgres",
			Schema: "public",
		},
		Ollama: OllamaConfig{
			BaseURL: "http://localhost:11434",
			Model:   "deepseek-v3.2:cloud",
			Timeout: 120 * time.Second,
		},
		Agent: AgentConfig{
			ServerCommand: "schemaintel-server",
			UseTools:      true,
			Mode:          ModeDirective,
			MaxIterations: 15,
			ModelTimeout:  120 * time.Second,
			ToolTimeout:   60 * time.Second,
		},
		Diagrams: DiagramConfig{
			OutputDir: "diagrams",
			APIBase:   "https://mermaid.ink",
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "mcp_client_debug.log",
		},
	}
}

// Load builds a configuration from defaults, the YAML file at path (skipped
// when path is empty) and the environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	// DATABASE_URL first, POSTGRES_URL as fallback
	str("POSTGRES_URL", &c.Database.URL)
	str("DATABASE_URL", &c.Database.URL)
	str("DB_HOST", &c.Database.Host)
	str("DB_NAME", &c.Database.Name)
	str("DB_USER", &c.Database.User)
	str("DB_PASSWORD", &c.Database.Password)
	str("DB_SCHEMA", &c.Database.Schema)
	if v, ok := lookup("DB_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DB_PORT must be an integer: %w", err)
		}
		c.Database.Port = port
	}

	str("OLLAMA_BASE_URL", &c.Ollama.BaseURL)
	str("OLLAMA_MODEL", &c.Ollama.Model)
	if v, ok := lookup("OLLAMA_TIMEOUT"); ok && v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("OLLAMA_TIMEOUT must be a number of seconds: %w", err)
		}
		c.Ollama.Timeout = time.Duration(secs) * time.Second
	}

	str("MCP_SERVER_COMMAND", &c.Agent.ServerCommand)
	str("DIAGRAM_OUTPUT_DIR", &c.Diagrams.OutputDir)
	str("MERMAID_API_BASE", &c.Diagrams.APIBase)

	if v, ok := lookup("DEBUG"); ok {
		c.Logging.Debug = strings.EqualFold(v, "true")
		if c.Logging.Debug {
			c.Logging.Level = "debug"
		}
	}
	return nil
}

// Validate checks that required fields are present and consistent.
func (c *Config) Validate() error {
	if c.Ollama.Model == "" {
		return fmt.Errorf("ollama.model is required")
	}
	if c.Ollama.BaseURL == "" {
		return fmt.Errorf("ollama.base_url is required")
	}
	if _, err := url.Parse(c.Ollama.BaseURL); err != nil {
		return fmt.Errorf("ollama.base_url: %w", err)
	}
	if c.Ollama.RequestsPerMinute < 0 {
		return fmt.Errorf("ollama.requests_per_minute must not be negative")
	}
	if c.Agent.MaxIterations <= 0 {
		return fmt.Errorf("agent.max_iterations must be positive")
	}
	switch c.Agent.Mode {
	case ModeDirective, ModeNative:
	default:
		return fmt.Errorf("agent.mode must be %q or %q, got %q", ModeDirective, ModeNative, c.Agent.Mode)
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("database.port out of range: %d", c.Database.Port)
	}
	return nil
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   "/" + d.Name,
	}
	if d.Password != "" {
		u.User = url.UserPassword(d.User, d.Password)
	} else if d.User != "" {
		u.User = url.User(d.User)
	}
	return u.String()
}

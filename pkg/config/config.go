// Package config loads askflow configuration from a yaml file with an
// ASKFLOW_ environment overlay.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ConfigFileName is the default config file name.
const ConfigFileName = "askflow.yaml"

type Config struct {
	App       AppConfig                 `koanf:"app"`
	Server    ServerConfig              `koanf:"server"`
	Providers map[string]ProviderConfig `koanf:"providers"`
	Memory    MemoryConfig              `koanf:"memory"`
	Data      DataConfig                `koanf:"data"`
	Sandbox   SandboxConfig             `koanf:"sandbox"`
	Agent     AgentConfig               `koanf:"agent"`
}

type AppConfig struct {
	Name string `koanf:"name"`
}

type ServerConfig struct {
	Addr string `koanf:"addr"`
}

type ProviderConfig struct {
	APIKey  string `koanf:"api_key"`
	Model   string `koanf:"model"`
	BaseURL string `koanf:"base_url"`
	Enabled bool   `koanf:"enabled"`
}

type MemoryConfig struct {
	Path string `koanf:"path"`
}

// DataConfig points at the relational data source queries run against.
type DataConfig struct {
	Path string `koanf:"path"`
}

type SandboxConfig struct {
	URL     string        `koanf:"url"`
	Timeout time.Duration `koanf:"timeout"`
}

// AgentConfig carries the orchestration policy knobs. The ceilings are
// policy, not protocol, so they live here rather than as constants.
type AgentConfig struct {
	MaxIterations     int           `koanf:"max_iterations"`
	MaxRevisions      int           `koanf:"max_revisions"`
	ToolResultBudget  int           `koanf:"tool_result_budget"`
	QueryRowCap       int           `koanf:"query_row_cap"`
	HistoryDepth      int           `koanf:"history_depth"`
	RelevanceTopK     int           `koanf:"relevance_top_k"`
	HeartbeatInterval time.Duration `koanf:"heartbeat_interval"`
	PromptDir         string        `koanf:"prompt_dir"`
}

// ApplyDefaults fills zero-valued policy fields with the documented defaults.
func (c *Config) ApplyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "askflow"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Memory.Path == "" {
		c.Memory.Path = "askflow.db"
	}
	if c.Data.Path == "" {
		c.Data.Path = "data.db"
	}
	if c.Sandbox.Timeout == 0 {
		c.Sandbox.Timeout = 30 * time.Second
	}
	if c.Agent.MaxIterations == 0 {
		c.Agent.MaxIterations = 30
	}
	if c.Agent.MaxRevisions == 0 {
		c.Agent.MaxRevisions = 3
	}
	if c.Agent.ToolResultBudget == 0 {
		c.Agent.ToolResultBudget = 2000
	}
	if c.Agent.QueryRowCap == 0 {
		c.Agent.QueryRowCap = 500
	}
	if c.Agent.HistoryDepth == 0 {
		c.Agent.HistoryDepth = 10
	}
	if c.Agent.RelevanceTopK == 0 {
		c.Agent.RelevanceTopK = 10
	}
	if c.Agent.HeartbeatInterval == 0 {
		c.Agent.HeartbeatInterval = 30 * time.Second
	}
}

// Load reads the config file at path (optional) and overlays ASKFLOW_*
// environment variables. Double underscore nests, single underscores stay in
// the key: ASKFLOW_SERVER__ADDR=:9090, ASKFLOW_AGENT__MAX_ITERATIONS=50.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}

	err := k.Load(env.Provider("ASKFLOW_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "ASKFLOW_")), "__", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// DefaultProvider returns the first enabled provider.
func (c *Config) DefaultProvider() (string, ProviderConfig) {
	for name, p := range c.Providers {
		if p.Enabled {
			return name, p
		}
	}
	return "", ProviderConfig{}
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	Swarm     SwarmConfig     `yaml:"swarm"`
	NATS      NATSConfig      `yaml:"nats"`
	Store     StoreConfig     `yaml:"store"`
	Web       WebConfig       `yaml:"web"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Agents    []AgentConfig   `yaml:"agents"`
}

// AgentConfig declares a prompt-only agent for the gateway's pool. Agents
// with tools are constructed programmatically by library consumers.
type AgentConfig struct {
	Name                       string `yaml:"name"`
	Description                string `yaml:"description"`
	Prompt                     string `yaml:"prompt"`
	SupportsMultipleOperations bool   `yaml:"supports_multiple_operations"`
}

type LLMConfig struct {
	AnthropicAPIKey   string `yaml:"anthropic_api_key"`
	Model             string `yaml:"model"`
	MaxTokens         int    `yaml:"max_tokens"`
	MaxToolIterations int    `yaml:"max_tool_iterations"`
}

type SwarmConfig struct {
	RepoPath          string        `yaml:"repo_path"`
	Concurrency       int           `yaml:"concurrency"`
	TaskTimeout       time.Duration `yaml:"task_timeout"`
	NodeTimeout       time.Duration `yaml:"node_timeout"`
	MaxCycles         int           `yaml:"max_cycles"`
	MaxCompletedTasks int           `yaml:"max_completed_tasks"`
	ResultSizeLimitMB int           `yaml:"result_size_limit_mb"`
}

type NATSConfig struct {
	Port    int    `yaml:"port"`
	DataDir string `yaml:"data_dir"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type WebConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Auth    string `yaml:"auth"`
}

type SchedulerConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
}

func defaults() Config {
	return Config{
		LLM: LLMConfig{
			MaxTokens:         8192,
			MaxToolIterations: 25,
		},
		Swarm: SwarmConfig{
			Concurrency:       10,
			TaskTimeout:       5 * time.Minute,
			NodeTimeout:       10 * time.Minute,
			MaxCycles:         20,
			MaxCompletedTasks: 1000,
			ResultSizeLimitMB: 50,
		},
		NATS: NATSConfig{
			Port:    4222,
			DataDir: "data/nats",
		},
		Store: StoreConfig{
			Path: "data/swarmgate.db",
		},
		Web: WebConfig{
			Enabled: true,
			Port:    8080,
		},
		Scheduler: SchedulerConfig{
			PollInterval: 30 * time.Second,
		},
	}
}

func Load() (*Config, error) {
	cfg := defaults()

	path := os.Getenv("SWARMGATE_CONFIG")
	if path == "" {
		path = "config/swarmgate.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file not found, use defaults + env
	} else {
		// Expand environment variables in YAML
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	applyEnv(&cfg)

	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.LLM.AnthropicAPIKey = v
	}
	if v := os.Getenv("SWARMGATE_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("SWARMGATE_REPO_PATH"); v != "" {
		cfg.Swarm.RepoPath = v
	}
	if v := os.Getenv("SWARMGATE_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Swarm.Concurrency = n
		}
	}
	if v := os.Getenv("SWARMGATE_WEB_PASSWORD"); v != "" {
		cfg.Web.Auth = v
	}
	if v := os.Getenv("SWARMGATE_WEB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Web.Port = port
		}
	}
	if v := os.Getenv("SWARMGATE_NATS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.NATS.Port = port
		}
	}
	if v := os.Getenv("SWARMGATE_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
}

// ResultSizeLimit returns the retained result budget in bytes.
func (c SwarmConfig) ResultSizeLimit() int64 {
	return int64(c.ResultSizeLimitMB) * 1024 * 1024
}

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Model       ModelConfig               `json:"model"`
	Providers   map[string]ProviderConfig `json:"providers"`
	Databases   map[string]DatabaseConfig `json:"databases"`
	Redis       RedisConfig               `json:"redis"`
	Search      SearchConfig              `json:"search"`
	Reasoning   ReasoningConfig           `json:"reasoning"`
}

type ProviderConfig struct {
	BaseURL   string `json:"base_url"`
	Model     string `json:"model"`
	APIKey    string `json:"api_key"`
	MaxTokens int    `json:"max_tokens"`
}

// ModelConfig selects which configured provider backs the model gateway.
type ModelConfig struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	Params   string `json:"params"`
}

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type SearchConfig struct {
	GoogleAPIKey         string `json:"google_api_key"`
	GoogleSearchEngineID string `json:"google_search_engine_id"`
	MaxResults           int    `json:"max_results"`
	Region               string `json:"region"`
	TimeoutSeconds       int    `json:"timeout_seconds"`
	CacheTTL             int    `json:"cache_ttl"`  // minutes
	RateLimit            int    `json:"rate_limit"` // queries per minute
}

type ReasoningConfig struct {
	SelfCorrectAttempts int `json:"self_correct_attempts"`
	MaxReactSteps       int `json:"max_react_steps"`
}

type BasicConfig struct {
	ServerAddress       string `json:"server_address"`
	ContextWindow       int    `json:"context_window"`
	MinWorkers          int    `json:"min_workers"`
	MaxWorkers          int    `json:"max_workers"`
	QueueSize           int    `json:"queue_size"`
	WorkerIdleTimeout   int    `json:"worker_idle_timeout"` // minutes
	ExportDir           string `json:"export_dir"`
	ExportTTL           int    `json:"export_ttl"`            // minutes
	ExportCleanInterval int    `json:"export_clean_interval"` // minutes
	UploadDir           string `json:"upload_dir"`
}

// Load reads configuration from the provided path (defaults to config.json).
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyDefaults()

	if len(cfg.Databases) == 0 {
		return nil, fmt.Errorf("at least one database must be configured")
	}
	if _, ok := cfg.Providers[cfg.Model.Provider]; !ok {
		return nil, fmt.Errorf("provider %q not configured", cfg.Model.Provider)
	}

	baseDir := filepath.Dir(absPath)
	cfg.BasicConfig.ExportDir = resolvePath(baseDir, cfg.BasicConfig.ExportDir)
	cfg.BasicConfig.UploadDir = resolvePath(baseDir, cfg.BasicConfig.UploadDir)
	if sqliteCfg, ok := cfg.Databases["sqlite3"]; ok && sqliteCfg.DSN != "" && sqliteCfg.DSN != ":memory:" {
		sqliteCfg.DSN = resolvePath(baseDir, sqliteCfg.DSN)
		cfg.Databases["sqlite3"] = sqliteCfg
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.BasicConfig.ServerAddress == "" {
		c.BasicConfig.ServerAddress = ":8000"
	}
	if c.BasicConfig.ContextWindow <= 0 {
		c.BasicConfig.ContextWindow = 10
	}
	if c.BasicConfig.MinWorkers <= 0 {
		c.BasicConfig.MinWorkers = 2
	}
	if c.BasicConfig.MaxWorkers < c.BasicConfig.MinWorkers {
		c.BasicConfig.MaxWorkers = c.BasicConfig.MinWorkers * 4
	}
	if c.BasicConfig.QueueSize <= 0 {
		c.BasicConfig.QueueSize = 64
	}
	if c.BasicConfig.ExportDir == "" {
		c.BasicConfig.ExportDir = "exports"
	}
	if c.BasicConfig.UploadDir == "" {
		c.BasicConfig.UploadDir = "data/uploads"
	}
	if c.Model.Provider == "" {
		c.Model.Provider = "openai"
	}
	if c.Search.MaxResults <= 0 {
		c.Search.MaxResults = 5
	}
	if c.Search.TimeoutSeconds <= 0 {
		c.Search.TimeoutSeconds = 10
	}
	if c.Search.RateLimit <= 0 {
		c.Search.RateLimit = 10
	}
	if c.Reasoning.SelfCorrectAttempts <= 0 {
		c.Reasoning.SelfCorrectAttempts = 2
	}
	if c.Reasoning.MaxReactSteps <= 0 {
		c.Reasoning.MaxReactSteps = 1
	}
}

func resolvePath(baseDir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

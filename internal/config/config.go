package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cedrus-db/cedrus/internal/domain/schema"
)

// Config holds the cedrus service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Store     StoreConfig     `yaml:"store"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// StoreConfig holds the vector collection settings.
type StoreConfig struct {
	CollectionName   string   `yaml:"collection_name"`   // default: vector_store
	VectorPath       string   `yaml:"vector_path"`       // default: embedding
	IndexName        string   `yaml:"index_name"`        // default: vector_index
	InitializeSchema bool     `yaml:"initialize_schema"` // default: false
	Dimensions       int      `yaml:"dimensions"`
	Metric           string   `yaml:"metric"`            // cosine, dot_product, euclidean (default: cosine)
	FilterableFields []string `yaml:"filterable_fields"` // "name" or "name:numeric"
	HNSWM            int      `yaml:"hnsw_m"`
	HNSWEFConstruct  int      `yaml:"hnsw_ef_construction"`
}

// EmbeddingConfig holds embedding settings.
type EmbeddingConfig struct {
	Provider  string                    `yaml:"provider"` // key into Providers
	Cache     bool                      `yaml:"cache"`
	Providers map[string]ProviderConfig `yaml:"providers"`
}

// ProviderConfig holds embedding provider settings.
type ProviderConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Store.CollectionName == "" {
		c.Store.CollectionName = schema.DefaultCollectionName
	}
	if c.Store.VectorPath == "" {
		c.Store.VectorPath = schema.DefaultVectorPath
	}
	if c.Store.IndexName == "" {
		c.Store.IndexName = schema.DefaultIndexName
	}
	if c.Store.Metric == "" {
		c.Store.Metric = string(schema.MetricCosine)
	}
	if c.Store.HNSWM <= 0 {
		c.Store.HNSWM = 32
	}
	if c.Store.HNSWEFConstruct <= 0 {
		c.Store.HNSWEFConstruct = 400
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.Store.Dimensions <= 0 {
		return fmt.Errorf("store.dimensions is required and must be positive, got %d", c.Store.Dimensions)
	}
	switch schema.Metric(c.Store.Metric) {
	case schema.MetricCosine, schema.MetricDotProduct, schema.MetricEuclidean:
		// ok
	default:
		return fmt.Errorf("store.metric must be cosine, dot_product or euclidean, got %q", c.Store.Metric)
	}
	if c.Embedding.Provider == "" {
		return fmt.Errorf("embedding.provider is required")
	}
	if _, ok := c.Embedding.Providers[c.Embedding.Provider]; !ok {
		return fmt.Errorf("embedding.providers has no entry for provider %q", c.Embedding.Provider)
	}
	for name, p := range c.Embedding.Providers {
		if p.Model == "" {
			return fmt.Errorf("embedding.providers.%s.model is required", name)
		}
	}
	return nil
}

// ProviderSettings returns the config of the selected embedding provider.
func (c *Config) ProviderSettings() ProviderConfig {
	return c.Embedding.Providers[c.Embedding.Provider]
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}

// Package config loads and saves the application configuration from a
// TOML file under the user's config directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// FileName is the configuration file name inside the config directory.
const FileName = "config.toml"

// Config is the full application configuration.
type Config struct {
	Data      DataConfig      `toml:"data"`
	Index     IndexConfig     `toml:"index"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Chunking  ChunkingConfig  `toml:"chunking"`
	Search    SearchConfig    `toml:"search"`
}

// DataConfig locates on-disk state.
type DataConfig struct {
	// Dir is the root data directory. Index artifacts and the filing
	// database live beneath it.
	Dir string `toml:"dir"`
}

// IndexConfig is the vector index geometry.
type IndexConfig struct {
	NList       int  `toml:"nlist"`
	NProbe      int  `toml:"nprobe"`
	UsePQ       bool `toml:"use_pq"`
	M           int  `toml:"pq_subquantizers"`
	TrainFactor int  `toml:"train_factor"`
}

// EmbeddingConfig selects and tunes the embedding backend.
type EmbeddingConfig struct {
	// Backend is "ollama" or "openai".
	Backend string `toml:"backend"`
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`
	// APIKeyEnv names the environment variable holding the API key for
	// hosted backends. The key itself never goes in the file.
	APIKeyEnv  string `toml:"api_key_env"`
	Dimensions int    `toml:"dimensions"`
	// Hybrid enables content-based routing to a biomedical model.
	Hybrid   bool   `toml:"hybrid"`
	BioModel string `toml:"bio_model"`

	RequestsPerSecond float64 `toml:"requests_per_second"`
	Burst             int     `toml:"burst"`
}

// ChunkingConfig is the document chunking geometry.
type ChunkingConfig struct {
	ChunkSize  int `toml:"chunk_size"`
	Overlap    int `toml:"overlap"`
	MinSection int `toml:"min_section"`
}

// SearchConfig holds query-path defaults.
type SearchConfig struct {
	DefaultK int  `toml:"default_k"`
	Rerank   bool `toml:"rerank"`
}

// Default returns the built-in configuration.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Config{
		Data: DataConfig{
			Dir: filepath.Join(home, ".filingrag", "data"),
		},
		Index: IndexConfig{
			NList:       1000,
			NProbe:      8,
			UsePQ:       false,
			M:           8,
			TrainFactor: 40,
		},
		Embedding: EmbeddingConfig{
			Backend:    "ollama",
			Model:      "nomic-embed-text",
			Dimensions: 768,
			Hybrid:     false,
		},
		Chunking: ChunkingConfig{
			ChunkSize:  2048,
			Overlap:    200,
			MinSection: 100,
		},
		Search: SearchConfig{
			DefaultK: 10,
			Rerank:   true,
		},
	}
}

// DefaultDir returns the default configuration directory.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".filingrag")
}

// Load reads configuration from configDir, overlaying file values on
// the defaults. A missing file is not an error: defaults apply.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultDir()
	}

	cfg := Default()

	data, err := os.ReadFile(filepath.Join(configDir, FileName))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration to configDir, creating it as needed.
func Save(configDir string, cfg *Config) error {
	if configDir == "" {
		configDir = DefaultDir()
	}
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(filepath.Join(configDir, FileName), data, 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// APIKey resolves the configured API key from the environment.
func (c *EmbeddingConfig) APIKey() string {
	if c.APIKeyEnv == "" {
		return os.Getenv("OPENAI_API_KEY")
	}
	return os.Getenv(c.APIKeyEnv)
}

// IndexDir is where the vector index artifacts live.
func (c *Config) IndexDir() string {
	return filepath.Join(c.Data.Dir, "index")
}

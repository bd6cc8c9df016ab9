// Package config loads gptkit settings from a YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/dan-solli/gptkit/pkg/llm"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var ErrNotFound = errors.New("config file not found")

// Environment variables read by ApplyEnv.
const (
	EnvOpenAIKey       = "OPENAI_API_KEY"
	EnvOpenAIOrg       = "OPENAI_ORG_ID"
	EnvOpenAIBaseURL   = "OPENAI_BASE_URL"
	EnvAzureKey        = "AZURE_OPENAI_API_KEY"
	EnvAzureEndpoint   = "AZURE_OPENAI_ENDPOINT"
	EnvAzureAPIVersion = "AZURE_OPENAI_API_VERSION"
)

type Config struct {
	OpenAI            OpenAI        `yaml:"openai"`
	Azure             Azure         `yaml:"azure"`
	Model             string        `yaml:"model"`
	EmbeddingModel    string        `yaml:"embedding_model"`
	MaxAttempts       int           `yaml:"max_attempts"`
	RetryDelay        time.Duration `yaml:"retry_delay"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Trace             Trace         `yaml:"trace"`
}

type OpenAI struct {
	APIKey  string `yaml:"api_key"`
	OrgID   string `yaml:"org_id"`
	BaseURL string `yaml:"base_url"`
}

type Azure struct {
	APIKey      string            `yaml:"api_key"`
	Endpoint    string            `yaml:"endpoint"`
	APIVersion  string            `yaml:"api_version"`
	Deployments map[string]string `yaml:"deployments"`
}

// Trace selects where call traces are written. At most one sink may be set.
type Trace struct {
	File         string `yaml:"file"`
	MaxSizeBytes int64  `yaml:"max_size_bytes"`
	SQLite       string `yaml:"sqlite"`
}

// Dir returns the config directory path (~/.gptkit).
func Dir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".gptkit")
}

// Path returns the default config file path (~/.gptkit/config.yaml).
func Path() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Default returns a config with sensible defaults.
func Default() *Config {
	return &Config{
		Azure:          Azure{APIVersion: llm.DefaultAzureAPIVersion},
		Model:          llm.DefaultModel,
		EmbeddingModel: "text-embedding-3-small",
		MaxAttempts:    llm.DefaultMaxAttempts,
		Timeout:        60 * time.Second,
	}
}

// Load reads the YAML file at path over Default(). Returns ErrNotFound if it doesn't exist.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv loads envFiles (".env" when none are given) into the process
// environment, then overrides credentials and endpoints from it. Missing env
// files are ignored and variables already set in the environment win over them.
func (c *Config) ApplyEnv(envFiles ...string) error {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}

	override(&c.OpenAI.APIKey, EnvOpenAIKey)
	override(&c.OpenAI.OrgID, EnvOpenAIOrg)
	override(&c.OpenAI.BaseURL, EnvOpenAIBaseURL)
	override(&c.Azure.APIKey, EnvAzureKey)
	override(&c.Azure.Endpoint, EnvAzureEndpoint)
	override(&c.Azure.APIVersion, EnvAzureAPIVersion)
	return nil
}

func override(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if c.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("max_attempts must be at least 1, got %d", c.MaxAttempts))
	}
	if c.RetryDelay < 0 {
		errs = append(errs, fmt.Errorf("retry_delay must not be negative, got %s", c.RetryDelay))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout must not be negative, got %s", c.Timeout))
	}
	if c.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("requests_per_second must not be negative, got %g", c.RequestsPerSecond))
	}
	if err := checkURL("openai.base_url", c.OpenAI.BaseURL); err != nil {
		errs = append(errs, err)
	}
	if err := checkURL("azure.endpoint", c.Azure.Endpoint); err != nil {
		errs = append(errs, err)
	}
	if c.Trace.File != "" && c.Trace.SQLite != "" {
		errs = append(errs, errors.New("trace.file and trace.sqlite are mutually exclusive"))
	}
	if c.Trace.MaxSizeBytes < 0 {
		errs = append(errs, fmt.Errorf("trace.max_size_bytes must not be negative, got %d", c.Trace.MaxSizeBytes))
	}
	return errors.Join(errs...)
}

func checkURL(field, raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL, got %q", field, raw)
	}
	return nil
}

// LLM returns the completer settings.
func (c *Config) LLM() llm.Config {
	return llm.Config{
		DefaultModel:      c.Model,
		MaxAttempts:       c.MaxAttempts,
		RetryDelay:        c.RetryDelay,
		BaseURL:           c.OpenAI.BaseURL,
		AzureEndpoint:     c.Azure.Endpoint,
		AzureAPIVersion:   c.Azure.APIVersion,
		AzureDeployments:  c.Azure.Deployments,
		HTTPTimeout:       c.Timeout,
		RequestsPerSecond: c.RequestsPerSecond,
	}
}

// Credentials returns the API key and organization ID for backend.
func (c *Config) Credentials(backend llm.Backend) (key, org string) {
	if backend == llm.BackendAzure {
		return c.Azure.APIKey, ""
	}
	return c.OpenAI.APIKey, c.OpenAI.OrgID
}

package deployment

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed config/deployments.yaml
var defaultDeploymentsYAML []byte

// Deployment kinds understood by the setup package.
const (
	KindMock      = "mock"
	KindLorem     = "lorem"
	KindAnthropic = "anthropic"
	KindOpenAI    = "openai"
)

// Config is the static deployment configuration loaded at process start.
//
// The default configuration is embedded in the binary; callers can replace it
// with LoadConfigFile or build a Config in code.
type Config struct {
	Version     string             `yaml:"version"`      // Semantic version (e.g., "1.0.0")
	LastUpdated string             `yaml:"last_updated"` // ISO 8601 date (e.g., "2026-10-01")
	Deployments []DeploymentConfig `yaml:"deployments"`
}

// DeploymentConfig configures one named deployment.
type DeploymentConfig struct {
	Name          string   `yaml:"name"`
	Kind          string   `yaml:"kind"`
	Models        []string `yaml:"models"`
	APIKeyEnv     string   `yaml:"api_key_env"`
	BaseURL       string   `yaml:"base_url"`
	Rerank        bool     `yaml:"rerank"`
	SearchQueries bool     `yaml:"search_queries"`
	Disabled      bool     `yaml:"disabled"`
}

// APIKey reads the deployment's API key from the environment.
func (d DeploymentConfig) APIKey() string {
	if d.APIKeyEnv == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(d.APIKeyEnv))
}

// Descriptor returns the adapter descriptor this entry describes.
func (d DeploymentConfig) Descriptor() Descriptor {
	return Descriptor{
		Name:                 d.Name,
		Models:               append([]string(nil), d.Models...),
		RerankEnabled:        d.Rerank,
		SearchQueriesEnabled: d.SearchQueries,
	}
}

// DefaultConfig returns the embedded deployment configuration.
func DefaultConfig() (*Config, error) {
	return ParseConfig(defaultDeploymentsYAML)
}

// LoadConfigFile loads deployment configuration from a YAML file.
// The file format matches the embedded config/deployments.yaml.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read deployments file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes and validates YAML deployment configuration.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal deployments: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects unknown kinds, duplicate names and empty model lists.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Deployments))
	for i, d := range c.Deployments {
		field := fmt.Sprintf("deployments[%d]", i)
		if d.Name == "" {
			return &ValidationError{Field: field + ".name", Value: d.Name, Reason: "name is required"}
		}
		if seen[d.Name] {
			return &ValidationError{Field: field + ".name", Value: d.Name, Reason: "duplicate deployment name"}
		}
		seen[d.Name] = true

		switch d.Kind {
		case KindMock, KindLorem, KindAnthropic, KindOpenAI:
		default:
			return &ValidationError{Field: field + ".kind", Value: d.Kind, Reason: "unknown deployment kind"}
		}

		if len(d.Models) == 0 {
			return &ValidationError{Field: field + ".models", Value: d.Name, Reason: "at least one model is required"}
		}
	}
	return nil
}

// Enabled returns the deployments that are not disabled, in file order.
func (c *Config) Enabled() []DeploymentConfig {
	out := make([]DeploymentConfig, 0, len(c.Deployments))
	for _, d := range c.Deployments {
		if !d.Disabled {
			out = append(out, d)
		}
	}
	return out
}

// Lookup returns the deployment named name.
func (c *Config) Lookup(name string) (DeploymentConfig, bool) {
	for _, d := range c.Deployments {
		if d.Name == name {
			return d, true
		}
	}
	return DeploymentConfig{}, false
}

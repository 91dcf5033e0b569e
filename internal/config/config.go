package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config models flatconnect.yml.
type Config struct {
	API struct {
		BaseURL string        `yaml:"base_url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"api"`
	Complaints struct {
		Categories      map[string]string `yaml:"categories"`
		Priorities      map[string]string `yaml:"priorities"`
		DefaultCategory string            `yaml:"default_category"`
		DefaultPriority string            `yaml:"default_priority"`
	} `yaml:"complaints"`
	DevServer struct {
		Addr              string `yaml:"addr"`
		GoogleClientID    string `yaml:"google_client_id"`
		GoogleRedirectURI string `yaml:"google_redirect_uri"`
	} `yaml:"dev_server"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; write one with fc config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOrDefault returns the built-in defaults when the file does not exist.
func LoadOrDefault(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return fmt.Errorf("config.api.base_url is required")
	}
	if c.API.Timeout < 0 {
		return fmt.Errorf("config.api.timeout must not be negative")
	}
	if err := validateCodes("categories", c.Complaints.Categories, c.Complaints.DefaultCategory); err != nil {
		return err
	}
	if err := validateCodes("priorities", c.Complaints.Priorities, c.Complaints.DefaultPriority); err != nil {
		return err
	}
	return nil
}

func validateCodes(name string, table map[string]string, def string) error {
	if len(table) == 0 {
		return fmt.Errorf("config.complaints.%s is required", name)
	}
	for label, code := range table {
		if strings.TrimSpace(label) == "" {
			return fmt.Errorf("config.complaints.%s has an empty label", name)
		}
		if strings.TrimSpace(code) == "" {
			return fmt.Errorf("config.complaints.%s.%s has an empty code", name, label)
		}
	}
	if _, ok := table[def]; !ok {
		return fmt.Errorf("default for %s %q is not in the table", name, def)
	}
	return nil
}

// CategoryLabels returns the category labels sorted by backend code.
func (c *Config) CategoryLabels() []string {
	return labelsByCode(c.Complaints.Categories)
}

// PriorityLabels returns the priority labels sorted by backend code.
func (c *Config) PriorityLabels() []string {
	return labelsByCode(c.Complaints.Priorities)
}

func labelsByCode(table map[string]string) []string {
	labels := make([]string, 0, len(table))
	for l := range table {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool {
		if table[labels[i]] == table[labels[j]] {
			return labels[i] < labels[j]
		}
		return table[labels[i]] < table[labels[j]]
	})
	return labels
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "flatconnect.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(baseURL string) string {
	return fmt.Sprintf(defaultTemplate, baseURL)
}

// Default returns the built-in configuration.
func Default() *Config {
	var cfg Config
	if err := yaml.Unmarshal([]byte(GenerateDefault(DefaultBaseURL)), &cfg); err != nil {
		panic(fmt.Sprintf("default config template: %v", err))
	}
	return &cfg
}

// DefaultBaseURL is where the backend listens during local development.
const DefaultBaseURL = "http://127.0.0.1:8000"

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `api:
  base_url: %s
  timeout: 0s

complaints:
  categories:
    plumbing: "1"
    electrical: "2"
    cleaning: "3"
    security: "4"
    other: "5"
  priorities:
    low: "1"
    medium: "2"
    high: "3"
  default_category: other
  default_priority: low

dev_server:
  addr: 127.0.0.1:8000
  google_client_id: ""
  google_redirect_uri: http://127.0.0.1:5173/auth/google/callback
`

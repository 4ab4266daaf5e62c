// Package config loads vertana settings from a YAML file, VERTANA_*
// environment variables and bound command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/GrxyScxr1/vertana-sub000/internal/chunker"
	"github.com/GrxyScxr1/vertana-sub000/internal/errs"
	"github.com/GrxyScxr1/vertana-sub000/internal/llm"
	"github.com/GrxyScxr1/vertana-sub000/internal/refiner"
	"github.com/GrxyScxr1/vertana-sub000/internal/terms"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "VERTANA"

// ModelConfig describes one model endpoint.
type ModelConfig struct {
	Name              string        `mapstructure:"name" json:"name"`
	Provider          string        `mapstructure:"provider" json:"provider"`
	Model             string        `mapstructure:"model" json:"model"`
	BaseURL           string        `mapstructure:"base_url" json:"base_url"`
	APIKey            string        `mapstructure:"api_key" json:"-"`
	Timeout           time.Duration `mapstructure:"timeout" json:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" json:"requests_per_second"`
}

type RefinementConfig struct {
	Enabled       bool    `mapstructure:"enabled" json:"enabled"`
	TargetScore   float64 `mapstructure:"target_score" json:"target_score"`
	MaxIterations int     `mapstructure:"max_iterations" json:"max_iterations"`
	Boundaries    bool    `mapstructure:"boundaries" json:"boundaries"`
}

type GlossaryConfig struct {
	Dynamic  bool `mapstructure:"dynamic" json:"dynamic"`
	MaxTerms int  `mapstructure:"max_terms" json:"max_terms"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr" json:"addr"`
}

type Config struct {
	Models []ModelConfig `mapstructure:"models" json:"models"`
	// Evaluator names the model that judges, extracts terms and refines.
	// Empty means the first model.
	Evaluator      string           `mapstructure:"evaluator" json:"evaluator"`
	SourceLanguage string           `mapstructure:"source" json:"source"`
	TargetLanguage string           `mapstructure:"target" json:"target"`
	Tone           string           `mapstructure:"tone" json:"tone"`
	Domain         string           `mapstructure:"domain" json:"domain"`
	MaxTokens      int              `mapstructure:"max_tokens" json:"max_tokens"`
	Refinement     RefinementConfig `mapstructure:"refinement" json:"refinement"`
	Glossary       GlossaryConfig   `mapstructure:"glossary" json:"glossary"`
	Database       string           `mapstructure:"database" json:"database"`
	Server         ServerConfig     `mapstructure:"server" json:"server"`
	Verbose        bool             `mapstructure:"verbose" json:"verbose"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("evaluator", "")
	v.SetDefault("source", "auto")
	v.SetDefault("target", "")
	v.SetDefault("tone", "")
	v.SetDefault("domain", "")
	v.SetDefault("verbose", false)
	v.SetDefault("max_tokens", chunker.DefaultMaxTokens)
	v.SetDefault("refinement.enabled", false)
	v.SetDefault("refinement.boundaries", false)
	v.SetDefault("refinement.target_score", refiner.DefaultTargetScore)
	v.SetDefault("refinement.max_iterations", refiner.DefaultMaxIterations)
	v.SetDefault("glossary.dynamic", false)
	v.SetDefault("glossary.max_terms", terms.DefaultMaxTerms)
	v.SetDefault("database", DefaultDatabasePath())
	v.SetDefault("server.addr", "127.0.0.1:8080")
}

// DefaultDatabasePath is the SQLite file under the user's data directory.
func DefaultDatabasePath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "vertana", "vertana.db")
	}
	return filepath.Join(".", "vertana.db")
}

// SearchPaths lists the config files tried, in order, when none is given.
func SearchPaths() []string {
	var paths []string
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "vertana", "config.yaml"))
	}
	return append(paths, "vertana.yaml")
}

// Load reads configuration into v and decodes it. An explicit configFile
// must exist; otherwise the first existing file of SearchPaths is used, and
// having none is not an error. Flags bound to v before Load take
// precedence over the file.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile == "" {
		for _, p := range SearchPaths() {
			if _, err := os.Stat(p); err == nil {
				configFile = p
				break
			}
		}
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.resolveKeys()
	return &cfg, nil
}

// providerKeyEnv names the conventional API key variable per provider.
var providerKeyEnv = map[string]string{
	llm.ProviderOpenAI:     "OPENAI_API_KEY",
	llm.ProviderOpenRouter: "OPENROUTER_API_KEY",
}

func (c *Config) resolveKeys() {
	for i := range c.Models {
		m := &c.Models[i]
		m.Provider = strings.ToLower(strings.TrimSpace(m.Provider))
		if m.Provider == "" {
			m.Provider = llm.ProviderOpenAI
		}
		if m.APIKey == "" {
			if env, ok := providerKeyEnv[m.Provider]; ok {
				m.APIKey = os.Getenv(env)
			}
		}
	}
}

// ParseModelSpec parses "provider:model", for example "ollama:llama3.1:8b".
// A spec without a known provider prefix is an OpenAI-compatible model id.
func ParseModelSpec(spec string) (ModelConfig, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return ModelConfig{}, fmt.Errorf("%w: empty model spec", errs.ErrInvalidArgument)
	}
	provider, model, ok := strings.Cut(spec, ":")
	if !ok || !slices.Contains(llm.Providers, strings.ToLower(provider)) {
		provider, model = llm.ProviderOpenAI, spec
	}
	m := ModelConfig{Provider: strings.ToLower(provider), Model: model}
	if model == "" {
		return ModelConfig{}, fmt.Errorf("%w: model spec %q has no model id", errs.ErrInvalidArgument, spec)
	}
	return m, nil
}

// UseModels replaces the configured models with specs given on the
// command line.
func (c *Config) UseModels(specs []string) error {
	if len(specs) == 0 {
		return nil
	}
	models := make([]ModelConfig, 0, len(specs))
	for _, spec := range specs {
		m, err := ParseModelSpec(spec)
		if err != nil {
			return err
		}
		if existing := c.model(m.Model); existing != nil && existing.Provider == m.Provider {
			m = *existing
		}
		models = append(models, m)
	}
	c.Models = models
	c.resolveKeys()
	return nil
}

func (c *Config) model(name string) *ModelConfig {
	for i := range c.Models {
		if c.Models[i].displayName() == name || c.Models[i].Model == name {
			return &c.Models[i]
		}
	}
	return nil
}

func (m ModelConfig) displayName() string {
	if m.Name != "" {
		return m.Name
	}
	return m.Model
}

// Validate reports configuration that cannot run a translation.
func (c *Config) Validate() error {
	var problems []error
	if len(c.Models) == 0 {
		problems = append(problems, errors.New("no models configured"))
	}
	seen := map[string]bool{}
	for i, m := range c.Models {
		if m.Model == "" {
			problems = append(problems, fmt.Errorf("models[%d]: model id is required", i))
		}
		if !slices.Contains(llm.Providers, m.Provider) {
			problems = append(problems, fmt.Errorf("models[%d]: unknown provider %q", i, m.Provider))
		}
		if name := m.displayName(); seen[name] {
			problems = append(problems, fmt.Errorf("models[%d]: duplicate model name %q", i, name))
		} else {
			seen[name] = true
		}
	}
	if c.Evaluator != "" && c.model(c.Evaluator) == nil {
		problems = append(problems, fmt.Errorf("evaluator %q is not a configured model", c.Evaluator))
	}
	if c.Refinement.TargetScore < 0 || c.Refinement.TargetScore > 1 {
		problems = append(problems, fmt.Errorf("refinement.target_score %v is outside [0, 1]", c.Refinement.TargetScore))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: invalid configuration: %w", errs.ErrInvalidArgument, errors.Join(problems...))
	}
	return nil
}

// BuildModels constructs the configured models and the evaluator.
func (c *Config) BuildModels() ([]llm.Model, llm.Model, error) {
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}
	models := make([]llm.Model, 0, len(c.Models))
	var judge llm.Model
	for _, m := range c.Models {
		built, err := llm.New(m.Provider, llm.Config{
			Name:              m.Name,
			Model:             m.Model,
			BaseURL:           m.BaseURL,
			APIKey:            m.APIKey,
			Timeout:           m.Timeout,
			RequestsPerSecond: m.RequestsPerSecond,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to build model %s: %w", m.displayName(), err)
		}
		models = append(models, built)
		if c.Evaluator != "" && (m.displayName() == c.Evaluator || m.Model == c.Evaluator) && judge == nil {
			judge = built
		}
	}
	return models, judge, nil
}

// RefinementOptions returns the refiner settings, or nil when disabled.
func (c *Config) RefinementOptions() *refiner.Options {
	if !c.Refinement.Enabled {
		return nil
	}
	return &refiner.Options{
		TargetScore:        c.Refinement.TargetScore,
		MaxIterations:      c.Refinement.MaxIterations,
		EvaluateBoundaries: c.Refinement.Boundaries,
	}
}

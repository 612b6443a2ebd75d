// Package config loads runtime configuration for manifest resolution, image
// normalization, and model calls.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/wjbmattingly/iiif-htr/imaging"
	"github.com/wjbmattingly/iiif-htr/invoke"
	"github.com/wjbmattingly/iiif-htr/manifest"
	"github.com/wjbmattingly/iiif-htr/providers"
)

// Config holds every tunable the pipeline uses.
type Config struct {
	// Model call parameters
	Model       string  `mapstructure:"model" yaml:"model"`
	MaxTokens   int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`

	// Image transmission box
	MaxImageWidth  int `mapstructure:"max_image_width" yaml:"max_image_width"`
	MaxImageHeight int `mapstructure:"max_image_height" yaml:"max_image_height"`

	// Manifest-level size threshold for requesting a service derivative.
	// Independent of the transmission box above.
	ServiceThreshold int `mapstructure:"service_threshold" yaml:"service_threshold"`

	// Endpoint credentials; APIKey supports ${ENV_VAR} references
	APIKey  string `mapstructure:"api_key" yaml:"api_key"`
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Model:            providers.DefaultChatModel,
		MaxTokens:        invoke.DefaultMaxTokens,
		Temperature:      invoke.DefaultTemperature,
		MaxImageWidth:    imaging.DefaultMaxWidth,
		MaxImageHeight:   imaging.DefaultMaxHeight,
		ServiceThreshold: manifest.DefaultServiceThreshold,
		APIKey:           "${IIIFHTR_API_KEY}",
	}
}

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
}

// NewManager creates a new config manager and loads initial config.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{
		callbacks: make([]func(*Config), 0),
	}

	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile string) error {
	defaults := DefaultConfig()
	viper.SetDefault("model", defaults.Model)
	viper.SetDefault("max_tokens", defaults.MaxTokens)
	viper.SetDefault("temperature", defaults.Temperature)
	viper.SetDefault("max_image_width", defaults.MaxImageWidth)
	viper.SetDefault("max_image_height", defaults.MaxImageHeight)
	viper.SetDefault("service_threshold", defaults.ServiceThreshold)
	viper.SetDefault("api_key", defaults.APIKey)
	viper.SetDefault("base_url", defaults.BaseURL)

	// Environment variables with IIIFHTR_ prefix
	viper.SetEnvPrefix("IIIFHTR")
	viper.AutomaticEnv()

	// Config file
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.iiif-htr")
	}

	// Try to read config file (not required)
	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// load parses the current viper state into a Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of configuration.
func (cm *Manager) WatchConfig() {
	viper.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	viper.WatchConfig()
}

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	pattern := regexp.MustCompile(`\$\{([^}]+)\}`)
	return pattern.ReplaceAllStringFunc(value, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// Resolver builds a manifest resolver from the config.
func (c *Config) Resolver() *manifest.Resolver {
	return &manifest.Resolver{
		MaxWidth:         c.MaxImageWidth,
		MaxHeight:        c.MaxImageHeight,
		ServiceThreshold: c.ServiceThreshold,
	}
}

// Fetcher builds an image fetcher from the config.
func (c *Config) Fetcher() *imaging.Fetcher {
	return &imaging.Fetcher{
		MaxWidth:  c.MaxImageWidth,
		MaxHeight: c.MaxImageHeight,
		Quality:   imaging.DefaultQuality,
	}
}

// Client builds the OpenAI-compatible model client from the config,
// resolving ${ENV_VAR} references in the API key.
func (c *Config) Client() *providers.OpenAIClient {
	return providers.NewOpenAIClient(providers.OpenAIConfig{
		APIKey:       ResolveEnvVars(c.APIKey),
		BaseURL:      c.BaseURL,
		DefaultModel: c.Model,
	})
}

// Invoker builds a model invoker wired to the given client.
func (c *Config) Invoker(client providers.LLMClient) *invoke.Invoker {
	return &invoke.Invoker{
		Client:      client,
		Fetcher:     c.Fetcher(),
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,
	}
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# iiif-htr configuration
# api_key uses ${ENV_VAR} syntax to reference environment variables
# Set it in your shell: export IIIFHTR_API_KEY=xxx

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration options for the application
type Config struct {
	// Strategy selection: "native" or "legacy"
	Strategy string `mapstructure:"strategy"`

	// Git configuration
	BaseBranch  string `mapstructure:"base_branch"`
	AuthorName  string `mapstructure:"author_name"`
	AuthorEmail string `mapstructure:"author_email"`

	// AI provider configuration
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`

	// Behavior configuration
	AutoApply bool `mapstructure:"auto_apply"` // Skip the plan approval prompt

	// Logging configuration
	Debug   bool   `mapstructure:"debug"`    // Enable debug logging
	LogFile string `mapstructure:"log_file"` // Path to log file
}

const (
	// Default configuration values
	DefaultStrategy    = "native"
	DefaultBaseBranch  = "main"
	DefaultAuthorName  = "resquash"
	DefaultAuthorEmail = "resquash@localhost"
	DefaultConfigDir   = ".resquash"
)

// Load loads configuration from the config file and environment variables.
// Flag overrides are applied afterwards by the CLI layer.
func Load() (*Config, error) {
	config := &Config{
		Strategy:    DefaultStrategy,
		BaseBranch:  DefaultBaseBranch,
		AuthorName:  DefaultAuthorName,
		AuthorEmail: DefaultAuthorEmail,
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getConfigDir())

	v.SetEnvPrefix("RESQUASH")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// The conventional provider variable works without any config file.
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.APIKey = apiKey
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is not an error
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if config.Strategy != "native" && config.Strategy != "legacy" {
		return nil, fmt.Errorf("invalid strategy %q (want native or legacy)", config.Strategy)
	}
	return config, nil
}

// getConfigDir returns the path to the config directory
func getConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	configDir := filepath.Join(homeDir, DefaultConfigDir)
	if _, err := os.Stat(configDir); os.IsNotExist(err) {
		os.MkdirAll(configDir, 0755)
	}
	return configDir
}

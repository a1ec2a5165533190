package setup

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var packageLogger = slog.Default()

// SetLogger configures the logger used for configuration and .env loading.
func SetLogger(logger *slog.Logger) {
	if logger == nil {
		packageLogger = slog.Default()
		return
	}
	packageLogger = logger
}

func getLogger() *slog.Logger {
	return packageLogger
}

// Config holds the tool's own settings, as opposed to the environment
// manifests it manages.
type Config struct {
	// StoreDir is where realized package artifacts and the store index live.
	StoreDir string `mapstructure:"store_dir"`
	// ManifestDir optionally overrides the embedded revision manifests.
	ManifestDir string `mapstructure:"manifest_dir"`
	// WorkflowFile optionally overrides the embedded workflow definition.
	WorkflowFile string `mapstructure:"workflow_file"`
	// EnvDir is where composed environments are written.
	EnvDir string `mapstructure:"env_dir"`
	// LogLevel is the default log level when no flag is given.
	LogLevel string `mapstructure:"log_level"`
}

// Defaults returns the configuration used when no config file exists.
func Defaults() Config {
	dataDir := ".pinion"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".local", "share", "pinion")
	}
	return Config{
		StoreDir: filepath.Join(dataDir, "store"),
		EnvDir:   filepath.Join(dataDir, "envs"),
		LogLevel: "info",
	}
}

// LoadConfig reads the tool configuration. An explicit path wins; otherwise
// the lookup order is .pinion/config.yaml in the working directory, then
// ~/.config/pinion/config.yaml. A missing config file is not an error.
func LoadConfig(path string) (Config, error) {
	defaults := Defaults()

	v := viper.New()
	v.SetDefault("store_dir", defaults.StoreDir)
	v.SetDefault("manifest_dir", defaults.ManifestDir)
	v.SetDefault("workflow_file", defaults.WorkflowFile)
	v.SetDefault("env_dir", defaults.EnvDir)
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetEnvPrefix("PINION")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else if _, err := os.Stat(filepath.Join(".pinion", "config.yaml")); err == nil {
		v.SetConfigFile(filepath.Join(".pinion", "config.yaml"))
	} else {
		home, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(home, ".config", "pinion"))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			if path != "" || !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	} else {
		getLogger().Debug("loaded tool configuration", "file", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

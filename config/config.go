package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const keyEnv = "ENV"
const envLocal = "local"

const (
	defaultPort     = "8080"
	defaultStateDir = ".memsearch"
)

type Config struct {
	config *viper.Viper
}

func Load() (*Config, error) {
	env := os.Getenv(keyEnv)
	if len(env) == 0 {
		env = envLocal
	}

	configPath, err := getConfigPath(env)

	viperConfig := viper.New()
	if err == nil {
		viperConfig.SetConfigFile(configPath)
		if err := viperConfig.ReadInConfig(); err != nil {
			slog.Warn(fmt.Sprintf("error reading config file, %s", err))
		}
	}
	viperConfig.AutomaticEnv()

	cfg := &Config{
		config: viperConfig,
	}

	return cfg, nil
}

func (c *Config) GetPort() string {
	port := c.config.GetString("PORT")
	if len(port) == 0 {
		port = c.config.GetString("server.port")
	}
	if len(port) == 0 {
		port = defaultPort
	}

	return port
}

// GetMemoryRoot returns the directory holding the memory files to index.
func (c *Config) GetMemoryRoot() string {
	root := c.config.GetString("MEMORY_ROOT")
	if len(root) == 0 {
		root = c.config.GetString("memory.root")
	}

	return root
}

// GetStateDir returns the directory holding the index snapshot and the
// key-value store. Kept outside the memory root by default so the index
// never indexes its own artifacts.
func (c *Config) GetStateDir() string {
	stateDir := c.config.GetString("STATE_DIR")
	if len(stateDir) == 0 {
		stateDir = c.config.GetString("memory.state_dir")
	}
	if len(stateDir) == 0 {
		stateDir = defaultStateDir
	}

	return stateDir
}

func (c *Config) GetSnapshotPath() string {
	return filepath.Join(c.GetStateDir(), "index.json")
}

func (c *Config) GetKVDBPath() string {
	return filepath.Join(c.GetStateDir(), "meta.db")
}

func getProjectRoot() (string, error) {
	currentDir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current working directory: %w", err)
	}

	for {
		configDir := filepath.Join(currentDir, "config")
		if info, err := os.Stat(configDir); err == nil && info.IsDir() {
			return currentDir, nil
		}

		parent := filepath.Dir(currentDir)

		if parent == currentDir {
			break
		}

		currentDir = parent
	}

	return "", fmt.Errorf("could not find project root (directory containing 'config' folder)")
}

func getConfigPath(env string) (string, error) {
	configFile := fmt.Sprintf("config.%s.yaml", env)

	projectRoot, err := getProjectRoot()
	if err != nil {
		slog.Warn("failed to find project root with config directory, will use environment variables instead", "err", err.Error())
		return "", fmt.Errorf("failed to find project root: %w", err)
	}
	configPath := filepath.Join(projectRoot, "config", configFile)
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		slog.Warn("failed to find config file within config directory, will use environment variables instead", "err", err.Error())
		return "", fmt.Errorf("config file does not exist: %s", configPath)
	}

	return configPath, nil
}

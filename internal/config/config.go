package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
	"vmigrate/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type Config struct {
	Port         int           `mapstructure:"port"`
	DBPath       string        `mapstructure:"db_path"`
	StreamBuffer int           `mapstructure:"stream_buffer"`
	SyncTimeout  time.Duration `mapstructure:"sync_timeout"`
}

var Default = Config{
	Port:         9400,
	DBPath:       "vmigrate.db",
	StreamBuffer: 64,
	SyncTimeout:  30 * time.Second,
}

func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home dir: %w", err)
	}

	configDir := filepath.Join(home, ".vmigrate")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config dir: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)

	viper.SetDefault("port", Default.Port)
	viper.SetDefault("db_path", Default.DBPath)
	viper.SetDefault("stream_buffer", Default.StreamBuffer)
	viper.SetDefault("sync_timeout", Default.SyncTimeout)

	viper.SetEnvPrefix("VMIGRATE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	viper.OnConfigChange(func(e fsnotify.Event) {
		logger.Log.Info("config file changed, restart to apply",
			zap.String("file", e.Name))
	})
	viper.WatchConfig()

	return &cfg, nil
}

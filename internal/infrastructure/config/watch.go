package config

import (
	"errors"
	"fmt"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// ErrNoConfigFile is returned by Watch when there is no file to watch
var ErrNoConfigFile = errors.New("no configuration file in use")

// Watch re-reads the configuration file whenever it changes and hands each
// valid result to onChange. An edit that fails to parse or validate is
// logged and skipped; the previous configuration stays in effect.
func Watch(configPath string, logger *zap.Logger, onChange func(*Config)) error {
	v, err := newViper(configPath)
	if err != nil {
		return err
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return ErrNoConfigFile
		}
		return fmt.Errorf("failed to read config: %w", err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := decode(v)
		if err != nil {
			logger.Warn("Ignoring invalid configuration change",
				zap.String("file", e.Name),
				zap.Error(err),
			)
			return
		}
		logger.Info("Configuration reloaded",
			zap.String("file", e.Name),
			zap.String("op", e.Op.String()),
		)
		onChange(cfg)
	})
	v.WatchConfig()

	logger.Debug("Watching configuration file", zap.String("file", v.ConfigFileUsed()))
	return nil
}

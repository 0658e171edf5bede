package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/sammichenVV/translateserver/internal/terms"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// EnvPrefix prefixes every environment override, e.g.
// TRANSLATESERVER_SERVER_PORT.
const EnvPrefix = "TRANSLATESERVER"

// envKeys are bound explicitly so they can be set from the environment
// without appearing in the config file.
var envKeys = []string{
	"server.port",
	"server.path",
	"server.admin_token",
	"server.trust_proxy_headers",
	"translation.source_lang",
	"translation.target_lang",
	"translation.marker",
	"translation.translate.method",
	"translation.translate.model",
	"translation.translate.api_key",
	"translation.translate.base_url",
	"translation.cache.enabled",
	"translation.cache.redis_url",
	"terms.dict_file",
	"terms.store.driver",
	"terms.store.path",
	"terms.store.database_url",
	"terms.store.redis_url",
	"events.amqp.url",
	"events.websocket.username",
	"events.websocket.password",
	"logging.level",
	"logging.format",
}

func newViper(configPath string) *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/translateserver/")
	v.AddConfigPath("$HOME/.translateserver/")

	// Environment variable overrides
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		v.BindEnv(key)
	}

	// Use specific config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
	}
	return v
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := newViper(configPath)

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is not an error - we'll use defaults
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	config := GetDefaults()
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.Translation.SourceLang = strings.ToLower(config.Translation.SourceLang)
	config.Translation.TargetLang = strings.ToLower(config.Translation.TargetLang)

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// validateConfig validates the loaded configuration
func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if !strings.HasPrefix(config.Server.Path, "/") {
		return fmt.Errorf("invalid server path: %q (must start with /)", config.Server.Path)
	}

	if config.Server.RateLimit.RequestsPerSecond < 0 || config.Server.RateLimit.Burst < 0 {
		return fmt.Errorf("invalid rate limit: %v/%d", config.Server.RateLimit.RequestsPerSecond, config.Server.RateLimit.Burst)
	}

	t := config.Translation
	if t.SourceLang == "" || t.TargetLang == "" {
		return fmt.Errorf("source_lang and target_lang are required")
	}
	if t.SourceLang == t.TargetLang {
		return fmt.Errorf("source_lang and target_lang must differ: %s", t.SourceLang)
	}
	if _, err := terms.NewCodec(t.Marker); err != nil {
		return fmt.Errorf("invalid marker: %w", err)
	}
	if t.MaxSentLen <= 0 {
		return fmt.Errorf("invalid max_sent_len: %d", t.MaxSentLen)
	}
	if len(t.Pipeline) == 0 {
		return fmt.Errorf("pipeline must contain at least one stage")
	}

	if config.Terms.Timeout <= 0 {
		return fmt.Errorf("invalid terms timeout: %s", config.Terms.Timeout)
	}

	if config.Logging.Level != "debug" && config.Logging.Level != "info" && config.Logging.Level != "warn" && config.Logging.Level != "error" {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.Logging.Level)
	}

	if config.Logging.Format != "json" && config.Logging.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", config.Logging.Format)
	}

	return nil
}

// Watch re-reads the configuration file whenever it changes and hands every
// valid result to callback. Invalid edits are logged and ignored. Without a
// config file there is nothing to watch and Watch returns nil.
func Watch(configPath string, logger *zap.Logger, callback func(*Config)) error {
	v := newViper(configPath)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		newConfig, err := decode(v)
		if err != nil {
			logger.Warn("Ignoring config change",
				zap.String("file", e.Name),
				zap.Error(err))
			return
		}

		logger.Info("Configuration reloaded", zap.String("file", e.Name))
		callback(newConfig)
	})
	v.WatchConfig()

	logger.Info("Watching configuration file", zap.String("file", v.ConfigFileUsed()))
	return nil
}

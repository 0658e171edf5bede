// Package store provides the persistent backends of the term dictionary.
package store

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sammichenVV/translateserver/internal/terms"
	"go.uber.org/zap"
)

// Supported drivers.
const (
	DriverBolt     = "bolt"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverFile     = "file"
	DriverMemory   = "memory"
)

// Config selects and configures the persistent term store.
type Config struct {
	Driver string `yaml:"driver" mapstructure:"driver"`
	// Path is the database file for bolt and the JSON file for file.
	Path string `yaml:"path" mapstructure:"path"`

	DatabaseURL     string        `yaml:"database_url" mapstructure:"database_url"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`

	RedisURL  string `yaml:"redis_url" mapstructure:"redis_url"`
	KeyPrefix string `yaml:"key_prefix" mapstructure:"key_prefix"`
}

var langCode = regexp.MustCompile(`^[a-z]{2,3}([_-][a-z0-9]{2,8})?$`)

// New opens the store named by cfg.Driver for the src->tgt language pair.
func New(cfg Config, src, tgt string, logger *zap.Logger) (terms.Store, error) {
	src, tgt = strings.ToLower(src), strings.ToLower(tgt)
	if !langCode.MatchString(src) || !langCode.MatchString(tgt) {
		return nil, fmt.Errorf("invalid language pair %q-%q", src, tgt)
	}

	switch cfg.Driver {
	case DriverBolt, "":
		return NewBolt(cfg.Path, src, tgt, logger)
	case DriverPostgres:
		return NewPostgres(cfg, src, tgt, logger)
	case DriverRedis:
		return NewRedis(cfg, src, tgt, logger)
	case DriverFile:
		return NewFile(cfg.Path, logger)
	case DriverMemory:
		logger.Warn("Using in-memory term store, added terms are lost on restart")
		return terms.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported term store driver: %s", cfg.Driver)
	}
}

// pairName is the language pair as used in bucket, table and key names.
func pairName(src, tgt, sep string) string {
	clean := strings.NewReplacer("-", "_")
	return clean.Replace(src) + sep + clean.Replace(tgt)
}

// maskURL hides the password of a connection URL for logging.
func maskURL(url string) string {
	at := strings.LastIndex(url, "@")
	if at < 0 {
		return url
	}
	scheme := strings.Index(url, "://")
	userinfo := url[:at]
	if scheme >= 0 {
		userinfo = url[scheme+3 : at]
	}
	colon := strings.Index(userinfo, ":")
	if colon < 0 {
		return url
	}
	prefix := url[:at-len(userinfo)]
	return prefix + userinfo[:colon] + ":***" + url[at:]
}

package config

import (
	"time"

	"github.com/sammichenVV/translateserver/internal/cache"
	"github.com/sammichenVV/translateserver/internal/events"
	"github.com/sammichenVV/translateserver/internal/pipeline"
	"github.com/sammichenVV/translateserver/internal/store"
	"github.com/sammichenVV/translateserver/internal/terms"
)

// Config represents the main configuration structure
type Config struct {
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Translation TranslationConfig `yaml:"translation" mapstructure:"translation"`
	Terms       TermsConfig       `yaml:"terms" mapstructure:"terms"`
	Events      EventsConfig      `yaml:"events" mapstructure:"events"`
	Logging     LoggingConfig     `yaml:"logging" mapstructure:"logging"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port         int           `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	// Path is the method-dispatch endpoint.
	Path string `yaml:"path" mapstructure:"path"`
	// AdminToken, when set, is required as a bearer token for dictionary
	// mutations.
	AdminToken   string          `yaml:"admin_token" mapstructure:"admin_token"`
	MaxBodyBytes int64           `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	RateLimit    RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	// TrustProxyHeaders takes the client address from X-Forwarded-For and
	// X-Real-IP. Enable only behind a proxy that sets them.
	TrustProxyHeaders bool `yaml:"trust_proxy_headers" mapstructure:"trust_proxy_headers"`
}

// RateLimitConfig limits requests per client IP. Zero disables limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int     `yaml:"burst" mapstructure:"burst"`
}

// TranslationConfig contains the language pair and pipeline layout
type TranslationConfig struct {
	SourceLang string                     `yaml:"source_lang" mapstructure:"source_lang"`
	TargetLang string                     `yaml:"target_lang" mapstructure:"target_lang"`
	Marker     string                     `yaml:"marker" mapstructure:"marker"`
	MaxSentLen int                        `yaml:"max_sent_len" mapstructure:"max_sent_len"`
	Pipeline   []string                   `yaml:"pipeline" mapstructure:"pipeline"`
	Translate  pipeline.TranslateSettings `yaml:"translate" mapstructure:"translate"`
	Cache      cache.Config               `yaml:"cache" mapstructure:"cache"`
}

// TermsConfig contains protected term dictionary configuration
type TermsConfig struct {
	DictFile string        `yaml:"dict_file" mapstructure:"dict_file"`
	Store    store.Config  `yaml:"store" mapstructure:"store"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// EventsConfig contains live feed and change publishing configuration
type EventsConfig struct {
	WebSocket WebSocketConfig   `yaml:"websocket" mapstructure:"websocket"`
	AMQP      events.AMQPConfig `yaml:"amqp" mapstructure:"amqp"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	Enabled        bool     `yaml:"enabled" mapstructure:"enabled"`
	Path           string   `yaml:"path" mapstructure:"path"`
	MaxConnections int      `yaml:"max_connections" mapstructure:"max_connections"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	Username       string   `yaml:"username" mapstructure:"username"`
	Password       string   `yaml:"password" mapstructure:"password"`
	// StatusInterval is how often a system status event is broadcast.
	StatusInterval time.Duration `yaml:"status_interval" mapstructure:"status_interval"`
	Events         struct {
		BroadcastTranslations bool `yaml:"broadcast_translations" mapstructure:"broadcast_translations"`
		BroadcastTerms        bool `yaml:"broadcast_terms" mapstructure:"broadcast_terms"`
		BroadcastSystem       bool `yaml:"broadcast_system" mapstructure:"broadcast_system"`
		BroadcastConnections  bool `yaml:"broadcast_connections" mapstructure:"broadcast_connections"`
	} `yaml:"events" mapstructure:"events"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // json or console
	File   struct {
		Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
		Path    string `yaml:"path" mapstructure:"path"`
	} `yaml:"file" mapstructure:"file"`
}

// GetDefaults returns a configuration with sensible defaults
func GetDefaults() *Config {
	config := &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
			Path:         "/translate",
			MaxBodyBytes: 1 << 20,
			RateLimit: RateLimitConfig{
				RequestsPerSecond: 20,
				Burst:             40,
			},
		},
		Translation: TranslationConfig{
			SourceLang: "en",
			TargetLang: "zh",
			Marker:     terms.DefaultMarker,
			MaxSentLen: pipeline.DefaultMaxSentLen,
			Pipeline: []string{
				"normalize",
				"sentence_split",
				"translate",
				"sentence_join",
				"remove_whitespace",
				"chinese_punc",
			},
			Translate: pipeline.TranslateSettings{
				Method:      "echo",
				Model:       "gpt-4o-mini",
				Temperature: 0.2,
				Timeout:     30 * time.Second,
			},
			Cache: cache.Config{
				Enabled:        false,
				RedisURL:       "redis://localhost:6379/0",
				MaxConnections: 10,
				MinIdleConns:   2,
				DefaultTTL:     24 * time.Hour,
				KeyPrefix:      "translateserver:",
			},
		},
		Terms: TermsConfig{
			DictFile: "",
			Store: store.Config{
				Driver:          store.DriverBolt,
				Path:            store.DefaultBoltPath,
				MaxOpenConns:    10,
				MaxIdleConns:    2,
				ConnMaxLifetime: 30 * time.Minute,
				KeyPrefix:       "translateserver:",
			},
			Timeout: 5 * time.Second,
		},
		Events: EventsConfig{
			WebSocket: WebSocketConfig{
				Enabled:        true,
				Path:           "/ws",
				MaxConnections: 100,
				AllowedOrigins: []string{"*"},
				StatusInterval: 30 * time.Second,
			},
			AMQP: events.AMQPConfig{
				Queue:   events.DefaultQueue,
				Timeout: 5 * time.Second,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}

	config.Events.WebSocket.Events.BroadcastTranslations = true
	config.Events.WebSocket.Events.BroadcastTerms = true
	config.Events.WebSocket.Events.BroadcastSystem = true
	config.Events.WebSocket.Events.BroadcastConnections = true
	config.Logging.File.Path = "logs/translateserver.log"

	return config
}

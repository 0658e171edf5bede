package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sammichenVV/translateserver/internal/cache"
	"github.com/sammichenVV/translateserver/internal/config"
	"github.com/sammichenVV/translateserver/internal/events"
	"github.com/sammichenVV/translateserver/internal/logger"
	"github.com/sammichenVV/translateserver/internal/metrics"
	"github.com/sammichenVV/translateserver/internal/pipeline"
	"github.com/sammichenVV/translateserver/internal/server"
	"github.com/sammichenVV/translateserver/internal/service"
	"github.com/sammichenVV/translateserver/internal/store"
	"github.com/sammichenVV/translateserver/internal/terms"
	"github.com/sammichenVV/translateserver/internal/websocket"
	"go.uber.org/zap"
)

var (
	version = server.Version
	commit  = "dev"
	date    = "unknown"
)

func main() {
	// Parse command line flags
	var (
		configPath  = flag.String("config", "", "Path to configuration file")
		envFile     = flag.String("env-file", ".env", "Environment file loaded before the configuration")
		showVersion = flag.Bool("version", false, "Show version information")
		healthCheck = flag.String("health-check", "", "Check the health endpoint at this address (e.g. localhost:8080) and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("translateserver %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	if *healthCheck != "" {
		performHealthCheck(*healthCheck)
		return
	}

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to load %s: %v\n", *envFile, err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	loggerConfig := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}
	if cfg.Logging.File.Enabled {
		loggerConfig.File = &logger.FileConfig{
			Enabled: true,
			Path:    cfg.Logging.File.Path,
		}
	}

	log, err := logger.New(loggerConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting translateserver",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("build_date", date),
		zap.String("source_lang", cfg.Translation.SourceLang),
		zap.String("target_lang", cfg.Translation.TargetLang),
	)

	app, err := initializeServices(cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer app.cleanup()

	if err := config.Watch(*configPath, log.WithComponent("config").Logger, func(c *config.Config) {
		if err := log.SetLevel(c.Logging.Level); err == nil {
			log.Info("Log level updated", zap.String("level", c.Logging.Level))
		}
	}); err != nil {
		log.Warn("Configuration file is not watched", zap.Error(err))
	}

	srv := server.New(cfg, app.translator, app.hub, log)

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
		serverErrors <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil {
			log.Error("Server error", zap.Error(err))
		}
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		// Give outstanding requests 30 seconds to complete
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Stop(ctx); err != nil {
			log.Error("Failed to shutdown server gracefully", zap.Error(err))
		}

		log.Info("Server shutdown complete")
	}
}

// services holds everything that needs closing on shutdown
type services struct {
	store      terms.Store
	cache      *cache.TranslationCache
	publisher  *events.AMQPPublisher
	hub        *websocket.Hub
	translator *service.Translator
	log        *logger.Logger
}

func (s *services) cleanup() {
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			s.log.Warn("Failed to close AMQP publisher", zap.Error(err))
		}
	}
	if s.cache != nil {
		s.cache.Close()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.log.Warn("Failed to close term store", zap.Error(err))
		}
	}
}

// initializeServices builds the store, term protection, pipeline and
// notifiers. Optional integrations that cannot connect are logged and
// skipped; configuration errors are returned.
func initializeServices(cfg *config.Config, log *logger.Logger) (*services, error) {
	app := &services{log: log}
	src, tgt := cfg.Translation.SourceLang, cfg.Translation.TargetLang

	termStore, err := store.New(cfg.Terms.Store, src, tgt, log.WithComponent("store").Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open term store: %w", err)
	}
	app.store = termStore

	protector, err := terms.NewProtector(terms.Config{
		Marker:     cfg.Translation.Marker,
		DictFile:   cfg.Terms.DictFile,
		SourceLang: src,
		TargetLang: tgt,
	}, termStore, log.WithComponent("terms").Logger)
	if err != nil {
		app.cleanup()
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Terms.Timeout)
	defer cancel()
	if err := protector.Init(ctx); err != nil {
		app.cleanup()
		return nil, err
	}

	settings := pipeline.Settings{
		SourceLang: src,
		TargetLang: tgt,
		MaxSentLen: cfg.Translation.MaxSentLen,
		Marker:     protector.Marker(),
		Translate:  cfg.Translation.Translate,
		Logger:     log.WithComponent("pipeline").Logger,
	}
	if cfg.Translation.Cache.Enabled {
		c, err := cache.NewTranslationCache(&cfg.Translation.Cache, log.WithComponent("cache").Logger)
		if err != nil {
			log.Warn("Translation cache disabled", zap.Error(err))
		} else {
			app.cache = c
			settings.Cache = c
		}
	}

	pl, err := pipeline.DefaultRegistry().Build(cfg.Translation.Pipeline, settings)
	if err != nil {
		app.cleanup()
		return nil, err
	}

	var notifiers []events.Notifier
	if ws := cfg.Events.WebSocket; ws.Enabled {
		app.hub = websocket.NewHub(&websocket.HubConfig{
			BroadcastTranslations: ws.Events.BroadcastTranslations,
			BroadcastTerms:        ws.Events.BroadcastTerms,
			BroadcastSystem:       ws.Events.BroadcastSystem,
			BroadcastConnections:  ws.Events.BroadcastConnections,
			MaxConnections:        ws.MaxConnections,
			AllowedOrigins:        ws.AllowedOrigins,
			Username:              ws.Username,
			Password:              ws.Password,
		}, log.WithComponent("websocket").Logger)
		notifiers = append(notifiers, app.hub)
	}
	if cfg.Events.AMQP.URL != "" {
		publisher, err := events.NewAMQPPublisher(cfg.Events.AMQP, log.WithComponent("events").Logger)
		if err != nil {
			log.Warn("AMQP publishing disabled", zap.Error(err))
		} else {
			app.publisher = publisher
			notifiers = append(notifiers, publisher)
		}
	}

	app.translator = service.NewTranslator(protector, pl, service.Options{
		SourceLang:   src,
		TargetLang:   tgt,
		StoreTimeout: cfg.Terms.Timeout,
		Notifier:     events.NewMulti(log.WithComponent("events").Logger, notifiers...),
		Metrics:      metrics.New(),
	}, log.WithComponent("service").Logger)

	return app, nil
}

// performHealthCheck performs a health check against the running server
func performHealthCheck(addr string) {
	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	resp, err := client.Get("http://" + addr + "/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: HTTP %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("Health check passed")
	os.Exit(0)
}

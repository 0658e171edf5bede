package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sammichenVV/translateserver/internal/config"
	"github.com/sammichenVV/translateserver/internal/logger"
	"github.com/sammichenVV/translateserver/internal/service"
	"github.com/sammichenVV/translateserver/internal/web"
	"github.com/sammichenVV/translateserver/internal/websocket"
	"go.uber.org/zap"
)

// Version is reported by /info.
const Version = "0.1.0"

// Server represents the HTTP front of the translation service
type Server struct {
	config     *config.Config
	logger     *logger.Logger
	translator *service.Translator
	wsHub      *websocket.Hub
	limiter    *clientLimiter
	router     *mux.Router
	server     *http.Server
	cancel     context.CancelFunc
	startTime  time.Time
}

// New creates a new server instance. hub may be nil when the live feed is
// disabled.
func New(cfg *config.Config, translator *service.Translator, hub *websocket.Hub, log *logger.Logger) *Server {
	s := &Server{
		config:     cfg,
		logger:     log.WithComponent("server"),
		translator: translator,
		wsHub:      hub,
		limiter:    newClientLimiter(cfg.Server.RateLimit.RequestsPerSecond, cfg.Server.RateLimit.Burst),
		router:     mux.NewRouter(),
		startTime:  time.Now(),
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/info", s.handleInfo).Methods("GET")
	s.router.HandleFunc("/metrics", s.handleMetrics).Methods("GET")

	if s.wsHub != nil {
		s.router.HandleFunc(s.config.Events.WebSocket.Path, s.wsHub.HandleWebSocket).Methods("GET")

		dashboard := web.Dashboard(s.config.Events.WebSocket.Path)
		s.router.HandleFunc("/", dashboard).Methods("GET")
		s.router.HandleFunc("/dashboard", dashboard).Methods("GET")
	}

	// Method-dispatch endpoint
	api := s.router.NewRoute().Subrouter()
	api.Use(s.loggingMiddleware)
	api.Use(s.rateLimitMiddleware)
	api.Use(s.bodyLimitMiddleware)
	api.HandleFunc(s.config.Server.Path, s.handleDispatch).Methods("POST")
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the hub, the status broadcaster and the HTTP server. It blocks
// until the server stops.
func (s *Server) Start() error {
	s.logger.Info("Starting translation server",
		zap.Int("port", s.config.Server.Port),
		zap.String("path", s.config.Server.Path),
		zap.String("pair", s.translator.Pair()),
		zap.Strings("pipeline", s.translator.Stages()),
		zap.Int("terms", s.translator.TermCount()),
	)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	if s.wsHub != nil {
		go s.wsHub.Run(ctx)
		if interval := s.config.Events.WebSocket.StatusInterval; interval > 0 {
			go s.broadcastStatus(ctx, interval)
		}
	}
	go s.limiter.cleanup(ctx, time.Minute)

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping translation server")
	if s.cancel != nil {
		s.cancel()
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) broadcastStatus(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.wsHub.BroadcastEvent(websocket.Event{
				Type:      websocket.EventTypeSystemStatus,
				Timestamp: time.Now(),
				Data:      s.status(),
			})
		}
	}
}

func (s *Server) status() websocket.SystemStatusEvent {
	status := websocket.SystemStatusEvent{
		Status:        "healthy",
		Uptime:        time.Since(s.startTime).Round(time.Second).String(),
		TotalRequests: s.translator.Metrics().RequestsTotal.Load(),
		Terms:         s.translator.TermCount(),
	}
	if s.wsHub != nil {
		status.ConnectedClients = s.wsHub.ClientCount()
	}
	return status
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// handleInfo handles info requests
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":        "translateserver",
		"version":     Version,
		"source_lang": s.config.Translation.SourceLang,
		"target_lang": s.config.Translation.TargetLang,
		"pipeline":    s.translator.Stages(),
		"method":      s.config.Translation.Translate.Method,
		"store":       s.config.Terms.Store.Driver,
		"terms":       s.translator.TermCount(),
	})
}

// handleMetrics returns the counter snapshot
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{
		"service": s.translator.Metrics().Snapshot(),
	}
	if s.wsHub != nil {
		body["websocket"] = s.wsHub.GetStats()
	}
	writeJSON(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

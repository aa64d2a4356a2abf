package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/batchlens/batchlens-ai/internal/analysis"
	"github.com/batchlens/batchlens-ai/internal/artifact"
	"github.com/batchlens/batchlens-ai/internal/audit"
	"github.com/batchlens/batchlens-ai/internal/config"
	"github.com/batchlens/batchlens-ai/internal/db"
	"github.com/batchlens/batchlens-ai/internal/llm/adapter"
)

// Server is the batchlens-ai HTTP server: REST API, WebSocket streaming and
// Prometheus metrics over the diagnosis engine.
type Server struct {
	config *config.Config
	logger *zap.Logger

	// Core components
	llmAdapter adapter.LLMAdapter
	artifacts  artifact.Store
	store      db.Store
	auditLog   audit.Logger
	engine     analysis.AnalysisEngine

	// HTTP server
	httpServer *http.Server

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// State
	mu      sync.RWMutex
	running bool
}

// NewServer creates a server with all components wired together.
func NewServer(cfg *config.Config) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	ctx, cancel := context.WithCancel(context.Background())

	srv := &Server{
		config: cfg,
		ctx:    ctx,
		cancel: cancel,
	}

	if err := srv.initializeComponents(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize components: %w", err)
	}

	return srv, nil
}

// initializeComponents wires the logger, LLM adapter, stores and engine.
func (s *Server) initializeComponents() error {
	logger, err := buildLogger(s.config)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	s.logger = logger

	llmAdapter, err := adapter.NewLLMAdapter(adapterConfig(s.config))
	if err != nil {
		return fmt.Errorf("failed to initialize LLM adapter: %w", err)
	}
	s.llmAdapter = llmAdapter

	artifacts, err := artifact.NewFileStore(
		s.config.Analysis.ArtifactRoot,
		s.config.Analysis.ArtifactSizeLimit,
		logger.Named("artifact"),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize artifact store: %w", err)
	}
	s.artifacts = artifacts

	store, err := db.NewSQLiteStore(s.config.Database.SQLitePath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	s.store = store

	auditCfg := audit.DefaultConfig()
	auditCfg.AuditLogPath = s.config.Logging.AuditLogPath
	auditCfg.LogLevel = s.config.Logging.Level
	auditLog, err := audit.NewLogger(auditCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize audit logger: %w", err)
	}
	s.auditLog = auditLog

	s.engine = analysis.NewAnalysisEngine(
		s.llmAdapter,
		s.artifacts,
		s.store,
		s.auditLog,
		logger.Named("analysis"),
		analysis.Options{
			MaxIterations:      s.config.Analysis.MaxIterations,
			PerRoundFetchLimit: s.config.Analysis.PerRoundFetchLimit,
			RelevanceThreshold: s.config.Analysis.RelevanceThreshold,
			SeedArtifacts:      s.config.Analysis.SeedArtifacts,
		},
	)

	return nil
}

// adapterConfig maps the loaded configuration onto the LLM adapter config.
func adapterConfig(cfg *config.Config) *adapter.Config {
	out := &adapter.Config{Provider: adapter.ProviderType(cfg.LLM.Provider)}
	switch cfg.LLM.Provider {
	case "openai":
		out.APIKey, _ = cfg.LLM.OpenAI["api_key"].(string)
		out.Model, _ = cfg.LLM.OpenAI["model"].(string)
	case "anthropic":
		out.APIKey, _ = cfg.LLM.Anthropic["api_key"].(string)
		out.Model, _ = cfg.LLM.Anthropic["model"].(string)
	case "ollama":
		out.Model, _ = cfg.LLM.Ollama["model"].(string)
		out.BaseURL, _ = cfg.LLM.Ollama["base_url"].(string)
	}
	return out
}

// buildLogger creates the rotating application logger from the logging config.
func buildLogger(cfg *config.Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if err := level.Set(cfg.Logging.Level); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Logging.Level, err)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var encoder zapcore.Encoder
	if cfg.Logging.Format == "text" {
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	writer := zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.Logging.AppLogPath,
		MaxSize:    50, // MB
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	})

	core := zapcore.NewCore(encoder, writer, level)
	return zap.New(core, zap.AddCaller()), nil
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.running = true
	s.mu.Unlock()

	mux := http.NewServeMux()
	s.registerHandlers(mux)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Server.Port),
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute, // synchronous analyses can run long
		IdleTimeout:  120 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Info("HTTP server starting", zap.Int("port", s.config.Server.Port))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	s.logger.Info("batchlens-ai server started",
		zap.String("llm_provider", s.config.LLM.Provider),
		zap.String("artifact_root", s.config.Analysis.ArtifactRoot),
		zap.Int("max_iterations", s.config.Analysis.MaxIterations),
	)

	return nil
}

// Stop gracefully stops the server.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return fmt.Errorf("server is not running")
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("stopping batchlens-ai server")

	if s.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("HTTP shutdown error", zap.Error(err))
		}
	}

	s.cancel()
	s.wg.Wait()

	if s.store != nil {
		_ = s.store.Close()
	}
	if s.auditLog != nil {
		_ = s.auditLog.Close()
	}
	_ = s.logger.Sync()

	return nil
}

// Wait blocks until the server is stopped.
func (s *Server) Wait() {
	<-s.ctx.Done()
}

// IsRunning reports whether the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// registerHandlers registers HTTP handlers.
func (s *Server) registerHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)
	mux.HandleFunc("/info", s.handleInfo)

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/api/v1/analyses", s.handleAnalyses)
	mux.HandleFunc("/api/v1/analyses/", s.handleAnalysisByID)
	mux.HandleFunc("/api/v1/artifacts", s.handleListArtifacts)

	mux.HandleFunc("/ws/analyses/", s.handleAnalysisStream)
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/robfig/cron/v3"

	"github.com/hmi-forge/backend/internal/api"
	"github.com/hmi-forge/backend/internal/config"
	"github.com/hmi-forge/backend/internal/llm"
	"github.com/hmi-forge/backend/internal/pipeline"
	"github.com/hmi-forge/backend/internal/session"
	"github.com/hmi-forge/backend/internal/storage"
	"github.com/hmi-forge/backend/internal/upload"
	"github.com/hmi-forge/backend/internal/web"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Get the executable's directory for config resolution
	exePath, err := os.Executable()
	if err != nil {
		fmt.Printf("Failed to get executable path: %v\n", err)
		os.Exit(1)
	}
	defaultConfig := filepath.Join(filepath.Dir(exePath), "hmi-forge.yaml")

	configPath := flag.String("config", defaultConfig, "path to the YAML configuration file")
	development := flag.Bool("dev", false, "include error details in API responses")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Ensure all data directories exist
	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Printf("Failed to create directories: %v\n", err)
		os.Exit(1)
	}

	logger := cfg.NewLogger()

	// Check if running in embedded mode (frontend built into binary)
	embeddedMode := web.HasEmbeddedFiles()

	client, err := llm.New(cfg.LLM, logger)
	if err != nil {
		logger.Error("failed to create model client", "provider", cfg.LLM.Provider, "error", err)
		os.Exit(1)
	}
	prompts, err := llm.LoadPrompts(cfg.LLM.PromptDirectory)
	if err != nil {
		logger.Error("failed to load prompt templates", "dir", cfg.LLM.PromptDirectory, "error", err)
		os.Exit(1)
	}

	runner := pipeline.New(client, prompts, pipeline.Options{
		Workers:          cfg.Processing.ScreenWorkers,
		MaxDocumentBytes: cfg.Processing.MaxDocumentBytes,
		Model:            cfg.LLM.Model,
		Temperature:      cfg.LLM.Temperature,
		MaxTokens:        cfg.LLM.MaxTokens,
		RenderSeed:       cfg.Processing.RenderSeed,
	}, logger)

	// Initialize storage
	fileStore, err := storage.NewLocalStore(cfg.GetUploadDir())
	if err != nil {
		logger.Error("failed to initialize storage", "dir", cfg.GetUploadDir(), "error", err)
		os.Exit(1)
	}

	sessionTimeout := time.Duration(cfg.Processing.SessionTimeoutMinutes) * time.Minute
	cleanupInterval := time.Duration(cfg.Processing.CleanupIntervalMinutes) * time.Minute

	sessionMgr := session.NewManager(runner, session.Options{
		OutputDir:   cfg.Storage.OutputDirectory,
		TempDir:     cfg.Storage.TempDirectory,
		MaxSessions: cfg.Processing.MaxConcurrentSessions,
		Ledger: storage.LedgerOptions{
			Threads:     cfg.Advanced.DuckDBThreads,
			MemoryLimit: cfg.Advanced.DuckDBMemoryLimit,
		},
		OnFinish: api.DocumentStatusUpdater(fileStore, logger),
	}, logger)
	defer sessionMgr.Close()

	if err := sessionMgr.StartCleanup(cleanupInterval, sessionTimeout); err != nil {
		logger.Error("failed to schedule session cleanup", "error", err)
		os.Exit(1)
	}

	// Initialize upload processing manager
	uploadMgr := upload.NewManager(fileStore, logger)
	uploadCron := cron.New()
	if _, err := uploadCron.AddFunc(fmt.Sprintf("@every %s", cleanupInterval), func() {
		if n := uploadMgr.CleanupOldJobs(sessionTimeout); n > 0 {
			logger.Debug("upload job cleanup ran", "removed", n)
		}
	}); err != nil {
		logger.Error("failed to schedule upload cleanup", "error", err)
		os.Exit(1)
	}
	uploadCron.Start()
	defer uploadCron.Stop()

	e := echo.New()
	e.HideBanner = true

	// Configure middleware
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			// Skip logging if disabled in config
			if !cfg.Advanced.EnableRequestLogging {
				return true
			}
			path := c.Request().URL.Path
			return strings.HasSuffix(path, "/status") ||
				strings.HasSuffix(path, "/progress") ||
				path == "/api/health"
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize:         1024 * 4,
		DisablePrintStack: false,
		LogLevel:          0,
	}))

	e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout: time.Duration(cfg.Server.ReadTimeout) * time.Second,
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return strings.HasSuffix(path, "/progress") ||
				strings.Contains(path, "/upload") ||
				strings.HasPrefix(path, "/api/ws/") ||
				strings.HasSuffix(path, "/msgpack") ||
				c.Request().Header.Get("Accept") == "text/event-stream"
		},
		ErrorMessage: "Request timeout - request took too long",
	}))

	// Compression middleware
	if cfg.Processing.EnableCompression {
		e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
			Level: cfg.Processing.CompressionLevel,
			Skipper: func(c echo.Context) bool {
				path := c.Request().URL.Path
				return c.Request().Header.Get("Accept") == "text/event-stream" ||
					strings.HasPrefix(path, "/api/ws/") ||
					strings.HasSuffix(path, "/image") ||
					strings.HasSuffix(path, "/combined")
			},
		}))
	}

	// Body limit middleware
	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	// CORS configuration
	if cfg.Server.EnableCORS {
		if embeddedMode {
			origins := strings.Split(cfg.Server.AllowOrigins, ",")
			for i := range origins {
				origins[i] = strings.TrimSpace(origins[i])
			}
			if len(origins) == 0 || (len(origins) == 1 && origins[0] == "") {
				origins = []string{"*"}
			}
			e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
				AllowOrigins: origins,
				AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
				AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
			}))
		} else {
			// Development mode - only allow localhost
			e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
				AllowOrigins: []string{
					"http://localhost:5173", "http://127.0.0.1:5173",
					"http://localhost:3000", "http://127.0.0.1:3000",
				},
				AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
				AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
			}))
		}
	}

	api.SetupMiddleware(e, *development)
	api.RegisterRoutes(e, api.NewHandlers(&api.Dependencies{
		Store:             fileStore,
		SessionMgr:        sessionMgr,
		UploadMgr:         uploadMgr,
		Version:           Version,
		LLMProvider:       cfg.LLM.Provider,
		AllowedFileTypes:  cfg.Security.AllowedFileTypes,
		AllowFileDeletion: cfg.Security.AllowFileDeletion,
		Logger:            logger,
	}))

	// Register embedded frontend if available
	if embeddedMode {
		if err := web.RegisterStaticRoutes(e); err != nil {
			logger.Warn("failed to register static routes", "error", err)
		} else {
			logger.Info("serving embedded review page from binary")
		}
	}

	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	// Print startup banner
	mode := "API only"
	if embeddedMode {
		mode = "Embedded review page"
	}
	model := cfg.LLM.Model
	if cfg.LLM.Provider == config.ProviderNone {
		model = "(templates only)"
	}

	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           HMI Forge Server                                ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("║  Mode:       %-45s║\n", mode)
	fmt.Printf("║  Provider:   %-45s║\n", cfg.LLM.Provider)
	fmt.Printf("║  Model:      %-45s║\n", model)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", *configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  Data Dir:  %-46s║\n", cfg.GetDataDir())
	fmt.Printf("║  Output:    %-46s║\n", cfg.Storage.OutputDirectory)
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")

	if embeddedMode {
		fmt.Printf("Open http://localhost:%d in your browser\n\n", cfg.Server.Port)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := e.StartServer(s); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", "error", err)
	}
}

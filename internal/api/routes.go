// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"log/slog"

	"github.com/labstack/echo/v4"

	"github.com/hmi-forge/backend/internal/models"
	"github.com/hmi-forge/backend/internal/storage"
	"github.com/hmi-forge/backend/internal/upload"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Store             storage.Store
	SessionMgr        SessionManager
	UploadMgr         *upload.Manager
	Version           string
	LLMProvider       string
	AllowedFileTypes  string
	AllowFileDeletion bool
	Logger            *slog.Logger
}

// Handlers holds all handler instances
type Handlers struct {
	Health     HealthHandler
	Documents  DocumentHandler
	Generation GenerationHandler
	Results    ResultHandler
	Progress   *ProgressSocket

	allowFileDeletion bool
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health:            NewHealthHandler(deps.Version, deps.LLMProvider, deps.SessionMgr),
		Documents:         NewDocumentHandler(deps.Store, deps.UploadMgr, deps.AllowedFileTypes),
		Generation:        NewGenerationHandler(deps.Store, deps.SessionMgr, deps.Logger),
		Results:           NewResultHandler(deps.SessionMgr),
		Progress:          NewProgressSocket(deps.SessionMgr, deps.Logger),
		allowFileDeletion: deps.AllowFileDeletion,
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	apiGroup := e.Group("/api")

	// Health check
	apiGroup.GET("/health", handlers.Health.HandleHealth)

	// Document routes
	files := apiGroup.Group("/files")
	files.POST("/upload", handlers.Documents.HandleUploadFile)
	files.POST("/upload/binary", handlers.Documents.HandleUploadBinary)
	files.POST("/upload/chunk", handlers.Documents.HandleUploadChunk)
	files.POST("/upload/complete", handlers.Documents.HandleCompleteUpload)
	files.GET("/upload/:jobId/status", handlers.Documents.HandleUploadJobStream)
	files.GET("/recent", handlers.Documents.HandleGetRecentFiles)
	files.GET("/:id", handlers.Documents.HandleGetFile)
	files.PUT("/:id", handlers.Documents.HandleRenameFile)
	if handlers.allowFileDeletion {
		files.DELETE("/:id", handlers.Documents.HandleDeleteFile)
	}

	// Generation session routes
	apiGroup.POST("/generate", handlers.Generation.HandleStartGeneration)
	sessions := apiGroup.Group("/sessions")
	sessions.GET("", handlers.Generation.HandleListSessions)
	sessions.GET("/:sessionId/status", handlers.Generation.HandleSessionStatus)
	sessions.GET("/:sessionId/progress", handlers.Generation.HandleProgressStream)
	sessions.POST("/:sessionId/keepalive", handlers.Generation.HandleSessionKeepAlive)
	sessions.POST("/:sessionId/cancel", handlers.Generation.HandleCancelSession)
	sessions.DELETE("/:sessionId", handlers.Generation.HandleDeleteSession)

	// Result routes
	sessions.GET("/:sessionId/screens", handlers.Results.HandleGetScreens)
	sessions.GET("/:sessionId/workflow", handlers.Results.HandleGetWorkflow)
	sessions.GET("/:sessionId/screens/:index/spec", handlers.Results.HandleGetScreenSpec)
	sessions.GET("/:sessionId/screens/:index/image", handlers.Results.HandleGetScreenImage)
	sessions.GET("/:sessionId/combined", handlers.Results.HandleGetCombinedImage)
	sessions.GET("/:sessionId/result/msgpack", handlers.Results.HandleGetResultMsgpack)

	// WebSocket progress
	apiGroup.GET("/ws/progress", handlers.Progress.HandleWebSocket)
}

// SetupMiddleware configures the error handler shared by all routes
func SetupMiddleware(e *echo.Echo, development bool) {
	SetDevelopment(development)
	e.HTTPErrorHandler = ErrorHandler
}

// DocumentStatusUpdater returns a session finish hook that records the
// outcome of a generation on its source document.
func DocumentStatusUpdater(store storage.Store, logger *slog.Logger) func(models.GenerationSession) {
	if logger == nil {
		logger = slog.Default()
	}
	return func(s models.GenerationSession) {
		status := storage.StatusError
		switch s.Status {
		case models.SessionStatusComplete:
			status = storage.StatusGenerated
		case models.SessionStatusCancelled:
			status = storage.StatusUploaded
		}
		if err := store.SetStatus(s.FileID, status); err != nil {
			logger.Warn("could not update document status", "file", s.FileID, "status", status, "error", err)
		}
	}
}

// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/hmi-forge/backend/internal/models"
	"github.com/hmi-forge/backend/internal/pipeline"
	"github.com/hmi-forge/backend/internal/storage"
)

// DocumentHandler handles FDS document upload and management
type DocumentHandler interface {
	HandleUploadFile(c echo.Context) error
	HandleUploadBinary(c echo.Context) error
	HandleUploadChunk(c echo.Context) error
	HandleCompleteUpload(c echo.Context) error
	HandleUploadJobStream(c echo.Context) error
	HandleGetRecentFiles(c echo.Context) error
	HandleGetFile(c echo.Context) error
	HandleDeleteFile(c echo.Context) error
	HandleRenameFile(c echo.Context) error
}

// GenerationHandler handles generation session lifecycle operations
type GenerationHandler interface {
	HandleStartGeneration(c echo.Context) error
	HandleListSessions(c echo.Context) error
	HandleSessionStatus(c echo.Context) error
	HandleProgressStream(c echo.Context) error
	HandleSessionKeepAlive(c echo.Context) error
	HandleCancelSession(c echo.Context) error
	HandleDeleteSession(c echo.Context) error
}

// ResultHandler serves the outputs of a completed session
type ResultHandler interface {
	HandleGetScreens(c echo.Context) error
	HandleGetWorkflow(c echo.Context) error
	HandleGetScreenSpec(c echo.Context) error
	HandleGetScreenImage(c echo.Context) error
	HandleGetCombinedImage(c echo.Context) error
	HandleGetResultMsgpack(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// SessionManager defines the interface for session management
// This allows mocking in tests
type SessionManager interface {
	StartSession(fileID, filePath string) (*models.GenerationSession, error)
	GetSession(id string) (*models.GenerationSession, bool)
	ListSessions() []models.GenerationSession
	TouchSession(id string) bool
	GetResult(id string) (*pipeline.Result, error)
	Screens(ctx context.Context, id string) ([]storage.ScreenRecord, error)
	Screen(ctx context.Context, id string, i int) (storage.ScreenRecord, error)
	CombinedImagePath(id string) (string, error)
	CancelSession(id string) bool
	DeleteSession(id string) error
}

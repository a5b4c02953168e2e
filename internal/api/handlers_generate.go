// handlers_generate.go - Generation session operation handlers
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hmi-forge/backend/internal/models"
	"github.com/hmi-forge/backend/internal/storage"
)

// GenerationHandlerImpl implements the GenerationHandler interface
type GenerationHandlerImpl struct {
	store      storage.Store
	sessionMgr SessionManager
	logger     *slog.Logger
}

// NewGenerationHandler creates a new generation handler instance
func NewGenerationHandler(store storage.Store, sessionMgr SessionManager, logger *slog.Logger) GenerationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GenerationHandlerImpl{
		store:      store,
		sessionMgr: sessionMgr,
		logger:     logger,
	}
}

// HandleStartGeneration starts generating screens for an uploaded document
func (h *GenerationHandlerImpl) HandleStartGeneration(c echo.Context) error {
	var req startGenerationRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if req.FileID == "" {
		return NewValidationError("fileId")
	}

	info, err := h.store.Get(req.FileID)
	if err != nil {
		return NewNotFoundError("file", req.FileID)
	}
	if info.Status == storage.StatusGenerating {
		return NewConflictError(fmt.Sprintf("file %s is already being generated", info.ID))
	}

	path, err := h.store.GetFilePath(info.ID)
	if err != nil {
		return NewInternalError("failed to get file path", err)
	}

	// Mark before starting so a fast run's final status is not overwritten.
	if err := h.store.SetStatus(info.ID, storage.StatusGenerating); err != nil {
		h.logger.Warn("could not mark document as generating", "file", info.ID, "error", err)
	}

	sess, err := h.sessionMgr.StartSession(info.ID, path)
	if err != nil {
		h.store.SetStatus(info.ID, info.Status)
		return fromSessionError(err, info.ID)
	}

	return c.JSON(http.StatusAccepted, sess)
}

// HandleListSessions returns every tracked session, newest first
func (h *GenerationHandlerImpl) HandleListSessions(c echo.Context) error {
	return c.JSON(http.StatusOK, h.sessionMgr.ListSessions())
}

// HandleSessionStatus returns the current status of a generation session
func (h *GenerationHandlerImpl) HandleSessionStatus(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	sess, ok := h.sessionMgr.GetSession(id)
	if !ok {
		return NewNotFoundError("session", id)
	}

	// Touch session to prevent cleanup while being viewed
	h.sessionMgr.TouchSession(id)

	return c.JSON(http.StatusOK, sess)
}

// HandleProgressStream streams generation progress via SSE
func (h *GenerationHandlerImpl) HandleProgressStream(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	startSSE(c)

	sess, ok := h.sessionMgr.GetSession(id)
	if !ok {
		sendSSEError(c, "session not found")
		return nil
	}
	sendSSEData(c, sess)
	if sess.Done() {
		return nil
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	timeout := time.NewTimer(5 * time.Minute)
	defer timeout.Stop()

	last := sess
	for {
		select {
		case <-ticker.C:
			sess, ok := h.sessionMgr.GetSession(id)
			if !ok {
				sendSSEError(c, "session not found")
				return nil
			}
			if !sessionChanged(last, sess) {
				continue
			}
			last = sess
			sendSSEData(c, sess)
			if sess.Done() {
				return nil
			}

		case <-timeout.C:
			sendSSEError(c, "stream timeout")
			return nil

		case <-c.Request().Context().Done():
			return nil
		}
	}
}

// HandleSessionKeepAlive extends session lifetime for active viewing
func (h *GenerationHandlerImpl) HandleSessionKeepAlive(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	if ok := h.sessionMgr.TouchSession(id); !ok {
		return NewNotFoundError("session", id)
	}

	return c.NoContent(http.StatusNoContent)
}

// HandleCancelSession stops a running generation
func (h *GenerationHandlerImpl) HandleCancelSession(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	if h.sessionMgr.CancelSession(id) {
		return c.NoContent(http.StatusAccepted)
	}
	if _, ok := h.sessionMgr.GetSession(id); ok {
		return NewConflictError(fmt.Sprintf("session %s has already finished", id))
	}
	return NewNotFoundError("session", id)
}

// HandleDeleteSession cancels a session if needed and removes its outputs
func (h *GenerationHandlerImpl) HandleDeleteSession(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	if err := h.sessionMgr.DeleteSession(id); err != nil {
		return fromSessionError(err, id)
	}

	return c.NoContent(http.StatusNoContent)
}

// Request/Response types

type startGenerationRequest struct {
	FileID string `json:"fileId"`
}

// Helper functions

func sessionChanged(a, b *models.GenerationSession) bool {
	return a.Status != b.Status ||
		a.Progress != b.Progress ||
		a.Step != b.Step ||
		a.Message != b.Message
}

func startSSE(c echo.Context) {
	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)
}

func sendSSEData(c echo.Context, data interface{}) {
	jsonData, _ := json.Marshal(data)
	fmt.Fprintf(c.Response(), "data: %s\n\n", jsonData)
	c.Response().Flush()
}

func sendSSEError(c echo.Context, message string) {
	sendSSEData(c, map[string]string{"error": message})
}

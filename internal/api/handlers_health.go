// handlers_health.go - Health check handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// HealthHandlerImpl implements the HealthHandler interface
type HealthHandlerImpl struct {
	version    string
	provider   string
	sessionMgr SessionManager
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version, provider string, sessionMgr SessionManager) HealthHandler {
	return &HealthHandlerImpl{
		version:    version,
		provider:   provider,
		sessionMgr: sessionMgr,
	}
}

// HandleHealth returns server health status
func (h *HealthHandlerImpl) HandleHealth(c echo.Context) error {
	active := 0
	if h.sessionMgr != nil {
		for _, s := range h.sessionMgr.ListSessions() {
			if !s.Done() {
				active++
			}
		}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"version":        h.version,
		"llmProvider":    h.provider,
		"activeSessions": active,
	})
}

// handlers_results.go - Handlers serving the outputs of completed sessions
package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/hmi-forge/backend/internal/models"
	"github.com/hmi-forge/backend/internal/storage"
)

// ResultHandlerImpl implements the ResultHandler interface
type ResultHandlerImpl struct {
	sessionMgr SessionManager
}

// NewResultHandler creates a new result handler instance
func NewResultHandler(sessionMgr SessionManager) ResultHandler {
	return &ResultHandlerImpl{sessionMgr: sessionMgr}
}

// HandleGetScreens lists every screen of a session with its render status
func (h *ResultHandlerImpl) HandleGetScreens(c echo.Context) error {
	id, err := h.sessionID(c)
	if err != nil {
		return err
	}

	screens, err := h.sessionMgr.Screens(c.Request().Context(), id)
	if err != nil {
		return fromSessionError(err, id)
	}

	return c.JSON(http.StatusOK, screens)
}

// HandleGetWorkflow returns the workflow diagram of a session
func (h *ResultHandlerImpl) HandleGetWorkflow(c echo.Context) error {
	id, err := h.sessionID(c)
	if err != nil {
		return err
	}

	res, err := h.sessionMgr.GetResult(id)
	if err != nil {
		return fromSessionError(err, id)
	}

	return c.JSON(http.StatusOK, res.Workflow)
}

// HandleGetScreenSpec returns the validated specification of one screen
func (h *ResultHandlerImpl) HandleGetScreenSpec(c echo.Context) error {
	id, rec, err := h.screen(c)
	if err != nil {
		return err
	}
	if rec.SpecJSON == "" {
		return NewNotFoundError("screen specification", fmt.Sprintf("%s/%d", id, rec.Index))
	}

	return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, []byte(rec.SpecJSON))
}

// HandleGetScreenImage returns the rendered PNG of one screen
func (h *ResultHandlerImpl) HandleGetScreenImage(c echo.Context) error {
	id, rec, err := h.screen(c)
	if err != nil {
		return err
	}
	if rec.Status != storage.ScreenRendered || rec.ImagePath == "" {
		return NewNotFoundError("screen image", fmt.Sprintf("%s/%d", id, rec.Index))
	}

	return c.File(rec.ImagePath)
}

// HandleGetCombinedImage returns the combined layout PNG of a session
func (h *ResultHandlerImpl) HandleGetCombinedImage(c echo.Context) error {
	id, err := h.sessionID(c)
	if err != nil {
		return err
	}

	path, err := h.sessionMgr.CombinedImagePath(id)
	if err != nil {
		return fromSessionError(err, id)
	}

	return c.File(path)
}

// HandleGetResultMsgpack returns the whole result in MessagePack format.
// Images are included when the images query parameter is true.
func (h *ResultHandlerImpl) HandleGetResultMsgpack(c echo.Context) error {
	id, err := h.sessionID(c)
	if err != nil {
		return err
	}

	bundle, err := h.buildBundle(c.Request().Context(), id, c.QueryParam("images") == "true")
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return apiErr
		}
		return fromSessionError(err, id)
	}

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	enc.UseCompactInts(true)
	if err := enc.Encode(bundle); err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}

	return c.Blob(http.StatusOK, "application/msgpack", buf.Bytes())
}

// resultBundle is the MessagePack export of a completed session.
type resultBundle struct {
	Session  models.GenerationSession     `json:"session"`
	Workflow models.WorkflowDiagram       `json:"workflow"`
	Screens  []storage.ScreenRecord       `json:"screens"`
	Specs    []models.ScreenSpecification `json:"specs"`
	Images   [][]byte                     `json:"images,omitempty"`
	Combined []byte                       `json:"combined,omitempty"`
}

func (h *ResultHandlerImpl) buildBundle(ctx context.Context, id string, withImages bool) (*resultBundle, error) {
	sess, ok := h.sessionMgr.GetSession(id)
	if !ok {
		return nil, NewNotFoundError("session", id)
	}
	res, err := h.sessionMgr.GetResult(id)
	if err != nil {
		return nil, err
	}
	screens, err := h.sessionMgr.Screens(ctx, id)
	if err != nil {
		return nil, err
	}

	bundle := &resultBundle{
		Session:  *sess,
		Workflow: res.Workflow,
		Screens:  screens,
		Specs:    make([]models.ScreenSpecification, len(res.Results)),
	}
	for i, sr := range res.Results {
		bundle.Specs[i] = sr.Spec
	}
	if withImages {
		bundle.Images = make([][]byte, len(res.Results))
		for i, sr := range res.Results {
			bundle.Images[i] = sr.PNG
		}
		bundle.Combined = res.Combined
	}
	return bundle, nil
}

func (h *ResultHandlerImpl) sessionID(c echo.Context) (string, error) {
	id := c.Param("sessionId")
	if id == "" {
		return "", NewValidationError("sessionId")
	}
	h.sessionMgr.TouchSession(id)
	return id, nil
}

func (h *ResultHandlerImpl) screen(c echo.Context) (string, storage.ScreenRecord, error) {
	id, err := h.sessionID(c)
	if err != nil {
		return "", storage.ScreenRecord{}, err
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		return "", storage.ScreenRecord{}, NewValidationError("index")
	}

	rec, err := h.sessionMgr.Screen(c.Request().Context(), id, index)
	if errors.Is(err, storage.ErrNotFound) {
		return "", storage.ScreenRecord{}, NewNotFoundError("screen", fmt.Sprintf("%s/%d", id, index))
	}
	if err != nil {
		return "", storage.ScreenRecord{}, fromSessionError(err, id)
	}
	if _, err := os.Stat(rec.ImagePath); rec.ImagePath != "" && err != nil {
		rec.ImagePath = ""
	}
	return id, rec, nil
}

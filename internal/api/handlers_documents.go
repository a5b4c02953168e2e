// handlers_documents.go - FDS document upload and management handlers
package api

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hmi-forge/backend/internal/storage"
	"github.com/hmi-forge/backend/internal/upload"
)

// maxRecentFiles caps the recent documents listing.
const maxRecentFiles = 50

// DocumentHandlerImpl implements the DocumentHandler interface
type DocumentHandlerImpl struct {
	store         storage.Store
	uploadManager *upload.Manager
	allowedTypes  map[string]bool
}

// NewDocumentHandler creates a new document handler instance.
// allowedTypes is a comma-separated extension list; empty allows any.
func NewDocumentHandler(store storage.Store, uploadMgr *upload.Manager, allowedTypes string) DocumentHandler {
	return &DocumentHandlerImpl{
		store:         store,
		uploadManager: uploadMgr,
		allowedTypes:  parseAllowedTypes(allowedTypes),
	}
}

// HandleUploadFile accepts a document as base64 JSON and saves it to storage
func (h *DocumentHandlerImpl) HandleUploadFile(c echo.Context) error {
	var req uploadFileRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := req.validate(); err != nil {
		return err
	}
	if err := h.checkType(req.Name); err != nil {
		return err
	}

	decoded, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		return NewBadRequestError("invalid base64 data", err)
	}

	info, err := h.store.Save(req.Name, bytes.NewReader(decoded))
	if err != nil {
		return NewInternalError("failed to save file", err)
	}

	return c.JSON(http.StatusCreated, info)
}

// HandleUploadBinary accepts a raw document upload (multipart/form-data)
func (h *DocumentHandlerImpl) HandleUploadBinary(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return NewBadRequestError("no file provided", err)
	}
	if err := h.checkType(file.Filename); err != nil {
		return err
	}

	src, err := file.Open()
	if err != nil {
		return NewInternalError("failed to open uploaded file", err)
	}
	defer src.Close()

	info, err := h.store.Save(filepath.Base(file.Filename), src)
	if err != nil {
		return NewInternalError("failed to save file", err)
	}

	return c.JSON(http.StatusCreated, info)
}

// HandleUploadChunk accepts a single chunk of a chunked upload
func (h *DocumentHandlerImpl) HandleUploadChunk(c echo.Context) error {
	var req uploadChunkRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := req.validate(); err != nil {
		return err
	}

	decoded, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		return NewBadRequestError("invalid base64 data", err)
	}

	if err := h.store.SaveChunk(req.UploadID, req.ChunkIndex, bytes.NewReader(decoded)); err != nil {
		return NewInternalError("failed to save chunk", err)
	}

	return c.NoContent(http.StatusAccepted)
}

// HandleCompleteUpload completes a chunked upload and starts async assembly
func (h *DocumentHandlerImpl) HandleCompleteUpload(c echo.Context) error {
	var req completeUploadRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if err := req.validate(); err != nil {
		return err
	}
	if err := h.checkType(req.Name); err != nil {
		return err
	}

	job := h.uploadManager.StartJob(
		req.UploadID,
		req.Name,
		req.TotalChunks,
		req.OriginalSize,
		req.CompressedSize,
		req.Encoding,
	)

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"jobId":  job.ID,
		"status": job.Status,
	})
}

// HandleUploadJobStream streams upload job status via SSE
func (h *DocumentHandlerImpl) HandleUploadJobStream(c echo.Context) error {
	id := c.Param("jobId")
	if id == "" {
		return NewValidationError("jobId")
	}
	if _, ok := h.uploadManager.GetJob(id); !ok {
		return NewNotFoundError("upload job", id)
	}

	startSSE(c)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	timeout := time.NewTimer(5 * time.Minute)
	defer timeout.Stop()

	for {
		job, ok := h.uploadManager.GetJob(id)
		if !ok {
			sendSSEError(c, "upload job not found")
			return nil
		}
		sendSSEData(c, job)
		if job.Done() {
			return nil
		}

		select {
		case <-ticker.C:
		case <-timeout.C:
			sendSSEError(c, "stream timeout")
			return nil
		case <-c.Request().Context().Done():
			return nil
		}
	}
}

// HandleGetRecentFiles returns the most recently uploaded documents
func (h *DocumentHandlerImpl) HandleGetRecentFiles(c echo.Context) error {
	files, err := h.store.List(0)
	if err != nil {
		return NewInternalError("failed to list files", err)
	}

	sort.SliceStable(files, func(i, j int) bool {
		return files[i].UploadedAt.After(files[j].UploadedAt)
	})
	if len(files) > maxRecentFiles {
		files = files[:maxRecentFiles]
	}

	return c.JSON(http.StatusOK, files)
}

// HandleGetFile returns metadata for a specific document
func (h *DocumentHandlerImpl) HandleGetFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	info, err := h.store.Get(id)
	if err != nil {
		return NewNotFoundError("file", id)
	}

	return c.JSON(http.StatusOK, info)
}

// HandleDeleteFile deletes a document that is not being generated
func (h *DocumentHandlerImpl) HandleDeleteFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	info, err := h.store.Get(id)
	if err != nil {
		return NewNotFoundError("file", id)
	}
	if info.Status == storage.StatusGenerating {
		return NewConflictError(fmt.Sprintf("file %s is being generated", id))
	}

	if err := h.store.Delete(id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return NewNotFoundError("file", id)
		}
		return NewInternalError("failed to delete file", err)
	}

	return c.NoContent(http.StatusNoContent)
}

// HandleRenameFile updates the display name of a document
func (h *DocumentHandlerImpl) HandleRenameFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	var req renameFileRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if strings.TrimSpace(req.Name) == "" {
		return NewValidationError("name")
	}

	info, err := h.store.Rename(id, req.Name)
	if err != nil {
		return NewNotFoundError("file", id)
	}

	return c.JSON(http.StatusOK, info)
}

func (h *DocumentHandlerImpl) checkType(name string) error {
	if len(h.allowedTypes) == 0 {
		return nil
	}
	ext := strings.ToLower(filepath.Ext(name))
	if !h.allowedTypes[ext] {
		return NewBadRequestError(fmt.Sprintf("unsupported document type %q", ext), nil)
	}
	return nil
}

func parseAllowedTypes(list string) map[string]bool {
	allowed := make(map[string]bool)
	for _, ext := range strings.Split(list, ",") {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		allowed[ext] = true
	}
	return allowed
}

// Request/Response types

type uploadFileRequest struct {
	Name string `json:"name"`
	Data string `json:"data"` // Base64-encoded content
}

func (r *uploadFileRequest) validate() error {
	if r.Name == "" {
		return NewValidationError("name")
	}
	if r.Data == "" {
		return NewValidationError("data")
	}
	return nil
}

type uploadChunkRequest struct {
	UploadID    string `json:"uploadId"`
	ChunkIndex  int    `json:"chunkIndex"`
	Data        string `json:"data"` // Base64-encoded chunk
	TotalChunks int    `json:"totalChunks"`
}

func (r *uploadChunkRequest) validate() error {
	if r.UploadID == "" {
		return NewValidationError("uploadId")
	}
	if r.ChunkIndex < 0 {
		return NewValidationError("chunkIndex")
	}
	if r.Data == "" {
		return NewValidationError("data")
	}
	return nil
}

type completeUploadRequest struct {
	UploadID       string `json:"uploadId"`
	Name           string `json:"name"`
	TotalChunks    int    `json:"totalChunks"`
	OriginalSize   int64  `json:"originalSize"`
	CompressedSize int64  `json:"compressedSize"`
	Encoding       string `json:"encoding"`
}

func (r *completeUploadRequest) validate() error {
	if r.UploadID == "" {
		return NewValidationError("uploadId")
	}
	if r.Name == "" {
		return NewValidationError("name")
	}
	if r.TotalChunks <= 0 {
		return NewBadRequestError("totalChunks must be positive", nil)
	}
	if r.Encoding != upload.EncodingNone && r.Encoding != upload.EncodingGzip {
		return NewBadRequestError(fmt.Sprintf("unsupported encoding %q", r.Encoding), nil)
	}
	return nil
}

type renameFileRequest struct {
	Name string `json:"name"`
}

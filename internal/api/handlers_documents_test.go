// handlers_documents_test.go - Tests for document handlers
package api

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hmi-forge/backend/internal/models"
	"github.com/hmi-forge/backend/internal/storage"
	"github.com/hmi-forge/backend/internal/testutil"
	"github.com/hmi-forge/backend/internal/upload"
)

const testAllowedTypes = ".txt,.md,.docx,.pdf"

func newJSONContext(method, target string, body interface{}) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func assertAPIError(t *testing.T, err error, wantStatus int, wantCode string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected APIError, got %T (%v)", err, err)
	}
	if apiErr.Status != wantStatus {
		t.Errorf("expected status %d, got %d", wantStatus, apiErr.Status)
	}
	if wantCode != "" && apiErr.Code != wantCode {
		t.Errorf("expected error code %s, got %s", wantCode, apiErr.Code)
	}
}

func TestDocumentHandler_HandleUploadFile(t *testing.T) {
	tests := []struct {
		name       string
		request    uploadFileRequest
		wantStatus int
		wantErr    bool
		errCode    string
	}{
		{
			name: "valid document upload",
			request: uploadFileRequest{
				Name: "pump_fds.txt",
				Data: base64.StdEncoding.EncodeToString([]byte(testutil.PumpFDS)),
			},
			wantStatus: http.StatusCreated,
		},
		{
			name: "empty name",
			request: uploadFileRequest{
				Data: base64.StdEncoding.EncodeToString([]byte("content")),
			},
			wantStatus: http.StatusBadRequest,
			wantErr:    true,
			errCode:    "VALIDATION_ERROR",
		},
		{
			name:       "empty data",
			request:    uploadFileRequest{Name: "fds.txt"},
			wantStatus: http.StatusBadRequest,
			wantErr:    true,
			errCode:    "VALIDATION_ERROR",
		},
		{
			name: "invalid base64",
			request: uploadFileRequest{
				Name: "fds.txt",
				Data: "not-valid-base64!!!",
			},
			wantStatus: http.StatusBadRequest,
			wantErr:    true,
			errCode:    "BAD_REQUEST",
		},
		{
			name: "unsupported type",
			request: uploadFileRequest{
				Name: "setup.exe",
				Data: base64.StdEncoding.EncodeToString([]byte("MZ")),
			},
			wantStatus: http.StatusBadRequest,
			wantErr:    true,
			errCode:    "BAD_REQUEST",
		},
		{
			name: "extension check ignores case",
			request: uploadFileRequest{
				Name: "FDS.PDF",
				Data: base64.StdEncoding.EncodeToString([]byte("%PDF-1.4")),
			},
			wantStatus: http.StatusCreated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := testutil.NewMockStorage(t.TempDir())
			handler := NewDocumentHandler(store, nil, testAllowedTypes)
			c, rec := newJSONContext(http.MethodPost, "/api/files/upload", tt.request)

			err := handler.HandleUploadFile(c)

			if tt.wantErr {
				assertAPIError(t, err, tt.wantStatus, tt.errCode)
				if store.FileCount() != 0 {
					t.Errorf("expected nothing stored, got %d files", store.FileCount())
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			var info models.FileInfo
			if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
				t.Fatalf("failed to unmarshal response: %v", err)
			}
			if info.Name != tt.request.Name {
				t.Errorf("expected name %s, got %s", tt.request.Name, info.Name)
			}
			if info.Status != storage.StatusUploaded {
				t.Errorf("expected status %s, got %s", storage.StatusUploaded, info.Status)
			}
		})
	}
}

func TestDocumentHandler_HandleUploadBinary(t *testing.T) {
	store := testutil.NewMockStorage(t.TempDir())
	handler := NewDocumentHandler(store, nil, testAllowedTypes)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, _ := w.CreateFormFile("file", "../../station_fds.md")
	part.Write([]byte(testutil.PumpFDS))
	w.Close()

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/files/upload/binary", &body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	rec := httptest.NewRecorder()

	if err := handler.HandleUploadBinary(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, rec.Code)
	}
	var info models.FileInfo
	json.Unmarshal(rec.Body.Bytes(), &info)
	if info.Name != "station_fds.md" {
		t.Errorf("expected directory components stripped, got %q", info.Name)
	}
	if info.Size != int64(len(testutil.PumpFDS)) {
		t.Errorf("expected size %d, got %d", len(testutil.PumpFDS), info.Size)
	}

	t.Run("no file", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/files/upload/binary", strings.NewReader(""))
		err := handler.HandleUploadBinary(e.NewContext(req, httptest.NewRecorder()))
		assertAPIError(t, err, http.StatusBadRequest, "BAD_REQUEST")
	})
}

func TestDocumentHandler_HandleGetRecentFiles(t *testing.T) {
	store := testutil.NewMockStorage(t.TempDir())
	for i := 0; i < maxRecentFiles+5; i++ {
		store.AddFile(fmt.Sprintf("doc-%02d", i), "fds.txt", []byte("x"))
		time.Sleep(time.Millisecond)
	}
	handler := NewDocumentHandler(store, nil, "")
	c, rec := newJSONContext(http.MethodGet, "/api/files/recent", nil)

	if err := handler.HandleGetRecentFiles(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var files []models.FileInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &files); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(files) != maxRecentFiles {
		t.Fatalf("expected %d files, got %d", maxRecentFiles, len(files))
	}
	for i := 1; i < len(files); i++ {
		if files[i].UploadedAt.After(files[i-1].UploadedAt) {
			t.Fatalf("files not sorted newest first at %d", i)
		}
	}
}

func TestDocumentHandler_HandleGetFile(t *testing.T) {
	tests := []struct {
		name    string
		fileID  string
		wantErr bool
		errCode string
	}{
		{name: "existing file", fileID: "doc-1"},
		{name: "missing id", fileID: "", wantErr: true, errCode: "VALIDATION_ERROR"},
		{name: "unknown file", fileID: "nope", wantErr: true, errCode: "NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := testutil.NewMockStorage(t.TempDir())
			store.AddFile("doc-1", "fds.txt", []byte(testutil.PumpFDS))
			handler := NewDocumentHandler(store, nil, "")

			c, rec := newJSONContext(http.MethodGet, "/api/files/:id", nil)
			c.SetParamNames("id")
			c.SetParamValues(tt.fileID)

			err := handler.HandleGetFile(c)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if apiErr := err.(*APIError); apiErr.Code != tt.errCode {
					t.Errorf("expected error code %s, got %s", tt.errCode, apiErr.Code)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rec.Code != http.StatusOK {
				t.Errorf("expected status 200, got %d", rec.Code)
			}
		})
	}
}

func TestDocumentHandler_HandleDeleteFile(t *testing.T) {
	tests := []struct {
		name       string
		fileID     string
		status     string
		wantStatus int
		wantErr    bool
		errCode    string
	}{
		{name: "delete uploaded file", fileID: "doc-1", status: storage.StatusUploaded, wantStatus: http.StatusNoContent},
		{name: "delete generated file", fileID: "doc-1", status: storage.StatusGenerated, wantStatus: http.StatusNoContent},
		{name: "file being generated", fileID: "doc-1", status: storage.StatusGenerating, wantErr: true, errCode: "CONFLICT"},
		{name: "unknown file", fileID: "nope", wantErr: true, errCode: "NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := testutil.NewMockStorage(t.TempDir())
			store.AddFile("doc-1", "fds.txt", []byte("x"))
			store.SetStatus("doc-1", tt.status)
			handler := NewDocumentHandler(store, nil, "")

			c, rec := newJSONContext(http.MethodDelete, "/api/files/:id", nil)
			c.SetParamNames("id")
			c.SetParamValues(tt.fileID)

			err := handler.HandleDeleteFile(c)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if apiErr := err.(*APIError); apiErr.Code != tt.errCode {
					t.Errorf("expected error code %s, got %s", tt.errCode, apiErr.Code)
				}
				if store.FileCount() != 1 {
					t.Errorf("file should not be deleted")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if store.FileCount() != 0 {
				t.Errorf("expected file to be deleted")
			}
		})
	}
}

func TestDocumentHandler_HandleRenameFile(t *testing.T) {
	tests := []struct {
		name    string
		fileID  string
		newName string
		wantErr bool
		errCode string
	}{
		{name: "rename", fileID: "doc-1", newName: "station.txt"},
		{name: "blank name", fileID: "doc-1", newName: "   ", wantErr: true, errCode: "VALIDATION_ERROR"},
		{name: "unknown file", fileID: "nope", newName: "x.txt", wantErr: true, errCode: "NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := testutil.NewMockStorage(t.TempDir())
			store.AddFile("doc-1", "fds.txt", []byte("x"))
			handler := NewDocumentHandler(store, nil, "")

			c, rec := newJSONContext(http.MethodPut, "/api/files/:id", renameFileRequest{Name: tt.newName})
			c.SetParamNames("id")
			c.SetParamValues(tt.fileID)

			err := handler.HandleRenameFile(c)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if apiErr := err.(*APIError); apiErr.Code != tt.errCode {
					t.Errorf("expected error code %s, got %s", tt.errCode, apiErr.Code)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			var info models.FileInfo
			json.Unmarshal(rec.Body.Bytes(), &info)
			if info.Name != tt.newName {
				t.Errorf("expected name %s, got %s", tt.newName, info.Name)
			}
		})
	}
}

func TestDocumentHandler_ChunkedUpload(t *testing.T) {
	store := testutil.NewMockStorage(t.TempDir())
	mgr := upload.NewManager(store, nil)
	handler := NewDocumentHandler(store, mgr, testAllowedTypes)

	content := []byte(testutil.PumpFDS)
	parts := [][]byte{content[:100], content[100:]}
	for i, p := range parts {
		c, rec := newJSONContext(http.MethodPost, "/api/files/upload/chunk", uploadChunkRequest{
			UploadID:    "up-1",
			ChunkIndex:  i,
			Data:        base64.StdEncoding.EncodeToString(p),
			TotalChunks: len(parts),
		})
		if err := handler.HandleUploadChunk(c); err != nil {
			t.Fatalf("chunk %d: unexpected error: %v", i, err)
		}
		if rec.Code != http.StatusAccepted {
			t.Fatalf("chunk %d: expected status 202, got %d", i, rec.Code)
		}
	}

	c, rec := newJSONContext(http.MethodPost, "/api/files/upload/complete", completeUploadRequest{
		UploadID:    "up-1",
		Name:        "pump_fds.txt",
		TotalChunks: len(parts),
	})
	if err := handler.HandleCompleteUpload(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var started map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &started)
	jobID, _ := started["jobId"].(string)
	if jobID == "" {
		t.Fatalf("expected jobId in response, got %s", rec.Body.String())
	}

	// The stream ends once the job is done.
	c, rec = newJSONContext(http.MethodGet, "/api/files/upload/:jobId/status", nil)
	c.SetParamNames("jobId")
	c.SetParamValues(jobID)
	if err := handler.HandleUploadJobStream(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	events := strings.Split(strings.TrimSpace(rec.Body.String()), "\n\n")
	var last upload.Job
	if err := json.Unmarshal([]byte(strings.TrimPrefix(events[len(events)-1], "data: ")), &last); err != nil {
		t.Fatalf("failed to decode last event: %v", err)
	}
	if last.Status != upload.StatusComplete || last.FileInfo == nil {
		t.Fatalf("expected completed job with file info, got %+v", last)
	}
	if last.FileInfo.Size != int64(len(content)) {
		t.Errorf("expected size %d, got %d", len(content), last.FileInfo.Size)
	}

	t.Run("unknown job", func(t *testing.T) {
		c, _ := newJSONContext(http.MethodGet, "/api/files/upload/:jobId/status", nil)
		c.SetParamNames("jobId")
		c.SetParamValues("missing")
		assertAPIError(t, handler.HandleUploadJobStream(c), http.StatusNotFound, "NOT_FOUND")
	})
}

func TestCompleteUploadRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     completeUploadRequest
		wantErr bool
	}{
		{name: "valid", req: completeUploadRequest{UploadID: "u", Name: "a.txt", TotalChunks: 1}},
		{name: "gzip", req: completeUploadRequest{UploadID: "u", Name: "a.txt", TotalChunks: 1, Encoding: "gzip"}},
		{name: "missing upload id", req: completeUploadRequest{Name: "a.txt", TotalChunks: 1}, wantErr: true},
		{name: "missing name", req: completeUploadRequest{UploadID: "u", TotalChunks: 1}, wantErr: true},
		{name: "zero chunks", req: completeUploadRequest{UploadID: "u", Name: "a.txt"}, wantErr: true},
		{name: "unknown encoding", req: completeUploadRequest{UploadID: "u", Name: "a.txt", TotalChunks: 1, Encoding: "brotli"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseAllowedTypes(t *testing.T) {
	got := parseAllowedTypes(" .TXT, md ,,.pdf")
	for _, ext := range []string{".txt", ".md", ".pdf"} {
		if !got[ext] {
			t.Errorf("expected %s to be allowed", ext)
		}
	}
	if len(got) != 3 {
		t.Errorf("expected 3 types, got %d", len(got))
	}
	if len(parseAllowedTypes("")) != 0 {
		t.Errorf("expected empty list to allow any type")
	}
}

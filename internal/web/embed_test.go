package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestRegisterStaticRoutes(t *testing.T) {
	if !HasEmbeddedFiles() {
		t.Fatal("expected embedded index.html")
	}

	e := echo.New()
	if err := RegisterStaticRoutes(e); err != nil {
		t.Fatalf("RegisterStaticRoutes: %v", err)
	}

	tests := []struct {
		path       string
		wantStatus int
		wantBody   string
	}{
		{"/", http.StatusOK, "<title>HMI Forge</title>"},
		{"/app.js", http.StatusOK, "EventSource"},
		{"/sessions/abc", http.StatusOK, "<title>HMI Forge</title>"},
		{"/api/unknown", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body of %s does not contain %q", tt.path, tt.wantBody)
			}
		})
	}
}

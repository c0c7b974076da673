package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddlewareLabelsByRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	collectors := New()
	router := gin.New()
	router.Use(collectors.Middleware())
	router.GET("/api/items/:id", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	for _, path := range []string{"/api/items/1", "/api/items/2", "/missing"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := testutil.ToFloat64(collectors.httpRequestsTotal.WithLabelValues(http.MethodGet, "/api/items/:id", "204")); got != 2 {
		t.Fatalf("expected two templated requests, got %v", got)
	}
	if got := testutil.ToFloat64(collectors.httpRequestsTotal.WithLabelValues(http.MethodGet, unmatchedRoute, "404")); got != 1 {
		t.Fatalf("expected one unmatched request, got %v", got)
	}
}

func TestEditorAndUploadCollectors(t *testing.T) {
	collectors := New()

	collectors.ObserveOperation("save", nil)
	collectors.ObserveOperation("save", errors.New("boom"))
	collectors.SetBusy(true)
	if got := testutil.ToFloat64(collectors.editorBusy); got != 1 {
		t.Fatalf("busy gauge must follow the editor, got %v", got)
	}
	collectors.SetBusy(false)

	collectors.ObserveUpload(2048, nil)
	collectors.ObserveUpload(0, errors.New("too large"))

	if got := testutil.ToFloat64(collectors.editorOperations.WithLabelValues("save", "error")); got != 1 {
		t.Fatalf("unexpected failed saves %v", got)
	}
	if got := testutil.ToFloat64(collectors.uploadedBytes); got != 2048 {
		t.Fatalf("unexpected uploaded bytes %v", got)
	}

	recorder := httptest.NewRecorder()
	collectors.Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := recorder.Body.String()
	for _, name := range []string{"folio_editor_operations_total", "folio_upload_files_total", "go_goroutines"} {
		if !strings.Contains(body, name) {
			t.Fatalf("exposition is missing %s", name)
		}
	}
}

package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
)

func TestDebugHandler_RuntimeInfo(t *testing.T) {
	router := mux.NewRouter()
	NewDebugHandler(false).Register(router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/runtime", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	for _, field := range []string{"go_version", "num_cpu", "num_goroutine", "uptime_seconds", "memory"} {
		if _, ok := result[field]; !ok {
			t.Errorf("missing required field: %s", field)
		}
	}
}

func TestDebugHandler_PprofToggle(t *testing.T) {
	tests := []struct {
		enabled bool
		want    int
	}{
		{true, http.StatusOK},
		{false, http.StatusNotFound},
	}
	for _, tt := range tests {
		router := mux.NewRouter()
		NewDebugHandler(tt.enabled).Register(router)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
		if rec.Code != tt.want {
			t.Errorf("pprof enabled=%v: expected %d, got %d", tt.enabled, tt.want, rec.Code)
		}
	}
}

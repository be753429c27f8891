package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealth(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/health", nil)

	health(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("health() status = %d, want %d", w.Code, http.StatusOK)
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("health() body is not JSON: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("health() status field = %q, want %q", body["status"], "ok")
	}
}

func TestReadiness_NoPool(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/ready", nil)

	readiness(nil).ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("readiness(nil) status = %d, want %d", w.Code, http.StatusOK)
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("readiness(nil) body is not JSON: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("readiness(nil) status field = %q, want %q", body["status"], "ok")
	}
}

package httpx

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWriteJSONAndError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusCreated, map[string]string{"status": "created"})
	if rec.Code != http.StatusCreated {
		t.Errorf("code = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	rec = httptest.NewRecorder()
	Error(rec, http.StatusBadRequest, "invalid email")
	if !strings.Contains(rec.Body.String(), `"error":"invalid email"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestDecodeJSON(t *testing.T) {
	var body struct {
		Email string `json:"email"`
	}

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@x.com"}`))
	if err := DecodeJSON(r, &body); err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if body.Email != "a@x.com" {
		t.Errorf("Email = %q", body.Email)
	}

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@x.com","extra":1}`))
	if err := DecodeJSON(r, &body); err == nil {
		t.Error("unknown fields should be rejected")
	}

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}{}`))
	if err := DecodeJSON(r, &body); err == nil {
		t.Error("trailing data should be rejected")
	}
}

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing nosniff header")
	}
	if rec.Header().Get("Cache-Control") != "no-store" {
		t.Error("missing no-store header")
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.7:4123"
	if ip := ClientIP(r); ip != "192.0.2.7" {
		t.Errorf("ClientIP = %q", ip)
	}

	r.Header.Set("X-Real-IP", "203.0.113.9")
	if ip := ClientIP(r); ip != "203.0.113.9" {
		t.Errorf("ClientIP with X-Real-IP = %q", ip)
	}
}

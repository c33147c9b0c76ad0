package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func testHash(t *testing.T, passcode string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(passcode), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return string(hash)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestExchangeAndValidate(t *testing.T) {
	auth := NewPasscodeAuth(testHash(t, "open-sesame"), time.Hour)

	if _, ok := auth.Exchange("wrong"); ok {
		t.Fatal("wrong passcode accepted")
	}

	token, ok := auth.Exchange("open-sesame")
	if !ok {
		t.Fatal("correct passcode rejected")
	}
	if !auth.Valid(token) {
		t.Error("freshly issued token invalid")
	}
	if auth.Valid("forged") {
		t.Error("forged token accepted")
	}
}

func TestTokenExpiry(t *testing.T) {
	auth := NewPasscodeAuth(testHash(t, "pc"), time.Nanosecond)

	token, ok := auth.Exchange("pc")
	if !ok {
		t.Fatal("exchange failed")
	}
	time.Sleep(time.Millisecond)
	if auth.Valid(token) {
		t.Error("expired token still valid")
	}
}

func TestMiddlewareRejectsAndAccepts(t *testing.T) {
	auth := NewPasscodeAuth(testHash(t, "pc"), time.Hour)
	handler := auth.Middleware(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/clients", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", rec.Code)
	}

	token, _ := auth.Exchange("pc")

	req := httptest.NewRequest("GET", "/api/clients", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("header token: status = %d, want 200", rec.Code)
	}

	// Query-parameter fallback for WebSocket / calendar clients.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/ws?token="+token, nil))
	if rec.Code != http.StatusOK {
		t.Errorf("query token: status = %d, want 200", rec.Code)
	}
}

func TestMiddlewareDisabledWithoutHash(t *testing.T) {
	auth := NewPasscodeAuth("", time.Hour)
	if auth.Enabled() {
		t.Fatal("auth enabled with empty hash")
	}

	rec := httptest.NewRecorder()
	auth.Middleware(okHandler()).ServeHTTP(rec, httptest.NewRequest("GET", "/api/clients", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want pass-through 200", rec.Code)
	}
}

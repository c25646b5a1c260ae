package server

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/Asul0/belg-agent/config"
	"github.com/Asul0/belg-agent/internal/dialogue"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	logger := log.New(io.Discard, "", 0)
	store := dialogue.NewStore(time.Hour, nil, logger)
	return New(config.ServerConfig{
		Address:           ":0",
		JWTSecret:         "test-secret",
		AdminPasswordHash: string(hash),
	}, store, logger)
}

func doJSON(handler echo.HandlerFunc, method, target, body string) (*httptest.ResponseRecorder, error) {
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return rec, handler(e.NewContext(req, rec))
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)

	rec, err := doJSON(s.login, http.MethodPost, "/api/auth/login", `{"password": "secret123"}`)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	var resp tokenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Token == "" {
		t.Fatalf("expected a token, got %q (%v)", rec.Body.String(), err)
	}

	if _, err := doJSON(s.login, http.MethodPost, "/api/auth/login", `{"password": "wrong"}`); err == nil {
		t.Fatal("wrong password must be rejected")
	} else if he, ok := err.(*echo.HTTPError); !ok || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestAuthMiddleware(t *testing.T) {
	secret := []byte("test-secret")
	next := func(c echo.Context) error { return c.String(http.StatusOK, "ok") }
	mw := authMiddleware(secret)(next)

	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	rec := httptest.NewRecorder()
	if err := mw(e.NewContext(req, rec)); err == nil {
		t.Fatal("request without a token must be rejected")
	}

	token, err := signJWT("admin", secret, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	req = httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	if err := mw(e.NewContext(req, rec)); err != nil {
		t.Fatalf("valid token rejected: %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	if err := mw(e.NewContext(req, rec)); err == nil {
		t.Fatal("garbage token must be rejected")
	}

	expired, err := signJWT("admin", secret, -time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	req = httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	req.Header.Set("Authorization", "Bearer "+expired)
	rec = httptest.NewRecorder()
	if err := mw(e.NewContext(req, rec)); err == nil {
		t.Fatal("expired token must be rejected")
	}
}

func TestSessionsEndpoint(t *testing.T) {
	s := newTestServer(t)
	st := s.store.Get(42)
	st.Stage = dialogue.StagePostSearch
	st.Country = "Индия"

	rec, err := doJSON(s.sessions, http.MethodGet, "/api/sessions", "")
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	var views []sessionView
	if err := json.Unmarshal(rec.Body.Bytes(), &views); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(views) != 1 || views[0].ChatID != 42 || views[0].Stage != "post_search" {
		t.Fatalf("unexpected sessions payload: %+v", views)
	}
}

package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"coverletter-backend/internal/letters"
	"coverletter-backend/internal/shared/auth"
	"coverletter-backend/internal/shared/config"
)

func testRouter(t *testing.T, verifier *auth.Verifier) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc := &letters.Service{Repo: letters.NewMemoryRepo()}
	return NewRouter(RouterDeps{
		Config:   config.Config{Env: "test", CORSAllowOrigin: []string{"http://localhost:5173"}},
		Verifier: verifier,
		Handlers: []RouteRegistrar{letters.NewHandler(svc)},
	})
}

func TestHealthIsPublic(t *testing.T) {
	r := testRouter(t, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestMetricsIsPublic(t *testing.T) {
	r := testRouter(t, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "letter_derivation_started_total") {
		t.Fatalf("expected derivation counter in body: %s", rec.Body.String())
	}
}

func TestLettersRequireIdentity(t *testing.T) {
	r := testRouter(t, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/letters", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestMeReportsGuest(t *testing.T) {
	r := testRouter(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("X-Guest-Id", "abc")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["userId"] != "guest:abc" || body["isGuest"] != true {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestMeReportsBearerIdentity(t *testing.T) {
	v := &auth.Verifier{Secret: []byte("s3cret")}
	token, err := v.Sign(auth.Claims{Sub: "user-1", Email: "a@example.com"})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	r := testRouter(t, v)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body["userId"] != "user-1" || body["email"] != "a@example.com" || body["isGuest"] != false {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestRegisteredHandlersServe(t *testing.T) {
	r := testRouter(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/letters", nil)
	req.Header.Set("X-Guest-Id", "abc")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAddr(t *testing.T) {
	cases := map[string]string{"": ":8080", "9000": ":9000", ":7000": ":7000"}
	for in, want := range cases {
		if got := Addr(in); got != want {
			t.Fatalf("Addr(%q) = %q, want %q", in, got, want)
		}
	}
}

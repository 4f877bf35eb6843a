package renders

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"coverletter-backend/internal/compiler"
	"coverletter-backend/internal/letters"
	"coverletter-backend/internal/shared/faults"
)

type fakeCompiler struct {
	got string
	pdf []byte
	err error
}

func (f *fakeCompiler) Compile(_ context.Context, src string) ([]byte, error) {
	f.got = src
	return f.pdf, f.err
}

func setup(t *testing.T, comp compiler.Compiler) (*gin.Engine, letters.Letter) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc := &letters.Service{Repo: letters.NewMemoryRepo()}
	title := "Acme SWE Co-Op"
	created, err := svc.Repo.Create(context.Background(), letters.Letter{
		UserID:       "user-1",
		ContentLatex: "\\documentclass{letter}",
		JobInfo:      letters.JobInfo{FileTitle: &title},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userId", "user-1")
		c.Next()
	})
	NewHandler(svc, comp).RegisterRoutes(r.Group("/api/v1"))
	return r, created
}

func post(r http.Handler, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestCompileReturnsAttachment(t *testing.T) {
	comp := &fakeCompiler{pdf: []byte("%PDF-1.4 not really")}
	r, l := setup(t, comp)

	resp := post(r, "/api/v1/letters/"+l.ID+"/compile", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if ct := resp.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if cd := resp.Header().Get("Content-Disposition"); cd != `attachment; filename="Acme_SWE_Co-Op.pdf"` {
		t.Fatalf("unexpected disposition %q", cd)
	}
	if resp.Header().Get("X-Pdf-Pages") != "" {
		t.Fatalf("unparseable pdf must not report pages")
	}
	if !bytes.HasPrefix(resp.Body.Bytes(), []byte("%PDF")) {
		t.Fatalf("unexpected body %q", resp.Body.String())
	}
	if comp.got != l.ContentLatex {
		t.Fatalf("compiled %q, want stored body", comp.got)
	}
}

func TestCompileUsesOverrideBody(t *testing.T) {
	comp := &fakeCompiler{pdf: []byte("%PDF-1.4")}
	r, l := setup(t, comp)
	body, _ := json.Marshal(CompileRequest{ContentLatex: ptr("unsaved text")})

	resp := post(r, "/api/v1/letters/"+l.ID+"/compile", body)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if comp.got != "unsaved text" {
		t.Fatalf("expected override, got %q", comp.got)
	}
}

func TestCompileNotFound(t *testing.T) {
	r, _ := setup(t, &fakeCompiler{})
	resp := post(r, "/api/v1/letters/missing/compile", nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestCompileUpstreamStatusDetails(t *testing.T) {
	se := &compiler.StatusError{StatusCode: 400, Body: "LaTeX Error"}
	r, l := setup(t, &fakeCompiler{err: faults.Upstream("compiler", se)})

	resp := post(r, "/api/v1/letters/"+l.ID+"/compile", nil)
	if resp.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.Code)
	}
	var body struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != "upstream_error" || body.Error.Details["status"].(float64) != 400 || body.Error.Details["body"] != "LaTeX Error" {
		t.Fatalf("unexpected error body %+v", body.Error)
	}
}

func ptr(s string) *string { return &s }

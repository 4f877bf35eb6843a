package compiler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"coverletter-backend/internal/shared/faults"
)

func TestCompileDecodesRawBase64(t *testing.T) {
	pdf := []byte("%PDF-1.4 fake")
	var got compileRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/latex-compiler" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		_, _ = w.Write([]byte(base64.StdEncoding.EncodeToString(pdf) + "\n"))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL+"/", time.Second)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	src := "\\documentclass{letter}\n  \\begin{document}  \n"
	out, err := c.Compile(context.Background(), src)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if string(out) != string(pdf) {
		t.Fatalf("unexpected bytes %q", out)
	}
	if got.LatexSource != src {
		t.Fatalf("latex source must be sent verbatim, got %q", got.LatexSource)
	}
}

func TestCompileDecodesJSONString(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(base64.StdEncoding.EncodeToString([]byte("%PDF-x")))
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, time.Second)
	out, err := c.Compile(context.Background(), "x")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if string(out) != "%PDF-x" {
		t.Fatalf("unexpected bytes %q", out)
	}
}

func TestCompileSurfacesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte("! Undefined control sequence."))
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, time.Second)
	_, err := c.Compile(context.Background(), "\\bad")
	if !errors.Is(err, faults.ErrUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %T", err)
	}
	if se.StatusCode != http.StatusUnprocessableEntity || se.Body != "! Undefined control sequence." {
		t.Fatalf("unexpected status error %+v", se)
	}
}

func TestCompileEmptyAndInvalidBodies(t *testing.T) {
	for name, body := range map[string]string{"empty": "", "quoted empty": `""`, "not base64": "%%%%"} {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()
			c, _ := NewClient(srv.URL, time.Second)
			_, err := c.Compile(context.Background(), "x")
			if !errors.Is(err, faults.ErrUpstream) {
				t.Fatalf("expected upstream error, got %v", err)
			}
		})
	}
}

func TestCompileTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, _ := NewClient(url, time.Second)
	_, err := c.Compile(context.Background(), "x")
	if !errors.Is(err, faults.ErrUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
}

func TestNewClientRequiresURL(t *testing.T) {
	if _, err := NewClient("  ", 0); err == nil {
		t.Fatalf("expected error for empty url")
	}
}

func TestDecodeBodyEmpty(t *testing.T) {
	if _, err := DecodeBody([]byte("  \n")); !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}

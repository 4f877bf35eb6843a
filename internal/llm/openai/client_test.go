package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"coverletter-backend/internal/llm"
)

func TestIsGPT5(t *testing.T) {
	tests := []struct {
		name  string
		model string
		want  bool
	}{
		{name: "gpt5", model: "gpt-5", want: true},
		{name: "gpt5 variant", model: "gpt-5-mini", want: true},
		{name: "gpt5 uppercase", model: " GPT-5o ", want: true},
		{name: "gpt4", model: "gpt-4o", want: false},
		{name: "empty", model: "", want: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := isGPT5(tt.model); got != tt.want {
				t.Fatalf("isGPT5(%q) = %v, want %v", tt.model, got, tt.want)
			}
		})
	}
}

type recordedRequest struct {
	Path string
	Auth string
	Body map[string]any
}

func newTestServer(t *testing.T, replies ...string) (*httptest.Server, *[]recordedRequest) {
	t.Helper()
	var mu sync.Mutex
	var reqs []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		mu.Lock()
		idx := len(reqs)
		reqs = append(reqs, recordedRequest{Path: r.URL.Path, Auth: r.Header.Get("Authorization"), Body: payload})
		mu.Unlock()
		if idx >= len(replies) {
			idx = len(replies) - 1
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(replies[idx]))
	}))
	t.Cleanup(srv.Close)
	return srv, &reqs
}

func chatReply(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []any{map[string]any{"message": map[string]any{"role": "assistant", "content": content}}},
	})
	return string(b)
}

func newTestClient(t *testing.T, baseURL, model string, noTemp ...string) *Client {
	t.Helper()
	c, err := NewClient(Options{APIKey: "test-key", Model: model, BaseURL: baseURL, NoTemperatureModels: noTemp})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestNewClientRequiresModelAndKey(t *testing.T) {
	if _, err := NewClient(Options{APIKey: "k"}); err == nil {
		t.Fatalf("expected error without model")
	}
	if _, err := NewClient(Options{Model: "gpt-4o"}); err == nil {
		t.Fatalf("expected error without api key")
	}
	c, err := NewClient(Options{APIKey: "k", Model: "gpt-4o"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if c.baseURL != defaultBaseURL || c.metadataModel != "gpt-4o" {
		t.Fatalf("unexpected defaults: %q %q", c.baseURL, c.metadataModel)
	}
}

func TestRewriteStripsFencesAndSendsPrompt(t *testing.T) {
	srv, reqs := newTestServer(t, chatReply("```latex\n\\documentclass{letter}\nDear Hiring Manager\n```\n"))
	c := newTestClient(t, srv.URL, "gpt-4o")

	asOf := time.Date(2026, time.October, 18, 9, 0, 0, 0, time.UTC)
	out, err := c.Rewrite(context.Background(), llm.RewriteInput{
		JobDescription: "Backend engineer at Acme",
		TemplateLatex:  "\\documentclass{letter}\nDear Jane",
		AsOf:           asOf,
	})
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	if out != "\\documentclass{letter}\nDear Hiring Manager" {
		t.Fatalf("unexpected output %q", out)
	}

	got := (*reqs)[0]
	if got.Path != "/chat/completions" || got.Auth != "Bearer test-key" {
		t.Fatalf("unexpected request %s auth=%q", got.Path, got.Auth)
	}
	if _, ok := got.Body["response_format"]; ok {
		t.Fatalf("rewrite must not request structured output")
	}
	if temp, ok := got.Body["temperature"]; !ok || temp.(float64) != 0 {
		t.Fatalf("expected temperature 0, got %v", got.Body["temperature"])
	}
	msgs := got.Body["messages"].([]any)
	user := msgs[len(msgs)-1].(map[string]any)["content"].(string)
	for _, want := range []string{"Sun Oct 18 2026", "Backend engineer at Acme", "Dear Jane"} {
		if !strings.Contains(user, want) {
			t.Fatalf("prompt missing %q", want)
		}
	}
}

func TestRewriteEmptyOutputFails(t *testing.T) {
	srv, _ := newTestServer(t, chatReply("```\n```"))
	c := newTestClient(t, srv.URL, "gpt-4o")
	_, err := c.Rewrite(context.Background(), llm.RewriteInput{JobDescription: "x", TemplateLatex: "y"})
	if !errors.Is(err, llm.ErrEmptyOutput) {
		t.Fatalf("expected ErrEmptyOutput, got %v", err)
	}
}

func TestRewriteSurfacesAPIError(t *testing.T) {
	srv, reqs := newTestServer(t, `{"error":{"message":"quota exceeded","type":"insufficient_quota"}}`)
	c := newTestClient(t, srv.URL, "gpt-4o")
	_, err := c.Rewrite(context.Background(), llm.RewriteInput{JobDescription: "x", TemplateLatex: "y"})
	if err == nil || !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("expected api error, got %v", err)
	}
	if len(*reqs) != 1 {
		t.Fatalf("rewrite must not retry, got %d requests", len(*reqs))
	}
}

func TestExtractMetadataUsesJSONSchema(t *testing.T) {
	srv, reqs := newTestServer(t, chatReply(`{"title":"Apple Junior SWE Co-Op","company":"Apple Inc.","position":"Junior Software Developer","date":null}`))
	c, err := NewClient(Options{APIKey: "k", Model: "gpt-4o", MetadataModel: "gpt-4o-mini", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	md, err := c.ExtractMetadata(context.Background(), "\\begin{letter}")
	if err != nil {
		t.Fatalf("ExtractMetadata: %v", err)
	}
	if md.Title == nil || *md.Title != "Apple Junior SWE Co-Op" || md.Date != nil {
		t.Fatalf("unexpected metadata %+v", md)
	}

	body := (*reqs)[0].Body
	if body["model"] != "gpt-4o-mini" {
		t.Fatalf("expected metadata model, got %v", body["model"])
	}
	rf := body["response_format"].(map[string]any)
	if rf["type"] != "json_schema" {
		t.Fatalf("unexpected response_format %v", rf)
	}
	js := rf["json_schema"].(map[string]any)
	if js["strict"] != true {
		t.Fatalf("expected strict schema")
	}
	schema := js["schema"].(map[string]any)
	if schema["additionalProperties"] != false {
		t.Fatalf("expected additionalProperties false, got %v", schema["additionalProperties"])
	}
}

func TestExtractMetadataRepeatedCallsConform(t *testing.T) {
	// Wording varies between calls; the shape must not.
	srv, reqs := newTestServer(t,
		chatReply(`{"title":"Apple Junior SWE Co-Op","company":"Apple Inc.","position":"Junior Software Developer","date":"October 18, 2026"}`),
		chatReply("```json\n"+`{"title":"Apple SWE Co-Op","company":"Apple","position":"Software Developer","date":null}`+"\n```"),
		chatReply(`{"title":null,"company":"Apple Inc.","position":null,"date":"  "}`),
	)
	c := newTestClient(t, srv.URL, "gpt-4o")
	letter := "\\begin{letter}{Apple Inc.}\\opening{Dear Hiring Manager,}"

	for i := 0; i < 3; i++ {
		md, err := c.ExtractMetadata(context.Background(), letter)
		if err != nil {
			t.Fatalf("call %d: ExtractMetadata: %v", i, err)
		}
		raw, err := json.Marshal(md)
		if err != nil {
			t.Fatalf("call %d: marshal: %v", i, err)
		}
		if _, err := llm.DecodeMetadata(string(raw)); err != nil {
			t.Fatalf("call %d: result does not conform to schema: %v (%s)", i, err, raw)
		}
		var fields map[string]any
		if err := json.Unmarshal(raw, &fields); err != nil {
			t.Fatalf("call %d: unmarshal: %v", i, err)
		}
		for _, name := range llm.MetadataFields {
			if _, ok := fields[name]; !ok {
				t.Fatalf("call %d: missing field %q in %s", i, name, raw)
			}
		}
	}

	if len(*reqs) != 3 {
		t.Fatalf("expected one request per call, got %d", len(*reqs))
	}
	first, _ := json.Marshal((*reqs)[0].Body["messages"])
	for i, r := range (*reqs)[1:] {
		got, _ := json.Marshal(r.Body["messages"])
		if string(got) != string(first) {
			t.Fatalf("call %d sent a different prompt:\n%s\nvs\n%s", i+1, got, first)
		}
	}
}

func TestExtractMetadataRepairsOnce(t *testing.T) {
	srv, reqs := newTestServer(t,
		chatReply(`{"title":"Acme SWE"}`),
		chatReply(`{"title":"Acme SWE","company":"Acme","position":"Software Engineer","date":"June 1, 2026"}`),
	)
	c := newTestClient(t, srv.URL, "gpt-4o")

	md, err := c.ExtractMetadata(context.Background(), "letter")
	if err != nil {
		t.Fatalf("ExtractMetadata: %v", err)
	}
	if md.Date == nil || *md.Date != "June 1, 2026" {
		t.Fatalf("unexpected metadata %+v", md)
	}
	if len(*reqs) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(*reqs))
	}
	msgs := (*reqs)[1].Body["messages"].([]any)
	if len(msgs) != 4 {
		t.Fatalf("expected repair conversation of 4 messages, got %d", len(msgs))
	}
}

func TestExtractMetadataFailsAfterSecondMismatch(t *testing.T) {
	srv, reqs := newTestServer(t, chatReply(`not json`), chatReply(`{"title":1,"company":null,"position":null,"date":null}`))
	c := newTestClient(t, srv.URL, "gpt-4o")

	_, err := c.ExtractMetadata(context.Background(), "letter")
	if !errors.Is(err, llm.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
	if len(*reqs) != 2 {
		t.Fatalf("expected exactly one repair, got %d requests", len(*reqs))
	}
}

func TestTemperatureOmittedForDenylistAndGPT5(t *testing.T) {
	for _, model := range []string{"o3-mini", "gpt-5-mini"} {
		srv, reqs := newTestServer(t, chatReply("ok"))
		c := newTestClient(t, srv.URL, model, "o3-mini")
		if _, err := c.Rewrite(context.Background(), llm.RewriteInput{JobDescription: "x", TemplateLatex: "y"}); err != nil {
			t.Fatalf("Rewrite(%s): %v", model, err)
		}
		if _, ok := (*reqs)[0].Body["temperature"]; ok {
			t.Fatalf("expected temperature omitted for %s", model)
		}
	}
}

func TestRetriesWithoutTemperatureWhenUnsupported(t *testing.T) {
	srv, reqs := newTestServer(t,
		`{"error":{"message":"Unsupported value: 'temperature' does not support 0 with this model.","type":"invalid_request_error"}}`,
		chatReply("letter body"),
	)
	c := newTestClient(t, srv.URL, "gpt-4o")

	out, err := c.Rewrite(context.Background(), llm.RewriteInput{JobDescription: "x", TemplateLatex: "y"})
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	if out != "letter body" {
		t.Fatalf("unexpected output %q", out)
	}
	if len(*reqs) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(*reqs))
	}
	if _, ok := (*reqs)[0].Body["temperature"]; !ok {
		t.Fatalf("expected first request to include temperature")
	}
	if _, ok := (*reqs)[1].Body["temperature"]; ok {
		t.Fatalf("expected retry request to omit temperature")
	}
}

func TestNon2xxWithoutErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("bad gateway"))
	}))
	defer srv.Close()
	c := newTestClient(t, srv.URL, "gpt-4o")
	_, err := c.Rewrite(context.Background(), llm.RewriteInput{JobDescription: "x", TemplateLatex: "y"})
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Fatalf("expected status error, got %v", err)
	}
}

// Package gemini implements llm.Client on the Generative Language REST API.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"coverletter-backend/internal/llm"
	"coverletter-backend/internal/shared/telemetry"
)

const (
	defaultBaseURL       = "https://generativelanguage.googleapis.com"
	defaultModel         = "gemini-2.5-pro"
	defaultMetadataModel = "gemini-2.5-flash-lite"
)

// Options configures a Client.
type Options struct {
	APIKey        string
	Model         string
	MetadataModel string
	BaseURL       string
	Timeout       time.Duration
}

// Client implements llm.Client using generateContent.
type Client struct {
	apiKey        string
	model         string
	metadataModel string
	baseURL       string
	httpClient    *http.Client
}

// NewClient constructs a Gemini client. Models default to the pro model for
// rewriting and the lite model for extraction.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultModel
	}
	metaModel := strings.TrimSpace(opts.MetadataModel)
	if metaModel == "" {
		metaModel = defaultMetadataModel
	}
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		apiKey:        opts.APIKey,
		model:         model,
		metadataModel: metaModel,
		baseURL:       base,
		httpClient:    &http.Client{Timeout: timeout},
	}, nil
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature      *float32       `json:"temperature,omitempty"`
	ResponseMimeType string         `json:"responseMimeType,omitempty"`
	ResponseSchema   map[string]any `json:"responseSchema,omitempty"`
}

type generateRequest struct {
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	Contents          []content         `json:"contents"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// responseSchema is the metadata schema in the OpenAPI subset Gemini accepts.
func responseSchema() map[string]any {
	props := make(map[string]any, len(llm.MetadataFields))
	for _, name := range llm.MetadataFields {
		props[name] = map[string]any{"type": "STRING", "nullable": true}
	}
	return map[string]any{
		"type":             "OBJECT",
		"properties":       props,
		"required":         llm.MetadataFields,
		"propertyOrdering": llm.MetadataFields,
	}
}

// Rewrite tailors the template to the job description.
func (c *Client) Rewrite(ctx context.Context, in llm.RewriteInput) (string, error) {
	p := llm.RewritePrompt(in)
	raw, err := c.generate(ctx, c.model, p.System, []content{userContent(p.User)}, nil)
	if err != nil {
		return "", err
	}
	return llm.CleanRewrite(raw)
}

// ExtractMetadata requests JSON constrained by responseSchema, repairing once.
func (c *Client) ExtractMetadata(ctx context.Context, letterLatex string) (llm.Metadata, error) {
	cfg := &generationConfig{ResponseMimeType: "application/json", ResponseSchema: responseSchema()}
	p := llm.MetadataPrompt(letterLatex)
	turns := []content{userContent(p.User)}

	raw, err := c.generate(ctx, c.metadataModel, p.System, turns, cfg)
	if err != nil {
		return llm.Metadata{}, err
	}
	md, err := llm.DecodeMetadata(raw)
	if err == nil {
		return md, nil
	}
	if !errors.Is(err, llm.ErrSchemaMismatch) && !errors.Is(err, llm.ErrEmptyOutput) {
		return llm.Metadata{}, err
	}

	telemetry.Warn("llm.metadata_repair", map[string]any{"provider": "gemini", "model": c.metadataModel, "err": err})
	turns = append(turns,
		content{Role: "model", Parts: []part{{Text: raw}}},
		userContent(llm.RepairPrompt(raw, err)),
	)
	raw, err = c.generate(ctx, c.metadataModel, p.System, turns, cfg)
	if err != nil {
		return llm.Metadata{}, err
	}
	md, err = llm.DecodeMetadata(raw)
	if err != nil {
		if errors.Is(err, llm.ErrEmptyOutput) {
			return llm.Metadata{}, fmt.Errorf("%w: %w", llm.ErrSchemaMismatch, err)
		}
		return llm.Metadata{}, err
	}
	return md, nil
}

func userContent(text string) content {
	return content{Role: "user", Parts: []part{{Text: text}}}
}

func (c *Client) generate(ctx context.Context, model, system string, turns []content, cfg *generationConfig) (string, error) {
	reqBody := generateRequest{Contents: turns, GenerationConfig: cfg}
	if system != "" {
		reqBody.SystemInstruction = &content{Parts: []part{{Text: system}}}
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, url.PathEscape(model), url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// The key travels in the query string; never echo the URL.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return "", fmt.Errorf("gemini request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("gemini read body: %w", err)
	}

	var parsed generateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		if resp.StatusCode/100 != 2 {
			return "", fmt.Errorf("gemini status %d", resp.StatusCode)
		}
		return "", fmt.Errorf("gemini response parse: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("gemini error (status %d): %s (%s)", resp.StatusCode, parsed.Error.Message, parsed.Error.Status)
	}
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("gemini status %d", resp.StatusCode)
	}
	if len(parsed.Candidates) == 0 {
		return "", fmt.Errorf("gemini response missing candidates")
	}
	var b strings.Builder
	for _, p := range parsed.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return b.String(), nil
}

var _ llm.Client = (*Client)(nil)

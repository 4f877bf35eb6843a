// Package openai implements llm.Client on the Chat Completions API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"coverletter-backend/internal/llm"
	"coverletter-backend/internal/shared/telemetry"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Options configures a Client.
type Options struct {
	APIKey        string
	Model         string
	MetadataModel string
	BaseURL       string
	Timeout       time.Duration
	// NoTemperatureModels lists models that reject temperature=0.
	NoTemperatureModels []string
}

// Client implements llm.Client using OpenAI Chat Completions.
type Client struct {
	apiKey        string
	model         string
	metadataModel string
	baseURL       string
	noTemp        map[string]bool
	httpClient    *http.Client
}

// NewClient constructs a new OpenAI client.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.Model) == "" {
		return nil, fmt.Errorf("LLM_MODEL is required for OpenAI")
	}
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	metaModel := strings.TrimSpace(opts.MetadataModel)
	if metaModel == "" {
		metaModel = opts.Model
	}
	noTemp := make(map[string]bool, len(opts.NoTemperatureModels))
	for _, m := range opts.NoTemperatureModels {
		if m = strings.ToLower(strings.TrimSpace(m)); m != "" {
			noTemp[m] = true
		}
	}
	return &Client{
		apiKey:        opts.APIKey,
		model:         strings.TrimSpace(opts.Model),
		metadataModel: metaModel,
		baseURL:       base,
		noTemp:        noTemp,
		httpClient:    &http.Client{Timeout: timeout},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    *float32        `json:"temperature,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type       string      `json:"type"`
	JSONSchema *jsonSchema `json:"json_schema,omitempty"`
}

type jsonSchema struct {
	Name   string         `json:"name"`
	Strict bool           `json:"strict"`
	Schema map[string]any `json:"schema"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Rewrite tailors the template to the job description. It is not retried.
func (c *Client) Rewrite(ctx context.Context, in llm.RewriteInput) (string, error) {
	p := llm.RewritePrompt(in)
	raw, err := c.complete(ctx, c.model, messages(p), nil)
	if err != nil {
		return "", err
	}
	return llm.CleanRewrite(raw)
}

// ExtractMetadata asks for schema-constrained JSON and repairs a bad answer once.
func (c *Client) ExtractMetadata(ctx context.Context, letterLatex string) (llm.Metadata, error) {
	format := &responseFormat{
		Type: "json_schema",
		JSONSchema: &jsonSchema{
			Name:   "letter_metadata",
			Strict: true,
			Schema: llm.MetadataWireSchema(),
		},
	}
	msgs := messages(llm.MetadataPrompt(letterLatex))
	raw, err := c.complete(ctx, c.metadataModel, msgs, format)
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

	telemetry.Warn("llm.metadata_repair", map[string]any{"provider": "openai", "model": c.metadataModel, "err": err})
	msgs = append(msgs,
		chatMessage{Role: "assistant", Content: raw},
		chatMessage{Role: "user", Content: llm.RepairPrompt(raw, err)},
	)
	raw, err = c.complete(ctx, c.metadataModel, msgs, format)
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

func messages(p llm.Prompt) []chatMessage {
	out := make([]chatMessage, 0, 2)
	if p.System != "" {
		out = append(out, chatMessage{Role: "system", Content: p.System})
	}
	return append(out, chatMessage{Role: "user", Content: p.User})
}

func (c *Client) complete(ctx context.Context, model string, msgs []chatMessage, format *responseFormat) (string, error) {
	withTemp := c.allowsZeroTemperature(model)
	content, err := c.completeOnce(ctx, model, msgs, format, withTemp)
	if err != nil && withTemp && isTemperatureUnsupported(err) {
		telemetry.Warn("llm.temperature_unsupported", map[string]any{"provider": "openai", "model": model})
		return c.completeOnce(ctx, model, msgs, format, false)
	}
	return content, err
}

func (c *Client) completeOnce(ctx context.Context, model string, msgs []chatMessage, format *responseFormat, withTemp bool) (string, error) {
	reqBody := chatRequest{
		Model:          model,
		Messages:       msgs,
		ResponseFormat: format,
	}
	if withTemp {
		temp := float32(0)
		reqBody.Temperature = &temp
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return "", fmt.Errorf("openai request timeout: %w", err)
		}
		return "", fmt.Errorf("openai request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("openai read body: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		if resp.StatusCode/100 != 2 {
			return "", fmt.Errorf("openai status %d: %s", resp.StatusCode, truncate(string(body), 512))
		}
		return "", fmt.Errorf("openai response parse: %w", err)
	}
	if parsed.Error != nil {
		return "", &apiError{Status: resp.StatusCode, Message: parsed.Error.Message, Type: parsed.Error.Type}
	}
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("openai status %d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("openai response missing choices")
	}
	if u := parsed.Usage; u != nil {
		telemetry.Info("llm.usage", map[string]any{
			"provider":          "openai",
			"model":             model,
			"prompt_tokens":     u.PromptTokens,
			"completion_tokens": u.CompletionTokens,
			"total_tokens":      u.TotalTokens,
		})
	}
	return parsed.Choices[0].Message.Content, nil
}

type apiError struct {
	Status  int
	Message string
	Type    string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("openai error (status %d): %s (%s)", e.Status, e.Message, e.Type)
}

func isTemperatureUnsupported(err error) bool {
	var apiErr *apiError
	if !errors.As(err, &apiErr) {
		return false
	}
	msg := strings.ToLower(apiErr.Message)
	return strings.Contains(msg, "temperature") && (strings.Contains(msg, "unsupported") || strings.Contains(msg, "does not support"))
}

func (c *Client) allowsZeroTemperature(model string) bool {
	if isGPT5(model) {
		return false
	}
	return !c.noTemp[strings.ToLower(strings.TrimSpace(model))]
}

func isGPT5(model string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(model)), "gpt-5")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

var _ llm.Client = (*Client)(nil)

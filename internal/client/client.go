// Package client is a typed HTTP client for the letters API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"coverletter-backend/internal/derivation"
	"coverletter-backend/internal/letters"
	"coverletter-backend/internal/renders"
	"coverletter-backend/internal/shared/faults"
)

// Options configures a Client. Token takes precedence over GuestID.
type Options struct {
	BaseURL    string
	Token      string
	GuestID    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client calls the /api/v1 routes.
type Client struct {
	baseURL string
	token   string
	guestID string
	http    *http.Client
}

// APIError is a decoded error response.
type APIError struct {
	Status  int
	Code    string
	Message string
	Details map[string]any
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api %d %s: %s", e.Status, e.Code, e.Message)
}

// Unwrap maps the response onto the shared error kinds.
func (e *APIError) Unwrap() error {
	switch {
	case e.Status == http.StatusNotFound:
		return letters.ErrNotFound
	case e.Code == "validation_error":
		return faults.ErrValidation
	case e.Code == "upstream_error":
		return faults.ErrUpstream
	case e.Code == "persistence_error":
		return faults.ErrPersistence
	}
	return nil
}

// New returns a client for baseURL, e.g. http://localhost:8080.
func New(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("api url is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("api url: %w", err)
	}
	if strings.TrimSpace(opts.Token) == "" && strings.TrimSpace(opts.GuestID) == "" {
		return nil, fmt.Errorf("a token or guest id is required")
	}
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 3 * time.Minute
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL: base + "/api/v1",
		token:   strings.TrimSpace(opts.Token),
		guestID: strings.TrimSpace(opts.GuestID),
		http:    hc,
	}, nil
}

type listResponse struct {
	Letters []letters.LetterResponse `json:"letters"`
}

// List returns the user's letters, newest first.
func (c *Client) List(ctx context.Context) ([]letters.Letter, error) {
	var out listResponse
	if err := c.doJSON(ctx, http.MethodGet, "/letters", nil, &out); err != nil {
		return nil, err
	}
	items := make([]letters.Letter, 0, len(out.Letters))
	for _, l := range out.Letters {
		items = append(items, l.Letter())
	}
	return items, nil
}

// Get fetches one letter.
func (c *Client) Get(ctx context.Context, id string) (letters.Letter, error) {
	var out letters.LetterResponse
	if err := c.doJSON(ctx, http.MethodGet, "/letters/"+url.PathEscape(id), nil, &out); err != nil {
		return letters.Letter{}, err
	}
	return out.Letter(), nil
}

// Upload creates a letter from LaTeX text.
func (c *Client) Upload(ctx context.Context, contentLatex string) (letters.Letter, error) {
	var out letters.LetterResponse
	if err := c.doJSON(ctx, http.MethodPost, "/letters/upload", letters.UploadRequest{ContentLatex: contentLatex}, &out); err != nil {
		return letters.Letter{}, err
	}
	return out.Letter(), nil
}

// UploadFile creates a letter from a .tex file sent as multipart.
func (c *Client) UploadFile(ctx context.Context, fileName string, r io.Reader) (letters.Letter, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return letters.Letter{}, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return letters.Letter{}, fmt.Errorf("read %s: %w", fileName, err)
	}
	if err := mw.Close(); err != nil {
		return letters.Letter{}, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/letters/upload", &buf)
	if err != nil {
		return letters.Letter{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	var out letters.LetterResponse
	if err := c.do(req, &out); err != nil {
		return letters.Letter{}, err
	}
	return out.Letter(), nil
}

// Update applies a partial update.
func (c *Client) Update(ctx context.Context, id string, patch letters.Patch) (letters.Letter, error) {
	var out letters.LetterResponse
	if err := c.doJSON(ctx, http.MethodPatch, "/letters/"+url.PathEscape(id), letters.NewUpdateRequest(patch), &out); err != nil {
		return letters.Letter{}, err
	}
	return out.Letter(), nil
}

// UpdateContent replaces only the body.
func (c *Client) UpdateContent(ctx context.Context, id, contentLatex string) error {
	_, err := c.Update(ctx, id, letters.Patch{ContentLatex: &contentLatex})
	return err
}

// Delete removes a letter.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/letters/"+url.PathEscape(id), nil, nil)
}

// Generate derives a new letter from a template.
func (c *Client) Generate(ctx context.Context, templateID, jobDescription string) (letters.Letter, error) {
	var out letters.LetterResponse
	body := derivation.GenerateRequest{TemplateID: templateID, JobDescription: jobDescription}
	if err := c.doJSON(ctx, http.MethodPost, "/letters/generate", body, &out); err != nil {
		return letters.Letter{}, err
	}
	return out.Letter(), nil
}

// Rendered is a compiled PDF and its response metadata.
type Rendered struct {
	PDF      []byte
	FileName string
	// Pages is -1 when the server did not report it.
	Pages int
}

// Compile renders a letter. A non-nil override is compiled instead of the stored body.
func (c *Client) Compile(ctx context.Context, id string, override *string) (Rendered, error) {
	var body io.Reader
	if override != nil {
		data, err := json.Marshal(renders.CompileRequest{ContentLatex: override})
		if err != nil {
			return Rendered{}, err
		}
		body = bytes.NewReader(data)
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/letters/"+url.PathEscape(id)+"/compile", body)
	if err != nil {
		return Rendered{}, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Rendered{}, fmt.Errorf("compile %s: %w", id, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return Rendered{}, decodeError(resp)
	}
	pdf, err := io.ReadAll(resp.Body)
	if err != nil {
		return Rendered{}, fmt.Errorf("compile %s: read: %w", id, err)
	}

	out := Rendered{PDF: pdf, FileName: id + ".pdf", Pages: -1}
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		out.FileName = params["filename"]
	}
	if n, err := strconv.Atoi(resp.Header.Get("X-Pdf-Pages")); err == nil {
		out.Pages = n
	}
	return out, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	} else {
		req.Header.Set("X-Guest-Id", c.guestID)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode: %w", req.Method, req.URL.Path, err)
	}
	return nil
}

type errorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{Status: resp.StatusCode, Code: "http_error", Message: strings.TrimSpace(string(data))}
	var env errorEnvelope
	if err := json.Unmarshal(data, &env); err == nil && env.Error.Code != "" {
		apiErr.Code = env.Error.Code
		apiErr.Message = env.Error.Message
		apiErr.Details = env.Error.Details
	}
	return apiErr
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	return errors.Is(err, letters.ErrNotFound)
}

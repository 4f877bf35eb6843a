// Package llm defines the generative text operations used to derive letters.
package llm

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotImplemented is returned by the placeholder client.
	ErrNotImplemented = errors.New("llm provider not configured")
	// ErrEmptyOutput is returned when the model produced no usable text.
	ErrEmptyOutput = errors.New("llm returned empty output")
	// ErrSchemaMismatch is returned when structured output does not match the metadata schema.
	ErrSchemaMismatch = errors.New("llm output does not match metadata schema")
)

// RewriteInput carries the template body and the job description to tailor it to.
type RewriteInput struct {
	JobDescription string
	TemplateLatex  string
	AsOf           time.Time
}

// Metadata is the structured display data extracted from a letter. Nil means unknown.
type Metadata struct {
	Title    *string `json:"title"`
	Company  *string `json:"company"`
	Position *string `json:"position"`
	Date     *string `json:"date"`
}

// Rewriter tailors a template letter to a job description.
type Rewriter interface {
	Rewrite(ctx context.Context, in RewriteInput) (string, error)
}

// MetadataExtractor derives display metadata from a letter body.
type MetadataExtractor interface {
	ExtractMetadata(ctx context.Context, letterLatex string) (Metadata, error)
}

// Client is a provider that supports both operations.
type Client interface {
	Rewriter
	MetadataExtractor
}

// PlaceholderClient is used when no provider is configured.
type PlaceholderClient struct{}

// Rewrite returns ErrNotImplemented.
func (PlaceholderClient) Rewrite(context.Context, RewriteInput) (string, error) {
	return "", ErrNotImplemented
}

// ExtractMetadata returns ErrNotImplemented.
func (PlaceholderClient) ExtractMetadata(context.Context, string) (Metadata, error) {
	return Metadata{}, ErrNotImplemented
}

const fence = "```"

// StripCodeFences removes a markdown fence wrapping the whole output, e.g.
// "```latex\n...\n```". Backticks inside the body are left alone.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, fence) {
		return s
	}
	info, rest, found := strings.Cut(s[len(fence):], "\n")
	if !isFenceInfo(info) {
		return s
	}
	if !found {
		return ""
	}
	rest = strings.TrimSpace(rest)
	rest = strings.TrimSuffix(rest, fence)
	return strings.TrimSpace(rest)
}

// isFenceInfo reports whether the opening fence line carries only a language tag.
func isFenceInfo(info string) bool {
	info = strings.TrimSpace(info)
	for _, r := range info {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '+':
		default:
			return false
		}
	}
	return true
}

// FormatAsOf renders the date handed to the rewrite prompt, e.g. "Sun Oct 18 2026".
func FormatAsOf(t time.Time) string {
	return t.Format("Mon Jan 02 2006")
}

// CleanRewrite strips fences and rejects empty output.
func CleanRewrite(raw string) (string, error) {
	out := StripCodeFences(raw)
	if out == "" {
		return "", ErrEmptyOutput
	}
	return out, nil
}

var _ Client = PlaceholderClient{}

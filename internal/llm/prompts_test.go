package llm

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestPromptsLoad(t *testing.T) {
	c := Prompts()
	if c.Rewrite.System == "" || c.Metadata.System == "" {
		t.Fatalf("expected system prompts")
	}
}

func TestLoadCatalogRequiresPrompts(t *testing.T) {
	if _, err := LoadCatalog([]byte("rewrite:\n  user: hi\n")); err == nil {
		t.Fatalf("expected error for incomplete catalog")
	}
	if _, err := LoadCatalog([]byte("rewrite: [unclosed")); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestRewritePromptRendersPlaceholders(t *testing.T) {
	p := RewritePrompt(RewriteInput{
		JobDescription: "  Data engineer {{TEMPLATE_LATEX}} at Globex ",
		TemplateLatex:  `\opening{Dear Ms. Smith,}`,
		AsOf:           time.Date(2026, time.October, 18, 0, 0, 0, 0, time.UTC),
	})
	if strings.Contains(p.User, "{{AS_OF_DATE}}") || strings.Contains(p.User, "{{JOB_DESCRIPTION}}") {
		t.Fatalf("unrendered placeholders in %q", p.User)
	}
	for _, want := range []string{"Sun Oct 18 2026", "Data engineer {{TEMPLATE_LATEX}} at Globex", `\opening{Dear Ms. Smith,}`, "Hiring Manager"} {
		if !strings.Contains(p.User, want) {
			t.Fatalf("prompt missing %q", want)
		}
	}
	if strings.Count(p.User, `\opening{Dear Ms. Smith,}`) != 1 {
		t.Fatalf("job description placeholder text must not be expanded")
	}
}

func TestMetadataAndRepairPrompts(t *testing.T) {
	p := MetadataPrompt("LETTER BODY")
	if !strings.Contains(p.User, "LETTER BODY") || !strings.Contains(p.User, "SWE") {
		t.Fatalf("unexpected metadata prompt %q", p.User)
	}
	r := RepairPrompt(`{"title":1}`, errors.New("type mismatch"))
	if !strings.Contains(r, "type mismatch") || !strings.Contains(r, `{"title":1}`) {
		t.Fatalf("unexpected repair prompt %q", r)
	}
}

package llm

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed prompts/prompts.yaml
var promptsYAML []byte

// Prompt is a system/user message pair.
type Prompt struct {
	System string `yaml:"system"`
	User   string `yaml:"user"`
}

// Catalog holds every prompt the providers send.
type Catalog struct {
	Rewrite  Prompt `yaml:"rewrite"`
	Metadata Prompt `yaml:"metadata"`
	Repair   Prompt `yaml:"repair"`
}

var (
	catalogOnce sync.Once
	catalog     Catalog
	catalogErr  error
)

// LoadCatalog parses a prompt catalog and checks that required prompts exist.
func LoadCatalog(data []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalog{}, fmt.Errorf("parse prompt catalog: %w", err)
	}
	switch {
	case strings.TrimSpace(c.Rewrite.User) == "":
		return Catalog{}, fmt.Errorf("prompt catalog: rewrite.user is empty")
	case strings.TrimSpace(c.Metadata.User) == "":
		return Catalog{}, fmt.Errorf("prompt catalog: metadata.user is empty")
	case strings.TrimSpace(c.Repair.User) == "":
		return Catalog{}, fmt.Errorf("prompt catalog: repair.user is empty")
	}
	return c, nil
}

// Prompts returns the embedded catalog. It panics if the embedded file is broken.
func Prompts() Catalog {
	catalogOnce.Do(func() {
		catalog, catalogErr = LoadCatalog(promptsYAML)
	})
	if catalogErr != nil {
		panic(catalogErr)
	}
	return catalog
}

// RewritePrompt renders the rewrite prompt.
func RewritePrompt(in RewriteInput) Prompt {
	p := Prompts().Rewrite
	r := strings.NewReplacer(
		"{{AS_OF_DATE}}", FormatAsOf(in.AsOf),
		"{{JOB_DESCRIPTION}}", strings.TrimSpace(in.JobDescription),
		"{{TEMPLATE_LATEX}}", in.TemplateLatex,
	)
	return Prompt{System: strings.TrimSpace(p.System), User: r.Replace(p.User)}
}

// MetadataPrompt renders the extraction prompt.
func MetadataPrompt(letterLatex string) Prompt {
	p := Prompts().Metadata
	r := strings.NewReplacer("{{LETTER_LATEX}}", letterLatex)
	return Prompt{System: strings.TrimSpace(p.System), User: r.Replace(p.User)}
}

// RepairPrompt renders the follow-up sent after a schema mismatch.
func RepairPrompt(raw string, cause error) string {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	r := strings.NewReplacer("{{ERROR}}", msg, "{{RAW}}", raw)
	return r.Replace(Prompts().Repair.User)
}

// Package derivation creates new letters from a template and a job description.
package derivation

import (
	"context"
	"errors"
	"strings"
	"time"

	"coverletter-backend/internal/letters"
	"coverletter-backend/internal/llm"
	"coverletter-backend/internal/shared/faults"
	"coverletter-backend/internal/shared/metrics"
	"coverletter-backend/internal/shared/telemetry"
)

// LetterStore is the part of letters.Repo the orchestrator needs.
type LetterStore interface {
	GetByID(ctx context.Context, userID, id string) (letters.Letter, error)
	Create(ctx context.Context, letter letters.Letter) (letters.Letter, error)
	Update(ctx context.Context, userID, id string, patch letters.Patch) (letters.Letter, error)
}

// Orchestrator runs the derive pipeline: read template, rewrite, create,
// then best-effort metadata extraction.
type Orchestrator struct {
	Store LetterStore
	LLM   llm.Client
	// Now supplies the as-of date for the rewrite. Defaults to time.Now.
	Now func() time.Time
}

// DeriveLetter creates a letter derived from templateID for jobDescription.
//
// Nothing is persisted unless the rewrite succeeds. Once the letter exists
// it is returned even if metadata extraction or the metadata update fails.
func (o *Orchestrator) DeriveLetter(ctx context.Context, userID, templateID, jobDescription string) (letters.Letter, error) {
	start := time.Now()
	metrics.IncDerivationStarted()

	letter, err := o.derive(ctx, userID, templateID, jobDescription)
	metrics.ObserveDerivation(time.Since(start))
	fields := map[string]any{
		"user_id":     userID,
		"template_id": templateID,
		"duration_ms": time.Since(start).Milliseconds(),
	}
	if err != nil {
		metrics.IncDerivationFailed()
		fields["err"] = err
		fields["kind"] = faults.Kind(err)
		telemetry.Error("derivation.failed", fields)
		return letters.Letter{}, err
	}
	metrics.IncDerivationCompleted()
	fields["letter_id"] = letter.ID
	telemetry.Info("derivation.completed", fields)
	return letter, nil
}

func (o *Orchestrator) derive(ctx context.Context, userID, templateID, jobDescription string) (letters.Letter, error) {
	if strings.TrimSpace(jobDescription) == "" {
		return letters.Letter{}, faults.Validation("job description is required")
	}
	if strings.TrimSpace(templateID) == "" {
		return letters.Letter{}, faults.Validation("template letter is required")
	}

	template, err := o.Store.GetByID(ctx, userID, templateID)
	if err != nil {
		if errors.Is(err, letters.ErrNotFound) {
			return letters.Letter{}, faults.Validationf("template letter %s not found", templateID)
		}
		return letters.Letter{}, faults.Persistence("read template", err)
	}

	body, err := o.LLM.Rewrite(ctx, llm.RewriteInput{
		JobDescription: jobDescription,
		TemplateLatex:  template.ContentLatex,
		AsOf:           o.now(),
	})
	if err != nil {
		return letters.Letter{}, faults.Upstream("rewrite", err)
	}

	tid := template.ID
	created, err := o.Store.Create(ctx, letters.Letter{
		UserID:       userID,
		TemplateID:   &tid,
		ContentLatex: body,
	})
	if err != nil {
		return letters.Letter{}, faults.Persistence("create letter", err)
	}

	return o.attachMetadata(ctx, created), nil
}

// attachMetadata never fails; on any error the created letter is returned as-is.
func (o *Orchestrator) attachMetadata(ctx context.Context, created letters.Letter) letters.Letter {
	md, err := o.LLM.ExtractMetadata(ctx, created.ContentLatex)
	if err != nil {
		o.degraded(created, "extract", faults.Upstream("extract metadata", err))
		return created
	}

	updated, err := o.Store.Update(ctx, created.UserID, created.ID, MetadataPatch(md))
	if err != nil {
		o.degraded(created, "update", faults.Persistence("update metadata", err))
		return created
	}
	return updated
}

func (o *Orchestrator) degraded(l letters.Letter, stage string, err error) {
	metrics.IncMetadataDegraded()
	telemetry.Error("derivation.metadata_degraded", map[string]any{
		"user_id":   l.UserID,
		"letter_id": l.ID,
		"stage":     stage,
		"err":       err,
	})
}

// MetadataPatch maps extracted metadata onto the letter fields it fills:
// date, file title, company name and position title.
func MetadataPatch(md llm.Metadata) letters.Patch {
	return letters.Patch{
		Date:          md.Date,
		FileTitle:     md.Title,
		CompanyName:   md.Company,
		PositionTitle: md.Position,
	}
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

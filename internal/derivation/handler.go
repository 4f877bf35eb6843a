package derivation

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"coverletter-backend/internal/letters"
	"coverletter-backend/internal/shared/server/middleware"
	"coverletter-backend/internal/shared/server/respond"
)

// Deriver is implemented by *Orchestrator.
type Deriver interface {
	DeriveLetter(ctx context.Context, userID, templateID, jobDescription string) (letters.Letter, error)
}

// GenerateRequest is the body of POST /letters/generate.
type GenerateRequest struct {
	TemplateID     string `json:"templateId"`
	JobDescription string `json:"jobDescription"`
}

// Handler exposes derivation over HTTP.
type Handler struct {
	Deriver Deriver
}

// NewHandler constructs a Handler.
func NewHandler(d Deriver) *Handler {
	return &Handler{Deriver: d}
}

// RegisterRoutes attaches the generate route.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/letters/generate", h.generate)
}

func (h *Handler) generate(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	c.Set("templateId", req.TemplateID)

	letter, err := h.Deriver.DeriveLetter(c.Request.Context(), middleware.UserIDFromContext(c), req.TemplateID, req.JobDescription)
	if err != nil {
		respond.Fault(c, err)
		return
	}
	c.Set(middleware.LetterIDKey, letter.ID)
	respond.JSON(c, http.StatusCreated, letters.ToResponse(letter))
}

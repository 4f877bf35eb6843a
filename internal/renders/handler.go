// Package renders serves compiled PDFs of letters.
package renders

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"coverletter-backend/internal/compiler"
	"coverletter-backend/internal/letters"
	"coverletter-backend/internal/shared/server/middleware"
	"coverletter-backend/internal/shared/server/respond"
	"coverletter-backend/internal/shared/telemetry"
	"coverletter-backend/internal/shared/util"
)

// LetterGetter reads the letter to compile.
type LetterGetter interface {
	Get(ctx context.Context, userID, id string) (letters.Letter, error)
}

// CompileRequest optionally overrides the stored body, e.g. unsaved editor text.
type CompileRequest struct {
	ContentLatex *string `json:"contentLatex,omitempty"`
}

// Handler exposes compilation over HTTP.
type Handler struct {
	Letters  LetterGetter
	Compiler compiler.Compiler
}

// NewHandler constructs a Handler.
func NewHandler(l LetterGetter, c compiler.Compiler) *Handler {
	return &Handler{Letters: l, Compiler: c}
}

// RegisterRoutes attaches the compile route.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/letters/:id/compile", h.compile)
}

func (h *Handler) compile(c *gin.Context) {
	id := c.Param("id")
	c.Set(middleware.LetterIDKey, id)

	var req CompileRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
			return
		}
	}

	letter, err := h.Letters.Get(c.Request.Context(), middleware.UserIDFromContext(c), id)
	if err != nil {
		if errors.Is(err, letters.ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "letter not found", nil)
			return
		}
		respond.Fault(c, err)
		return
	}
	source := letter.ContentLatex
	if req.ContentLatex != nil {
		source = *req.ContentLatex
	}

	pdf, err := h.Compiler.Compile(c.Request.Context(), source)
	if err != nil {
		var se *compiler.StatusError
		if errors.As(err, &se) {
			respond.Error(c, http.StatusBadGateway, "upstream_error", err.Error(), gin.H{
				"status": se.StatusCode,
				"body":   se.Body,
			})
			return
		}
		respond.Fault(c, err)
		return
	}

	if info, ierr := compiler.Inspect(pdf); ierr == nil {
		c.Header("X-Pdf-Pages", strconv.Itoa(info.Pages))
	} else {
		telemetry.Warn("renders.inspect_failed", map[string]any{"letter_id": id, "err": ierr})
	}
	name := util.AttachmentName(letter.Title(), letter.ID, ".pdf")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

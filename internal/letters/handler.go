package letters

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"coverletter-backend/internal/shared/server/middleware"
	"coverletter-backend/internal/shared/server/respond"
)

const maxUploadSize = 2 << 20 // 2MB

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches letter CRUD routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/letters", h.list)
	rg.POST("/letters/upload", h.upload)
	rg.GET("/letters/:id", h.get)
	rg.PATCH("/letters/:id", h.update)
	rg.PUT("/letters/:id", h.update)
	rg.DELETE("/letters/:id", h.delete)
}

func (h *Handler) list(c *gin.Context) {
	out, err := h.Svc.List(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		writeErr(c, err)
		return
	}
	items := make([]LetterResponse, 0, len(out))
	for _, l := range out {
		items = append(items, ToResponse(l))
	}
	respond.OK(c, gin.H{"letters": items})
}

func (h *Handler) get(c *gin.Context) {
	id := c.Param("id")
	c.Set(middleware.LetterIDKey, id)
	letter, err := h.Svc.Get(c.Request.Context(), middleware.UserIDFromContext(c), id)
	if err != nil {
		writeErr(c, err)
		return
	}
	respond.OK(c, ToResponse(letter))
}

func (h *Handler) upload(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	var (
		letter Letter
		err    error
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fileHeader, ferr := c.FormFile("file")
		if ferr != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
			return
		}
		file, ferr := fileHeader.Open()
		if ferr != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
			return
		}
		defer file.Close()
		letter, err = h.Svc.UploadFile(c.Request.Context(), userID, fileHeader.Filename, file)
	} else {
		var req UploadRequest
		if berr := c.ShouldBindJSON(&req); berr != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
			return
		}
		content := req.ContentLatex
		if content == "" {
			content = req.Body
		}
		letter, err = h.Svc.Upload(c.Request.Context(), userID, content)
	}
	if err != nil {
		writeErr(c, err)
		return
	}

	c.Set(middleware.LetterIDKey, letter.ID)
	respond.JSON(c, http.StatusCreated, ToResponse(letter))
}

func (h *Handler) update(c *gin.Context) {
	id := c.Param("id")
	c.Set(middleware.LetterIDKey, id)

	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	letter, err := h.Svc.Update(c.Request.Context(), middleware.UserIDFromContext(c), id, req.Patch())
	if err != nil {
		writeErr(c, err)
		return
	}
	respond.OK(c, ToResponse(letter))
}

func (h *Handler) delete(c *gin.Context) {
	id := c.Param("id")
	c.Set(middleware.LetterIDKey, id)
	if err := h.Svc.Delete(c.Request.Context(), middleware.UserIDFromContext(c), id); err != nil {
		writeErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func writeErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "letter not found", nil)
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	default:
		respond.Fault(c, err)
	}
}

package respond

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"coverletter-backend/internal/shared/faults"
)

// Fault maps a classified error to its HTTP status and writes the error body.
// Unclassified errors become 500 internal.
func Fault(c *gin.Context, err error) {
	switch kind := faults.Kind(err); kind {
	case "validation_error":
		Error(c, http.StatusBadRequest, kind, err.Error(), nil)
	case "upstream_error":
		Error(c, http.StatusBadGateway, kind, err.Error(), nil)
	case "persistence_error":
		Error(c, http.StatusInternalServerError, kind, "letter store unavailable", nil)
	default:
		Error(c, http.StatusInternalServerError, "internal", "Unexpected server error", nil)
	}
}

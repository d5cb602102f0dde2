package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"NewsCurator/internal/domain"
)

// writeError maps domain errors onto status codes. Unknown errors are 500
// and recorded on the context for the request logger.
func writeError(c *gin.Context, err error) {
	var terr *domain.TransitionError
	switch {
	case errors.As(err, &terr):
		c.JSON(http.StatusConflict, gin.H{
			"error":            err.Error(),
			"current_status":   terr.From,
			"requested_status": terr.To,
		})
	case errors.Is(err, domain.ErrCategoryRequired), errors.Is(err, domain.ErrUnknownCategory):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrUnknownStep):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrRunInProgress), errors.Is(err, domain.ErrPublishedImmutable):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

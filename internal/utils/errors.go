package utils

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourorg/course-template-service/internal/model"
)

// SendErrorResponse sends a standardized error response
func SendErrorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{"error": message})
}

// StatusForError maps an error kind to an HTTP status code
func StatusForError(err error) int {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// SendServiceError writes an error returned by a service. Validation failures
// also carry their per-field details.
func SendServiceError(c *gin.Context, err error) {
	status := StatusForError(err)

	var verr *model.ValidationError
	if errors.As(err, &verr) {
		c.JSON(status, gin.H{"error": err.Error(), "fields": verr.Fields})
		return
	}

	if status == http.StatusInternalServerError {
		SendErrorResponse(c, status, "Internal server error")
		return
	}
	SendErrorResponse(c, status, err.Error())
}

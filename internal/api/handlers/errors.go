package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/faceattend/internal/attendance"
	"github.com/your-org/faceattend/internal/storage"
	"github.com/your-org/faceattend/internal/vision"
)

// bindJSON decodes the request body into v, answering 413 when the body
// limit tripped and 400 for anything else.
func bindJSON(c *gin.Context, v any) bool {
	err := c.ShouldBindJSON(v)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
		return false
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	return false
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, vision.ErrDecode):
		return http.StatusBadRequest
	case errors.Is(err, vision.ErrNoFace),
		errors.Is(err, vision.ErrMultipleFaces),
		errors.Is(err, vision.ErrExtraction):
		return http.StatusUnprocessableEntity
	case errors.Is(err, storage.ErrDuplicateEmail),
		errors.Is(err, attendance.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, storage.ErrNotFound),
		errors.Is(err, storage.ErrObjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrStoreUnavailable),
		errors.Is(err, storage.ErrConflict):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err with the status statusFor picks. Server-side
// failures are logged and reported without internals.
func respondError(c *gin.Context, err error) {
	respondStatus(c, statusFor(err), err)
}

func respondStatus(c *gin.Context, status int, err error) {
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "path", c.FullPath(), "status", status, "error", err)
		msg = http.StatusText(status)
	}
	c.JSON(status, gin.H{"error": msg})
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid employee id"})
		return uuid.Nil, false
	}
	return id, true
}

package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/faceattend/internal/observability"
)

const requestIDHeader = "X-Request-ID"

// LoggingMiddleware tags each request with an id, logs it once it completes
// and records its latency under the matched route pattern.
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		begin := time.Now()

		reqID := c.GetHeader(requestIDHeader)
		if reqID == "" || len(reqID) > 64 {
			reqID = uuid.NewString()
		}
		c.Header(requestIDHeader, reqID)

		c.Next()

		elapsed := time.Since(begin)
		code := c.Writer.Status()

		level := slog.LevelInfo
		switch {
		case code >= http.StatusInternalServerError:
			level = slog.LevelError
		case code >= http.StatusBadRequest:
			level = slog.LevelWarn
		}
		slog.Log(c.Request.Context(), level, "http",
			"request_id", reqID,
			"method", c.Request.Method,
			"uri", c.Request.URL.RequestURI(),
			"code", code,
			"took_ms", elapsed.Milliseconds(),
			"client", c.ClientIP(),
		)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		observability.HTTPRequestDuration.WithLabelValues(
			c.Request.Method, route, strconv.Itoa(code),
		).Observe(elapsed.Seconds())
	}
}

// BodyLimit caps request bodies at n bytes. n <= 0 leaves them unbounded.
func BodyLimit(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if n > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}

// BodyLimitFor sizes the JSON body cap for a photo of at most imageBytes:
// base64 inflates by 4/3 and the other fields get 64 KiB.
func BodyLimitFor(imageBytes int) int64 {
	if imageBytes <= 0 {
		return 0
	}
	return int64(imageBytes)*4/3 + 4 + 64<<10
}

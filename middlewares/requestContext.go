package middlewares

import (
	"net/http"
	"strings"

	"bitbucket.org/mmdatafocus/warehouse_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	HeaderCorrelationId  = "X-Correlation-Id"
	HeaderIdempotencyKey = "Idempotency-Key"

	maxIdempotencyKeyLength = 255
)

// CorrelationMiddleware reuses the caller's correlation id or generates one,
// and echoes it back on the response.
func CorrelationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		cid := strings.TrimSpace(c.GetHeader(HeaderCorrelationId))
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Writer.Header().Set(HeaderCorrelationId, cid)
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	}
}

// IdempotencyMiddleware carries the Idempotency-Key header into the context.
func IdempotencyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxIdempotencyKeyLength {
			utils.ErrorStatus(c, http.StatusBadRequest, "idempotency key is too long")
			return
		}
		c.Request = c.Request.WithContext(utils.SetIdempotencyKeyInContext(c.Request.Context(), key))
		c.Next()
	}
}

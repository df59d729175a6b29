package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type ErrorBody struct {
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
}

// Response is the envelope every API endpoint returns.
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data"`
	Error   *ErrorBody `json:"error"`
}

func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

// Error writes the failure envelope. Unexpected errors are attached to the
// gin context so the error logger middleware records them.
func Error(c *gin.Context, err error) {
	status := HTTPStatus(err)
	if KindOf(err) == KindUnexpected {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, Response{
		Success: false,
		Data:    nil,
		Error: &ErrorBody{
			Message:    err.Error(),
			StatusCode: status,
		},
	})
}

// ErrorStatus writes a failure envelope with an explicit status, for
// transport level failures (auth, binding, rate limit).
func ErrorStatus(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, Response{
		Success: false,
		Data:    nil,
		Error: &ErrorBody{
			Message:    message,
			StatusCode: status,
		},
	})
}

package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gridora/gridora/pkg/apperr"
)

type errorPayload struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

// ErrorHandlingMiddleware renders the last handler error as JSON after the
// chain finishes, unless a handler already wrote a response.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}
		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

// AbortWithError records err on the context for the error middleware.
func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		payload := errorPayload{
			Type:    appErr.Kind().String(),
			Code:    appErr.Code(),
			Message: appErr.Error(),
		}
		switch appErr.Kind() {
		case apperr.KindValidation:
			return http.StatusBadRequest, payload
		case apperr.KindNotFound:
			return http.StatusNotFound, payload
		case apperr.KindConflict:
			return http.StatusConflict, payload
		case apperr.KindRateLimited:
			return http.StatusTooManyRequests, payload
		case apperr.KindTenant:
			return http.StatusForbidden, payload
		case apperr.KindPayment:
			return http.StatusUnprocessableEntity, payload
		}
		return http.StatusInternalServerError, payload
	}

	return http.StatusInternalServerError, errorPayload{
		Type:    "internal",
		Message: "internal error",
	}
}

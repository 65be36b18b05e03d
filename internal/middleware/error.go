package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/labreport/pkg/errors"
	"github.com/jwalitptl/labreport/pkg/httputil"
)

// ErrorHandler logs every error a handler recorded. If the handler did not
// write a response itself, the last error is rendered as the envelope.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		requestID := c.GetString(ContextRequestID)
		for _, e := range c.Errors {
			event := log.Error()
			if appErr, ok := errors.As(e.Err); ok && appErr.StatusCode() < 500 {
				event = log.Debug()
			}
			logRequestError(event, c, requestID).Err(e.Err).Msg("Request error")
		}

		if c.Writer.Written() {
			return
		}
		status, resp := httputil.ErrorResponse(c.Errors.Last().Err)
		c.JSON(status, resp)
	}
}

func logRequestError(event *zerolog.Event, c *gin.Context, requestID string) *zerolog.Event {
	return event.
		Str("request_id", requestID).
		Str("path", c.Request.URL.Path).
		Str("method", c.Request.Method).
		Str("client_ip", c.ClientIP())
}

package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/labreport/pkg/httputil"
)

// Recovery turns a panic into a 500 envelope. When the handler had already
// started a download the status line is gone, so the response is only cut.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			requestLogger(c).Error().
				Interface("error", rec).
				Str("stack", string(debug.Stack())).
				Str("method", c.Request.Method).
				Str("route", c.FullPath()).
				Str("path", c.Request.URL.Path).
				Str("client_ip", c.ClientIP()).
				Bool("response_started", c.Writer.Written()).
				Msg("Request panic recovered")

			if c.Writer.Written() {
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError,
				httputil.NewErrorResponse("internal server error"))
		}()
		c.Next()
	}
}

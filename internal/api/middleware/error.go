package middleware

import (
	"net/http"
	"runtime/debug"

	apperrors "github.com/apms-ops/apms-backend-go/pkg/errors"
	"github.com/apms-ops/apms-backend-go/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ErrorHandlingMiddleware recovers panics, logs them with a stack
// trace, and returns a generic 500 so handler bugs never leak
// internals. A panic carrying an AppError keeps its status and message.
func ErrorHandlingMiddleware(logger *logrus.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"request_id": c.GetString(RequestIDKey),
			"panic":      recovered,
			"stack":      string(debug.Stack()),
		}).Error("panic recovered")

		status := http.StatusInternalServerError
		message := "Internal server error"
		if err, ok := recovered.(error); ok {
			status = apperrors.GetStatusCode(err)
			if appErr, ok := err.(*apperrors.AppError); ok {
				message = appErr.Message
			}
		}
		utils.SendError(c, status, message)
		c.Abort()
	})
}

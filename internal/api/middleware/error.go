package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	apperrors "github.com/gridview-ops/gridview-alert-go/pkg/errors"
	"github.com/gridview-ops/gridview-alert-go/pkg/utils"
)

// ErrorHandlingMiddleware recovers panics and returns a structured error
func ErrorHandlingMiddleware(logger *logrus.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"panic":  fmt.Sprintf("%v", recovered),
		}).Error("Panic recovered in request handler")

		appErr := apperrors.ErrInternalServer
		utils.SendError(c, appErr.Code, appErr.Message)
		c.Abort()
	})
}

package httpapi

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/proofflow/internal/metrics"
)

const bearerPrefix = "Bearer "

// RequestLogger logs every request and records its latency under the matched route template.
func RequestLogger(logger *zap.Logger, recorder *metrics.Recorder) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(context *gin.Context) {
		start := time.Now()
		context.Next()
		elapsed := time.Since(start)
		recorder.ObserveRequest(context.FullPath(), context.Request.Method, context.Writer.Status(), elapsed.Seconds())
		logger.Info("http",
			zap.String("method", context.Request.Method),
			zap.String("path", context.Request.URL.Path),
			zap.Int("status", context.Writer.Status()),
			zap.Duration("dur", elapsed),
			zap.String("ip", context.ClientIP()),
			zap.String("ua", context.Request.UserAgent()),
		)
	}
}

// AdminAuthMiddleware guards the admin group with a static bearer token. An empty token disables the group.
func AdminAuthMiddleware(adminBearerToken string) gin.HandlerFunc {
	return func(context *gin.Context) {
		if adminBearerToken == "" {
			context.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{jsonKeyError: errorValueAdminDisabled})
			return
		}
		authorizationHeader := strings.TrimSpace(context.GetHeader("Authorization"))
		if !strings.HasPrefix(authorizationHeader, bearerPrefix) {
			context.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{jsonKeyError: errorValueMissingBearer})
			return
		}
		provided := strings.TrimPrefix(authorizationHeader, bearerPrefix)
		if subtle.ConstantTimeCompare([]byte(provided), []byte(adminBearerToken)) != 1 {
			context.AbortWithStatusJSON(http.StatusForbidden, gin.H{jsonKeyError: errorValueForbidden})
			return
		}
		context.Next()
	}
}

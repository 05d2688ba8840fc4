package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/proofflow/pkg/embed"
)

const (
	javaScriptContentType = "application/javascript; charset=utf-8"
	javaScriptCacheHeader = "public, max-age=300"
)

// PublicJavaScriptHandlers serve the two runtime bundles.
type PublicJavaScriptHandlers struct {
	logger *zap.Logger
}

func NewPublicJavaScriptHandlers(logger *zap.Logger) *PublicJavaScriptHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PublicJavaScriptHandlers{logger: logger}
}

func (handlers *PublicJavaScriptHandlers) ScriptJS(context *gin.Context) {
	handlers.serveBundle(context, embed.ScriptPath, embed.ScriptBundle)
}

func (handlers *PublicJavaScriptHandlers) LegacyJS(context *gin.Context) {
	handlers.serveBundle(context, embed.LegacyScriptPath, embed.LegacyBundle)
}

func (handlers *PublicJavaScriptHandlers) serveBundle(context *gin.Context, path string, bundle func() (string, error)) {
	source, err := bundle()
	if err != nil {
		handlers.logger.Error("build_runtime_bundle_failed", zap.String("path", path), zap.Error(err))
		context.Status(http.StatusInternalServerError)
		return
	}
	context.Header("Cache-Control", javaScriptCacheHeader)
	context.Data(http.StatusOK, javaScriptContentType, []byte(source))
}

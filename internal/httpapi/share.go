package httpapi

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/proofflow/internal/metrics"
	"github.com/MarkoPoloResearchLab/proofflow/internal/storage"
	"github.com/MarkoPoloResearchLab/proofflow/pkg/embed"
	"github.com/MarkoPoloResearchLab/proofflow/pkg/footer"
)

const (
	htmlContentType       = "text/html; charset=utf-8"
	sharePageTitleSuffix  = " testimonials"
	sharePageNotFoundBody = "widget not found"
	sharePageErrorBody    = "share page unavailable"
)

var sharePageTemplate = template.Must(template.New("share").Parse(`<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>{{.Title}}</title>
  <style>body{margin:0;font-family:system-ui,sans-serif;background:#f8fafc}main{max-width:960px;margin:0 auto;padding:48px 16px}h1{font-size:1.5rem;margin:0 0 24px}.pf-share-footer{text-align:center;padding:24px;font-size:.875rem;color:#64748b}.pf-share-footer a{color:inherit;margin:0 8px}</style>
</head>
<body>
  <main>
    <h1>{{.Heading}}</h1>
    {{.Snippet}}
  </main>
  {{.Footer}}
</body>
</html>`))

type sharePageView struct {
	Title   string
	Heading string
	Snippet template.HTML
	Footer  template.HTML
}

// SharePageHandlers render the public page that displays a widget outside its host site.
type SharePageHandlers struct {
	database      *gorm.DB
	logger        *zap.Logger
	metrics       *metrics.Recorder
	cache         *RenderCache
	publicBaseURL string
}

func NewSharePageHandlers(database *gorm.DB, logger *zap.Logger, recorder *metrics.Recorder, cache *RenderCache, publicBaseURL string) *SharePageHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SharePageHandlers{
		database:      database,
		logger:        logger,
		metrics:       recorder,
		cache:         cache,
		publicBaseURL: publicBaseURL,
	}
}

func (handlers *SharePageHandlers) RenderSharePage(context *gin.Context) {
	widgetID := context.Param("id")
	page, hit, err := handlers.cache.GetOrRender(widgetID, func() (string, error) {
		return handlers.render(context, widgetID)
	})
	if err != nil {
		if errors.Is(err, storage.ErrWidgetNotFound) {
			context.Data(http.StatusNotFound, htmlContentType, []byte(sharePageNotFoundBody))
			return
		}
		handlers.logger.Error("render_share_page_failed", zap.String("widget_id", widgetID), zap.Error(err))
		context.Data(http.StatusInternalServerError, htmlContentType, []byte(sharePageErrorBody))
		return
	}
	handlers.metrics.SharePageCache(hit)
	context.Data(http.StatusOK, htmlContentType, []byte(page))
}

func (handlers *SharePageHandlers) render(context *gin.Context, widgetID string) (string, error) {
	requestContext := context.Request.Context()
	record, err := storage.FindWidget(requestContext, handlers.database, widgetID)
	if err != nil {
		return "", err
	}
	project, err := storage.FindProject(requestContext, handlers.database, record.ProjectID)
	if err != nil {
		return "", err
	}
	testimonials, err := storage.ApprovedTestimonials(requestContext, handlers.database, record.ProjectID)
	if err != nil {
		return "", err
	}

	snippet, err := embed.GenerateLegacy(record.Config(testimonials), handlers.publicBaseURL, record.ID)
	if err != nil {
		return "", fmt.Errorf("generate share snippet: %w", err)
	}
	footerMarkup, err := footer.Render(footer.Config{
		BrandURL:    handlers.publicBaseURL,
		ProjectName: project.Name,
		ProjectURL:  project.AllowedOrigin,
	})
	if err != nil {
		return "", err
	}

	var buffer bytes.Buffer
	if err := sharePageTemplate.Execute(&buffer, sharePageView{
		Title:   project.Name + sharePageTitleSuffix,
		Heading: record.Name,
		Snippet: template.HTML(snippet),
		Footer:  footerMarkup,
	}); err != nil {
		return "", fmt.Errorf("render share page: %w", err)
	}
	return buffer.String(), nil
}

package main

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/proofflow/internal/httpapi"
	"github.com/MarkoPoloResearchLab/proofflow/internal/metrics"
	"github.com/MarkoPoloResearchLab/proofflow/internal/task"
	"github.com/MarkoPoloResearchLab/proofflow/pkg/embed"
	"github.com/MarkoPoloResearchLab/proofflow/pkg/widget"
)

const (
	corsOriginWildcard             = "*"
	healthRoute                    = "/healthz"
	metricsRoute                   = "/metrics"
	shareRoute                     = "/share/:id"
	publicRouteWidgetConfig        = "/api/widget/:id"
	publicRouteProjectWidget       = "/api/projects/:slug/widget"
	adminRoutePrefix               = "/api/admin"
	adminRouteProjects             = "/projects"
	adminRouteProjectTestimonials  = "/projects/:id/testimonials"
	adminRouteTestimonial          = "/testimonials/:id"
	adminRouteWidgets              = "/widgets"
	adminRouteWidget               = "/widgets/:id"
	adminRouteWidgetEmbed          = "/widgets/:id/embed"
	adminRouteWidgetPreviewEvents  = "/widgets/:id/preview/events"
	shareCachePurgeJobName         = "share_cache_purge"
	corsMaxAge                     = 12 * time.Hour
	minimumShareCachePurgeInterval = time.Minute
)

var (
	publicCORSAllowedMethods = []string{http.MethodGet, http.MethodOptions}
	adminCORSAllowedMethods  = []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions}
	corsAllowedHeaders       = []string{"Authorization", "Content-Type", "Accept", "Origin"}
	corsExposedHeaders       = []string{"Content-Length", "Content-Disposition"}
)

type serverServices struct {
	router       *gin.Engine
	broadcaster  *httpapi.WidgetEventBroadcaster
	shareCache   *httpapi.RenderCache
	purgeJob     *task.Scheduler
	metrics      *metrics.Recorder
	adminHandler *httpapi.AdminHandlers
}

func newServerServices(database *gorm.DB, logger *zap.Logger, serverConfig ServerConfig) *serverServices {
	recorder := metrics.NewRecorder()
	broadcaster := httpapi.NewWidgetEventBroadcaster()
	shareCache := httpapi.NewRenderCache(serverConfig.ShareCacheTTL, time.Now)

	purgeInterval := serverConfig.ShareCacheTTL
	if purgeInterval < minimumShareCachePurgeInterval {
		purgeInterval = minimumShareCachePurgeInterval
	}
	purgeJob := task.NewScheduler(shareCachePurgeJobName, purgeInterval, task.NewCachePurgeRunner(shareCache, time.Now, logger), logger)

	publicHandlers := httpapi.NewPublicHandlers(database, logger, recorder)
	javaScriptHandlers := httpapi.NewPublicJavaScriptHandlers(logger)
	shareHandlers := httpapi.NewSharePageHandlers(database, logger, recorder, shareCache, serverConfig.PublicBaseURL)
	adminHandlers := httpapi.NewAdminHandlers(database, logger, recorder, widget.NewSchemaValidator(), broadcaster, shareCache, serverConfig.PublicBaseURL)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(httpapi.RequestLogger(logger, recorder))

	registerFrontendRoutes(router, javaScriptHandlers, shareHandlers, publicHandlers, recorder)
	registerBackendRoutes(router, publicHandlers, adminHandlers, serverConfig.AdminBearerToken, originOf(serverConfig.PublicBaseURL))

	return &serverServices{
		router:       router,
		broadcaster:  broadcaster,
		shareCache:   shareCache,
		purgeJob:     purgeJob,
		metrics:      recorder,
		adminHandler: adminHandlers,
	}
}

func (services *serverServices) start(ctx context.Context) {
	services.purgeJob.Start(ctx)
}

func (services *serverServices) stop() {
	services.purgeJob.Stop()
	services.broadcaster.Close()
}

func registerFrontendRoutes(
	router *gin.Engine,
	javaScriptHandlers *httpapi.PublicJavaScriptHandlers,
	shareHandlers *httpapi.SharePageHandlers,
	publicHandlers *httpapi.PublicHandlers,
	recorder *metrics.Recorder,
) {
	router.GET(embed.ScriptPath, javaScriptHandlers.ScriptJS)
	router.GET(embed.LegacyScriptPath, javaScriptHandlers.LegacyJS)
	router.GET(shareRoute, shareHandlers.RenderSharePage)
	router.GET(healthRoute, publicHandlers.Healthz)
	router.GET(metricsRoute, gin.WrapH(recorder.Handler()))
}

func registerBackendRoutes(
	router *gin.Engine,
	publicHandlers *httpapi.PublicHandlers,
	adminHandlers *httpapi.AdminHandlers,
	adminBearerToken string,
	adminOrigin string,
) {
	publicCORS := cors.New(cors.Config{
		AllowOrigins:     []string{corsOriginWildcard},
		AllowMethods:     publicCORSAllowedMethods,
		AllowHeaders:     corsAllowedHeaders,
		ExposeHeaders:    corsExposedHeaders,
		AllowCredentials: false,
		MaxAge:           corsMaxAge,
	})
	router.GET(publicRouteWidgetConfig, publicCORS, publicHandlers.WidgetConfig)
	router.OPTIONS(publicRouteWidgetConfig, publicCORS)
	router.GET(publicRouteProjectWidget, publicCORS, publicHandlers.ProjectWidget)
	router.OPTIONS(publicRouteProjectWidget, publicCORS)

	adminGroup := router.Group(adminRoutePrefix)
	adminGroup.Use(cors.New(cors.Config{
		AllowOrigins:     []string{adminOrigin},
		AllowMethods:     adminCORSAllowedMethods,
		AllowHeaders:     corsAllowedHeaders,
		ExposeHeaders:    corsExposedHeaders,
		AllowCredentials: false,
		MaxAge:           corsMaxAge,
	}))
	adminGroup.Use(httpapi.AdminAuthMiddleware(adminBearerToken))
	adminGroup.POST(adminRouteProjects, adminHandlers.CreateProject)
	adminGroup.POST(adminRouteProjectTestimonials, adminHandlers.CreateTestimonial)
	adminGroup.PATCH(adminRouteTestimonial, adminHandlers.ModerateTestimonial)
	adminGroup.POST(adminRouteWidgets, adminHandlers.CreateWidget)
	adminGroup.PATCH(adminRouteWidget, adminHandlers.UpdateWidget)
	adminGroup.GET(adminRouteWidgetEmbed, adminHandlers.WidgetEmbed)
	adminGroup.GET(adminRouteWidgetPreviewEvents, adminHandlers.StreamPreview)
}

// originOf strips any path so the value can be compared against an Origin header.
func originOf(baseURL string) string {
	parsedURL, parseErr := url.Parse(baseURL)
	if parseErr != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return corsOriginWildcard
	}
	return parsedURL.Scheme + "://" + parsedURL.Host
}

package httpapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/proofflow/internal/httpapi"
	"github.com/MarkoPoloResearchLab/proofflow/internal/metrics"
	"github.com/MarkoPoloResearchLab/proofflow/internal/testutil"
	"github.com/MarkoPoloResearchLab/proofflow/pkg/widget"
)

const (
	testAdminToken    = "test-admin-token"
	testPublicBaseURL = "https://cdn.proofflow.test"
	testOrigin        = "https://shop.example"
	testShareCacheTTL = time.Minute
)

type apiHarness struct {
	router   *gin.Engine
	database *gorm.DB
	events   *httpapi.WidgetEventBroadcaster
	cache    *httpapi.RenderCache
	metrics  *metrics.Recorder
	admin    *httpapi.AdminHandlers
	logs     *observer.ObservedLogs
}

func buildAPIHarness(testingT *testing.T) apiHarness {
	testingT.Helper()

	gin.SetMode(gin.TestMode)
	observedCore, observedLogs := observer.New(zap.DebugLevel)
	logger := zap.New(observedCore)

	database := testutil.OpenMigratedSQLiteDatabase(testingT)
	recorder := metrics.NewRecorder()
	broadcaster := httpapi.NewWidgetEventBroadcaster()
	testingT.Cleanup(broadcaster.Close)
	shareCache := httpapi.NewRenderCache(testShareCacheTTL, nil)

	publicHandlers := httpapi.NewPublicHandlers(database, logger, recorder)
	javaScriptHandlers := httpapi.NewPublicJavaScriptHandlers(logger)
	shareHandlers := httpapi.NewSharePageHandlers(database, logger, recorder, shareCache, testPublicBaseURL)
	adminHandlers := httpapi.NewAdminHandlers(database, logger, recorder, widget.NewSchemaValidator(), broadcaster, shareCache, testPublicBaseURL)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(httpapi.RequestLogger(logger, recorder))

	router.GET("/widget/embed-v2.js", javaScriptHandlers.ScriptJS)
	router.GET("/widget/embed.js", javaScriptHandlers.LegacyJS)
	router.GET("/share/:id", shareHandlers.RenderSharePage)
	router.GET("/healthz", publicHandlers.Healthz)

	publicGroup := router.Group("/api")
	publicGroup.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodOptions},
		AllowHeaders:    []string{"Content-Type"},
	}))
	publicGroup.GET("/widget/:id", publicHandlers.WidgetConfig)
	publicGroup.GET("/projects/:slug/widget", publicHandlers.ProjectWidget)

	adminGroup := router.Group("/api/admin")
	adminGroup.Use(httpapi.AdminAuthMiddleware(testAdminToken))
	adminGroup.POST("/projects", adminHandlers.CreateProject)
	adminGroup.POST("/projects/:id/testimonials", adminHandlers.CreateTestimonial)
	adminGroup.PATCH("/testimonials/:id", adminHandlers.ModerateTestimonial)
	adminGroup.POST("/widgets", adminHandlers.CreateWidget)
	adminGroup.PATCH("/widgets/:id", adminHandlers.UpdateWidget)
	adminGroup.GET("/widgets/:id/embed", adminHandlers.WidgetEmbed)
	adminGroup.GET("/widgets/:id/preview/events", adminHandlers.StreamPreview)

	return apiHarness{
		router:   router,
		database: database,
		events:   broadcaster,
		cache:    shareCache,
		metrics:  recorder,
		admin:    adminHandlers,
		logs:     observedLogs,
	}
}

func (harness apiHarness) request(testingT *testing.T, method string, path string, payload any, authorized bool) *httptest.ResponseRecorder {
	testingT.Helper()
	var body bytes.Buffer
	if payload != nil {
		switch typed := payload.(type) {
		case string:
			body.WriteString(typed)
		default:
			require.NoError(testingT, json.NewEncoder(&body).Encode(typed))
		}
	}
	request := httptest.NewRequest(method, path, &body)
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Origin", testOrigin)
	if authorized {
		request.Header.Set("Authorization", "Bearer "+testAdminToken)
	}
	recorder := httptest.NewRecorder()
	harness.router.ServeHTTP(recorder, request)
	return recorder
}

func decodeJSON(testingT *testing.T, recorder *httptest.ResponseRecorder, target any) {
	testingT.Helper()
	require.NoError(testingT, json.Unmarshal(recorder.Body.Bytes(), target))
}

func errorValue(testingT *testing.T, recorder *httptest.ResponseRecorder) string {
	testingT.Helper()
	var payload map[string]any
	decodeJSON(testingT, recorder, &payload)
	value, _ := payload["error"].(string)
	return value
}

type createdResource struct {
	ID         string `json:"id"`
	PublicSlug string `json:"publicSlug"`
	Status     string `json:"status"`
}

func (harness apiHarness) createProject(testingT *testing.T, name string) createdResource {
	testingT.Helper()
	response := harness.request(testingT, http.MethodPost, "/api/admin/projects", map[string]any{
		"name":          name,
		"allowedOrigin": testOrigin,
	}, true)
	require.Equal(testingT, http.StatusCreated, response.Code, response.Body.String())
	var project createdResource
	decodeJSON(testingT, response, &project)
	return project
}

func (harness apiHarness) createTestimonial(testingT *testing.T, projectID string, customerName string, content string, rating int, status string) createdResource {
	testingT.Helper()
	response := harness.request(testingT, http.MethodPost, "/api/admin/projects/"+projectID+"/testimonials", map[string]any{
		"customerName": customerName,
		"content":      content,
		"rating":       rating,
		"status":       status,
	}, true)
	require.Equal(testingT, http.StatusCreated, response.Code, response.Body.String())
	var testimonial createdResource
	decodeJSON(testingT, response, &testimonial)
	return testimonial
}

func (harness apiHarness) createWidget(testingT *testing.T, projectID string, widgetType widget.Type, behavior map[string]any) createdResource {
	testingT.Helper()
	payload := map[string]any{
		"projectId": projectID,
		"name":      "Homepage " + string(widgetType),
		"type":      string(widgetType),
		"styling":   map[string]any{"primaryColor": "#112233"},
	}
	if behavior != nil {
		payload["behavior"] = behavior
	}
	response := harness.request(testingT, http.MethodPost, "/api/admin/widgets", payload, true)
	require.Equal(testingT, http.StatusCreated, response.Code, response.Body.String())
	var created createdResource
	decodeJSON(testingT, response, &created)
	return created
}

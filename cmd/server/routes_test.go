package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/proofflow/internal/testutil"
)

const (
	testAdminToken    = "route-admin-token"
	testPublicBaseURL = "https://cdn.proofflow.test/assets"
	testAdminOrigin   = "https://cdn.proofflow.test"
)

func buildTestServices(testingT *testing.T) *serverServices {
	testingT.Helper()
	database := testutil.OpenMigratedSQLiteDatabase(testingT)
	services := newServerServices(database, zap.NewNop(), ServerConfig{
		AdminBearerToken: testAdminToken,
		PublicBaseURL:    testPublicBaseURL,
		ShareCacheTTL:    time.Minute,
	})
	testingT.Cleanup(services.stop)
	gin.SetMode(gin.TestMode)
	return services
}

func serve(services *serverServices, request *http.Request) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	services.router.ServeHTTP(recorder, request)
	return recorder
}

func TestPublicPreflightUsesWildcardCORS(testingT *testing.T) {
	services := buildTestServices(testingT)

	request := httptest.NewRequest(http.MethodOptions, "/api/widget/abc", nil)
	request.Header.Set("Origin", "http://shop.example")
	request.Header.Set("Access-Control-Request-Method", http.MethodGet)
	response := serve(services, request)

	require.Equal(testingT, http.StatusNoContent, response.Code)
	require.Equal(testingT, corsOriginWildcard, response.Header().Get("Access-Control-Allow-Origin"))
	require.Empty(testingT, response.Header().Get("Access-Control-Allow-Credentials"))
}

func TestPublicWidgetConfigCarriesCORSHeader(testingT *testing.T) {
	services := buildTestServices(testingT)

	request := httptest.NewRequest(http.MethodGet, "/api/widget/missing", nil)
	request.Header.Set("Origin", "http://shop.example")
	response := serve(services, request)

	require.Equal(testingT, http.StatusNotFound, response.Code)
	require.Equal(testingT, corsOriginWildcard, response.Header().Get("Access-Control-Allow-Origin"))
}

func TestAdminRoutesRequireBearerToken(testingT *testing.T) {
	services := buildTestServices(testingT)

	unauthorized := serve(services, httptest.NewRequest(http.MethodGet, "/api/admin/widgets/abc/embed", nil))
	require.Equal(testingT, http.StatusUnauthorized, unauthorized.Code)

	request := httptest.NewRequest(http.MethodGet, "/api/admin/widgets/abc/embed", nil)
	request.Header.Set("Authorization", "Bearer "+testAdminToken)
	request.Header.Set("Origin", testAdminOrigin)
	authorized := serve(services, request)
	require.Equal(testingT, http.StatusNotFound, authorized.Code)
	require.Equal(testingT, testAdminOrigin, authorized.Header().Get("Access-Control-Allow-Origin"))
}

func TestAdminRoutesRejectForeignOrigins(testingT *testing.T) {
	services := buildTestServices(testingT)

	request := httptest.NewRequest(http.MethodGet, "/api/admin/widgets/abc/embed", nil)
	request.Header.Set("Authorization", "Bearer "+testAdminToken)
	request.Header.Set("Origin", "https://evil.example")
	response := serve(services, request)
	require.Equal(testingT, http.StatusForbidden, response.Code)
}

func TestFrontendRoutesServeAssetsHealthAndMetrics(testingT *testing.T) {
	services := buildTestServices(testingT)

	for _, path := range []string{"/widget/embed-v2.js", "/widget/embed.js"} {
		response := serve(services, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(testingT, http.StatusOK, response.Code, path)
		require.Contains(testingT, response.Header().Get("Content-Type"), "javascript", path)
	}

	health := serve(services, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(testingT, http.StatusOK, health.Code)

	share := serve(services, httptest.NewRequest(http.MethodGet, "/share/missing", nil))
	require.Equal(testingT, http.StatusNotFound, share.Code)

	metricsResponse := serve(services, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(testingT, http.StatusOK, metricsResponse.Code)
	body, readErr := io.ReadAll(metricsResponse.Body)
	require.NoError(testingT, readErr)
	require.Contains(testingT, string(body), `route="/healthz"`)
}

func TestOriginOfStripsPath(testingT *testing.T) {
	require.Equal(testingT, testAdminOrigin, originOf(testPublicBaseURL))
	require.Equal(testingT, corsOriginWildcard, originOf("not a url"))
}

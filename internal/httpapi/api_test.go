package httpapi_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"

	"github.com/MarkoPoloResearchLab/proofflow/pkg/embed"
	"github.com/MarkoPoloResearchLab/proofflow/pkg/widget"
)

func TestWidgetConfigServesApprovedTestimonials(t *testing.T) {
	harness := buildAPIHarness(t)
	project := harness.createProject(t, "Acme Coffee")
	harness.createTestimonial(t, project.ID, "Ada", "Quote A", 5, "approved")
	harness.createTestimonial(t, project.ID, "Ben", "Quote B", 3, "approved")
	harness.createTestimonial(t, project.ID, "Cy", "Quote C", 4, "")
	created := harness.createWidget(t, project.ID, widget.TypeCarousel, map[string]any{"autoPlay": true, "slideInterval": 4000})

	response := harness.request(t, http.MethodGet, "/api/widget/"+created.ID, nil, false)
	require.Equal(t, http.StatusOK, response.Code)
	require.Equal(t, "*", response.Header().Get("Access-Control-Allow-Origin"))

	var config widget.Config
	decodeJSON(t, response, &config)
	require.Equal(t, created.ID, config.ID)
	require.Equal(t, widget.TypeCarousel, config.Type)
	require.Equal(t, "#112233", config.Styling.PrimaryColor)
	require.Equal(t, 4000, config.Behavior.SlideInterval)
	require.Len(t, config.Testimonials, 2)
	require.Equal(t, "Quote A", config.Testimonials[0].Content)
	require.Equal(t, "Quote B", config.Testimonials[1].Content)
}

func TestWidgetConfigUnknownWidget(t *testing.T) {
	harness := buildAPIHarness(t)
	response := harness.request(t, http.MethodGet, "/api/widget/missing", nil, false)
	require.Equal(t, http.StatusNotFound, response.Code)
	require.Equal(t, "unknown_widget", errorValue(t, response))
}

func TestProjectWidgetServesLegacyPayload(t *testing.T) {
	harness := buildAPIHarness(t)
	project := harness.createProject(t, "Acme Coffee")
	require.Equal(t, "acme-coffee", project.PublicSlug)
	harness.createTestimonial(t, project.ID, "Ada", "Quote A", 4, "approved")

	defaultResponse := harness.request(t, http.MethodGet, "/api/projects/acme-coffee/widget", nil, false)
	require.Equal(t, http.StatusOK, defaultResponse.Code)
	var defaultPayload widget.LegacyPayload
	decodeJSON(t, defaultResponse, &defaultPayload)
	require.Equal(t, project.ID, defaultPayload.Project.ID)
	require.Equal(t, "carousel", defaultPayload.Settings.Layout)
	require.Len(t, defaultPayload.Testimonials, 1)

	harness.createWidget(t, project.ID, widget.TypeRatingBar, nil)
	byIDResponse := harness.request(t, http.MethodGet, "/api/projects/"+project.ID+"/widget", nil, false)
	require.Equal(t, http.StatusOK, byIDResponse.Code)
	var byIDPayload widget.LegacyPayload
	decodeJSON(t, byIDResponse, &byIDPayload)
	require.Equal(t, "rating-bar", byIDPayload.Settings.Layout)
	require.Equal(t, "#112233", byIDPayload.Settings.PrimaryColor)

	missing := harness.request(t, http.MethodGet, "/api/projects/nobody/widget", nil, false)
	require.Equal(t, http.StatusNotFound, missing.Code)
	require.Equal(t, "unknown_project", errorValue(t, missing))
}

func TestAdminValidation(t *testing.T) {
	harness := buildAPIHarness(t)
	project := harness.createProject(t, "Acme Coffee")
	testimonial := harness.createTestimonial(t, project.ID, "Ada", "Quote A", 4, "pending")

	testCases := []struct {
		name           string
		method         string
		path           string
		payload        any
		expectedStatus int
		expectedError  string
	}{
		{name: "malformed json", method: http.MethodPost, path: "/api/admin/projects", payload: "{", expectedStatus: http.StatusBadRequest, expectedError: "invalid_json"},
		{name: "project without name", method: http.MethodPost, path: "/api/admin/projects", payload: map[string]any{"name": " "}, expectedStatus: http.StatusBadRequest, expectedError: "invalid_project"},
		{name: "project with bad origin", method: http.MethodPost, path: "/api/admin/projects", payload: map[string]any{"name": "X", "allowedOrigin": "ftp://x"}, expectedStatus: http.StatusBadRequest, expectedError: "invalid_project"},
		{name: "duplicate slug", method: http.MethodPost, path: "/api/admin/projects", payload: map[string]any{"name": "Acme Coffee"}, expectedStatus: http.StatusConflict, expectedError: "duplicate_slug"},
		{name: "rating out of range", method: http.MethodPost, path: "/api/admin/projects/" + project.ID + "/testimonials", payload: map[string]any{"customerName": "Ada", "content": "Hi", "rating": 7}, expectedStatus: http.StatusBadRequest, expectedError: "invalid_testimonial"},
		{name: "testimonial without content", method: http.MethodPost, path: "/api/admin/projects/" + project.ID + "/testimonials", payload: map[string]any{"customerName": "Ada"}, expectedStatus: http.StatusBadRequest, expectedError: "invalid_testimonial"},
		{name: "testimonial for unknown project", method: http.MethodPost, path: "/api/admin/projects/missing/testimonials", payload: map[string]any{"customerName": "Ada", "content": "Hi"}, expectedStatus: http.StatusNotFound, expectedError: "unknown_project"},
		{name: "unknown status", method: http.MethodPatch, path: "/api/admin/testimonials/" + testimonial.ID, payload: map[string]any{"status": "featured"}, expectedStatus: http.StatusBadRequest, expectedError: "invalid_status"},
		{name: "unknown testimonial", method: http.MethodPatch, path: "/api/admin/testimonials/missing", payload: map[string]any{"status": "approved"}, expectedStatus: http.StatusNotFound, expectedError: "unknown_testimonial"},
		{name: "slide interval below schema minimum", method: http.MethodPost, path: "/api/admin/widgets", payload: map[string]any{"projectId": project.ID, "name": "W", "behavior": map[string]any{"slideInterval": 10}}, expectedStatus: http.StatusBadRequest, expectedError: "invalid_config"},
		{name: "unknown widget type", method: http.MethodPost, path: "/api/admin/widgets", payload: map[string]any{"projectId": project.ID, "name": "W", "type": "marquee"}, expectedStatus: http.StatusBadRequest, expectedError: "invalid_widget"},
		{name: "widget for unknown project", method: http.MethodPost, path: "/api/admin/widgets", payload: map[string]any{"projectId": "missing", "name": "W"}, expectedStatus: http.StatusNotFound, expectedError: "unknown_project"},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(testingT *testing.T) {
			response := harness.request(testingT, testCase.method, testCase.path, testCase.payload, true)
			require.Equal(testingT, testCase.expectedStatus, response.Code, response.Body.String())
			require.Equal(testingT, testCase.expectedError, errorValue(testingT, response))
		})
	}
}

func TestModerationChangesPublicConfig(t *testing.T) {
	harness := buildAPIHarness(t)
	project := harness.createProject(t, "Acme Coffee")
	pending := harness.createTestimonial(t, project.ID, "Ada", "Quote A", 4, "pending")
	require.Equal(t, "pending", pending.Status)
	created := harness.createWidget(t, project.ID, widget.TypeGrid, nil)

	var before widget.Config
	decodeJSON(t, harness.request(t, http.MethodGet, "/api/widget/"+created.ID, nil, false), &before)
	require.Empty(t, before.Testimonials)
	require.NotNil(t, before.Testimonials)

	moderated := harness.request(t, http.MethodPatch, "/api/admin/testimonials/"+pending.ID, map[string]any{"status": "Approved"}, true)
	require.Equal(t, http.StatusOK, moderated.Code)

	var after widget.Config
	decodeJSON(t, harness.request(t, http.MethodGet, "/api/widget/"+created.ID, nil, false), &after)
	require.Len(t, after.Testimonials, 1)
	require.Equal(t, "Quote A", after.Testimonials[0].Content)
}

func TestUpdateWidgetReplacesSettings(t *testing.T) {
	harness := buildAPIHarness(t)
	project := harness.createProject(t, "Acme Coffee")
	created := harness.createWidget(t, project.ID, widget.TypeCarousel, nil)

	response := harness.request(t, http.MethodPatch, "/api/admin/widgets/"+created.ID, map[string]any{
		"name":     "Sidebar",
		"type":     "popup",
		"behavior": map[string]any{"position": "top-left", "displayDuration": 3000},
	}, true)
	require.Equal(t, http.StatusOK, response.Code, response.Body.String())

	var config widget.Config
	decodeJSON(t, harness.request(t, http.MethodGet, "/api/widget/"+created.ID, nil, false), &config)
	require.Equal(t, widget.TypePopup, config.Type)
	require.Equal(t, "top-left", config.Behavior.Position)
	require.Empty(t, config.Styling.PrimaryColor)

	missing := harness.request(t, http.MethodPatch, "/api/admin/widgets/missing", map[string]any{"name": "X"}, true)
	require.Equal(t, http.StatusNotFound, missing.Code)
}

func TestWidgetEmbedFormats(t *testing.T) {
	harness := buildAPIHarness(t)
	project := harness.createProject(t, "Acme Coffee")
	harness.createTestimonial(t, project.ID, "O'Brien", "It's great", 5, "approved")
	created := harness.createWidget(t, project.ID, widget.TypeCarousel, nil)

	scriptResponse := harness.request(t, http.MethodGet, "/api/admin/widgets/"+created.ID+"/embed", nil, true)
	require.Equal(t, http.StatusOK, scriptResponse.Code)
	var scriptPayload struct {
		WidgetID string `json:"widgetId"`
		Format   string `json:"format"`
		Snippet  string `json:"snippet"`
	}
	decodeJSON(t, scriptResponse, &scriptPayload)
	require.Equal(t, "script", scriptPayload.Format)
	require.True(t, strings.HasPrefix(scriptPayload.Snippet, `<script src="`+testPublicBaseURL+embed.ScriptPath+`"`))
	require.Contains(t, scriptPayload.Snippet, `data-widget-id="`+created.ID+`"`)
	require.Contains(t, scriptPayload.Snippet, "O&apos;Brien")

	start := strings.Index(scriptPayload.Snippet, "data-config='") + len("data-config='")
	end := strings.LastIndex(scriptPayload.Snippet, "' async")
	decoded, err := embed.DecodeConfigAttribute(scriptPayload.Snippet[start:end])
	require.NoError(t, err)
	require.Equal(t, "It's great", decoded.Testimonials[0].Content)

	legacyResponse := harness.request(t, http.MethodGet, "/api/admin/widgets/"+created.ID+"/embed?format=legacy&download=1", nil, true)
	require.Equal(t, http.StatusOK, legacyResponse.Code)
	require.Equal(t, `attachment; filename="proofflow-`+created.ID+`.html"`, legacyResponse.Header().Get("Content-Disposition"))
	require.Contains(t, legacyResponse.Body.String(), `id="`+widget.ContainerID(created.ID)+`"`)
	require.Contains(t, legacyResponse.Body.String(), "<script>")

	invalid := harness.request(t, http.MethodGet, "/api/admin/widgets/"+created.ID+"/embed?format=iframe", nil, true)
	require.Equal(t, http.StatusBadRequest, invalid.Code)
	require.Equal(t, "invalid_format", errorValue(t, invalid))

	unknown := harness.request(t, http.MethodGet, "/api/admin/widgets/missing/embed", nil, true)
	require.Equal(t, http.StatusNotFound, unknown.Code)
}

func TestSharePageUsesRenderCache(t *testing.T) {
	harness := buildAPIHarness(t)
	project := harness.createProject(t, "Acme Coffee")
	pending := harness.createTestimonial(t, project.ID, "Ada", "Quote A", 4, "pending")
	harness.createTestimonial(t, project.ID, "Ben", "Quote B", 5, "approved")
	created := harness.createWidget(t, project.ID, widget.TypeGrid, nil)

	first := harness.request(t, http.MethodGet, "/share/"+created.ID, nil, false)
	require.Equal(t, http.StatusOK, first.Code)
	document, err := goquery.NewDocumentFromReader(strings.NewReader(first.Body.String()))
	require.NoError(t, err)
	require.Equal(t, "Acme Coffee testimonials", document.Find("title").Text())
	require.Equal(t, 1, document.Find("#"+widget.ContainerID(created.ID)).Length())
	require.Equal(t, testOrigin, document.Find("a.pf-share-footer__project").AttrOr("href", ""))
	require.Contains(t, first.Body.String(), "Quote B")
	require.NotContains(t, first.Body.String(), "Quote A")
	require.Equal(t, 1, harness.cache.Len())

	second := harness.request(t, http.MethodGet, "/share/"+created.ID, nil, false)
	require.Equal(t, first.Body.String(), second.Body.String())

	moderated := harness.request(t, http.MethodPatch, "/api/admin/testimonials/"+pending.ID, map[string]any{"status": "approved"}, true)
	require.Equal(t, http.StatusOK, moderated.Code)
	require.Equal(t, 0, harness.cache.Len())

	third := harness.request(t, http.MethodGet, "/share/"+created.ID, nil, false)
	require.Contains(t, third.Body.String(), "Quote A")

	missing := harness.request(t, http.MethodGet, "/share/missing", nil, false)
	require.Equal(t, http.StatusNotFound, missing.Code)
	require.Equal(t, 1, harness.cache.Len())
}

func TestJavaScriptAssets(t *testing.T) {
	harness := buildAPIHarness(t)
	for _, path := range []string{embed.ScriptPath, embed.LegacyScriptPath} {
		response := harness.request(t, http.MethodGet, path, nil, false)
		require.Equal(t, http.StatusOK, response.Code, path)
		require.Equal(t, "application/javascript; charset=utf-8", response.Header().Get("Content-Type"))
		require.NotEmpty(t, response.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	harness := buildAPIHarness(t)
	response := harness.request(t, http.MethodGet, "/healthz", nil, false)
	require.Equal(t, http.StatusOK, response.Code)
}

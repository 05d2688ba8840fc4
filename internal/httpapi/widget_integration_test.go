package httpapi_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/MarkoPoloResearchLab/proofflow/pkg/embed"
	"github.com/MarkoPoloResearchLab/proofflow/pkg/widget"
)

const (
	integrationHostRoutePath             = "/host"
	integrationLegacyHostPageTemplate    = "<!doctype html><html lang=\"en\"><head><meta charset=\"utf-8\"><title>Legacy host</title></head><body><div data-project-id=\"%s\"></div><div data-project-id=\"%s\"></div><script src=\"%s%s\"></script><script>setTimeout(function () { var late = document.createElement(\"div\"); late.setAttribute(\"data-project-id\", %q); document.body.appendChild(late); }, 200);</script></body></html>"
	integrationInlineHostPageTemplate    = "<!doctype html><html lang=\"en\"><head><meta charset=\"utf-8\"><title>Inline host</title></head><body><h1>Host page</h1>%s</body></html>"
	integrationHostPageTemplate          = "<!doctype html><html lang=\"en\"><head><meta charset=\"utf-8\"><title>Host</title></head><body><h1>Host page</h1><script src=\"%s%s\" data-widget-id=\"%s\" data-base-url=\"%s\" async></script></body></html>"
	integrationTestTimeout               = 20 * time.Second
	headlessBrowserSkipReason            = "chromedp headless browser not available"
	headlessBrowserLocateErrorMessage    = "locate headless browser executable"
	headlessBrowserEnvironmentChromedp   = "CHROMEDP_BROWSER"
	headlessBrowserEnvironmentChromePath = "CHROME_PATH"
)

var headlessBrowserExecutableNames = []string{
	"chromium",
	"chromium-browser",
	"google-chrome",
	"google-chrome-stable",
	"chrome",
	"headless-shell",
}

var errHeadlessBrowserNotFound = errors.New("headless browser executable not found")

func TestScriptEmbedMountsFetchedWidgetInBrowser(t *testing.T) {
	browserContext := buildHeadlessBrowserContext(t)

	harness := buildAPIHarness(t)
	project := harness.createProject(t, "Acme Coffee")
	harness.createTestimonial(t, project.ID, "Ada", "Quote A", 5, "approved")
	harness.createTestimonial(t, project.ID, "Ben", "Quote B", 4, "approved")
	created := harness.createWidget(t, project.ID, widget.TypeCarousel, nil)

	harness.router.GET(integrationHostRoutePath, func(context *gin.Context) {
		origin := "http://" + context.Request.Host
		page := fmt.Sprintf(integrationHostPageTemplate, origin, embed.ScriptPath, created.ID, origin)
		context.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page))
	})
	server := httptest.NewServer(harness.router)
	defer server.Close()

	containerSelector := "#" + widget.ContainerID(created.ID)
	var quoteText string
	var styleInjected bool
	var registered bool
	runErr := chromedp.Run(browserContext,
		chromedp.Navigate(server.URL+integrationHostRoutePath),
		chromedp.WaitVisible(containerSelector+" .pf-carousel", chromedp.ByQuery),
		chromedp.Text(containerSelector+" .pf-content", &quoteText, chromedp.ByQuery),
		chromedp.Evaluate(fmt.Sprintf(`document.getElementById(%q) !== null`, widget.StyleElementID(created.ID)), &styleInjected),
		chromedp.Evaluate(fmt.Sprintf(`typeof window[%q] === "object"`, embed.InstanceKey(created.ID)), &registered),
		chromedp.Click(containerSelector+` [data-pf-action="next"]`, chromedp.ByQuery),
	)
	require.NoError(t, runErr)
	require.Equal(t, "Quote A", strings.TrimSpace(quoteText))
	require.True(t, styleInjected)
	require.True(t, registered)

	require.Eventually(t, func() bool {
		var currentText string
		if err := chromedp.Run(browserContext, chromedp.Text(containerSelector+" .pf-content", &currentText, chromedp.ByQuery)); err != nil {
			return false
		}
		return strings.TrimSpace(currentText) == "Quote B"
	}, 5*time.Second, 100*time.Millisecond)
}

func TestLegacyEmbedMountsPlaceholdersIncludingLateInsertions(testingT *testing.T) {
	browserContext := buildHeadlessBrowserContext(testingT)

	harness := buildAPIHarness(testingT)
	slugs := make([]string, 0, 3)
	for _, name := range []string{"Acme Coffee", "Globex", "Initech"} {
		project := harness.createProject(testingT, name)
		harness.createTestimonial(testingT, project.ID, "Ada", "Quote from "+name, 5, "approved")
		slugs = append(slugs, project.PublicSlug)
	}

	harness.router.GET(integrationHostRoutePath, func(context *gin.Context) {
		origin := "http://" + context.Request.Host
		page := fmt.Sprintf(integrationLegacyHostPageTemplate, slugs[0], slugs[1], origin, embed.LegacyScriptPath, slugs[2])
		context.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page))
	})
	server := httptest.NewServer(harness.router)
	defer server.Close()

	var containerCount int
	var pendingPlaceholders int
	var lateRegistered bool
	runErr := chromedp.Run(browserContext,
		chromedp.Navigate(server.URL+integrationHostRoutePath),
		chromedp.WaitVisible("#"+widget.ContainerID(slugs[0])+" .pf-carousel", chromedp.ByQuery),
		chromedp.WaitVisible("#"+widget.ContainerID(slugs[1])+" .pf-carousel", chromedp.ByQuery),
		chromedp.WaitVisible("#"+widget.ContainerID(slugs[2])+" .pf-carousel", chromedp.ByQuery),
		chromedp.Evaluate(`document.querySelectorAll("[data-pf-container]").length`, &containerCount),
		chromedp.Evaluate(`document.querySelectorAll("div[data-project-id]:not([data-pf-initialized])").length`, &pendingPlaceholders),
		chromedp.Evaluate(fmt.Sprintf(`typeof window[%q] === "object"`, embed.LegacyInstanceKey(slugs[2])), &lateRegistered),
	)
	require.NoError(testingT, runErr)
	require.Equal(testingT, 3, containerCount)
	require.Equal(testingT, 0, pendingPlaceholders)
	require.True(testingT, lateRegistered)
}

func TestInlineSnippetRunsWithoutFetching(testingT *testing.T) {
	browserContext := buildHeadlessBrowserContext(testingT)

	harness := buildAPIHarness(testingT)
	project := harness.createProject(testingT, "Acme Coffee")
	harness.createTestimonial(testingT, project.ID, "Ada", "Quote A", 5, "approved")
	harness.createTestimonial(testingT, project.ID, "Ben", "Quote B", 3, "approved")
	created := harness.createWidget(testingT, project.ID, widget.TypeRatingBar, nil)

	snippetResponse := harness.request(testingT, http.MethodGet, "/api/admin/widgets/"+created.ID+"/embed?format=legacy&download=1", nil, true)
	require.Equal(testingT, http.StatusOK, snippetResponse.Code)
	snippet := snippetResponse.Body.String()

	harness.router.GET(integrationHostRoutePath, func(context *gin.Context) {
		context.Data(http.StatusOK, "text/html; charset=utf-8", []byte(fmt.Sprintf(integrationInlineHostPageTemplate, snippet)))
	})
	server := httptest.NewServer(harness.router)
	defer server.Close()

	containerSelector := "#" + widget.ContainerID(created.ID)
	var averageText string
	var styleCount int
	var registered bool
	var configRequests int
	runErr := chromedp.Run(browserContext,
		chromedp.Navigate(server.URL+integrationHostRoutePath),
		chromedp.WaitVisible(containerSelector+" .pf-rating-bar", chromedp.ByQuery),
		chromedp.Text(containerSelector+" .pf-average", &averageText, chromedp.ByQuery),
		chromedp.Evaluate(fmt.Sprintf(`document.querySelectorAll("style#%s").length`, widget.StyleElementID(created.ID)), &styleCount),
		chromedp.Evaluate(fmt.Sprintf(`typeof window[%q] === "object"`, embed.InstanceKey(created.ID)), &registered),
		chromedp.Evaluate(`performance.getEntriesByType("resource").filter(function (entry) { return entry.name.indexOf("/api/") !== -1; }).length`, &configRequests),
	)
	require.NoError(testingT, runErr)
	require.Equal(testingT, "4.0", strings.TrimSpace(averageText))
	require.Equal(testingT, 1, styleCount)
	require.True(testingT, registered)
	require.Equal(testingT, 0, configRequests)
}

func locateHeadlessBrowserExecutable() (string, error) {
	for _, environmentVariableName := range []string{headlessBrowserEnvironmentChromedp, headlessBrowserEnvironmentChromePath} {
		environmentValue := strings.TrimSpace(os.Getenv(environmentVariableName))
		if environmentValue != "" {
			return environmentValue, nil
		}
	}
	for _, executableName := range headlessBrowserExecutableNames {
		executablePath, lookupErr := exec.LookPath(executableName)
		if lookupErr == nil {
			return executablePath, nil
		}
	}
	return "", fmt.Errorf("%s: %w", headlessBrowserLocateErrorMessage, errHeadlessBrowserNotFound)
}

func buildHeadlessBrowserContext(testingT *testing.T) context.Context {
	testingT.Helper()

	browserExecutablePath, locateBrowserErr := locateHeadlessBrowserExecutable()
	if locateBrowserErr != nil {
		testingT.Skipf("%s: %v", headlessBrowserSkipReason, locateBrowserErr)
	}

	headlessAllocatorOptions := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(browserExecutablePath),
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)

	allocatorContext, allocatorCancel := chromedp.NewExecAllocator(context.Background(), headlessAllocatorOptions...)
	testingT.Cleanup(allocatorCancel)

	browserContext, browserCancel := chromedp.NewContext(allocatorContext)
	testingT.Cleanup(browserCancel)

	contextWithTimeout, timeoutCancel := context.WithTimeout(browserContext, integrationTestTimeout)
	testingT.Cleanup(timeoutCancel)

	return contextWithTimeout
}

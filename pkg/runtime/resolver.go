package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/proofflow/pkg/embed"
	"github.com/MarkoPoloResearchLab/proofflow/pkg/widget"
)

const (
	attributeWidgetID   = "data-widget-id"
	attributeWidgetType = "data-widget-type"
	attributeBaseURL    = "data-base-url"
	attributeConfig     = "data-config"
	attributeSource     = "src"
	attributeProjectID  = "data-project-id"
	attributeDomain     = "data-domain"

	scriptPathMarker       = "/widget/"
	defaultFetchTimeout    = 10 * time.Second
	maximumConfigBodyBytes = 1 << 20
)

var (
	// ErrMissingWidgetID indicates a script tag without data-widget-id.
	ErrMissingWidgetID = errors.New("runtime: missing widget identifier")
	// ErrMissingProjectID indicates a legacy placeholder without data-project-id.
	ErrMissingProjectID = errors.New("runtime: missing project identifier")
	// ErrMissingBaseURL indicates no base URL could be derived for a network fetch.
	ErrMissingBaseURL = errors.New("runtime: missing base url")
	// ErrConfigFetch indicates a transport failure or a non-2xx response from the config endpoint.
	ErrConfigFetch = errors.New("runtime: config fetch failed")
	// ErrConfigDecode indicates a config response that is not a JSON object.
	ErrConfigDecode = errors.New("runtime: config decode failed")
)

// ScriptAttributes are the attributes a v2 embed script carries.
type ScriptAttributes struct {
	WidgetID   string
	WidgetType string
	BaseURL    string
	Config     string
	Source     string
}

// ScriptAttributesFromSelection reads the embed attributes of a script element.
func ScriptAttributesFromSelection(selection *goquery.Selection) ScriptAttributes {
	return ScriptAttributes{
		WidgetID:   strings.TrimSpace(selection.AttrOr(attributeWidgetID, "")),
		WidgetType: strings.TrimSpace(selection.AttrOr(attributeWidgetType, "")),
		BaseURL:    strings.TrimSpace(selection.AttrOr(attributeBaseURL, "")),
		Config:     selection.AttrOr(attributeConfig, ""),
		Source:     strings.TrimSpace(selection.AttrOr(attributeSource, "")),
	}
}

// ResolvedBaseURL returns data-base-url, or the script source truncated before "/widget/".
func (attributes ScriptAttributes) ResolvedBaseURL() string {
	if attributes.BaseURL != "" {
		return strings.TrimRight(attributes.BaseURL, "/")
	}
	return baseURLFromSource(attributes.Source)
}

// LegacyAttributes are the attributes of a legacy placeholder div.
type LegacyAttributes struct {
	ProjectID string
	Domain    string
}

// LegacyAttributesFromSelection reads the attributes of a placeholder element.
func LegacyAttributesFromSelection(selection *goquery.Selection) LegacyAttributes {
	return LegacyAttributes{
		ProjectID: strings.TrimSpace(selection.AttrOr(attributeProjectID, "")),
		Domain:    strings.TrimRight(strings.TrimSpace(selection.AttrOr(attributeDomain, "")), "/"),
	}
}

// HTTPDoer is the subset of *http.Client used by the resolver.
type HTTPDoer interface {
	Do(request *http.Request) (*http.Response, error)
}

// Resolver turns script attributes into a widget configuration.
type Resolver struct {
	client HTTPDoer
	logger *zap.Logger
}

// NewResolver builds a resolver. A nil client uses an http.Client with a ten second timeout.
func NewResolver(client HTTPDoer, logger *zap.Logger) *Resolver {
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTimeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{client: client, logger: logger}
}

// Resolve prefers a parsable inline data-config and otherwise performs exactly one GET against
// {baseUrl}/api/widget/{widgetId}.
func (resolver *Resolver) Resolve(ctx context.Context, attributes ScriptAttributes) (widget.Config, error) {
	if attributes.WidgetID == "" {
		return widget.Config{}, ErrMissingWidgetID
	}

	if strings.TrimSpace(attributes.Config) != "" {
		inlineConfig, decodeErr := embed.DecodeConfigAttribute(attributes.Config)
		if decodeErr == nil {
			return completeConfig(inlineConfig, attributes), nil
		}
		resolver.logger.Warn("widget_inline_config_invalid", zap.String("widget_id", attributes.WidgetID), zap.Error(decodeErr))
	}

	baseURL := attributes.ResolvedBaseURL()
	if baseURL == "" {
		return widget.Config{}, ErrMissingBaseURL
	}

	var fetched widget.Config
	if err := resolver.fetchJSON(ctx, baseURL+embed.ConfigEndpointPrefix+url.PathEscape(attributes.WidgetID), &fetched); err != nil {
		return widget.Config{}, err
	}
	return completeConfig(fetched, attributes), nil
}

// ResolveLegacy fetches the legacy project payload and converts it into a configuration.
func (resolver *Resolver) ResolveLegacy(ctx context.Context, attributes LegacyAttributes) (widget.Config, error) {
	if attributes.ProjectID == "" {
		return widget.Config{}, ErrMissingProjectID
	}
	if attributes.Domain == "" {
		return widget.Config{}, ErrMissingBaseURL
	}
	var payload widget.LegacyPayload
	if err := resolver.fetchJSON(ctx, embed.LegacyConfigEndpoint(attributes.Domain, url.PathEscape(attributes.ProjectID)), &payload); err != nil {
		return widget.Config{}, err
	}
	config := payload.Config()
	if config.ID == "" {
		config.ID = attributes.ProjectID
	}
	return config, nil
}

func (resolver *Resolver) fetchJSON(ctx context.Context, endpoint string, target any) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConfigFetch, err)
	}
	request.Header.Set("Accept", "application/json")

	response, err := resolver.client.Do(request)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConfigFetch, err)
	}
	defer response.Body.Close()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: status %d", ErrConfigFetch, response.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(response.Body, maximumConfigBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConfigFetch, err)
	}
	if !bytes.HasPrefix(bytes.TrimSpace(body), []byte("{")) {
		return fmt.Errorf("%w: response is not a JSON object", ErrConfigDecode)
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("%w: %v", ErrConfigDecode, err)
	}
	return nil
}

// completeConfig fills the identity of a resolved configuration; data-widget-type only applies
// when the configuration names no type.
func completeConfig(config widget.Config, attributes ScriptAttributes) widget.Config {
	if strings.TrimSpace(config.ID) == "" {
		config.ID = attributes.WidgetID
	}
	if strings.TrimSpace(string(config.Type)) == "" {
		config.Type = widget.Type(attributes.WidgetType)
	}
	if parsedType, err := widget.ParseType(string(config.Type)); err == nil {
		config.Type = parsedType
	}
	return config
}

func baseURLFromSource(source string) string {
	markerIndex := strings.Index(source, scriptPathMarker)
	if markerIndex <= 0 {
		return ""
	}
	return strings.TrimRight(source[:markerIndex], "/")
}

// Package embed produces the snippets site owners paste into their pages and the runtime scripts
// those snippets load.
package embed

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/ettle/strcase"

	"github.com/MarkoPoloResearchLab/proofflow/pkg/widget"
)

const (
	// ScriptPath is the path of the canonical runtime below the base URL.
	ScriptPath = "/widget/embed-v2.js"
	// LegacyScriptPath is the path of the placeholder-scanning runtime.
	LegacyScriptPath = "/widget/embed.js"
	// ConfigEndpointPrefix is the path prefix of the public widget configuration endpoint.
	ConfigEndpointPrefix = "/api/widget/"

	instanceKeyPrefix       = "ProofFlowWidget_"
	legacyInstanceKeyPrefix = "ProofFlowLegacy_"
	apostropheEntity        = "&apos;"
)

// Format selects the snippet flavor.
type Format string

const (
	FormatScript Format = "script"
	FormatLegacy Format = "legacy"
)

var (
	// ErrMissingWidgetID indicates a snippet was requested without a widget identifier.
	ErrMissingWidgetID = errors.New("embed: missing widget identifier")
	// ErrMissingBaseURL indicates a snippet was requested without a base URL.
	ErrMissingBaseURL = errors.New("embed: missing base url")
	// ErrUnknownFormat indicates an unsupported snippet format.
	ErrUnknownFormat = errors.New("embed: unknown snippet format")
	// ErrWidgetIDMismatch indicates a configuration whose id names another widget than the snippet.
	ErrWidgetIDMismatch = errors.New("embed: config id does not match widget id")
	// ErrInvalidConfigAttribute indicates a data-config value that does not decode into a configuration.
	ErrInvalidConfigAttribute = errors.New("embed: invalid config attribute")
)

// ParseFormat normalizes a format name. Empty input yields the script format.
func ParseFormat(rawFormat string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(rawFormat))) {
	case "", FormatScript:
		return FormatScript, nil
	case FormatLegacy:
		return FormatLegacy, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, rawFormat)
	}
}

// Generate dispatches to the generator of the requested format.
func Generate(format Format, config widget.Config, baseURL string, widgetID string) (string, error) {
	switch format {
	case FormatScript, "":
		return GenerateScript(config, baseURL, widgetID)
	case FormatLegacy:
		return GenerateLegacy(config, baseURL, widgetID)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
}

// GenerateScript returns the canonical script tag carrying the configuration inline. The data-config
// attribute decodes back into exactly the configuration passed in.
func GenerateScript(config widget.Config, baseURL string, widgetID string) (string, error) {
	normalizedBaseURL, normalizedWidgetID, err := normalizeInputs(config, baseURL, widgetID)
	if err != nil {
		return "", err
	}

	configAttribute, err := EncodeConfigAttribute(config)
	if err != nil {
		return "", err
	}

	var builder strings.Builder
	builder.WriteString(`<script src="`)
	builder.WriteString(html.EscapeString(normalizedBaseURL + ScriptPath))
	builder.WriteString(`" data-widget-id="`)
	builder.WriteString(html.EscapeString(normalizedWidgetID))
	builder.WriteString(`" data-widget-type="`)
	builder.WriteString(html.EscapeString(string(config.RenderType())))
	builder.WriteString(`" data-base-url="`)
	builder.WriteString(html.EscapeString(normalizedBaseURL))
	builder.WriteString(`" data-config='`)
	builder.WriteString(configAttribute)
	builder.WriteString(`' async></script>`)
	return builder.String(), nil
}

// GenerateLegacy returns a self-contained snippet: prerendered markup, its stylesheet and an inline
// runtime that takes over interactions without fetching anything.
func GenerateLegacy(config widget.Config, baseURL string, widgetID string) (string, error) {
	_, normalizedWidgetID, err := normalizeInputs(config, baseURL, widgetID)
	if err != nil {
		return "", err
	}

	prerendered, err := widget.RenderConfig(config, 0)
	if err != nil {
		return "", err
	}
	inlineScript, err := InlineScript(config, normalizedWidgetID)
	if err != nil {
		return "", err
	}

	containerID := widget.ContainerID(normalizedWidgetID)
	var builder strings.Builder
	builder.WriteString(`<div id="`)
	builder.WriteString(containerID)
	builder.WriteString(`" data-pf-container="`)
	builder.WriteString(containerID)
	builder.WriteString(`">`)
	builder.WriteString(prerendered)
	builder.WriteString("</div>\n<style id=\"")
	builder.WriteString(widget.StyleElementID(normalizedWidgetID))
	builder.WriteString("\">\n")
	builder.WriteString(widget.BuildStylesheet(containerID, config.Styling))
	builder.WriteString("</style>\n<script>\n")
	builder.WriteString(inlineScript)
	builder.WriteString("\n</script>")
	return builder.String(), nil
}

// EncodeConfigAttribute serializes a configuration for a single-quoted data-config attribute.
// json.Marshal already escapes &, < and >, leaving the apostrophe as the only character to encode.
func EncodeConfigAttribute(config widget.Config) (string, error) {
	payload, err := json.Marshal(config)
	if err != nil {
		return "", fmt.Errorf("embed: marshal config: %w", err)
	}
	return strings.ReplaceAll(string(payload), "'", apostropheEntity), nil
}

// DecodeConfigAttribute reverses EncodeConfigAttribute.
func DecodeConfigAttribute(rawAttribute string) (widget.Config, error) {
	decoded := strings.ReplaceAll(strings.TrimSpace(rawAttribute), apostropheEntity, "'")
	if decoded == "" {
		return widget.Config{}, ErrInvalidConfigAttribute
	}
	if !strings.HasPrefix(decoded, "{") {
		return widget.Config{}, fmt.Errorf("%w: not a JSON object", ErrInvalidConfigAttribute)
	}
	var config widget.Config
	if err := json.Unmarshal([]byte(decoded), &config); err != nil {
		return widget.Config{}, fmt.Errorf("%w: %v", ErrInvalidConfigAttribute, err)
	}
	return config, nil
}

// InstanceKey names the registry slot of a script-tag widget.
func InstanceKey(widgetID string) string {
	return instanceKeyPrefix + registryIdentifier(widgetID)
}

// LegacyInstanceKey names the registry slot of a placeholder widget.
func LegacyInstanceKey(projectID string) string {
	return legacyInstanceKeyPrefix + registryIdentifier(projectID)
}

// ConfigEndpoint returns the URL of the public configuration of a widget.
func ConfigEndpoint(baseURL string, widgetID string) string {
	return strings.TrimRight(strings.TrimSpace(baseURL), "/") + ConfigEndpointPrefix + strings.TrimSpace(widgetID)
}

// LegacyConfigEndpoint returns the URL of the legacy project widget endpoint.
func LegacyConfigEndpoint(domain string, projectID string) string {
	return strings.TrimRight(strings.TrimSpace(domain), "/") + "/api/projects/" + strings.TrimSpace(projectID) + "/widget"
}

// registryIdentifier keeps selector-safe identifiers as they are and snake-cases the rest.
func registryIdentifier(rawIdentifier string) string {
	sanitized := widget.SanitizeIdentifier(rawIdentifier)
	if sanitized == strings.TrimSpace(rawIdentifier) {
		return sanitized
	}
	return strcase.ToSnake(rawIdentifier)
}

// normalizeInputs rejects a configuration that carries the id of another widget; an empty id is
// left empty and filled by the runtime from data-widget-id.
func normalizeInputs(config widget.Config, baseURL string, widgetID string) (string, string, error) {
	normalizedWidgetID := strings.TrimSpace(widgetID)
	if normalizedWidgetID == "" {
		return "", "", ErrMissingWidgetID
	}
	if configID := strings.TrimSpace(config.ID); configID != "" && configID != normalizedWidgetID {
		return "", "", fmt.Errorf("%w: %s != %s", ErrWidgetIDMismatch, configID, normalizedWidgetID)
	}
	normalizedBaseURL := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if normalizedBaseURL == "" {
		return "", "", ErrMissingBaseURL
	}
	return normalizedBaseURL, normalizedWidgetID, nil
}

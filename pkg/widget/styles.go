package widget

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"
)

const (
	containerIDPrefix    = "proofflow-widget-"
	styleElementIDPrefix = "proofflow-styles-"
	structureRootToken   = "__ROOT__"
	fallbackIdentifier   = "default"
)

//go:embed assets/structure.css
var structureStylesheet string

var (
	hexColorPattern        = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3,4}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)
	functionalColorPattern = regexp.MustCompile(`^(?:rgb|rgba|hsl|hsla)\([0-9.,%\s/]+\)$`)
	namedColorPattern      = regexp.MustCompile(`^[a-zA-Z]{3,20}$`)
	identifierPattern      = regexp.MustCompile(`[^A-Za-z0-9_-]+`)
)

var fontSizeValues = map[string]string{
	"sm":   "14px",
	"base": "16px",
	"lg":   "18px",
}

var fontWeightValues = map[string]string{
	"normal":   "400",
	"medium":   "500",
	"semibold": "600",
	"bold":     "700",
}

var shadowValues = map[string]string{
	"none": "none",
	"sm":   "0 1px 2px 0 rgba(0, 0, 0, 0.05)",
	"md":   "0 4px 6px -1px rgba(0, 0, 0, 0.1), 0 2px 4px -2px rgba(0, 0, 0, 0.1)",
	"lg":   "0 10px 15px -3px rgba(0, 0, 0, 0.1), 0 4px 6px -4px rgba(0, 0, 0, 0.1)",
	"xl":   "0 20px 25px -5px rgba(0, 0, 0, 0.1), 0 8px 10px -6px rgba(0, 0, 0, 0.1)",
}

// StyleTables exposes the enum-to-CSS lookup tables so other runtimes apply identical mappings.
type StyleTables struct {
	FontSizes   map[string]string `json:"fontSizes"`
	FontWeights map[string]string `json:"fontWeights"`
	Shadows     map[string]string `json:"shadows"`
}

// LookupTables returns copies of the font size, font weight and shadow tables.
func LookupTables() StyleTables {
	return StyleTables{
		FontSizes:   copyTable(fontSizeValues),
		FontWeights: copyTable(fontWeightValues),
		Shadows:     copyTable(shadowValues),
	}
}

// StructureStylesheet returns the layout rules with the root selector left as a placeholder token.
func StructureStylesheet() (string, string) {
	return structureStylesheet, structureRootToken
}

// SanitizeIdentifier reduces a widget identifier to characters safe inside element ids and selectors.
func SanitizeIdentifier(rawIdentifier string) string {
	sanitized := identifierPattern.ReplaceAllString(strings.TrimSpace(rawIdentifier), "-")
	sanitized = strings.Trim(sanitized, "-")
	if sanitized == "" {
		return fallbackIdentifier
	}
	return sanitized
}

// ContainerID returns the element id of the container that hosts a widget.
func ContainerID(widgetID string) string {
	return containerIDPrefix + SanitizeIdentifier(widgetID)
}

// StyleElementID returns the id of the style element injected for a widget.
func StyleElementID(widgetID string) string {
	return styleElementIDPrefix + SanitizeIdentifier(widgetID)
}

// FontSizeValue maps a font size class to CSS, defaulting to base.
func FontSizeValue(fontSize string) string {
	return lookupOrDefault(fontSizeValues, fontSize, DefaultFontSize)
}

// FontWeightValue maps a font weight class to CSS, defaulting to normal.
func FontWeightValue(fontWeight string) string {
	return lookupOrDefault(fontWeightValues, fontWeight, DefaultFontWeight)
}

// ShadowValue maps a shadow class to CSS, defaulting to md.
func ShadowValue(shadow string) string {
	return lookupOrDefault(shadowValues, shadow, DefaultShadow)
}

// BuildStylesheet produces the CSS for one container, scoped by its id.
func BuildStylesheet(containerID string, styling Styling) string {
	rootSelector := "#" + SanitizeIdentifier(containerID)

	borderWidth := "0px"
	if styling.BorderEnabled() {
		borderWidth = "1px"
	}

	var builder strings.Builder
	builder.WriteString(rootSelector)
	builder.WriteString(" {\n")
	writeProperty(&builder, "--pf-primary", styling.PrimaryColorOrDefault())
	writeProperty(&builder, "--pf-background", styling.BackgroundColorOrDefault())
	writeProperty(&builder, "--pf-text", styling.TextColorOrDefault())
	writeProperty(&builder, "--pf-border-color", styling.BorderColorOrDefault())
	writeProperty(&builder, "--pf-accent", styling.AccentColorOrDefault())
	writeProperty(&builder, "--pf-radius", fmt.Sprintf("%dpx", styling.BorderRadiusPx()))
	writeProperty(&builder, "--pf-padding", fmt.Sprintf("%dpx", styling.PaddingPx()))
	writeProperty(&builder, "--pf-gap", fmt.Sprintf("%dpx", styling.GapPx()))
	writeProperty(&builder, "--pf-font-size", FontSizeValue(styling.FontSize))
	writeProperty(&builder, "--pf-font-weight", FontWeightValue(styling.FontWeight))
	writeProperty(&builder, "--pf-shadow", ShadowValue(styling.Shadow))
	writeProperty(&builder, "--pf-border-width", borderWidth)
	builder.WriteString("}\n")
	builder.WriteString(strings.ReplaceAll(structureStylesheet, structureRootToken, rootSelector))
	return builder.String()
}

func writeProperty(builder *strings.Builder, name string, value string) {
	builder.WriteString("  ")
	builder.WriteString(name)
	builder.WriteString(": ")
	builder.WriteString(value)
	builder.WriteString(";\n")
}

func safeColorOrDefault(rawColor string, fallback string) string {
	color := strings.TrimSpace(rawColor)
	if color == "" {
		return fallback
	}
	if hexColorPattern.MatchString(color) || functionalColorPattern.MatchString(color) || namedColorPattern.MatchString(color) {
		return color
	}
	return fallback
}

func lookupOrDefault(table map[string]string, key string, fallbackKey string) string {
	if value, found := table[strings.TrimSpace(key)]; found {
		return value
	}
	return table[fallbackKey]
}

func copyTable(source map[string]string) map[string]string {
	duplicate := make(map[string]string, len(source))
	for key, value := range source {
		duplicate[key] = value
	}
	return duplicate
}

package embed

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"text/template"

	"github.com/MarkoPoloResearchLab/proofflow/pkg/widget"
)

//go:embed assets/runtime-core.js
var runtimeCoreSource string

//go:embed assets/bootstrap-v2.js
var bootstrapScriptSource string

//go:embed assets/bootstrap-legacy.js
var bootstrapLegacySource string

//go:embed assets/bootstrap-inline.js
var bootstrapInlineSource string

const (
	bundlePrologue = "(function () {\n"
	bundleEpilogue = "\n})();\n"
)

var (
	runtimeCoreTemplate     = template.Must(template.New("runtime-core.js").Parse(runtimeCoreSource))
	bootstrapInlineTemplate = template.Must(template.New("bootstrap-inline.js").Parse(bootstrapInlineSource))

	bundleOnce       sync.Once
	runtimeCore      string
	scriptBundle     string
	legacyBundle     string
	bundleBuildError error
)

type runtimeCoreData struct {
	StructureCSS string
	RootToken    string
	Tables       string
	Defaults     string
}

type runtimeDefaults struct {
	PrimaryColor    string `json:"primaryColor"`
	BackgroundColor string `json:"backgroundColor"`
	TextColor       string `json:"textColor"`
	BorderColor     string `json:"borderColor"`
	AccentColor     string `json:"accentColor"`
	BorderRadius    int    `json:"borderRadius"`
	Padding         int    `json:"padding"`
	Gap             int    `json:"gap"`
	FontSize        string `json:"fontSize"`
	FontWeight      string `json:"fontWeight"`
	Shadow          string `json:"shadow"`
	SlideInterval   int    `json:"slideInterval"`
	DisplayDuration int    `json:"displayDuration"`
	Columns         int    `json:"columns"`
	MaxItems        int    `json:"maxItems"`
	Position        string `json:"position"`
	Animation       string `json:"animation"`
}

// ScriptBundle returns the runtime served at /widget/embed-v2.js.
func ScriptBundle() (string, error) {
	bundleOnce.Do(buildBundles)
	return scriptBundle, bundleBuildError
}

// LegacyBundle returns the placeholder-scanning runtime served at /widget/embed.js.
func LegacyBundle() (string, error) {
	bundleOnce.Do(buildBundles)
	return legacyBundle, bundleBuildError
}

// RuntimeCore returns the shared renderer and controller code without any bootstrap.
func RuntimeCore() (string, error) {
	bundleOnce.Do(buildBundles)
	return runtimeCore, bundleBuildError
}

// InlineScript returns the runtime embedded by legacy inline snippets, with the configuration baked in.
func InlineScript(config widget.Config, widgetID string) (string, error) {
	bundleOnce.Do(buildBundles)
	if bundleBuildError != nil {
		return "", bundleBuildError
	}
	configJSON, err := json.Marshal(config)
	if err != nil {
		return "", fmt.Errorf("embed: marshal inline config: %w", err)
	}
	widgetIDJSON, err := json.Marshal(widgetID)
	if err != nil {
		return "", fmt.Errorf("embed: marshal inline widget id: %w", err)
	}
	var buffer bytes.Buffer
	if err := bootstrapInlineTemplate.Execute(&buffer, struct {
		ConfigJSON string
		WidgetID   string
	}{ConfigJSON: string(configJSON), WidgetID: string(widgetIDJSON)}); err != nil {
		return "", fmt.Errorf("embed: render inline bootstrap: %w", err)
	}
	return wrapBundle(runtimeCore, buffer.String()), nil
}

func buildBundles() {
	core, err := renderRuntimeCore()
	if err != nil {
		bundleBuildError = err
		return
	}
	runtimeCore = core
	scriptBundle = wrapBundle(core, bootstrapScriptSource)
	legacyBundle = wrapBundle(core, bootstrapLegacySource)
}

func renderRuntimeCore() (string, error) {
	structureCSS, rootToken := widget.StructureStylesheet()
	encodedValues := make([]string, 0, 4)
	for _, value := range []any{structureCSS, rootToken, widget.LookupTables(), currentDefaults()} {
		encoded, err := json.Marshal(value)
		if err != nil {
			return "", fmt.Errorf("embed: marshal runtime constants: %w", err)
		}
		encodedValues = append(encodedValues, string(encoded))
	}

	var buffer bytes.Buffer
	if err := runtimeCoreTemplate.Execute(&buffer, runtimeCoreData{
		StructureCSS: encodedValues[0],
		RootToken:    encodedValues[1],
		Tables:       encodedValues[2],
		Defaults:     encodedValues[3],
	}); err != nil {
		return "", fmt.Errorf("embed: render runtime core: %w", err)
	}
	return buffer.String(), nil
}

func currentDefaults() runtimeDefaults {
	return runtimeDefaults{
		PrimaryColor:    widget.DefaultPrimaryColor,
		BackgroundColor: widget.DefaultBackgroundColor,
		TextColor:       widget.DefaultTextColor,
		BorderColor:     widget.DefaultBorderColor,
		AccentColor:     widget.DefaultAccentColor,
		BorderRadius:    widget.DefaultBorderRadius,
		Padding:         widget.DefaultPadding,
		Gap:             widget.DefaultGap,
		FontSize:        widget.DefaultFontSize,
		FontWeight:      widget.DefaultFontWeight,
		Shadow:          widget.DefaultShadow,
		SlideInterval:   widget.DefaultSlideInterval,
		DisplayDuration: widget.DefaultDisplayDuration,
		Columns:         widget.DefaultGridColumns,
		MaxItems:        widget.DefaultGridMaxItems,
		Position:        widget.DefaultPosition,
		Animation:       widget.DefaultAnimation,
	}
}

func wrapBundle(core string, bootstrap string) string {
	var builder strings.Builder
	builder.WriteString(bundlePrologue)
	builder.WriteString(core)
	builder.WriteString("\n")
	builder.WriteString(bootstrap)
	builder.WriteString(bundleEpilogue)
	return builder.String()
}

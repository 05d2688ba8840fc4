package widget

import "strings"

const (
	DefaultPrimaryColor    = "#4f46e5"
	DefaultBackgroundColor = "#ffffff"
	DefaultTextColor       = "#1f2937"
	DefaultBorderColor     = "#e5e7eb"
	DefaultAccentColor     = "#f59e0b"
	DefaultBorderRadius    = 12
	DefaultPadding         = 24
	DefaultGap             = 16
	DefaultFontSize        = "base"
	DefaultFontWeight      = "normal"
	DefaultShadow          = "md"

	DefaultSlideInterval   = 5000
	DefaultDisplayDuration = 5000
	DefaultGridColumns     = 3
	DefaultGridMaxItems    = 6
	DefaultPosition        = PositionBottomRight
	DefaultAnimation       = AnimationSlide

	minimumColumns = 1
	maximumColumns = 4
	minimumRating  = 1
	maximumRating  = 5

	popupContentCharacterBudget = 80
	ratingBarMaxAvatars         = 5
	avatarCarouselMaxAvatars    = 8
	quoteSpotlightMaxAvatars    = 5
)

// PrimaryColorOrDefault returns the configured primary color or the default.
func (styling Styling) PrimaryColorOrDefault() string {
	return safeColorOrDefault(styling.PrimaryColor, DefaultPrimaryColor)
}

// BackgroundColorOrDefault returns the configured background color or the default.
func (styling Styling) BackgroundColorOrDefault() string {
	return safeColorOrDefault(styling.BackgroundColor, DefaultBackgroundColor)
}

// TextColorOrDefault returns the configured text color or the default.
func (styling Styling) TextColorOrDefault() string {
	return safeColorOrDefault(styling.TextColor, DefaultTextColor)
}

// BorderColorOrDefault returns the configured border color or the default.
func (styling Styling) BorderColorOrDefault() string {
	return safeColorOrDefault(styling.BorderColor, DefaultBorderColor)
}

// AccentColorOrDefault returns the configured accent color or the default.
func (styling Styling) AccentColorOrDefault() string {
	return safeColorOrDefault(styling.AccentColor, DefaultAccentColor)
}

// BorderRadiusPx returns the corner radius in pixels.
func (styling Styling) BorderRadiusPx() int {
	return nonNegativeOrDefault(styling.BorderRadius, DefaultBorderRadius)
}

// PaddingPx returns the card padding in pixels.
func (styling Styling) PaddingPx() int {
	return nonNegativeOrDefault(styling.Padding, DefaultPadding)
}

// GapPx returns the inter-item gap in pixels.
func (styling Styling) GapPx() int {
	return nonNegativeOrDefault(styling.Gap, DefaultGap)
}

// BorderEnabled reports whether cards draw a border; borders are on unless disabled.
func (styling Styling) BorderEnabled() bool {
	return styling.Border == nil || *styling.Border
}

// SlideIntervalMs returns the rotation interval for rotating layouts.
func (behavior Behavior) SlideIntervalMs() int {
	if behavior.SlideInterval <= 0 {
		return DefaultSlideInterval
	}
	return behavior.SlideInterval
}

// DisplayDurationMs returns how long a popup stays visible before it rotates.
func (behavior Behavior) DisplayDurationMs() int {
	if behavior.DisplayDuration <= 0 {
		return DefaultDisplayDuration
	}
	return behavior.DisplayDuration
}

// ColumnCount returns the grid column count clamped to the supported range.
func (behavior Behavior) ColumnCount() int {
	switch {
	case behavior.Columns == 0:
		return DefaultGridColumns
	case behavior.Columns < minimumColumns:
		return minimumColumns
	case behavior.Columns > maximumColumns:
		return maximumColumns
	default:
		return behavior.Columns
	}
}

// GridMaxItems returns the number of cards a grid renders at most.
func (behavior Behavior) GridMaxItems() int {
	if behavior.MaxItems <= 0 {
		return DefaultGridMaxItems
	}
	return behavior.MaxItems
}

// PopupPosition returns the popup anchor corner.
func (behavior Behavior) PopupPosition() string {
	switch strings.TrimSpace(behavior.Position) {
	case PositionBottomRight, PositionBottomLeft, PositionTopRight, PositionTopLeft:
		return strings.TrimSpace(behavior.Position)
	default:
		return DefaultPosition
	}
}

// AnimationName returns the slide animation.
func (behavior Behavior) AnimationName() string {
	switch strings.TrimSpace(behavior.Animation) {
	case AnimationSlide, AnimationFade, AnimationZoom:
		return strings.TrimSpace(behavior.Animation)
	default:
		return DefaultAnimation
	}
}

// NavigationEnabled reports whether prev/next controls are rendered.
func (behavior Behavior) NavigationEnabled() bool {
	return flagOrDefault(behavior.ShowNavigation, true)
}

// DotsEnabled reports whether slide dots are rendered.
func (behavior Behavior) DotsEnabled() bool {
	return flagOrDefault(behavior.ShowDots, true)
}

// CloseButtonEnabled reports whether the popup renders a close button.
func (behavior Behavior) CloseButtonEnabled() bool {
	return flagOrDefault(behavior.ShowCloseButton, true)
}

// PauseOnHoverEnabled reports whether hovering pauses rotation.
func (behavior Behavior) PauseOnHoverEnabled() bool {
	return flagOrDefault(behavior.PauseOnHover, true)
}

func flagOrDefault(value *bool, fallback bool) bool {
	if value == nil {
		return fallback
	}
	return *value
}

func nonNegativeOrDefault(value *int, fallback int) int {
	if value == nil || *value < 0 {
		return fallback
	}
	return *value
}

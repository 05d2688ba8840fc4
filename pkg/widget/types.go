// Package widget defines the testimonial widget configuration, the scoped stylesheet builder and
// the layout renderers shared by the server, the CLI and the embed runtime.
package widget

import (
	"errors"
	"strings"
	"time"
)

// Type identifies a widget layout.
type Type string

const (
	TypeCarousel       Type = "carousel"
	TypePopup          Type = "popup"
	TypeGrid           Type = "grid"
	TypeRatingBar      Type = "rating-bar"
	TypeAvatarCarousel Type = "avatar-carousel"
	TypeQuoteSpotlight Type = "quote-spotlight"
)

// Popup anchor corners.
const (
	PositionBottomRight = "bottom-right"
	PositionBottomLeft  = "bottom-left"
	PositionTopRight    = "top-right"
	PositionTopLeft     = "top-left"
)

// Slide animations.
const (
	AnimationSlide = "slide"
	AnimationFade  = "fade"
	AnimationZoom  = "zoom"
)

var (
	// ErrUnknownType indicates a widget type outside the supported layouts.
	ErrUnknownType = errors.New("widget: unknown widget type")
	// ErrInvalidConfig indicates a configuration that failed schema validation.
	ErrInvalidConfig = errors.New("widget: invalid configuration")
)

var supportedTypes = []Type{
	TypeCarousel,
	TypePopup,
	TypeGrid,
	TypeRatingBar,
	TypeAvatarCarousel,
	TypeQuoteSpotlight,
}

// SupportedTypes lists every layout in a stable order.
func SupportedTypes() []Type {
	types := make([]Type, len(supportedTypes))
	copy(types, supportedTypes)
	return types
}

// ParseType normalizes a raw type value. Empty input yields the carousel default.
func ParseType(rawValue string) (Type, error) {
	normalized := Type(strings.ToLower(strings.TrimSpace(rawValue)))
	if normalized == "" {
		return TypeCarousel, nil
	}
	for _, supportedType := range supportedTypes {
		if supportedType == normalized {
			return normalized, nil
		}
	}
	return "", ErrUnknownType
}

// Known reports whether the type is one of the supported layouts.
func (widgetType Type) Known() bool {
	for _, supportedType := range supportedTypes {
		if supportedType == widgetType {
			return true
		}
	}
	return false
}

// Rotates reports whether the layout cycles through testimonials over time.
func (widgetType Type) Rotates() bool {
	switch widgetType {
	case TypeCarousel, TypePopup, TypeAvatarCarousel, TypeQuoteSpotlight:
		return true
	default:
		return false
	}
}

// Config is the complete description of one widget instance.
type Config struct {
	ID           string        `json:"id" yaml:"id"`
	Type         Type          `json:"type" yaml:"type"`
	Styling      Styling       `json:"styling" yaml:"styling"`
	Behavior     Behavior      `json:"behavior" yaml:"behavior"`
	Testimonials []Testimonial `json:"testimonials" yaml:"testimonials"`
}

// Styling holds the visual knobs turned into CSS custom properties.
type Styling struct {
	PrimaryColor    string `json:"primaryColor,omitempty" yaml:"primaryColor,omitempty"`
	BackgroundColor string `json:"backgroundColor,omitempty" yaml:"backgroundColor,omitempty"`
	TextColor       string `json:"textColor,omitempty" yaml:"textColor,omitempty"`
	BorderColor     string `json:"borderColor,omitempty" yaml:"borderColor,omitempty"`
	AccentColor     string `json:"accentColor,omitempty" yaml:"accentColor,omitempty"`
	BorderRadius    *int   `json:"borderRadius,omitempty" yaml:"borderRadius,omitempty"`
	Padding         *int   `json:"padding,omitempty" yaml:"padding,omitempty"`
	FontSize        string `json:"fontSize,omitempty" yaml:"fontSize,omitempty"`
	FontWeight      string `json:"fontWeight,omitempty" yaml:"fontWeight,omitempty"`
	Shadow          string `json:"shadow,omitempty" yaml:"shadow,omitempty"`
	Border          *bool  `json:"border,omitempty" yaml:"border,omitempty"`
	Gap             *int   `json:"gap,omitempty" yaml:"gap,omitempty"`
}

// Behavior holds the layout-dependent interaction settings.
type Behavior struct {
	AutoPlay        bool   `json:"autoPlay,omitempty" yaml:"autoPlay,omitempty"`
	SlideInterval   int    `json:"slideInterval,omitempty" yaml:"slideInterval,omitempty"`
	DisplayDuration int    `json:"displayDuration,omitempty" yaml:"displayDuration,omitempty"`
	Position        string `json:"position,omitempty" yaml:"position,omitempty"`
	Columns         int    `json:"columns,omitempty" yaml:"columns,omitempty"`
	ShowNavigation  *bool  `json:"showNavigation,omitempty" yaml:"showNavigation,omitempty"`
	ShowDots        *bool  `json:"showDots,omitempty" yaml:"showDots,omitempty"`
	ShowCloseButton *bool  `json:"showCloseButton,omitempty" yaml:"showCloseButton,omitempty"`
	PauseOnHover    *bool  `json:"pauseOnHover,omitempty" yaml:"pauseOnHover,omitempty"`
	ClickToExpand   bool   `json:"clickToExpand,omitempty" yaml:"clickToExpand,omitempty"`
	Animation       string `json:"animation,omitempty" yaml:"animation,omitempty"`
	MaxItems        int    `json:"maxItems,omitempty" yaml:"maxItems,omitempty"`
}

// Testimonial is a single customer quote as displayed by a widget.
type Testimonial struct {
	ID           string    `json:"id" yaml:"id"`
	CustomerName string    `json:"customerName" yaml:"customerName"`
	Company      string    `json:"company,omitempty" yaml:"company,omitempty"`
	Title        string    `json:"title,omitempty" yaml:"title,omitempty"`
	ImageURL     string    `json:"imageUrl,omitempty" yaml:"imageUrl,omitempty"`
	Content      string    `json:"content" yaml:"content"`
	Rating       *int      `json:"rating" yaml:"rating"`
	CreatedAt    time.Time `json:"createdAt" yaml:"createdAt"`
}

// HasValidRating reports whether the testimonial carries a rating between 1 and 5.
func (testimonial Testimonial) HasValidRating() bool {
	return testimonial.Rating != nil && *testimonial.Rating >= minimumRating && *testimonial.Rating <= maximumRating
}

// Byline joins the title and company for display under the customer name.
func (testimonial Testimonial) Byline() string {
	title := strings.TrimSpace(testimonial.Title)
	company := strings.TrimSpace(testimonial.Company)
	switch {
	case title != "" && company != "":
		return title + ", " + company
	case title != "":
		return title
	default:
		return company
	}
}

// RenderType resolves the layout used for rendering; unknown types fall back to carousel.
func (config Config) RenderType() Type {
	if config.Type.Known() {
		return config.Type
	}
	return TypeCarousel
}

// RotationLength is the number of positions a rotating layout cycles through.
func (config Config) RotationLength() int {
	count := len(config.Testimonials)
	switch config.RenderType() {
	case TypeAvatarCarousel:
		return minInt(count, avatarCarouselMaxAvatars)
	case TypeGrid, TypeRatingBar:
		if count > 0 {
			return 1
		}
		return 0
	default:
		return count
	}
}

// Bool returns a pointer to the provided value.
func Bool(value bool) *bool {
	return &value
}

// Int returns a pointer to the provided value.
func Int(value int) *int {
	return &value
}

func minInt(first int, second int) int {
	if first < second {
		return first
	}
	return second
}

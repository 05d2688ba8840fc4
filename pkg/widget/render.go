package widget

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
)

const (
	emptyTemplateName  = "empty"
	ratingLabelFormat  = "%d out of 5 stars"
	averageLabelFormat = "Rated %s out of 5"
)

//go:embed templates/*.tmpl
var templateFiles embed.FS

var layoutTemplates = template.Must(template.New("widget").ParseFS(templateFiles, "templates/*.tmpl"))

// RenderState is everything a renderer needs to draw one frame of a widget.
type RenderState struct {
	Type         Type
	Testimonials []Testimonial
	Styling      Styling
	Behavior     Behavior
	CurrentIndex int
	// Hidden marks a popup that is fading out or was dismissed.
	Hidden bool
	// Expanded lists grid cards opened by click-to-expand.
	Expanded map[int]bool
}

// StateFromConfig builds the initial render state of a configuration.
func StateFromConfig(config Config) RenderState {
	return RenderState{
		Type:         config.RenderType(),
		Testimonials: config.Testimonials,
		Styling:      config.Styling,
		Behavior:     config.Behavior,
	}
}

// RenderConfig renders a configuration at the given index.
func RenderConfig(config Config, currentIndex int) (string, error) {
	state := StateFromConfig(config)
	state.CurrentIndex = currentIndex
	return Render(state)
}

// Render produces the widget markup. User supplied text is escaped by html/template.
func Render(state RenderState) (string, error) {
	widgetType := state.Type
	if !widgetType.Known() {
		widgetType = TypeCarousel
	}

	var templateName string
	var data any
	if len(state.Testimonials) == 0 {
		templateName = emptyTemplateName
		data = struct{ Type Type }{Type: widgetType}
	} else {
		templateName = string(widgetType)
		switch widgetType {
		case TypeGrid:
			data = buildGridView(state)
		case TypePopup:
			data = buildPopupView(state)
		case TypeRatingBar:
			data = buildRatingBarView(state)
		case TypeAvatarCarousel:
			data = buildAvatarCarouselView(state)
		case TypeQuoteSpotlight:
			data = buildSpotlightView(state)
		default:
			data = buildCarouselView(state)
		}
	}

	var buffer bytes.Buffer
	if err := layoutTemplates.ExecuteTemplate(&buffer, templateName, data); err != nil {
		return "", fmt.Errorf("widget: render %s: %w", templateName, err)
	}
	return buffer.String(), nil
}

type cardView struct {
	Index       int
	ID          string
	Name        string
	Byline      string
	Content     string
	ImageURL    string
	Initials    string
	Stars       []bool
	RatingLabel string
	Expandable  bool
	Expanded    bool
	CloseButton bool
}

type dotView struct {
	Index    int
	Position int
	Active   bool
}

type selectorView struct {
	Index  int
	Active bool
	Card   cardView
}

type carouselView struct {
	Animation    string
	Current      cardView
	ShowControls bool
	ShowDots     bool
	Dots         []dotView
}

type gridView struct {
	Columns int
	Cards   []cardView
}

type popupView struct {
	Position string
	Hidden   bool
	Current  cardView
}

type summaryView struct {
	Stars       []bool
	RatingLabel string
	AverageText string
	ReviewCount int
}

type ratingBarView struct {
	Avatars   []cardView
	MoreCount int
	Summary   summaryView
}

type avatarCarouselView struct {
	Animation string
	Selectors []selectorView
	Current   cardView
}

type spotlightView struct {
	Animation string
	Current   cardView
	Selectors []selectorView
}

func buildCarouselView(state RenderState) carouselView {
	count := len(state.Testimonials)
	currentIndex := normalizeIndex(state.CurrentIndex, count)
	view := carouselView{
		Animation:    state.Behavior.AnimationName(),
		Current:      newCardView(currentIndex, state.Testimonials[currentIndex]),
		ShowControls: count > 1 && state.Behavior.NavigationEnabled(),
		ShowDots:     state.Behavior.DotsEnabled(),
	}
	if view.ShowControls && view.ShowDots {
		view.Dots = make([]dotView, count)
		for index := range state.Testimonials {
			view.Dots[index] = dotView{Index: index, Position: index + 1, Active: index == currentIndex}
		}
	}
	return view
}

func buildGridView(state RenderState) gridView {
	visible := state.Testimonials[:minInt(len(state.Testimonials), state.Behavior.GridMaxItems())]
	view := gridView{
		Columns: state.Behavior.ColumnCount(),
		Cards:   make([]cardView, len(visible)),
	}
	for index, testimonial := range visible {
		card := newCardView(index, testimonial)
		card.Expandable = state.Behavior.ClickToExpand
		card.Expanded = card.Expandable && state.Expanded[index]
		view.Cards[index] = card
	}
	return view
}

func buildPopupView(state RenderState) popupView {
	currentIndex := normalizeIndex(state.CurrentIndex, len(state.Testimonials))
	card := newCardView(currentIndex, state.Testimonials[currentIndex])
	card.Content = Truncate(card.Content, popupContentCharacterBudget)
	card.CloseButton = state.Behavior.CloseButtonEnabled()
	return popupView{
		Position: state.Behavior.PopupPosition(),
		Hidden:   state.Hidden,
		Current:  card,
	}
}

func buildRatingBarView(state RenderState) ratingBarView {
	summary := SummarizeRatings(state.Testimonials)
	stackSize := minInt(len(state.Testimonials), ratingBarMaxAvatars)
	view := ratingBarView{
		Avatars:   make([]cardView, stackSize),
		MoreCount: len(state.Testimonials) - stackSize,
		Summary: summaryView{
			Stars:       starFlags(summary.FilledStars()),
			RatingLabel: fmt.Sprintf(averageLabelFormat, summary.AverageLabel()),
			AverageText: summary.AverageLabel(),
			ReviewCount: summary.ReviewCount,
		},
	}
	for index := 0; index < stackSize; index++ {
		view.Avatars[index] = newCardView(index, state.Testimonials[index])
	}
	return view
}

func buildAvatarCarouselView(state RenderState) avatarCarouselView {
	count := minInt(len(state.Testimonials), avatarCarouselMaxAvatars)
	currentIndex := normalizeIndex(state.CurrentIndex, count)
	return avatarCarouselView{
		Animation: state.Behavior.AnimationName(),
		Selectors: buildSelectors(state.Testimonials[:count], currentIndex),
		Current:   newCardView(currentIndex, state.Testimonials[currentIndex]),
	}
}

func buildSpotlightView(state RenderState) spotlightView {
	count := len(state.Testimonials)
	currentIndex := normalizeIndex(state.CurrentIndex, count)
	view := spotlightView{
		Animation: state.Behavior.AnimationName(),
		Current:   newCardView(currentIndex, state.Testimonials[currentIndex]),
	}
	if count > 1 {
		view.Selectors = buildSelectors(state.Testimonials[:minInt(count, quoteSpotlightMaxAvatars)], currentIndex)
	}
	return view
}

func buildSelectors(testimonials []Testimonial, currentIndex int) []selectorView {
	selectors := make([]selectorView, len(testimonials))
	for index, testimonial := range testimonials {
		selectors[index] = selectorView{
			Index:  index,
			Active: index == currentIndex,
			Card:   newCardView(index, testimonial),
		}
	}
	return selectors
}

func newCardView(index int, testimonial Testimonial) cardView {
	name := strings.TrimSpace(testimonial.CustomerName)
	card := cardView{
		Index:    index,
		ID:       testimonial.ID,
		Name:     name,
		Byline:   testimonial.Byline(),
		Content:  strings.TrimSpace(testimonial.Content),
		ImageURL: SafeImageURL(testimonial.ImageURL),
		Initials: Initials(name),
	}
	if testimonial.HasValidRating() {
		card.Stars = starFlags(*testimonial.Rating)
		card.RatingLabel = fmt.Sprintf(ratingLabelFormat, *testimonial.Rating)
	}
	return card
}

func starFlags(filled int) []bool {
	stars := make([]bool, maximumRating)
	for index := range stars {
		stars[index] = index < filled
	}
	return stars
}

// SafeImageURL keeps absolute http(s) avatar URLs and drops everything else.
func SafeImageURL(rawURL string) string {
	trimmed := strings.TrimSpace(rawURL)
	lowered := strings.ToLower(trimmed)
	if strings.HasPrefix(lowered, "https://") || strings.HasPrefix(lowered, "http://") {
		return trimmed
	}
	return ""
}

func normalizeIndex(index int, count int) int {
	if count <= 0 || index < 0 || index >= count {
		return 0
	}
	return index
}

// Placeholder markup shown while a configuration loads and when it cannot be displayed.
const (
	LoadingMarkup = `<div class="pf-widget"><div class="pf-loading">Loading testimonials…</div></div>`
	ErrorMarkup   = `<div class="pf-widget"><div class="pf-error">Testimonials are unavailable right now.</div></div>`
)

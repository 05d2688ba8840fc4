package widget

// LegacyPayload is the response of the project-scoped widget endpoint read by the placeholder runtime.
type LegacyPayload struct {
	Project      LegacyProject  `json:"project"`
	Settings     LegacySettings `json:"settings"`
	Testimonials []Testimonial  `json:"testimonials"`
}

// LegacyProject identifies the project a placeholder belongs to.
type LegacyProject struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// LegacySettings is the reduced settings shape of the placeholder runtime.
type LegacySettings struct {
	Layout          string `json:"layout"`
	PrimaryColor    string `json:"primaryColor,omitempty"`
	BackgroundColor string `json:"backgroundColor,omitempty"`
	TextColor       string `json:"textColor,omitempty"`
	AutoRotate      bool   `json:"autoRotate"`
	RotateInterval  int    `json:"rotateInterval,omitempty"`
}

// NewLegacyPayload projects a configuration onto the legacy shape.
func NewLegacyPayload(project LegacyProject, config Config) LegacyPayload {
	testimonials := config.Testimonials
	if testimonials == nil {
		testimonials = []Testimonial{}
	}
	return LegacyPayload{
		Project: project,
		Settings: LegacySettings{
			Layout:          string(config.RenderType()),
			PrimaryColor:    config.Styling.PrimaryColor,
			BackgroundColor: config.Styling.BackgroundColor,
			TextColor:       config.Styling.TextColor,
			AutoRotate:      config.Behavior.AutoPlay,
			RotateInterval:  config.Behavior.SlideInterval,
		},
		Testimonials: testimonials,
	}
}

// Config converts the legacy payload. Unknown layouts render as carousel.
func (payload LegacyPayload) Config() Config {
	layout, err := ParseType(payload.Settings.Layout)
	if err != nil {
		layout = TypeCarousel
	}
	return Config{
		ID:   payload.Project.ID,
		Type: layout,
		Styling: Styling{
			PrimaryColor:    payload.Settings.PrimaryColor,
			BackgroundColor: payload.Settings.BackgroundColor,
			TextColor:       payload.Settings.TextColor,
		},
		Behavior: Behavior{
			AutoPlay:      payload.Settings.AutoRotate,
			SlideInterval: payload.Settings.RotateInterval,
		},
		Testimonials: payload.Testimonials,
	}
}

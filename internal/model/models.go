package model

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ettle/strcase"
	"github.com/google/uuid"

	"github.com/MarkoPoloResearchLab/proofflow/pkg/widget"
)

const (
	projectNameMaxLength   = 200
	projectSlugMaxLength   = 120
	projectOriginMaxLength = 500
	widgetNameMaxLength    = 200
)

var (
	ErrInvalidProjectName   = errors.New("invalid_project_name")
	ErrInvalidProjectSlug   = errors.New("invalid_project_slug")
	ErrInvalidProjectOrigin = errors.New("invalid_project_origin")
	ErrInvalidWidgetProject = errors.New("invalid_widget_project")
	ErrInvalidWidgetName    = errors.New("invalid_widget_name")
	ErrInvalidWidgetType    = errors.New("invalid_widget_type")
)

// Project groups the testimonials and widgets of one customer site.
type Project struct {
	ID            string    `gorm:"primaryKey;size:36"`
	Name          string    `gorm:"not null;size:200"`
	PublicSlug    string    `gorm:"uniqueIndex;not null;size:120"`
	AllowedOrigin string    `gorm:"size:500"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

// ProjectInput holds the raw values used to construct a Project.
type ProjectInput struct {
	Name          string
	PublicSlug    string
	AllowedOrigin string
}

// NewProject validates the input and derives a kebab-case public slug from the name when none is given.
func NewProject(input ProjectInput) (Project, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" || len(name) > projectNameMaxLength {
		return Project{}, ErrInvalidProjectName
	}

	slugSource := strings.TrimSpace(input.PublicSlug)
	if slugSource == "" {
		slugSource = name
	}
	slug := strcase.ToKebab(slugSource)
	if slug == "" || len(slug) > projectSlugMaxLength {
		return Project{}, ErrInvalidProjectSlug
	}

	allowedOrigin := strings.TrimRight(strings.TrimSpace(input.AllowedOrigin), "/")
	if allowedOrigin != "" {
		if len(allowedOrigin) > projectOriginMaxLength {
			return Project{}, fmt.Errorf("%w: too long", ErrInvalidProjectOrigin)
		}
		parsedOrigin, parseErr := url.Parse(allowedOrigin)
		if parseErr != nil || parsedOrigin.Host == "" || (parsedOrigin.Scheme != "http" && parsedOrigin.Scheme != "https") {
			return Project{}, fmt.Errorf("%w: %s", ErrInvalidProjectOrigin, allowedOrigin)
		}
	}

	return Project{
		ID:            uuid.NewString(),
		Name:          name,
		PublicSlug:    slug,
		AllowedOrigin: allowedOrigin,
	}, nil
}

// Widget stores the presentation settings of one embeddable widget.
type Widget struct {
	ID        string          `gorm:"primaryKey;size:36"`
	ProjectID string          `gorm:"index;not null;size:36"`
	Name      string          `gorm:"not null;size:200"`
	Type      widget.Type     `gorm:"not null;size:32"`
	Styling   widget.Styling  `gorm:"serializer:json"`
	Behavior  widget.Behavior `gorm:"serializer:json"`
	CreatedAt time.Time       `gorm:"autoCreateTime"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime"`
}

// WidgetInput holds the raw values used to construct a Widget.
type WidgetInput struct {
	ProjectID string
	Name      string
	Type      string
	Styling   widget.Styling
	Behavior  widget.Behavior
}

// NewWidget validates the input. An empty type selects the carousel layout.
func NewWidget(input WidgetInput) (Widget, error) {
	projectID := strings.TrimSpace(input.ProjectID)
	if projectID == "" {
		return Widget{}, ErrInvalidWidgetProject
	}
	name := strings.TrimSpace(input.Name)
	if name == "" || len(name) > widgetNameMaxLength {
		return Widget{}, ErrInvalidWidgetName
	}
	widgetType, typeErr := widget.ParseType(input.Type)
	if typeErr != nil {
		return Widget{}, fmt.Errorf("%w: %s", ErrInvalidWidgetType, input.Type)
	}
	return Widget{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Name:      name,
		Type:      widgetType,
		Styling:   input.Styling,
		Behavior:  input.Behavior,
	}, nil
}

// Config assembles the public widget configuration from the widget settings and its testimonials.
func (record Widget) Config(testimonials []Testimonial) widget.Config {
	displayed := make([]widget.Testimonial, 0, len(testimonials))
	for _, testimonial := range testimonials {
		displayed = append(displayed, testimonial.DisplayTestimonial())
	}
	return widget.Config{
		ID:           record.ID,
		Type:         record.Type,
		Styling:      record.Styling,
		Behavior:     record.Behavior,
		Testimonials: displayed,
	}
}

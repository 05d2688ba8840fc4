package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/proofflow/internal/model"
	"github.com/MarkoPoloResearchLab/proofflow/pkg/widget"
)

var (
	// ErrWidgetNotFound indicates no widget exists for the requested identifier.
	ErrWidgetNotFound = errors.New("storage: widget not found")
	// ErrProjectNotFound indicates no project exists for the requested identifier or slug.
	ErrProjectNotFound = errors.New("storage: project not found")
	// ErrTestimonialNotFound indicates no testimonial exists for the requested identifier.
	ErrTestimonialNotFound = errors.New("storage: testimonial not found")
)

// FindWidget loads one widget record.
func FindWidget(ctx context.Context, database *gorm.DB, widgetID string) (model.Widget, error) {
	var record model.Widget
	if err := database.WithContext(ctx).First(&record, "id = ?", strings.TrimSpace(widgetID)).Error; err != nil {
		return model.Widget{}, translateNotFound(err, ErrWidgetNotFound)
	}
	return record, nil
}

// FindProject loads one project record by identifier.
func FindProject(ctx context.Context, database *gorm.DB, projectID string) (model.Project, error) {
	var project model.Project
	if err := database.WithContext(ctx).First(&project, "id = ?", strings.TrimSpace(projectID)).Error; err != nil {
		return model.Project{}, translateNotFound(err, ErrProjectNotFound)
	}
	return project, nil
}

// FindProjectBySlugOrID loads a project by its public slug, falling back to its identifier.
func FindProjectBySlugOrID(ctx context.Context, database *gorm.DB, reference string) (model.Project, error) {
	normalizedReference := strings.TrimSpace(reference)
	var project model.Project
	err := database.WithContext(ctx).
		Where("public_slug = ?", strings.ToLower(normalizedReference)).
		Or("id = ?", normalizedReference).
		First(&project).Error
	if err != nil {
		return model.Project{}, translateNotFound(err, ErrProjectNotFound)
	}
	return project, nil
}

// ApprovedTestimonials lists the approved testimonials of a project in creation order.
func ApprovedTestimonials(ctx context.Context, database *gorm.DB, projectID string) ([]model.Testimonial, error) {
	var testimonials []model.Testimonial
	err := database.WithContext(ctx).
		Where("project_id = ? AND status = ?", projectID, model.TestimonialStatusApproved).
		Order("created_at asc").
		Order("id asc").
		Find(&testimonials).Error
	if err != nil {
		return nil, fmt.Errorf("storage: list testimonials: %w", err)
	}
	return testimonials, nil
}

// LoadWidgetConfig assembles the public configuration of a widget from its settings and the approved
// testimonials of its project.
func LoadWidgetConfig(ctx context.Context, database *gorm.DB, widgetID string) (widget.Config, error) {
	record, err := FindWidget(ctx, database, widgetID)
	if err != nil {
		return widget.Config{}, err
	}
	testimonials, err := ApprovedTestimonials(ctx, database, record.ProjectID)
	if err != nil {
		return widget.Config{}, err
	}
	return record.Config(testimonials), nil
}

// LoadProjectWidget resolves the configuration served to legacy placeholders of a project: its oldest
// widget, or a default carousel when the project has none.
func LoadProjectWidget(ctx context.Context, database *gorm.DB, reference string) (model.Project, widget.Config, error) {
	project, err := FindProjectBySlugOrID(ctx, database, reference)
	if err != nil {
		return model.Project{}, widget.Config{}, err
	}

	record := model.Widget{ID: project.ID, ProjectID: project.ID, Type: widget.TypeCarousel}
	var widgets []model.Widget
	if err := database.WithContext(ctx).Where("project_id = ?", project.ID).Order("created_at asc").Limit(1).Find(&widgets).Error; err != nil {
		return model.Project{}, widget.Config{}, fmt.Errorf("storage: list widgets: %w", err)
	}
	if len(widgets) > 0 {
		record = widgets[0]
	}

	testimonials, err := ApprovedTestimonials(ctx, database, project.ID)
	if err != nil {
		return model.Project{}, widget.Config{}, err
	}
	return project, record.Config(testimonials), nil
}

// ProjectIDForWidget returns the project a widget belongs to.
func ProjectIDForWidget(ctx context.Context, database *gorm.DB, widgetID string) (string, error) {
	record, err := FindWidget(ctx, database, widgetID)
	if err != nil {
		return "", err
	}
	return record.ProjectID, nil
}

// WidgetIDsForProject lists the widget identifiers of a project.
func WidgetIDsForProject(ctx context.Context, database *gorm.DB, projectID string) ([]string, error) {
	var widgetIDs []string
	if err := database.WithContext(ctx).Model(&model.Widget{}).Where("project_id = ?", projectID).Pluck("id", &widgetIDs).Error; err != nil {
		return nil, fmt.Errorf("storage: list widget ids: %w", err)
	}
	return widgetIDs, nil
}

// UpdateTestimonialStatus applies a moderation decision and returns the updated record.
func UpdateTestimonialStatus(ctx context.Context, database *gorm.DB, testimonialID string, status model.TestimonialStatus) (model.Testimonial, error) {
	var testimonial model.Testimonial
	if err := database.WithContext(ctx).First(&testimonial, "id = ?", strings.TrimSpace(testimonialID)).Error; err != nil {
		return model.Testimonial{}, translateNotFound(err, ErrTestimonialNotFound)
	}
	if err := database.WithContext(ctx).Model(&testimonial).Update("status", status).Error; err != nil {
		return model.Testimonial{}, fmt.Errorf("storage: update testimonial status: %w", err)
	}
	testimonial.Status = status
	return testimonial, nil
}

func translateNotFound(err error, notFound error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return fmt.Errorf("storage: query: %w", err)
}

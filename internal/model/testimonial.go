package model

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MarkoPoloResearchLab/proofflow/pkg/widget"
)

// TestimonialStatus is the moderation state of a testimonial.
type TestimonialStatus string

const (
	TestimonialStatusPending  TestimonialStatus = "pending"
	TestimonialStatusApproved TestimonialStatus = "approved"
	TestimonialStatusRejected TestimonialStatus = "rejected"

	testimonialNameMaxLength     = 200
	testimonialCompanyMaxLength  = 200
	testimonialTitleMaxLength    = 200
	testimonialImageURLMaxLength = 1000
	testimonialContentMaxLength  = 4000
	testimonialMinimumRating     = 1
	testimonialMaximumRating     = 5
)

var (
	ErrInvalidTestimonialProject  = errors.New("invalid_testimonial_project")
	ErrInvalidTestimonialCustomer = errors.New("invalid_testimonial_customer")
	ErrInvalidTestimonialContent  = errors.New("invalid_testimonial_content")
	ErrInvalidTestimonialRating   = errors.New("invalid_testimonial_rating")
	ErrInvalidTestimonialImageURL = errors.New("invalid_testimonial_image_url")
	ErrInvalidTestimonialStatus   = errors.New("invalid_testimonial_status")
)

// Testimonial is a customer quote collected for a project.
type Testimonial struct {
	ID           string            `gorm:"primaryKey;size:36"`
	ProjectID    string            `gorm:"index;not null;size:36"`
	CustomerName string            `gorm:"not null;size:200"`
	Company      string            `gorm:"size:200"`
	Title        string            `gorm:"size:200"`
	ImageURL     string            `gorm:"size:1000"`
	Content      string            `gorm:"not null;size:4000"`
	Rating       *int
	Status       TestimonialStatus `gorm:"not null;size:16;index"`
	CreatedAt    time.Time         `gorm:"autoCreateTime"`
	UpdatedAt    time.Time         `gorm:"autoUpdateTime"`
}

// TestimonialInput holds the raw values used to construct a Testimonial.
type TestimonialInput struct {
	ProjectID    string
	CustomerName string
	Company      string
	Title        string
	ImageURL     string
	Content      string
	Rating       *int
	Status       string
}

// NewTestimonial constructs a Testimonial with validated, normalized fields. Status defaults to pending.
func NewTestimonial(input TestimonialInput) (Testimonial, error) {
	projectID := strings.TrimSpace(input.ProjectID)
	if projectID == "" {
		return Testimonial{}, ErrInvalidTestimonialProject
	}

	customerName := strings.TrimSpace(input.CustomerName)
	if customerName == "" || len(customerName) > testimonialNameMaxLength {
		return Testimonial{}, ErrInvalidTestimonialCustomer
	}

	content := strings.TrimSpace(input.Content)
	if content == "" || len(content) > testimonialContentMaxLength {
		return Testimonial{}, ErrInvalidTestimonialContent
	}

	if input.Rating != nil && (*input.Rating < testimonialMinimumRating || *input.Rating > testimonialMaximumRating) {
		return Testimonial{}, fmt.Errorf("%w: %d", ErrInvalidTestimonialRating, *input.Rating)
	}

	imageURL := strings.TrimSpace(input.ImageURL)
	if imageURL != "" {
		if len(imageURL) > testimonialImageURLMaxLength || widget.SafeImageURL(imageURL) == "" {
			return Testimonial{}, ErrInvalidTestimonialImageURL
		}
		if _, parseErr := url.Parse(imageURL); parseErr != nil {
			return Testimonial{}, fmt.Errorf("%w: %v", ErrInvalidTestimonialImageURL, parseErr)
		}
	}

	status := TestimonialStatusPending
	if strings.TrimSpace(input.Status) != "" {
		parsedStatus, statusErr := ParseTestimonialStatus(input.Status)
		if statusErr != nil {
			return Testimonial{}, statusErr
		}
		status = parsedStatus
	}

	return Testimonial{
		ID:           uuid.NewString(),
		ProjectID:    projectID,
		CustomerName: customerName,
		Company:      truncateField(input.Company, testimonialCompanyMaxLength),
		Title:        truncateField(input.Title, testimonialTitleMaxLength),
		ImageURL:     imageURL,
		Content:      content,
		Rating:       input.Rating,
		Status:       status,
	}, nil
}

// ParseTestimonialStatus normalizes a raw moderation status.
func ParseTestimonialStatus(rawStatus string) (TestimonialStatus, error) {
	switch status := TestimonialStatus(strings.ToLower(strings.TrimSpace(rawStatus))); status {
	case TestimonialStatusPending, TestimonialStatusApproved, TestimonialStatusRejected:
		return status, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidTestimonialStatus, rawStatus)
	}
}

// DisplayTestimonial converts the stored record into the shape widgets render.
func (testimonial Testimonial) DisplayTestimonial() widget.Testimonial {
	return widget.Testimonial{
		ID:           testimonial.ID,
		CustomerName: testimonial.CustomerName,
		Company:      testimonial.Company,
		Title:        testimonial.Title,
		ImageURL:     testimonial.ImageURL,
		Content:      testimonial.Content,
		Rating:       testimonial.Rating,
		CreatedAt:    testimonial.CreatedAt.UTC(),
	}
}

func truncateField(rawValue string, maxLength int) string {
	runes := []rune(strings.TrimSpace(rawValue))
	if len(runes) <= maxLength {
		return string(runes)
	}
	return strings.TrimSpace(string(runes[:maxLength]))
}

package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/proofflow/internal/metrics"
	"github.com/MarkoPoloResearchLab/proofflow/internal/model"
	"github.com/MarkoPoloResearchLab/proofflow/internal/storage"
	"github.com/MarkoPoloResearchLab/proofflow/pkg/embed"
	"github.com/MarkoPoloResearchLab/proofflow/pkg/runtime"
	"github.com/MarkoPoloResearchLab/proofflow/pkg/widget"
)

const (
	maxAdminBodyBytes        = 1 << 20
	embedDownloadQueryValue  = "1"
	embedDownloadContentType = "text/html; charset=utf-8"
	embedDownloadFilePrefix  = "proofflow-"
	embedDownloadFileSuffix  = ".html"
)

// AdminHandlers implement the bearer-protected management API.
type AdminHandlers struct {
	database      *gorm.DB
	logger        *zap.Logger
	metrics       *metrics.Recorder
	validator     *widget.SchemaValidator
	broadcaster   *WidgetEventBroadcaster
	shareCache    *RenderCache
	publicBaseURL string
	previewClock  runtime.Clock
}

func NewAdminHandlers(
	database *gorm.DB,
	logger *zap.Logger,
	recorder *metrics.Recorder,
	validator *widget.SchemaValidator,
	broadcaster *WidgetEventBroadcaster,
	shareCache *RenderCache,
	publicBaseURL string,
) *AdminHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validator == nil {
		validator = widget.NewSchemaValidator()
	}
	return &AdminHandlers{
		database:      database,
		logger:        logger,
		metrics:       recorder,
		validator:     validator,
		broadcaster:   broadcaster,
		shareCache:    shareCache,
		publicBaseURL: publicBaseURL,
		previewClock:  runtime.RealClock{},
	}
}

// WithPreviewClock replaces the clock driving preview controllers.
func (handlers *AdminHandlers) WithPreviewClock(clock runtime.Clock) *AdminHandlers {
	if clock != nil {
		handlers.previewClock = clock
	}
	return handlers
}

type createProjectRequest struct {
	Name          string `json:"name"`
	PublicSlug    string `json:"publicSlug"`
	AllowedOrigin string `json:"allowedOrigin"`
}

type projectResponse struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	PublicSlug    string    `json:"publicSlug"`
	AllowedOrigin string    `json:"allowedOrigin,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

type testimonialRequest struct {
	CustomerName string `json:"customerName"`
	Company      string `json:"company"`
	Title        string `json:"title"`
	ImageURL     string `json:"imageUrl"`
	Content      string `json:"content"`
	Rating       *int   `json:"rating"`
	Status       string `json:"status"`
}

type testimonialResponse struct {
	ID           string    `json:"id"`
	ProjectID    string    `json:"projectId"`
	CustomerName string    `json:"customerName"`
	Company      string    `json:"company,omitempty"`
	Title        string    `json:"title,omitempty"`
	ImageURL     string    `json:"imageUrl,omitempty"`
	Content      string    `json:"content"`
	Rating       *int      `json:"rating"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
}

type moderateTestimonialRequest struct {
	Status string `json:"status"`
}

type widgetRequest struct {
	ProjectID string          `json:"projectId"`
	Name      string          `json:"name"`
	Type      string          `json:"type"`
	Styling   widget.Styling  `json:"styling"`
	Behavior  widget.Behavior `json:"behavior"`
}

type widgetResponse struct {
	ID        string          `json:"id"`
	ProjectID string          `json:"projectId"`
	Name      string          `json:"name"`
	Type      widget.Type     `json:"type"`
	Styling   widget.Styling  `json:"styling"`
	Behavior  widget.Behavior `json:"behavior"`
	CreatedAt time.Time       `json:"createdAt"`
}

type embedResponse struct {
	WidgetID string `json:"widgetId"`
	Format   string `json:"format"`
	Snippet  string `json:"snippet"`
}

func (handlers *AdminHandlers) CreateProject(context *gin.Context) {
	var request createProjectRequest
	if err := context.ShouldBindJSON(&request); err != nil {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidJSON})
		return
	}
	project, err := model.NewProject(model.ProjectInput{
		Name:          request.Name,
		PublicSlug:    request.PublicSlug,
		AllowedOrigin: request.AllowedOrigin,
	})
	if err != nil {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidProject, "detail": err.Error()})
		return
	}

	requestContext := context.Request.Context()
	var existing int64
	if err := handlers.database.WithContext(requestContext).Model(&model.Project{}).
		Where("public_slug = ?", project.PublicSlug).Count(&existing).Error; err != nil {
		handlers.logger.Error("count_project_slug_failed", zap.Error(err))
		context.JSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorValueSaveFailed})
		return
	}
	if existing > 0 {
		context.JSON(http.StatusConflict, gin.H{jsonKeyError: errorValueDuplicateSlug})
		return
	}
	if err := handlers.database.WithContext(requestContext).Create(&project).Error; err != nil {
		handlers.logger.Error("create_project_failed", zap.Error(err))
		context.JSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorValueSaveFailed})
		return
	}
	handlers.logger.Info("project_created", zap.String("project_id", project.ID), zap.String("slug", project.PublicSlug))
	context.JSON(http.StatusCreated, projectResponse{
		ID:            project.ID,
		Name:          project.Name,
		PublicSlug:    project.PublicSlug,
		AllowedOrigin: project.AllowedOrigin,
		CreatedAt:     project.CreatedAt,
	})
}

// CreateTestimonial validates the payload against the testimonial schema before building the record.
func (handlers *AdminHandlers) CreateTestimonial(context *gin.Context) {
	requestContext := context.Request.Context()
	project, err := storage.FindProject(requestContext, handlers.database, context.Param("id"))
	if err != nil {
		handlers.respondLookupError(context, err)
		return
	}

	body, ok := readBody(context)
	if !ok {
		return
	}
	if err := handlers.validator.Validate(widget.SchemaTestimonial, body); err != nil {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidTestimonial, "detail": err.Error()})
		return
	}
	var request testimonialRequest
	if err := json.Unmarshal(body, &request); err != nil {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidJSON})
		return
	}

	testimonial, err := model.NewTestimonial(model.TestimonialInput{
		ProjectID:    project.ID,
		CustomerName: request.CustomerName,
		Company:      request.Company,
		Title:        request.Title,
		ImageURL:     request.ImageURL,
		Content:      request.Content,
		Rating:       request.Rating,
		Status:       request.Status,
	})
	if err != nil {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidTestimonial, "detail": err.Error()})
		return
	}
	if err := handlers.database.WithContext(requestContext).Create(&testimonial).Error; err != nil {
		handlers.logger.Error("create_testimonial_failed", zap.String("project_id", project.ID), zap.Error(err))
		context.JSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorValueSaveFailed})
		return
	}
	if testimonial.Status == model.TestimonialStatusApproved {
		handlers.publishProjectChange(requestContext, project.ID)
	}
	context.JSON(http.StatusCreated, newTestimonialResponse(testimonial))
}

// ModerateTestimonial changes the status of a testimonial. Every status change can alter what widgets display.
func (handlers *AdminHandlers) ModerateTestimonial(context *gin.Context) {
	var request moderateTestimonialRequest
	if err := context.ShouldBindJSON(&request); err != nil {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidJSON})
		return
	}
	status, err := model.ParseTestimonialStatus(request.Status)
	if err != nil {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidStatus})
		return
	}
	requestContext := context.Request.Context()
	testimonial, err := storage.UpdateTestimonialStatus(requestContext, handlers.database, context.Param("id"), status)
	if err != nil {
		handlers.respondLookupError(context, err)
		return
	}
	handlers.logger.Info("testimonial_moderated", zap.String("testimonial_id", testimonial.ID), zap.String("status", string(status)))
	handlers.publishProjectChange(requestContext, testimonial.ProjectID)
	context.JSON(http.StatusOK, newTestimonialResponse(testimonial))
}

// CreateWidget validates styling and behavior against the settings schema.
func (handlers *AdminHandlers) CreateWidget(context *gin.Context) {
	request, ok := handlers.bindWidgetRequest(context)
	if !ok {
		return
	}
	requestContext := context.Request.Context()
	if _, err := storage.FindProject(requestContext, handlers.database, request.ProjectID); err != nil {
		handlers.respondLookupError(context, err)
		return
	}
	record, err := model.NewWidget(model.WidgetInput{
		ProjectID: request.ProjectID,
		Name:      request.Name,
		Type:      request.Type,
		Styling:   request.Styling,
		Behavior:  request.Behavior,
	})
	if err != nil {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidWidget, "detail": err.Error()})
		return
	}
	if err := handlers.database.WithContext(requestContext).Create(&record).Error; err != nil {
		handlers.logger.Error("create_widget_failed", zap.Error(err))
		context.JSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorValueSaveFailed})
		return
	}
	handlers.logger.Info("widget_created", zap.String("widget_id", record.ID), zap.String("type", string(record.Type)))
	context.JSON(http.StatusCreated, newWidgetResponse(record))
}

// UpdateWidget replaces the name, type and settings of a widget. The project cannot change.
func (handlers *AdminHandlers) UpdateWidget(context *gin.Context) {
	requestContext := context.Request.Context()
	existing, err := storage.FindWidget(requestContext, handlers.database, context.Param("id"))
	if err != nil {
		handlers.respondLookupError(context, err)
		return
	}
	request, ok := handlers.bindWidgetRequest(context)
	if !ok {
		return
	}
	updated, err := model.NewWidget(model.WidgetInput{
		ProjectID: existing.ProjectID,
		Name:      request.Name,
		Type:      request.Type,
		Styling:   request.Styling,
		Behavior:  request.Behavior,
	})
	if err != nil {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidWidget, "detail": err.Error()})
		return
	}
	existing.Name = updated.Name
	existing.Type = updated.Type
	existing.Styling = updated.Styling
	existing.Behavior = updated.Behavior
	if err := handlers.database.WithContext(requestContext).Save(&existing).Error; err != nil {
		handlers.logger.Error("update_widget_failed", zap.String("widget_id", existing.ID), zap.Error(err))
		context.JSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorValueSaveFailed})
		return
	}
	handlers.shareCache.Invalidate(existing.ID)
	handlers.broadcaster.Broadcast(WidgetEvent{
		WidgetID:  existing.ID,
		ProjectID: existing.ProjectID,
		Reason:    WidgetEventSettingsChanged,
	})
	context.JSON(http.StatusOK, newWidgetResponse(existing))
}

// WidgetEmbed returns the snippet of a widget. With download=1 the bare snippet is sent as an attachment.
func (handlers *AdminHandlers) WidgetEmbed(context *gin.Context) {
	format, err := embed.ParseFormat(context.Query("format"))
	if err != nil {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidFormat})
		return
	}
	widgetID := context.Param("id")
	config, err := storage.LoadWidgetConfig(context.Request.Context(), handlers.database, widgetID)
	if err != nil {
		handlers.respondLookupError(context, err)
		return
	}
	snippet, err := embed.Generate(format, config, handlers.publicBaseURL, widgetID)
	if err != nil {
		handlers.logger.Error("generate_embed_failed", zap.String("widget_id", widgetID), zap.Error(err))
		context.JSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorValueEmbedFailed})
		return
	}
	handlers.metrics.EmbedGenerated(string(format))

	if normalizedQuery(context, "download") == embedDownloadQueryValue {
		context.Header("Content-Disposition", `attachment; filename="`+embedDownloadFilePrefix+widget.SanitizeIdentifier(widgetID)+embedDownloadFileSuffix+`"`)
		context.Data(http.StatusOK, embedDownloadContentType, []byte(snippet))
		return
	}
	context.JSON(http.StatusOK, embedResponse{WidgetID: widgetID, Format: string(format), Snippet: snippet})
}

func (handlers *AdminHandlers) bindWidgetRequest(context *gin.Context) (widgetRequest, bool) {
	body, ok := readBody(context)
	if !ok {
		return widgetRequest{}, false
	}
	if err := handlers.validator.Validate(widget.SchemaSettings, body); err != nil {
		if errors.Is(err, widget.ErrInvalidConfig) {
			context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidConfig, "detail": err.Error()})
			return widgetRequest{}, false
		}
		handlers.logger.Error("settings_schema_unavailable", zap.Error(err))
		context.JSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorValueSaveFailed})
		return widgetRequest{}, false
	}
	var request widgetRequest
	if err := json.Unmarshal(body, &request); err != nil {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidJSON})
		return widgetRequest{}, false
	}
	return request, true
}

// publishProjectChange drops the cached share pages of the project's widgets and notifies preview streams.
func (handlers *AdminHandlers) publishProjectChange(requestContext context.Context, projectID string) {
	widgetIDs, err := storage.WidgetIDsForProject(requestContext, handlers.database, projectID)
	if err != nil {
		handlers.logger.Warn("list_project_widgets_failed", zap.String("project_id", projectID), zap.Error(err))
	}
	handlers.shareCache.Invalidate(widgetIDs...)
	handlers.broadcaster.Broadcast(WidgetEvent{
		ProjectID: projectID,
		Reason:    WidgetEventTestimonialsChanged,
	})
}

func (handlers *AdminHandlers) respondLookupError(context *gin.Context, err error) {
	switch {
	case errors.Is(err, storage.ErrWidgetNotFound):
		context.JSON(http.StatusNotFound, gin.H{jsonKeyError: errorValueUnknownWidget})
	case errors.Is(err, storage.ErrProjectNotFound):
		context.JSON(http.StatusNotFound, gin.H{jsonKeyError: errorValueUnknownProject})
	case errors.Is(err, storage.ErrTestimonialNotFound):
		context.JSON(http.StatusNotFound, gin.H{jsonKeyError: errorValueUnknownTestimonial})
	default:
		handlers.logger.Error("admin_lookup_failed", zap.String("path", context.FullPath()), zap.Error(err))
		context.JSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorValueConfigUnavailable})
	}
}

func readBody(context *gin.Context) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(context.Request.Body, maxAdminBodyBytes))
	if err != nil || len(bytes.TrimSpace(body)) == 0 {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidJSON})
		return nil, false
	}
	if !json.Valid(body) {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidJSON})
		return nil, false
	}
	return body, true
}

func newTestimonialResponse(testimonial model.Testimonial) testimonialResponse {
	return testimonialResponse{
		ID:           testimonial.ID,
		ProjectID:    testimonial.ProjectID,
		CustomerName: testimonial.CustomerName,
		Company:      testimonial.Company,
		Title:        testimonial.Title,
		ImageURL:     testimonial.ImageURL,
		Content:      testimonial.Content,
		Rating:       testimonial.Rating,
		Status:       string(testimonial.Status),
		CreatedAt:    testimonial.CreatedAt,
	}
}

func newWidgetResponse(record model.Widget) widgetResponse {
	return widgetResponse{
		ID:        record.ID,
		ProjectID: record.ProjectID,
		Name:      record.Name,
		Type:      record.Type,
		Styling:   record.Styling,
		Behavior:  record.Behavior,
		CreatedAt: record.CreatedAt,
	}
}

func normalizedQuery(context *gin.Context, key string) string {
	return strings.ToLower(strings.TrimSpace(context.Query(key)))
}

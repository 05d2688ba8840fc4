package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/proofflow/internal/metrics"
	"github.com/MarkoPoloResearchLab/proofflow/internal/storage"
	"github.com/MarkoPoloResearchLab/proofflow/pkg/widget"
)

const (
	configEndpointWidget  = "widget"
	configEndpointProject = "project"

	configOutcomeOK       = "ok"
	configOutcomeNotFound = "not_found"
	configOutcomeError    = "error"
)

// PublicHandlers serve the configuration endpoints read by embedded runtimes.
type PublicHandlers struct {
	database *gorm.DB
	logger   *zap.Logger
	metrics  *metrics.Recorder
}

func NewPublicHandlers(database *gorm.DB, logger *zap.Logger, recorder *metrics.Recorder) *PublicHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PublicHandlers{database: database, logger: logger, metrics: recorder}
}

// WidgetConfig serves the complete configuration of one widget with its approved testimonials.
func (handlers *PublicHandlers) WidgetConfig(context *gin.Context) {
	widgetID := context.Param("id")
	config, err := storage.LoadWidgetConfig(context.Request.Context(), handlers.database, widgetID)
	if err != nil {
		if errors.Is(err, storage.ErrWidgetNotFound) {
			handlers.metrics.ConfigRequest(configEndpointWidget, configOutcomeNotFound)
			context.JSON(http.StatusNotFound, gin.H{jsonKeyError: errorValueUnknownWidget})
			return
		}
		handlers.metrics.ConfigRequest(configEndpointWidget, configOutcomeError)
		handlers.logger.Error("load_widget_config_failed", zap.String("widget_id", widgetID), zap.Error(err))
		context.JSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorValueConfigUnavailable})
		return
	}
	handlers.metrics.ConfigRequest(configEndpointWidget, configOutcomeOK)
	context.JSON(http.StatusOK, config)
}

// ProjectWidget serves the legacy payload read by placeholder embeds. The path accepts a public slug or a
// project identifier.
func (handlers *PublicHandlers) ProjectWidget(context *gin.Context) {
	reference := context.Param("slug")
	project, config, err := storage.LoadProjectWidget(context.Request.Context(), handlers.database, reference)
	if err != nil {
		if errors.Is(err, storage.ErrProjectNotFound) {
			handlers.metrics.ConfigRequest(configEndpointProject, configOutcomeNotFound)
			context.JSON(http.StatusNotFound, gin.H{jsonKeyError: errorValueUnknownProject})
			return
		}
		handlers.metrics.ConfigRequest(configEndpointProject, configOutcomeError)
		handlers.logger.Error("load_project_widget_failed", zap.String("project_ref", reference), zap.Error(err))
		context.JSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorValueConfigUnavailable})
		return
	}
	handlers.metrics.ConfigRequest(configEndpointProject, configOutcomeOK)
	context.JSON(http.StatusOK, widget.NewLegacyPayload(widget.LegacyProject{
		ID:   project.ID,
		Name: project.Name,
		Slug: project.PublicSlug,
	}, config))
}

// Healthz reports whether the database answers.
func (handlers *PublicHandlers) Healthz(context *gin.Context) {
	sqlDatabase, err := handlers.database.DB()
	if err == nil {
		err = sqlDatabase.PingContext(context.Request.Context())
	}
	if err != nil {
		handlers.logger.Warn("healthz_database_unavailable", zap.Error(err))
		context.JSON(http.StatusServiceUnavailable, gin.H{jsonKeyError: errorValueDatabaseDown})
		return
	}
	context.JSON(http.StatusOK, gin.H{"status": "ok"})
}

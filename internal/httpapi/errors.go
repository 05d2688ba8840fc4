package httpapi

const (
	jsonKeyError = "error"

	errorValueAdminDisabled      = "admin_disabled"
	errorValueMissingBearer      = "missing_bearer"
	errorValueForbidden          = "forbidden"
	errorValueUnknownWidget      = "unknown_widget"
	errorValueUnknownProject     = "unknown_project"
	errorValueUnknownTestimonial = "unknown_testimonial"
	errorValueInvalidJSON        = "invalid_json"
	errorValueInvalidConfig      = "invalid_config"
	errorValueInvalidProject     = "invalid_project"
	errorValueInvalidWidget      = "invalid_widget"
	errorValueInvalidTestimonial = "invalid_testimonial"
	errorValueInvalidStatus      = "invalid_status"
	errorValueInvalidFormat      = "invalid_format"
	errorValueDuplicateSlug      = "duplicate_slug"
	errorValueSaveFailed         = "save_failed"
	errorValueConfigUnavailable  = "config_unavailable"
	errorValueEmbedFailed        = "embed_failed"
	errorValueStreamUnavailable  = "stream_unavailable"
	errorValueDatabaseDown       = "database_unavailable"
)

package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/proofflow/internal/storage"
	"github.com/MarkoPoloResearchLab/proofflow/pkg/runtime"
	"github.com/MarkoPoloResearchLab/proofflow/pkg/widget"
)

const (
	previewFrameEventName  = "frame"
	previewReloadEventName = "reload"
	previewFrameBuffer     = 16
)

type previewFrame struct {
	WidgetID     string      `json:"widgetId"`
	Type         widget.Type `json:"type"`
	CurrentIndex int         `json:"currentIndex"`
	Hidden       bool        `json:"hidden"`
	HTML         string      `json:"html"`
}

type previewReload struct {
	WidgetID string `json:"widgetId"`
	Reason   string `json:"reason"`
}

// previewSession drives a controller for one preview stream and turns its render calls into frames.
// The session itself is owned by the handler goroutine; only emit runs on clock goroutines.
type previewSession struct {
	widgetID   string
	clock      runtime.Clock
	logger     *zap.Logger
	frames     chan previewFrame
	controller *runtime.Controller
}

func newPreviewSession(widgetID string, clock runtime.Clock, logger *zap.Logger) *previewSession {
	return &previewSession{
		widgetID: widgetID,
		clock:    clock,
		logger:   logger,
		frames:   make(chan previewFrame, previewFrameBuffer),
	}
}

// load replaces the running controller with one built for config.
func (session *previewSession) load(config widget.Config) {
	session.stop()
	session.controller = runtime.NewController(runtime.ControllerOptions{
		Clock:  session.clock,
		Render: session.emit,
	})
	session.controller.Load(config)
}

func (session *previewSession) stop() {
	if session.controller != nil {
		session.controller.Destroy()
		session.controller = nil
	}
}

// emit drops the frame when the stream is not keeping up.
func (session *previewSession) emit(state widget.RenderState) {
	markup, err := widget.Render(state)
	if err != nil {
		session.logger.Warn("preview_render_failed", zap.String("widget_id", session.widgetID), zap.Error(err))
		return
	}
	frame := previewFrame{
		WidgetID:     session.widgetID,
		Type:         state.Type,
		CurrentIndex: state.CurrentIndex,
		Hidden:       state.Hidden,
		HTML:         markup,
	}
	select {
	case session.frames <- frame:
	default:
	}
}

// StreamPreview sends a frame for every render of a live controller running the widget configuration.
// Changes to the widget or its testimonials reload the controller.
func (handlers *AdminHandlers) StreamPreview(context *gin.Context) {
	requestContext := context.Request.Context()
	widgetID := context.Param("id")
	record, err := storage.FindWidget(requestContext, handlers.database, widgetID)
	if err != nil {
		handlers.respondLookupError(context, err)
		return
	}
	if handlers.broadcaster == nil {
		context.JSON(http.StatusServiceUnavailable, gin.H{jsonKeyError: errorValueStreamUnavailable})
		return
	}
	subscription := handlers.broadcaster.Subscribe()
	if subscription == nil {
		context.JSON(http.StatusServiceUnavailable, gin.H{jsonKeyError: errorValueStreamUnavailable})
		return
	}
	defer subscription.Close()

	context.Header("Content-Type", "text/event-stream")
	context.Header("Cache-Control", "no-cache")
	context.Header("Connection", "keep-alive")

	flusher, flushable := context.Writer.(http.Flusher)
	if !flushable {
		context.JSON(http.StatusServiceUnavailable, gin.H{jsonKeyError: errorValueStreamUnavailable})
		return
	}

	session := newPreviewSession(record.ID, handlers.previewClock, handlers.logger)
	defer session.stop()
	handlers.metrics.PreviewStreamOpened()
	defer handlers.metrics.PreviewStreamClosed()

	context.Writer.WriteHeaderNow()
	flusher.Flush()

	config, err := storage.LoadWidgetConfig(requestContext, handlers.database, record.ID)
	if err != nil {
		handlers.logger.Warn("preview_config_failed", zap.String("widget_id", record.ID), zap.Error(err))
		return
	}
	session.load(config)

	for {
		select {
		case <-requestContext.Done():
			return
		case frame := <-session.frames:
			if !handlers.writeServerSentEvent(context, flusher, previewFrameEventName, frame) {
				return
			}
		case event, ok := <-subscription.Events():
			if !ok {
				return
			}
			if !event.Affects(record.ID, record.ProjectID) {
				continue
			}
			reloaded, loadErr := storage.LoadWidgetConfig(requestContext, handlers.database, record.ID)
			if loadErr != nil {
				handlers.logger.Warn("preview_config_failed", zap.String("widget_id", record.ID), zap.Error(loadErr))
				return
			}
			if !handlers.writeServerSentEvent(context, flusher, previewReloadEventName, previewReload{WidgetID: record.ID, Reason: event.Reason}) {
				return
			}
			session.load(reloaded)
		}
	}
}

func (handlers *AdminHandlers) writeServerSentEvent(context *gin.Context, flusher http.Flusher, eventName string, payload any) bool {
	serializedPayload, marshalErr := json.Marshal(payload)
	if marshalErr != nil {
		handlers.logger.Debug("marshal_preview_event_failed", zap.Error(marshalErr))
		return true
	}
	var buffer bytes.Buffer
	buffer.WriteString("event: ")
	buffer.WriteString(eventName)
	buffer.WriteString("\ndata: ")
	buffer.Write(serializedPayload)
	buffer.WriteString("\n\n")
	if _, writeErr := context.Writer.Write(buffer.Bytes()); writeErr != nil {
		return false
	}
	flusher.Flush()
	return true
}

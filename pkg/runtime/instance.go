package runtime

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/MarkoPoloResearchLab/proofflow/pkg/embed"
	"github.com/MarkoPoloResearchLab/proofflow/pkg/widget"
)

// Instance is one mounted widget: its container, its stylesheet, its controller and its registry slot.
type Instance struct {
	key         string
	widgetID    string
	containerID string
	styleID     string
	container   *html.Node
	page        *Page
	controller  *Controller
	logger      *zap.Logger
}

// Key returns the registry key of the instance.
func (instance *Instance) Key() string {
	return instance.key
}

// WidgetID returns the widget identifier.
func (instance *Instance) WidgetID() string {
	return instance.widgetID
}

// ContainerID returns the element id of the container.
func (instance *Instance) ContainerID() string {
	return instance.containerID
}

// StyleID returns the element id of the injected stylesheet.
func (instance *Instance) StyleID() string {
	return instance.styleID
}

// Controller exposes the interaction controller.
func (instance *Instance) Controller() *Controller {
	return instance.controller
}

// Destroy tears the instance down. Repeated calls are no-ops.
func (instance *Instance) Destroy() bool {
	return instance.controller.Destroy()
}

// HandleAction applies a delegated data-pf-action interaction.
func (instance *Instance) HandleAction(action string, index int) bool {
	switch action {
	case ActionPrev:
		return instance.controller.Prev()
	case ActionNext:
		return instance.controller.Next()
	case ActionGoTo:
		return instance.controller.GoTo(index)
	case ActionExpand:
		return instance.controller.ToggleExpanded(index)
	case ActionClose:
		return instance.controller.Dismiss()
	default:
		return false
	}
}

// HoverStart pauses rotation when pause-on-hover is enabled.
func (instance *Instance) HoverStart() bool {
	if !instance.controller.Config().Behavior.PauseOnHoverEnabled() {
		return false
	}
	return instance.controller.Pause()
}

// HoverEnd resumes rotation paused by HoverStart.
func (instance *Instance) HoverEnd() bool {
	if !instance.controller.Config().Behavior.PauseOnHoverEnabled() {
		return false
	}
	return instance.controller.Resume()
}

type configSource func(ctx context.Context) (widget.Config, error)

func (page *Page) mountScript(ctx context.Context, script *html.Node) (*Instance, error) {
	page.mu.Lock()
	attributes := ScriptAttributesFromSelection(page.document.FindNodes(script))
	page.mu.Unlock()
	if attributes.WidgetID == "" {
		page.logger.Error("widget_missing_id", zap.String("src", attributes.Source))
		return nil, ErrMissingWidgetID
	}

	containerID := widget.ContainerID(attributes.WidgetID)
	container := page.insertAfter(script, containerID, widget.LoadingMarkup)
	instance := page.newInstance(embed.InstanceKey(attributes.WidgetID), attributes.WidgetID, container)
	return instance, page.load(ctx, instance, func(ctx context.Context) (widget.Config, error) {
		return page.resolver.Resolve(ctx, attributes)
	})
}

func (page *Page) newInstance(key string, widgetID string, container *html.Node) *Instance {
	instance := &Instance{
		key:         key,
		widgetID:    widgetID,
		containerID: widget.ContainerID(widgetID),
		styleID:     widget.StyleElementID(widgetID),
		container:   container,
		page:        page,
		logger:      page.logger.With(zap.String("widget_id", widgetID)),
	}
	instance.controller = NewController(ControllerOptions{
		Clock:     page.clock,
		Render:    instance.renderFrame,
		OnLoad:    instance.injectStyles,
		OnDestroy: instance.teardown,
	})
	page.track(container, instance)
	page.registry.Register(key, instance)
	return instance
}

// load resolves the configuration and hands it to the controller. Panics are converted into the
// error panel so nothing escapes to the host page.
func (page *Page) load(ctx context.Context, instance *Instance, source configSource) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("runtime: widget %s panicked: %v", instance.widgetID, recovered)
			instance.logger.Error("widget_mount_panic", zap.Any("panic", recovered))
			instance.controller.Fail(err)
			page.setContainerHTML(instance.container, widget.ErrorMarkup)
		}
	}()

	config, resolveErr := source(ctx)
	if resolveErr != nil {
		if instance.controller.Fail(resolveErr) {
			instance.logger.Warn("widget_config_unavailable", zap.Error(resolveErr))
			page.setContainerHTML(instance.container, widget.ErrorMarkup)
		}
		return resolveErr
	}
	instance.controller.Load(config)
	return nil
}

func (instance *Instance) injectStyles(config widget.Config) {
	instance.page.EnsureStyle(instance.styleID, widget.BuildStylesheet(instance.containerID, config.Styling))
}

func (instance *Instance) renderFrame(state widget.RenderState) {
	markup, err := widget.Render(state)
	if err != nil {
		instance.logger.Error("widget_render_failed", zap.Error(err))
		markup = widget.ErrorMarkup
	}
	instance.page.setContainerHTML(instance.container, markup)
}

func (instance *Instance) teardown() {
	instance.page.setContainerHTML(instance.container, "")
	instance.page.RemoveStyle(instance.styleID)
	instance.page.untrack(instance.container, instance)
	instance.page.registry.Remove(instance.key, instance)
}

// Package runtime mounts testimonial widgets into HTML documents: it resolves configurations,
// injects scoped styles, renders layouts and drives rotation through an interaction controller.
package runtime

import (
	"sync"
	"time"

	"github.com/MarkoPoloResearchLab/proofflow/pkg/widget"
)

// State is the lifecycle position of a controller.
type State string

const (
	StateLoading   State = "loading"
	StateReady     State = "ready"
	StatePlaying   State = "playing"
	StatePaused    State = "paused"
	StateDestroyed State = "destroyed"
	StateError     State = "error"
)

// PopupTransition is how long a popup stays hidden between two testimonials.
const PopupTransition = 300 * time.Millisecond

// RenderFunc receives every frame produced by a controller. It is called with the controller lock
// held and must not call back into the controller.
type RenderFunc func(widget.RenderState)

// ControllerOptions configures a Controller.
type ControllerOptions struct {
	Clock Clock
	// Render is invoked after every state change.
	Render RenderFunc
	// OnLoad runs once the configuration is accepted, before the first frame.
	OnLoad func(widget.Config)
	// OnDestroy runs once, after the controller stopped its timers.
	OnDestroy func()
}

// Controller owns the mutable state of one widget instance.
type Controller struct {
	mu              sync.Mutex
	clock           Clock
	render          RenderFunc
	onLoad          func(widget.Config)
	onDestroy       func()
	state           State
	config          widget.Config
	currentIndex    int
	hidden          bool
	dismissed       bool
	expanded        map[int]bool
	rotationTimer   Timer
	transitionTimer Timer
	generation      int
	failure         error
}

// NewController returns a controller in the loading state.
func NewController(options ControllerOptions) *Controller {
	clock := options.Clock
	if clock == nil {
		clock = RealClock{}
	}
	return &Controller{
		clock:     clock,
		render:    options.Render,
		onLoad:    options.OnLoad,
		onDestroy: options.OnDestroy,
		state:     StateLoading,
		expanded:  make(map[int]bool),
	}
}

// Load accepts the resolved configuration, renders the first frame and starts rotation when the
// configuration asks for it. It returns false unless the controller was loading.
func (controller *Controller) Load(config widget.Config) bool {
	controller.mu.Lock()
	defer controller.mu.Unlock()
	if controller.state != StateLoading {
		return false
	}
	config.Type = config.RenderType()
	controller.config = config
	controller.currentIndex = 0
	controller.state = StateReady
	if controller.onLoad != nil {
		controller.onLoad(config)
	}
	controller.renderLocked()
	if config.Behavior.AutoPlay && controller.canRotateLocked() {
		controller.state = StatePlaying
		controller.scheduleRotationLocked()
	}
	return true
}

// Fail moves a loading controller into the error state.
func (controller *Controller) Fail(err error) bool {
	controller.mu.Lock()
	defer controller.mu.Unlock()
	if controller.state != StateLoading {
		return false
	}
	controller.state = StateError
	controller.failure = err
	return true
}

// Play starts rotation from the ready or paused state.
func (controller *Controller) Play() bool {
	controller.mu.Lock()
	defer controller.mu.Unlock()
	if controller.state != StateReady && controller.state != StatePaused {
		return false
	}
	if !controller.canRotateLocked() {
		return false
	}
	controller.state = StatePlaying
	controller.scheduleRotationLocked()
	return true
}

// Pause stops the rotation timer. A popup transition already in flight still completes.
func (controller *Controller) Pause() bool {
	controller.mu.Lock()
	defer controller.mu.Unlock()
	if controller.state != StatePlaying {
		return false
	}
	controller.state = StatePaused
	controller.stopRotationLocked()
	return true
}

// Resume restarts rotation after Pause.
func (controller *Controller) Resume() bool {
	controller.mu.Lock()
	defer controller.mu.Unlock()
	if controller.state != StatePaused || !controller.canRotateLocked() {
		return false
	}
	controller.state = StatePlaying
	controller.scheduleRotationLocked()
	return true
}

// Next advances to the following testimonial, wrapping at the end.
func (controller *Controller) Next() bool {
	controller.mu.Lock()
	defer controller.mu.Unlock()
	length := controller.config.RotationLength()
	if length == 0 {
		return false
	}
	return controller.goToLocked((controller.currentIndex + 1) % length)
}

// Prev moves to the preceding testimonial, wrapping at the start.
func (controller *Controller) Prev() bool {
	controller.mu.Lock()
	defer controller.mu.Unlock()
	length := controller.config.RotationLength()
	if length == 0 {
		return false
	}
	return controller.goToLocked((controller.currentIndex - 1 + length) % length)
}

// GoTo shows the testimonial at index. Indexes outside [0, length) are rejected.
func (controller *Controller) GoTo(index int) bool {
	controller.mu.Lock()
	defer controller.mu.Unlock()
	return controller.goToLocked(index)
}

// ToggleExpanded opens or closes a grid card when click-to-expand is enabled.
func (controller *Controller) ToggleExpanded(index int) bool {
	controller.mu.Lock()
	defer controller.mu.Unlock()
	if !controller.interactiveLocked() || controller.config.Type != widget.TypeGrid || !controller.config.Behavior.ClickToExpand {
		return false
	}
	if index < 0 || index >= len(controller.config.Testimonials) {
		return false
	}
	controller.expanded[index] = !controller.expanded[index]
	controller.renderLocked()
	return true
}

// Dismiss hides a popup for good and stops its timers.
func (controller *Controller) Dismiss() bool {
	controller.mu.Lock()
	defer controller.mu.Unlock()
	if !controller.interactiveLocked() || controller.config.Type != widget.TypePopup {
		return false
	}
	controller.stopTimersLocked()
	controller.dismissed = true
	controller.hidden = true
	controller.state = StateReady
	controller.renderLocked()
	return true
}

// Destroy stops every timer and runs the destroy hook. Only the first call has an effect.
func (controller *Controller) Destroy() bool {
	controller.mu.Lock()
	if controller.state == StateDestroyed {
		controller.mu.Unlock()
		return false
	}
	controller.stopTimersLocked()
	controller.state = StateDestroyed
	onDestroy := controller.onDestroy
	controller.mu.Unlock()

	if onDestroy != nil {
		onDestroy()
	}
	return true
}

// State returns the lifecycle state.
func (controller *Controller) State() State {
	controller.mu.Lock()
	defer controller.mu.Unlock()
	return controller.state
}

// Err returns the failure recorded by Fail.
func (controller *Controller) Err() error {
	controller.mu.Lock()
	defer controller.mu.Unlock()
	return controller.failure
}

// CurrentIndex returns the index of the displayed testimonial.
func (controller *Controller) CurrentIndex() int {
	controller.mu.Lock()
	defer controller.mu.Unlock()
	return controller.currentIndex
}

// Config returns the configuration accepted by Load.
func (controller *Controller) Config() widget.Config {
	controller.mu.Lock()
	defer controller.mu.Unlock()
	return controller.config
}

// Snapshot returns the current render state.
func (controller *Controller) Snapshot() widget.RenderState {
	controller.mu.Lock()
	defer controller.mu.Unlock()
	return controller.snapshotLocked()
}

func (controller *Controller) goToLocked(index int) bool {
	if !controller.interactiveLocked() {
		return false
	}
	if index < 0 || index >= controller.config.RotationLength() {
		return false
	}
	controller.currentIndex = index
	controller.renderLocked()
	if controller.state == StatePlaying {
		controller.scheduleRotationLocked()
	}
	return true
}

func (controller *Controller) interactiveLocked() bool {
	switch controller.state {
	case StateReady, StatePlaying, StatePaused:
		return true
	default:
		return false
	}
}

func (controller *Controller) canRotateLocked() bool {
	return controller.config.Type.Rotates() && controller.config.RotationLength() > 1 && !controller.dismissed
}

func (controller *Controller) intervalLocked() time.Duration {
	if controller.config.Type == widget.TypePopup {
		return time.Duration(controller.config.Behavior.DisplayDurationMs()) * time.Millisecond
	}
	return time.Duration(controller.config.Behavior.SlideIntervalMs()) * time.Millisecond
}

// scheduleRotationLocked replaces any running rotation timer with a fresh one.
func (controller *Controller) scheduleRotationLocked() {
	controller.stopRotationLocked()
	generation := controller.generation
	controller.rotationTimer = controller.clock.AfterFunc(controller.intervalLocked(), func() {
		controller.tick(generation)
	})
}

func (controller *Controller) tick(generation int) {
	controller.mu.Lock()
	defer controller.mu.Unlock()
	if generation != controller.generation || controller.state != StatePlaying {
		return
	}
	controller.rotationTimer = nil
	controller.scheduleRotationLocked()

	length := controller.config.RotationLength()
	if controller.config.Type != widget.TypePopup {
		controller.currentIndex = (controller.currentIndex + 1) % length
		controller.renderLocked()
		return
	}

	controller.hidden = true
	controller.renderLocked()
	if controller.transitionTimer != nil {
		controller.transitionTimer.Stop()
	}
	controller.transitionTimer = controller.clock.AfterFunc(PopupTransition, controller.finishTransition)
}

func (controller *Controller) finishTransition() {
	controller.mu.Lock()
	defer controller.mu.Unlock()
	controller.transitionTimer = nil
	if controller.state == StateDestroyed || controller.dismissed {
		return
	}
	length := controller.config.RotationLength()
	if length == 0 {
		return
	}
	controller.currentIndex = (controller.currentIndex + 1) % length
	controller.hidden = false
	controller.renderLocked()
}

func (controller *Controller) stopRotationLocked() {
	controller.generation++
	if controller.rotationTimer != nil {
		controller.rotationTimer.Stop()
		controller.rotationTimer = nil
	}
}

func (controller *Controller) stopTimersLocked() {
	controller.stopRotationLocked()
	if controller.transitionTimer != nil {
		controller.transitionTimer.Stop()
		controller.transitionTimer = nil
	}
}

func (controller *Controller) renderLocked() {
	if controller.render == nil || controller.state == StateDestroyed {
		return
	}
	controller.render(controller.snapshotLocked())
}

func (controller *Controller) snapshotLocked() widget.RenderState {
	expanded := make(map[int]bool, len(controller.expanded))
	for index, open := range controller.expanded {
		expanded[index] = open
	}
	return widget.RenderState{
		Type:         controller.config.Type,
		Testimonials: controller.config.Testimonials,
		Styling:      controller.config.Styling,
		Behavior:     controller.config.Behavior,
		CurrentIndex: controller.currentIndex,
		Hidden:       controller.hidden,
		Expanded:     expanded,
	}
}

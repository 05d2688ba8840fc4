package httpapi

import (
	"sync"
	"time"
)

// Reasons carried by WidgetEvent.
const (
	WidgetEventSettingsChanged     = "settings_changed"
	WidgetEventTestimonialsChanged = "testimonials_changed"
)

// WidgetEvent tells preview streams that the public configuration of a widget changed.
// An event with an empty WidgetID applies to every widget of ProjectID.
type WidgetEvent struct {
	WidgetID   string
	ProjectID  string
	Reason     string
	OccurredAt time.Time
}

// Affects reports whether the event concerns the given widget of the given project.
func (event WidgetEvent) Affects(widgetID string, projectID string) bool {
	if event.WidgetID != "" {
		return event.WidgetID == widgetID
	}
	return event.ProjectID != "" && event.ProjectID == projectID
}

// WidgetEventBroadcaster fans widget events out to subscribed preview streams.
type WidgetEventBroadcaster struct {
	mutex        sync.Mutex
	nextID       int64
	subscribers  map[int64]chan WidgetEvent
	closed       bool
	bufferLength int
}

const widgetEventDefaultBuffer = 8

func NewWidgetEventBroadcaster() *WidgetEventBroadcaster {
	return &WidgetEventBroadcaster{
		subscribers:  make(map[int64]chan WidgetEvent),
		bufferLength: widgetEventDefaultBuffer,
	}
}

// Subscribe returns nil once the broadcaster is closed.
func (broadcaster *WidgetEventBroadcaster) Subscribe() *WidgetEventSubscription {
	broadcaster.mutex.Lock()
	defer broadcaster.mutex.Unlock()
	if broadcaster.closed {
		return nil
	}
	subscriptionID := broadcaster.nextID
	broadcaster.nextID++
	eventChannel := make(chan WidgetEvent, broadcaster.bufferLength)
	broadcaster.subscribers[subscriptionID] = eventChannel
	return &WidgetEventSubscription{
		broadcaster: broadcaster,
		identifier:  subscriptionID,
		events:      eventChannel,
	}
}

// Broadcast never blocks; a subscriber with a full buffer misses the event.
func (broadcaster *WidgetEventBroadcaster) Broadcast(event WidgetEvent) {
	if broadcaster == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	broadcaster.mutex.Lock()
	defer broadcaster.mutex.Unlock()
	if broadcaster.closed {
		return
	}
	for _, channel := range broadcaster.subscribers {
		select {
		case channel <- event:
		default:
		}
	}
}

// Close stops the broadcaster and closes all subscriber channels.
func (broadcaster *WidgetEventBroadcaster) Close() {
	broadcaster.mutex.Lock()
	defer broadcaster.mutex.Unlock()
	if broadcaster.closed {
		return
	}
	broadcaster.closed = true
	for identifier, channel := range broadcaster.subscribers {
		close(channel)
		delete(broadcaster.subscribers, identifier)
	}
}

// SubscriberCount returns the number of open subscriptions.
func (broadcaster *WidgetEventBroadcaster) SubscriberCount() int {
	broadcaster.mutex.Lock()
	defer broadcaster.mutex.Unlock()
	return len(broadcaster.subscribers)
}

func (broadcaster *WidgetEventBroadcaster) remove(identifier int64) {
	broadcaster.mutex.Lock()
	defer broadcaster.mutex.Unlock()
	channel, exists := broadcaster.subscribers[identifier]
	if exists {
		delete(broadcaster.subscribers, identifier)
		close(channel)
	}
}

// WidgetEventSubscription is a single subscriber to widget events.
type WidgetEventSubscription struct {
	broadcaster *WidgetEventBroadcaster
	identifier  int64
	events      chan WidgetEvent
	once        sync.Once
}

func (subscription *WidgetEventSubscription) Events() <-chan WidgetEvent {
	if subscription == nil {
		return nil
	}
	return subscription.events
}

// Close unregisters the subscription and closes its channel.
func (subscription *WidgetEventSubscription) Close() {
	if subscription == nil {
		return
	}
	subscription.once.Do(func() {
		if subscription.broadcaster != nil {
			subscription.broadcaster.remove(subscription.identifier)
		}
	})
}

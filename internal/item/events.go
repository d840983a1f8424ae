package item

import (
	"slices"
	"strings"
)

// Event is a semantic change notification emitted by an Item.
type Event int

// Item events.
const (
	EventReady Event = iota
	EventIcon
	EventOverlayIcon
	EventLabel
	EventMenu
	EventAccessibleName
	EventStatus
	EventNameOwnerChanged
	EventReset
	EventDestroy
)

var eventNames = map[Event]string{
	EventReady:            "ready",
	EventIcon:             "icon",
	EventOverlayIcon:      "overlay-icon",
	EventLabel:            "label",
	EventMenu:             "menu",
	EventAccessibleName:   "accessible-name",
	EventStatus:           "status",
	EventNameOwnerChanged: "name-owner-changed",
	EventReset:            "reset",
	EventDestroy:          "destroy",
}

// String returns the event name.
func (e Event) String() string {
	if name, ok := eventNames[e]; ok {
		return name
	}
	return "unknown"
}

// Listener receives item events. Listeners run on the goroutine that
// produced the event and must not block.
type Listener func(it *Item, event Event)

// Subscribe registers a listener and returns a function that removes it.
func (it *Item) Subscribe(listener Listener) (unsubscribe func()) {
	it.mu.Lock()
	defer it.mu.Unlock()

	if it.destroyed {
		return func() {}
	}

	id := it.nextListener
	it.nextListener++
	it.listeners[id] = listener

	return func() {
		it.mu.Lock()
		defer it.mu.Unlock()
		delete(it.listeners, id)
	}
}

func (it *Item) emit(events ...Event) {
	if len(events) == 0 {
		return
	}

	it.mu.Lock()
	if it.destroyed {
		it.mu.Unlock()
		return
	}
	if it.destroying {
		// Only the destroy event itself gets through once teardown began.
		if !slices.Contains(events, EventDestroy) {
			it.mu.Unlock()
			return
		}
		events = []Event{EventDestroy}
	}
	ids := make([]int, 0, len(it.listeners))
	for id := range it.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	listeners := make([]Listener, 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, it.listeners[id])
	}
	it.mu.Unlock()

	for _, event := range events {
		for _, listener := range listeners {
			listener(it, event)
		}
	}
}

// eventSet collects events once each, in first-seen order.
type eventSet struct {
	order []Event
	seen  map[Event]bool
}

func (s *eventSet) add(events ...Event) {
	if s.seen == nil {
		s.seen = make(map[Event]bool)
	}
	for _, e := range events {
		if !s.seen[e] {
			s.seen[e] = true
			s.order = append(s.order, e)
		}
	}
}

// propertiesChanged maps a batch of changed properties to events.
func (it *Item) propertiesChanged(props []string) {
	var events eventSet

	checked := false
	readyChanged := false
	checkReady := func() bool {
		if !checked {
			readyChanged = it.checkReady()
			checked = true
		}
		return readyChanged
	}

	for _, prop := range props {
		if prop == "Id" {
			checkReady()
		}

		if strings.HasPrefix(prop, "Icon") || strings.HasPrefix(prop, "AttentionIcon") {
			events.add(EventIcon)
		}

		if strings.HasPrefix(prop, "OverlayIcon") {
			events.add(EventOverlayIcon)
		}

		// A new theme path may invalidate every icon.
		if prop == "IconThemePath" {
			events.add(EventIcon, EventOverlayIcon)
		}

		if prop == "XAyatanaLabel" {
			events.add(EventLabel)
		}

		if prop == "Menu" {
			if !checkReady() && it.IsReady() {
				events.add(EventMenu)
			}
		}

		if prop == "IconAccessibleDesc" || prop == "AttentionAccessibleDesc" || prop == "Title" {
			events.add(EventAccessibleName)
		}

		// Status decides which icon set and description apply.
		if prop == "Status" {
			events.add(EventIcon, EventOverlayIcon, EventStatus, EventAccessibleName)
		}
	}

	it.emit(events.order...)
}

package inventory

import (
	"sync"

	"github.com/starford/sowilo/internal/models"
)

// DefaultFeedLimit bounds the change feed.
const DefaultFeedLimit = 500

// Feed is the dismissible list of change events from the latest
// reconciliation pass, most recent first.
type Feed struct {
	mu     sync.Mutex
	limit  int
	events []models.ChangeEvent
}

// NewFeed returns a Feed holding at most limit events.
func NewFeed(limit int) *Feed {
	if limit <= 0 {
		limit = DefaultFeedLimit
	}
	return &Feed{limit: limit}
}

// Limit returns the feed capacity.
func (f *Feed) Limit() int { return f.limit }

// Replace swaps the whole feed for events, keeping at most Limit of them.
func (f *Feed) Replace(events []models.ChangeEvent) {
	if len(events) > f.limit {
		events = events[:f.limit]
	}
	cp := make([]models.ChangeEvent, len(events))
	copy(cp, events)

	f.mu.Lock()
	f.events = cp
	f.mu.Unlock()
}

// List returns a copy of the current events.
func (f *Feed) List() []models.ChangeEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.ChangeEvent, len(f.events))
	copy(out, f.events)
	return out
}

// Dismiss removes the event with the given id. It reports whether one was found.
func (f *Feed) Dismiss(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, ev := range f.events {
		if ev.ID == id {
			f.events = append(f.events[:i:i], f.events[i+1:]...)
			return true
		}
	}
	return false
}

// Clear empties the feed.
func (f *Feed) Clear() {
	f.mu.Lock()
	f.events = nil
	f.mu.Unlock()
}

// Len returns the number of events held.
func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

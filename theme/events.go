package theme

import (
	"sync"

	"riskplane/model"
)

// Event announces a theme-related state change.
type Event struct {
	Kind    string             `json:"kind"` // "themeChanged", "themeInstalled", "themeUninstalled", "catalogUpdated"
	ThemeID string             `json:"theme_id,omitempty"`
	Config  *model.ThemeConfig `json:"config,omitempty"`
}

const (
	EventThemeChanged     = "themeChanged"
	EventThemeInstalled   = "themeInstalled"
	EventThemeUninstalled = "themeUninstalled"
	EventCatalogUpdated   = "catalogUpdated"
)

// Bus delivers events to subscribers synchronously, in subscription order.
// Publication is fire-and-forget: subscribers cannot reject an event, and a
// subscriber that blocks delays the publisher.
type Bus struct {
	mu   sync.Mutex
	next int
	subs []subscriber
}

type subscriber struct {
	id int
	fn func(Event)
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers fn and returns a function that removes it.
func (b *Bus) Subscribe(fn func(Event)) (unsubscribe func()) {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs = append(b.subs, subscriber{id: id, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers ev to every current subscriber in order.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	subs := make([]subscriber, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, s := range subs {
		s.fn(ev)
	}
}

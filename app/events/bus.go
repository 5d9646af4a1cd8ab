// Package events provides a typed in-process event bus used by the data
// store to announce model changes to interested subscribers.
package events

import "sync"

type Event interface {
	Kind() string
}

type FoldersChanged struct{}

func (FoldersChanged) Kind() string { return "folders_changed" }

type FeedsChanged struct{}

func (FeedsChanged) Kind() string { return "feeds_changed" }

type ArticlesChanged struct {
	FeedID  string
	New     int
	Updated int
	Deleted int
}

func (ArticlesChanged) Kind() string { return "articles_changed" }

type ArticleStatusesChanged struct {
	ArticleIDs []string
	Key        string
	Flag       bool
}

func (ArticleStatusesChanged) Kind() string { return "article_statuses_changed" }

// Bus dispatches events synchronously to all registered subscribers.
// Handlers must not block; long work belongs on the caller's own goroutine.
type Bus struct {
	mu   sync.RWMutex
	next int
	subs map[int]func(Event)
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]func(Event))}
}

// Subscribe registers a handler and returns a function that removes it.
func (b *Bus) Subscribe(fn func(Event)) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	handlers := make([]func(Event), 0, len(b.subs))
	for _, fn := range b.subs {
		handlers = append(handlers, fn)
	}
	b.mu.RUnlock()

	for _, fn := range handlers {
		fn(e)
	}
}

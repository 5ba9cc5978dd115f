package service

import (
	"sync"

	"github.com/noah-isme/scholarbridge-api/internal/models"
)

// SessionBus fans identity provider events out to in-process listeners.
type SessionBus struct {
	mu        sync.RWMutex
	nextID    int
	listeners map[int]func(models.SessionEvent)
}

func NewSessionBus() *SessionBus {
	return &SessionBus{listeners: make(map[int]func(models.SessionEvent))}
}

// Subscribe registers fn and returns its cancel func.
func (b *SessionBus) Subscribe(fn func(models.SessionEvent)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.listeners, id)
			b.mu.Unlock()
		})
	}
}

// Publish calls every listener synchronously, outside the bus lock.
func (b *SessionBus) Publish(evt models.SessionEvent) {
	b.mu.RLock()
	fns := make([]func(models.SessionEvent), 0, len(b.listeners))
	for _, fn := range b.listeners {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		fn(evt)
	}
}

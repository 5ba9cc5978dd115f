// Package livequery keeps query results fresh. Each Subscription owns one watch
// on a collection: every change notification for that collection re-runs the
// query, and a full snapshot is delivered whenever the result differs from the
// last one delivered.
package livequery

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/scholarbridge-api/internal/models"
)

var (
	// ErrClosed is returned by Next once the subscription is unsubscribed.
	ErrClosed = errors.New("subscription closed")
	// ErrHubStopped is returned by Subscribe after Stop.
	ErrHubStopped = errors.New("live query hub stopped")
)

// Fetcher runs a query against the document store.
type Fetcher interface {
	Query(ctx context.Context, q models.Query) (interface{}, error)
}

// Observer receives subscription lifecycle signals, typically for metrics.
type Observer interface {
	SubscriptionOpened(collection models.Collection)
	SubscriptionClosed(collection models.Collection)
	SnapshotDelivered(collection models.Collection)
	SubscriptionFailed(collection models.Collection)
}

type nopObserver struct{}

func (nopObserver) SubscriptionOpened(models.Collection) {}
func (nopObserver) SubscriptionClosed(models.Collection) {}
func (nopObserver) SnapshotDelivered(models.Collection)  {}
func (nopObserver) SubscriptionFailed(models.Collection) {}

// Config tunes a Hub.
type Config struct {
	// FetchTimeout bounds a single query run.
	FetchTimeout time.Duration
	// RetryInterval re-runs a failed query without waiting for a change.
	RetryInterval time.Duration
	Observer      Observer
	Logger        *zap.Logger
}

// Hub owns every live subscription of the process and routes change
// notifications to the subscriptions watching the changed collection.
type Hub struct {
	fetcher  Fetcher
	notifier Notifier
	cfg      Config
	logger   *zap.Logger
	observer Observer

	mu      sync.Mutex
	subs    map[string]*Subscription
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewHub(fetcher Fetcher, notifier Notifier, cfg Config) *Hub {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 5 * time.Second
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}
	return &Hub{
		fetcher:  fetcher,
		notifier: notifier,
		cfg:      cfg,
		logger:   cfg.Logger,
		observer: cfg.Observer,
		subs:     make(map[string]*Subscription),
	}
}

// Start begins consuming change notifications.
func (h *Hub) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	changes, err := h.notifier.Listen(ctx)
	if err != nil {
		cancel()
		return err
	}

	h.mu.Lock()
	h.cancel = cancel
	h.mu.Unlock()

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		for change := range changes {
			h.dispatch(change)
		}
	}()
	h.logger.Info("live query hub started")
	return nil
}

// Stop closes every subscription and stops listening for changes.
func (h *Hub) Stop() {
	h.mu.Lock()
	h.stopped = true
	cancel := h.cancel
	subs := make([]*Subscription, 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		s.Unsubscribe()
	}
	if cancel != nil {
		cancel()
	}
	h.wg.Wait()
	h.logger.Info("live query hub stopped")
}

// Subscribe opens a watch on q. The first snapshot arrives once the initial
// fetch completes. Cancelling ctx unsubscribes.
func (h *Hub) Subscribe(ctx context.Context, q models.Query) (*Subscription, error) {
	owner, _ := q.OwnerID()
	runCtx, runCancel := context.WithCancel(context.Background())
	s := &Subscription{
		id:      uuid.NewString(),
		query:   q,
		owner:   owner,
		hub:     h,
		refresh: make(chan struct{}, 1),
		ready:   make(chan struct{}, 1),
		done:    make(chan struct{}),
		runCtx:  runCtx,
		cancel:  runCancel,
	}

	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		runCancel()
		return nil, ErrHubStopped
	}
	h.subs[s.id] = s
	h.mu.Unlock()

	h.observer.SubscriptionOpened(q.Collection)
	s.poke()
	go s.run()

	if ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				s.Unsubscribe()
			case <-s.done:
			}
		}()
	}
	return s, nil
}

// Active is the number of open subscriptions.
func (h *Hub) Active() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// ActiveFor counts open subscriptions whose query is scoped to ownerID.
func (h *Hub) ActiveFor(ownerID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, s := range h.subs {
		if s.owner == ownerID {
			n++
		}
	}
	return n
}

// Notify triggers a refresh of the affected subscriptions directly, bypassing
// the notifier.
func (h *Hub) Notify(change models.Change) {
	h.dispatch(change)
}

func (h *Hub) dispatch(change models.Change) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.subs {
		if s.query.Collection != change.Collection {
			continue
		}
		if s.owner != "" && change.OwnerID != "" && s.owner != change.OwnerID {
			continue
		}
		s.poke()
	}
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	_, ok := h.subs[s.id]
	delete(h.subs, s.id)
	h.mu.Unlock()
	if ok {
		h.observer.SubscriptionClosed(s.query.Collection)
	}
}

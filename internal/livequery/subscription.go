package livequery

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"reflect"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/scholarbridge-api/internal/models"
	appErrors "github.com/noah-isme/scholarbridge-api/pkg/errors"
)

// Snapshot is the full result of a query at one point in time. A failed
// fetch produces a snapshot with Err set and no items.
type Snapshot struct {
	SubscriptionID string
	Collection     models.Collection
	Seq            uint64
	Items          interface{}
	Count          int
	Err            error
	ReceivedAt     time.Time
}

// Subscription is one live watch. Snapshots are consumed with Next; a slow
// consumer only ever sees the newest undelivered snapshot.
type Subscription struct {
	id    string
	query models.Query
	owner string
	hub   *Hub

	refresh chan struct{}
	ready   chan struct{}
	done    chan struct{}
	runCtx  context.Context
	cancel  context.CancelFunc
	once    sync.Once

	mu      sync.Mutex
	closed  bool
	pending *Snapshot
	seq     uint64
	force   bool

	// owned by run()
	lastFingerprint string
	failing         bool
}

func (s *Subscription) ID() string          { return s.id }
func (s *Subscription) Query() models.Query { return s.query }

// Done is closed by Unsubscribe.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Next blocks until a snapshot newer than the last one returned is available.
// It returns ErrClosed once the subscription is unsubscribed, even if a
// snapshot was pending.
func (s *Subscription) Next(ctx context.Context) (Snapshot, error) {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return Snapshot{}, ErrClosed
		}
		if p := s.pending; p != nil {
			s.pending = nil
			s.mu.Unlock()
			return *p, nil
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return Snapshot{}, ctx.Err()
		case <-s.done:
			return Snapshot{}, ErrClosed
		case <-s.ready:
		}
	}
}

// Retry re-runs the query now and delivers the result even when it is
// unchanged, e.g. after a failed snapshot or to re-sign download links.
func (s *Subscription) Retry() {
	s.mu.Lock()
	s.force = true
	s.mu.Unlock()
	s.poke()
}

// Unsubscribe stops the watch. It is safe to call more than once; after the
// first call returns no further snapshot is delivered.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.pending = nil
		s.mu.Unlock()
		close(s.done)
		s.cancel()
		s.hub.remove(s)
	})
}

func (s *Subscription) poke() {
	select {
	case s.refresh <- struct{}{}:
	default:
	}
}

func (s *Subscription) run() {
	var (
		retry  *time.Timer
		retryC <-chan time.Time
	)
	defer func() {
		if retry != nil {
			retry.Stop()
		}
	}()

	for {
		select {
		case <-s.done:
			return
		case <-s.refresh:
		case <-retryC:
		}
		if retry != nil {
			retry.Stop()
			retry, retryC = nil, nil
		}

		if s.fetch() {
			retry = time.NewTimer(s.hub.cfg.RetryInterval)
			retryC = retry.C
		}
	}
}

// fetch runs the query once and reports whether it failed.
func (s *Subscription) fetch() bool {
	s.mu.Lock()
	forced := s.force
	s.force = false
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(s.runCtx, s.hub.cfg.FetchTimeout)
	items, err := s.hub.fetcher.Query(ctx, s.query)
	cancel()
	if s.runCtx.Err() != nil {
		return false
	}

	if err != nil {
		s.hub.logger.Warn("live query failed",
			zap.String("subscription_id", s.id),
			zap.String("collection", string(s.query.Collection)),
			zap.Error(err))
		s.hub.observer.SubscriptionFailed(s.query.Collection)
		s.failing = true
		s.lastFingerprint = ""
		s.deliver(Snapshot{Err: appErrors.WrapAs(appErrors.ErrSubscription, err, "")})
		return true
	}

	fp, err := fingerprint(items)
	if err != nil {
		// unhashable results are always delivered
		fp = ""
	}
	if fp != "" && fp == s.lastFingerprint && !s.failing && !forced {
		return false
	}
	s.failing = false
	s.lastFingerprint = fp
	s.deliver(Snapshot{Items: items, Count: count(items)})
	return false
}

func (s *Subscription) deliver(snap Snapshot) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.seq++
	snap.SubscriptionID = s.id
	snap.Collection = s.query.Collection
	snap.Seq = s.seq
	snap.ReceivedAt = time.Now().UTC()
	s.pending = &snap
	s.mu.Unlock()

	select {
	case s.ready <- struct{}{}:
	default:
	}
	s.hub.observer.SnapshotDelivered(s.query.Collection)
}

func fingerprint(items interface{}) (string, error) {
	raw, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

func count(items interface{}) int {
	v := reflect.ValueOf(items)
	if v.Kind() == reflect.Slice || v.Kind() == reflect.Array {
		return v.Len()
	}
	if items == nil {
		return 0
	}
	return 1
}

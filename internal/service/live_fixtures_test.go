package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/scholarbridge-api/internal/dto"
	"github.com/noah-isme/scholarbridge-api/internal/livequery"
	"github.com/noah-isme/scholarbridge-api/internal/models"
)

// memStore is an in-memory document store for live query tests.
type memStore struct {
	mu           sync.Mutex
	activities   []models.Activity
	certificates []models.Certificate
	goals        []models.Goal
	events       []models.Event
	achievements []models.Achievement
	fail         map[models.Collection]error
}

func newMemStore() *memStore {
	return &memStore{fail: make(map[models.Collection]error)}
}

func (s *memStore) Query(_ context.Context, q models.Query) (interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail[q.Collection]; err != nil {
		return nil, err
	}
	owner, scoped := q.OwnerID()
	keep := func(docOwner string) bool { return !scoped || docOwner == owner }

	switch q.Collection {
	case models.CollectionActivities:
		out := make([]models.Activity, 0)
		for _, a := range s.activities {
			if keep(a.OwnerID) {
				out = append(out, a)
			}
		}
		return out, nil
	case models.CollectionCertificates:
		out := make([]models.Certificate, 0)
		for _, c := range s.certificates {
			if keep(c.OwnerID) {
				out = append(out, c)
			}
		}
		return out, nil
	case models.CollectionGoals:
		out := make([]models.Goal, 0)
		for _, g := range s.goals {
			if keep(g.OwnerID) {
				out = append(out, g)
			}
		}
		return out, nil
	case models.CollectionEvents:
		out := make([]models.Event, 0)
		for _, e := range s.events {
			if from, ok := dateFloor(q); ok && e.Date.Before(from) {
				continue
			}
			out = append(out, e)
		}
		return out, nil
	default:
		return append([]models.Achievement{}, s.achievements...), nil
	}
}

func dateFloor(q models.Query) (models.Date, bool) {
	for _, f := range q.Filters {
		if f.Field == "date" && f.Op == models.OpGte {
			d, ok := f.Value.(models.Date)
			return d, ok
		}
	}
	return models.Date{}, false
}

func (s *memStore) setFail(c models.Collection, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.fail, c)
		return
	}
	s.fail[c] = err
}

func (s *memStore) addActivity(a models.Activity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activities = append(s.activities, a)
}

func (s *memStore) removeCertificate(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.certificates[:0]
	for _, c := range s.certificates {
		if c.ID != id {
			out = append(out, c)
		}
	}
	s.certificates = out
}

func startTestHub(t *testing.T, store livequery.Fetcher) *livequery.Hub {
	t.Helper()
	hub := livequery.NewHub(store, livequery.NewMemoryNotifier(16), livequery.Config{RetryInterval: time.Hour})
	require.NoError(t, hub.Start(context.Background()))
	t.Cleanup(hub.Stop)
	return hub
}

// waitView reads states from v until match accepts one.
func waitView(t *testing.T, v *View, match func(dto.ViewState) bool) dto.ViewState {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		state, err := v.Next(ctx)
		require.NoError(t, err)
		if match(state) {
			return state
		}
	}
}

func loaded(state dto.ViewState) bool { return len(state.Loading) == 0 }

func mustDate(t *testing.T, raw string) models.Date {
	t.Helper()
	d, err := models.ParseDate(raw)
	require.NoError(t, err)
	return d
}

type stubEmails struct {
	emails map[string]string
	err    error
}

func (s stubEmails) EmailsFor(_ context.Context, _ []string) (map[string]string, error) {
	return s.emails, s.err
}

type stubSigner struct{}

func (stubSigner) GetURL(_ context.Context, locator string) (string, error) {
	return "https://files.test/" + locator, nil
}

type viewCounter struct {
	mu      sync.Mutex
	mounted map[Screen]int
}

func (c *viewCounter) ViewMounted(s Screen) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mounted == nil {
		c.mounted = make(map[Screen]int)
	}
	c.mounted[s]++
}

func (c *viewCounter) ViewUnmounted(s Screen) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mounted[s]--
}

func (c *viewCounter) count(s Screen) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mounted[s]
}

package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/scholarbridge-api/internal/dto"
	"github.com/noah-isme/scholarbridge-api/internal/livequery"
	"github.com/noah-isme/scholarbridge-api/internal/models"
	"github.com/noah-isme/scholarbridge-api/internal/navigation"
	appErrors "github.com/noah-isme/scholarbridge-api/pkg/errors"
)

// Screen identifies a mountable view.
type Screen string

const (
	ScreenStudentDashboard    Screen = "student_dashboard"
	ScreenActivityRecords     Screen = "activity_records"
	ScreenCertificates        Screen = "certificates"
	ScreenGoals               Screen = "goals"
	ScreenEvents              Screen = "events"
	ScreenAchievements        Screen = "achievements"
	ScreenTeacherCertificates Screen = "teacher_certificates"
	ScreenTeacherAchievements Screen = "teacher_achievements"
)

var screenPaths = map[Screen]string{
	ScreenStudentDashboard:    navigation.PathDashboard,
	ScreenActivityRecords:     navigation.PathActivityRecords,
	ScreenCertificates:        navigation.PathCertificates,
	ScreenGoals:               navigation.PathGoals,
	ScreenEvents:              navigation.PathEvents,
	ScreenAchievements:        navigation.PathAchievements,
	ScreenTeacherCertificates: navigation.PathTeacherCerts,
	ScreenTeacherAchievements: navigation.PathTeacherAchieve,
}

// Path is the route that shows s.
func (s Screen) Path() string { return screenPaths[s] }

// Valid reports whether s is a known screen.
func (s Screen) Valid() bool {
	_, ok := screenPaths[s]
	return ok
}

// ScreenForPath finds the screen routed at p.
func ScreenForPath(p string) (Screen, bool) {
	p = navigation.Normalize(p)
	for screen, route := range screenPaths {
		if route == p {
			return screen, true
		}
	}
	return "", false
}

// ErrViewUnmounted is returned by View.Next after Unmount.
var ErrViewUnmounted = errors.New("view unmounted")

// Subscriber opens live query subscriptions.
type Subscriber interface {
	Subscribe(ctx context.Context, q models.Query) (*livequery.Subscription, error)
}

type emailDirectory interface {
	EmailsFor(ctx context.Context, ids []string) (map[string]string, error)
}

type urlSigner interface {
	GetURL(ctx context.Context, locator string) (string, error)
}

// ViewObserver is told when views come and go.
type ViewObserver interface {
	ViewMounted(screen Screen)
	ViewUnmounted(screen Screen)
}

// ViewComposer mounts screens: it opens the subscriptions a screen needs for
// the given session and folds their snapshots into one view state.
type ViewComposer struct {
	subscriber Subscriber
	emails     emailDirectory
	urls       urlSigner
	observer   ViewObserver
	logger     *zap.Logger
	now        func() time.Time
	urlRefresh time.Duration
}

func NewViewComposer(subscriber Subscriber, emails emailDirectory, urls urlSigner, observer ViewObserver, logger *zap.Logger) *ViewComposer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ViewComposer{
		subscriber: subscriber,
		emails:     emails,
		urls:       urls,
		observer:   observer,
		logger:     logger,
		now:        time.Now,
	}
}

// WithURLRefresh makes mounted views re-fetch their file collections every d
// so signed download links are replaced before they expire. Zero disables it.
func (c *ViewComposer) WithURLRefresh(d time.Duration) *ViewComposer {
	c.urlRefresh = d
	return c
}

// Queries lists the subscriptions screen needs for userID.
func Queries(screen Screen, userID string, today models.Date) []models.Query {
	owned := func(c models.Collection) models.Query {
		return models.Query{Collection: c}.Where("userId", models.OpEq, userID)
	}
	switch screen {
	case ScreenStudentDashboard:
		return []models.Query{
			owned(models.CollectionActivities),
			owned(models.CollectionCertificates),
			owned(models.CollectionGoals),
			models.Query{Collection: models.CollectionEvents}.Where("date", models.OpGte, today).OrderBy("date", false),
		}
	case ScreenActivityRecords:
		return []models.Query{owned(models.CollectionActivities).OrderBy("createdAt", true)}
	case ScreenCertificates:
		return []models.Query{owned(models.CollectionCertificates)}
	case ScreenGoals:
		return []models.Query{owned(models.CollectionGoals)}
	case ScreenEvents:
		return []models.Query{models.Query{Collection: models.CollectionEvents}.OrderBy("createdAt", true)}
	case ScreenAchievements, ScreenTeacherAchievements:
		return []models.Query{models.Query{Collection: models.CollectionAchievements}.OrderBy("date", true)}
	case ScreenTeacherCertificates:
		return []models.Query{models.Query{Collection: models.CollectionCertificates}.OrderBy("issuedAt", true)}
	default:
		return nil
	}
}

// Mount opens every subscription screen declares for session. The view lives
// until Unmount or until ctx is cancelled. If any subscription cannot be opened
// the ones already opened are released and SUBSCRIPTION_FAILED is returned.
func (c *ViewComposer) Mount(ctx context.Context, session models.Session, screen Screen) (*View, error) {
	if !screen.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown screen")
	}
	if !navigation.Allowed(&session, screen.Path()) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "screen not available for this session")
	}

	viewCtx, cancel := context.WithCancel(ctx)
	v := &View{
		id:       uuid.NewString(),
		screen:   screen,
		session:  session,
		composer: c,
		ready:    make(chan struct{}, 1),
		done:     make(chan struct{}),
		cancel:   cancel,
		received: make(map[models.Collection]bool),
		loaded:   make(map[models.Collection]bool),
		errs:     make(map[models.Collection]*appErrors.Error),
	}

	queries := Queries(screen, session.UserID, models.NewDate(c.now()))
	for _, q := range queries {
		sub, err := c.subscriber.Subscribe(viewCtx, q)
		if err != nil {
			for _, opened := range v.subs {
				opened.Unsubscribe()
			}
			cancel()
			c.logger.Warn("mount failed",
				zap.String("screen", string(screen)),
				zap.String("collection", string(q.Collection)),
				zap.Error(err))
			return nil, appErrors.WrapAs(appErrors.ErrSubscription, err, "unable to open live data")
		}
		v.subs = append(v.subs, sub)
		v.collections = append(v.collections, q.Collection)
	}

	if c.observer != nil {
		c.observer.ViewMounted(screen)
	}

	v.mu.Lock()
	v.publishLocked()
	v.mu.Unlock()

	for _, sub := range v.subs {
		v.wg.Add(1)
		go v.pump(viewCtx, sub)
	}
	if c.urlRefresh > 0 && c.urls != nil && v.hasFileCollections() {
		v.wg.Add(1)
		go v.refreshURLs(viewCtx, c.urlRefresh)
	}

	go func() {
		<-viewCtx.Done()
		v.Unmount()
	}()

	c.logger.Debug("view mounted",
		zap.String("view_id", v.id),
		zap.String("screen", string(screen)),
		zap.String("user_id", session.UserID))
	return v, nil
}

// View is one mounted screen. Its state is consumed with Next; a slow reader
// only sees the newest state.
type View struct {
	id       string
	screen   Screen
	session  models.Session
	composer *ViewComposer

	subs        []*livequery.Subscription
	collections []models.Collection

	ready  chan struct{}
	done   chan struct{}
	cancel context.CancelFunc
	once   sync.Once
	wg     sync.WaitGroup

	mu       sync.Mutex
	closed   bool
	seq      uint64
	pending  *dto.ViewState
	received map[models.Collection]bool
	loaded   map[models.Collection]bool
	errs     map[models.Collection]*appErrors.Error

	activities   []models.Activity
	certificates []models.Certificate
	teacherCerts []models.TeacherCertificate
	goals        []models.Goal
	events       []models.Event
	achievements []models.Achievement
}

func (v *View) ID() string              { return v.id }
func (v *View) Screen() Screen          { return v.screen }
func (v *View) Session() models.Session { return v.session }

// Done is closed by Unmount.
func (v *View) Done() <-chan struct{} { return v.done }

// Next blocks until a newer view state is available.
func (v *View) Next(ctx context.Context) (dto.ViewState, error) {
	for {
		v.mu.Lock()
		if v.closed {
			v.mu.Unlock()
			return dto.ViewState{}, ErrViewUnmounted
		}
		if p := v.pending; p != nil {
			v.pending = nil
			v.mu.Unlock()
			return *p, nil
		}
		v.mu.Unlock()

		select {
		case <-ctx.Done():
			return dto.ViewState{}, ctx.Err()
		case <-v.done:
			return dto.ViewState{}, ErrViewUnmounted
		case <-v.ready:
		}
	}
}

// Retry re-runs the subscriptions of collection, or all of them when
// collection is empty.
func (v *View) Retry(collection models.Collection) {
	for i, sub := range v.subs {
		if collection == "" || v.collections[i] == collection {
			sub.Retry()
		}
	}
}

// Unmount releases every subscription of the view. It is idempotent and
// returns only once no further state can be produced.
func (v *View) Unmount() {
	v.once.Do(func() {
		v.mu.Lock()
		v.closed = true
		v.pending = nil
		v.mu.Unlock()
		close(v.done)
		v.cancel()
		for _, sub := range v.subs {
			sub.Unsubscribe()
		}
		v.wg.Wait()
		if v.composer.observer != nil {
			v.composer.observer.ViewUnmounted(v.screen)
		}
		v.composer.logger.Debug("view unmounted",
			zap.String("view_id", v.id),
			zap.String("screen", string(v.screen)))
	})
}

func (v *View) hasFileCollections() bool {
	for _, c := range v.collections {
		if c == models.CollectionCertificates || c == models.CollectionAchievements {
			return true
		}
	}
	return false
}

// refreshURLs forces the file collections to be delivered again so apply
// signs fresh links.
func (v *View) refreshURLs(ctx context.Context, every time.Duration) {
	defer v.wg.Done()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			v.Retry(models.CollectionCertificates)
			v.Retry(models.CollectionAchievements)
		}
	}
}

func (v *View) pump(ctx context.Context, sub *livequery.Subscription) {
	defer v.wg.Done()
	for {
		snap, err := sub.Next(ctx)
		if err != nil {
			return
		}
		v.apply(ctx, snap)
	}
}

// apply folds one snapshot into the view. Enrichment happens before taking
// the lock; the closed check afterwards discards results for unmounted views.
func (v *View) apply(ctx context.Context, snap livequery.Snapshot) {
	if snap.Err != nil {
		v.mu.Lock()
		defer v.mu.Unlock()
		if v.closed {
			return
		}
		v.received[snap.Collection] = true
		v.errs[snap.Collection] = appErrors.FromError(snap.Err)
		v.publishLocked()
		return
	}

	var (
		certs        []models.Certificate
		teacherCerts []models.TeacherCertificate
		achievements []models.Achievement
	)
	switch items := snap.Items.(type) {
	case []models.Certificate:
		certs = v.signCertificates(ctx, items)
		if v.screen == ScreenTeacherCertificates {
			teacherCerts = v.withOwnerEmails(ctx, certs)
		}
	case []models.Achievement:
		achievements = v.signAchievements(ctx, items)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	switch items := snap.Items.(type) {
	case []models.Activity:
		v.activities = items
	case []models.Certificate:
		v.certificates = certs
		v.teacherCerts = teacherCerts
	case []models.Goal:
		v.goals = items
	case []models.Event:
		v.events = items
	case []models.Achievement:
		v.achievements = achievements
	default:
		v.composer.logger.Warn("unexpected snapshot items",
			zap.String("view_id", v.id),
			zap.String("collection", string(snap.Collection)))
		return
	}
	v.received[snap.Collection] = true
	v.loaded[snap.Collection] = true
	delete(v.errs, snap.Collection)
	v.publishLocked()
}

func (v *View) signCertificates(ctx context.Context, items []models.Certificate) []models.Certificate {
	out := make([]models.Certificate, len(items))
	copy(out, items)
	if v.composer.urls == nil {
		return out
	}
	for i := range out {
		if out[i].FileRef == "" {
			continue
		}
		url, err := v.composer.urls.GetURL(ctx, out[i].FileRef)
		if err != nil {
			v.composer.logger.Warn("sign certificate url", zap.String("certificate_id", out[i].ID), zap.Error(err))
			continue
		}
		out[i].FileURL = url
	}
	return out
}

func (v *View) signAchievements(ctx context.Context, items []models.Achievement) []models.Achievement {
	out := make([]models.Achievement, len(items))
	copy(out, items)
	if v.composer.urls == nil {
		return out
	}
	for i := range out {
		if out[i].FileRef == "" {
			continue
		}
		url, err := v.composer.urls.GetURL(ctx, out[i].FileRef)
		if err != nil {
			v.composer.logger.Warn("sign achievement url", zap.String("achievement_id", out[i].ID), zap.Error(err))
			continue
		}
		out[i].FileURL = url
	}
	return out
}

// withOwnerEmails attaches owner emails. A failed lookup labels every row
// UnknownEmail instead of failing the snapshot.
func (v *View) withOwnerEmails(ctx context.Context, certs []models.Certificate) []models.TeacherCertificate {
	ids := make([]string, 0, len(certs))
	for _, c := range certs {
		ids = append(ids, c.OwnerID)
	}
	var emails map[string]string
	if v.composer.emails != nil && len(ids) > 0 {
		found, err := v.composer.emails.EmailsFor(ctx, ids)
		if err != nil {
			v.composer.logger.Warn("owner email lookup failed", zap.String("view_id", v.id), zap.Error(err))
		} else {
			emails = found
		}
	}

	out := make([]models.TeacherCertificate, 0, len(certs))
	for _, c := range certs {
		email, ok := emails[c.OwnerID]
		if !ok || email == "" {
			email = UnknownEmail
		}
		out = append(out, models.TeacherCertificate{Certificate: c, OwnerEmail: email})
	}
	return out
}

// publishLocked recomputes the view state from the latest snapshots and
// replaces any undelivered state. Callers hold v.mu.
func (v *View) publishLocked() {
	v.seq++
	state := dto.ViewState{
		ViewID: v.id,
		Screen: string(v.screen),
		Seq:    v.seq,
	}

	for _, c := range v.collections {
		if !v.received[c] {
			state.Loading = append(state.Loading, c)
		}
	}
	if len(v.errs) > 0 {
		state.Errors = make(map[models.Collection]*appErrors.Error, len(v.errs))
		for c, err := range v.errs {
			state.Errors[c] = err
		}
	}

	switch v.screen {
	case ScreenStudentDashboard:
		state.Activities = v.activities
		state.Certificates = v.certificates
		state.Goals = v.goals
		state.Events = v.events
		state.GoalProgress = GoalProgressList(v.goals)
		summary := BuildDashboardSummary(DashboardInputs{
			Activities:         v.activities,
			ActivitiesLoaded:   v.hasData(models.CollectionActivities),
			Certificates:       v.certificates,
			CertificatesLoaded: v.hasData(models.CollectionCertificates),
			Goals:              v.goals,
			GoalsLoaded:        v.hasData(models.CollectionGoals),
			Events:             v.events,
			EventsLoaded:       v.hasData(models.CollectionEvents),
		}, models.NewDate(v.composer.now()))
		state.Summary = &summary
	case ScreenActivityRecords:
		state.Activities = v.activities
	case ScreenCertificates:
		state.Certificates = v.certificates
	case ScreenGoals:
		state.Goals = v.goals
		state.GoalProgress = GoalProgressList(v.goals)
	case ScreenEvents:
		state.Events = v.events
	case ScreenAchievements, ScreenTeacherAchievements:
		state.Achievements = v.achievements
	case ScreenTeacherCertificates:
		state.TeacherCertificates = v.teacherCerts
	}

	v.pending = &state
	select {
	case v.ready <- struct{}{}:
	default:
	}
}

// hasData reports whether c has delivered at least one successful snapshot.
func (v *View) hasData(c models.Collection) bool {
	return v.loaded[c]
}

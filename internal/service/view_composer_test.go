package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/scholarbridge-api/internal/dto"
	"github.com/noah-isme/scholarbridge-api/internal/models"
	appErrors "github.com/noah-isme/scholarbridge-api/pkg/errors"
)

var (
	studentSession = models.Session{UserID: "stu-1", Email: "stu@example.com", DisplayName: "stu", Role: models.RoleStudent}
	teacherSession = models.Session{UserID: "tch-1", Email: "tch@example.com", DisplayName: "tch", Role: models.RoleTeacher}
)

func newTestComposer(t *testing.T, store *memStore, now time.Time) (*ViewComposer, *viewCounter, func() int) {
	t.Helper()
	hub := startTestHub(t, store)
	counter := &viewCounter{}
	composer := NewViewComposer(hub, stubEmails{}, stubSigner{}, counter, nil)
	composer.now = func() time.Time { return now }
	return composer, counter, hub.Active
}

func TestViewComposerRejectsScreensOutsideRole(t *testing.T) {
	composer, _, _ := newTestComposer(t, newMemStore(), time.Now())

	_, err := composer.Mount(context.Background(), teacherSession, ScreenStudentDashboard)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	_, err = composer.Mount(context.Background(), studentSession, ScreenTeacherCertificates)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	unresolved := studentSession
	unresolved.Role = models.RoleUnresolved
	_, err = composer.Mount(context.Background(), unresolved, ScreenCertificates)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	_, err = composer.Mount(context.Background(), studentSession, Screen("nope"))
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestViewComposerDashboardAggregates(t *testing.T) {
	store := newMemStore()
	store.activities = []models.Activity{
		{ID: "a1", OwnerID: "stu-1", Type: models.ActivityAcademic, Title: "Olympiad", Date: mustDate(t, "2024-01-05")},
		{ID: "a2", OwnerID: "stu-1", Type: models.ActivityCoCurricular, Title: "Choir", Date: mustDate(t, "2024-03-01")},
		{ID: "a3", OwnerID: "other", Type: models.ActivityAcademic, Title: "Not mine", Date: mustDate(t, "2024-05-01")},
	}
	store.certificates = []models.Certificate{{ID: "c1", OwnerID: "stu-1", Title: "First Aid", FileRef: "users/stu-1/files/1_fa.pdf"}}
	store.goals = []models.Goal{
		{ID: "g1", OwnerID: "stu-1", Title: "Read", Status: models.GoalStatusCompleted},
		{ID: "g2", OwnerID: "stu-1", Title: "Run", Status: models.GoalStatus("Someday")},
	}
	store.events = []models.Event{
		{ID: "e1", Title: "Past fair", Date: mustDate(t, "2024-01-10")},
		{ID: "e2", Title: "Science fair", Date: mustDate(t, "2024-02-20")},
	}

	composer, counter, _ := newTestComposer(t, store, time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC))
	view, err := composer.Mount(context.Background(), studentSession, ScreenStudentDashboard)
	require.NoError(t, err)
	defer view.Unmount()
	assert.Equal(t, 1, counter.count(ScreenStudentDashboard))

	state := waitView(t, view, loaded)
	require.NotNil(t, state.Summary)
	assert.Equal(t, 2, state.Summary.TotalActivities)
	assert.Equal(t, 1, state.Summary.UpcomingActivities)
	assert.Equal(t, 1, state.Summary.AcademicCount)
	assert.Equal(t, 1, state.Summary.CoCurricularCount)
	assert.Equal(t, 1, state.Summary.CertificateCount)
	assert.Empty(t, state.Summary.Pending)
	require.Len(t, state.Summary.RecentActivities, 2)
	assert.Equal(t, "a2", state.Summary.RecentActivities[0].ID)
	require.Len(t, state.Events, 1)
	assert.Equal(t, "e2", state.Events[0].ID)
	require.Len(t, state.Certificates, 1)
	assert.Equal(t, "https://files.test/users/stu-1/files/1_fa.pdf", state.Certificates[0].FileURL)
	assert.Equal(t, []dto.GoalProgress{
		{GoalID: "g1", Title: "Read", Status: models.GoalStatusCompleted, Progress: 100},
		{GoalID: "g2", Title: "Run", Status: models.GoalStatus("Someday"), Progress: 0},
	}, state.GoalProgress)
}

func TestViewComposerSubscriptionErrorIsolated(t *testing.T) {
	store := newMemStore()
	store.activities = []models.Activity{{ID: "a1", OwnerID: "stu-1", Type: models.ActivityAcademic, Date: mustDate(t, "2024-01-05")}}
	store.setFail(models.CollectionGoals, errors.New("goals offline"))

	composer, _, _ := newTestComposer(t, store, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	view, err := composer.Mount(context.Background(), studentSession, ScreenStudentDashboard)
	require.NoError(t, err)
	defer view.Unmount()

	state := waitView(t, view, loaded)
	require.Contains(t, state.Errors, models.CollectionGoals)
	assert.Equal(t, appErrors.ErrSubscription.Code, state.Errors[models.CollectionGoals].Code)
	assert.Equal(t, 1, state.Summary.TotalActivities)
	assert.Contains(t, state.Summary.Pending, models.CollectionGoals)

	store.setFail(models.CollectionGoals, nil)
	view.Retry(models.CollectionGoals)
	state = waitView(t, view, func(s dto.ViewState) bool { return len(s.Errors) == 0 })
	assert.Empty(t, state.Summary.Pending)
}

func TestViewUnmountStopsDelivery(t *testing.T) {
	store := newMemStore()
	hub := startTestHub(t, store)
	composer := NewViewComposer(hub, nil, nil, nil, nil)

	view, err := composer.Mount(context.Background(), studentSession, ScreenActivityRecords)
	require.NoError(t, err)
	waitView(t, view, loaded)
	assert.Equal(t, 1, hub.Active())

	view.Unmount()
	view.Unmount()
	assert.Equal(t, 0, hub.Active())

	store.addActivity(models.Activity{ID: "late", OwnerID: "stu-1"})
	hub.Notify(models.Change{Collection: models.CollectionActivities, OwnerID: "stu-1", Op: models.ChangeInsert})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = view.Next(ctx)
	assert.ErrorIs(t, err, ErrViewUnmounted)
}

func TestViewUnmountsWhenContextCancelled(t *testing.T) {
	store := newMemStore()
	hub := startTestHub(t, store)
	composer := NewViewComposer(hub, nil, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	view, err := composer.Mount(ctx, studentSession, ScreenGoals)
	require.NoError(t, err)
	cancel()

	select {
	case <-view.Done():
	case <-time.After(time.Second):
		t.Fatal("view not unmounted after cancel")
	}
	assert.Eventually(t, func() bool { return hub.Active() == 0 }, time.Second, 10*time.Millisecond)
}

func TestViewUserSwitchKeepsOnlyNewUserSubscriptions(t *testing.T) {
	store := newMemStore()
	hub := startTestHub(t, store)
	composer := NewViewComposer(hub, nil, nil, nil, nil)

	first, err := composer.Mount(context.Background(), studentSession, ScreenStudentDashboard)
	require.NoError(t, err)
	waitView(t, first, loaded)

	other := models.Session{UserID: "stu-2", Email: "two@example.com", Role: models.RoleStudent}
	first.Unmount()
	second, err := composer.Mount(context.Background(), other, ScreenStudentDashboard)
	require.NoError(t, err)
	defer second.Unmount()

	assert.Equal(t, 0, hub.ActiveFor("stu-1"))
	assert.Equal(t, 3, hub.ActiveFor("stu-2"))

	store.addActivity(models.Activity{ID: "old-user", OwnerID: "stu-1", Date: mustDate(t, "2030-01-01")})
	hub.Notify(models.Change{Collection: models.CollectionActivities, OwnerID: "stu-1", Op: models.ChangeInsert})

	state := waitView(t, second, loaded)
	for _, a := range state.Activities {
		assert.Equal(t, "stu-2", a.OwnerID)
	}
}

func TestTeacherCertificatesUnknownOwner(t *testing.T) {
	store := newMemStore()
	store.certificates = []models.Certificate{
		{ID: "c1", OwnerID: "stu-1", Title: "First Aid"},
		{ID: "c2", OwnerID: "ghost", Title: "Chess"},
	}
	hub := startTestHub(t, store)

	composer := NewViewComposer(hub, stubEmails{emails: map[string]string{"stu-1": "stu@example.com"}}, nil, nil, nil)
	view, err := composer.Mount(context.Background(), teacherSession, ScreenTeacherCertificates)
	require.NoError(t, err)
	defer view.Unmount()

	state := waitView(t, view, loaded)
	require.Len(t, state.TeacherCertificates, 2)
	emails := map[string]string{}
	for _, c := range state.TeacherCertificates {
		emails[c.ID] = c.OwnerEmail
	}
	assert.Equal(t, "stu@example.com", emails["c1"])
	assert.Equal(t, UnknownEmail, emails["c2"])

	failing := NewViewComposer(hub, stubEmails{err: errors.New("redis down")}, nil, nil, nil)
	view2, err := failing.Mount(context.Background(), teacherSession, ScreenTeacherCertificates)
	require.NoError(t, err)
	defer view2.Unmount()
	state = waitView(t, view2, loaded)
	for _, c := range state.TeacherCertificates {
		assert.Equal(t, UnknownEmail, c.OwnerEmail)
	}
}

func TestScreenForPath(t *testing.T) {
	screen, ok := ScreenForPath("/Teacher-Certificates/")
	require.True(t, ok)
	assert.Equal(t, ScreenTeacherCertificates, screen)

	_, ok = ScreenForPath("/login")
	assert.False(t, ok)
}

// rotatingSigner hands out a new link on every call, like a signer whose
// links carry an expiry.
type rotatingSigner struct{ n atomic.Int64 }

func (s *rotatingSigner) GetURL(_ context.Context, locator string) (string, error) {
	return fmt.Sprintf("https://files.test/%s?v=%d", locator, s.n.Add(1)), nil
}

func firstCertURL(state dto.ViewState) string {
	if len(state.TeacherCertificates) == 0 {
		return ""
	}
	return state.TeacherCertificates[0].FileURL
}

func TestViewRetryResignsUnchangedFiles(t *testing.T) {
	store := newMemStore()
	store.certificates = []models.Certificate{{ID: "c1", OwnerID: "stu-1", Title: "First Aid", FileRef: "users/stu-1/files/1_fa.pdf"}}
	hub := startTestHub(t, store)

	composer := NewViewComposer(hub, stubEmails{}, &rotatingSigner{}, nil, nil)
	view, err := composer.Mount(context.Background(), teacherSession, ScreenTeacherCertificates)
	require.NoError(t, err)
	defer view.Unmount()

	first := firstCertURL(waitView(t, view, func(s dto.ViewState) bool { return firstCertURL(s) != "" }))

	view.Retry("")
	refreshed := waitView(t, view, func(s dto.ViewState) bool {
		u := firstCertURL(s)
		return u != "" && u != first
	})
	assert.Contains(t, firstCertURL(refreshed), "users/stu-1/files/1_fa.pdf")
}

func TestViewRefreshesFileLinksPeriodically(t *testing.T) {
	store := newMemStore()
	store.certificates = []models.Certificate{{ID: "c1", OwnerID: "stu-1", Title: "First Aid", FileRef: "users/stu-1/files/1_fa.pdf"}}
	hub := startTestHub(t, store)

	composer := NewViewComposer(hub, stubEmails{}, &rotatingSigner{}, nil, nil).WithURLRefresh(20 * time.Millisecond)
	view, err := composer.Mount(context.Background(), teacherSession, ScreenTeacherCertificates)
	require.NoError(t, err)
	defer view.Unmount()

	first := firstCertURL(waitView(t, view, func(s dto.ViewState) bool { return firstCertURL(s) != "" }))
	waitView(t, view, func(s dto.ViewState) bool {
		u := firstCertURL(s)
		return u != "" && u != first
	})

	activities, err := composer.Mount(context.Background(), studentSession, ScreenActivityRecords)
	require.NoError(t, err)
	assert.False(t, activities.hasFileCollections())
	activities.Unmount()
}

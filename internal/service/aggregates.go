package service

import (
	"math"
	"sort"

	"github.com/noah-isme/scholarbridge-api/internal/dto"
	"github.com/noah-isme/scholarbridge-api/internal/models"
)

const recentActivityCount = 2

// GoalProgress maps a goal status to its progress percentage.
func GoalProgress(status models.GoalStatus) int {
	return status.Progress()
}

// GoalProgressList derives the progress bar list for goals.
func GoalProgressList(goals []models.Goal) []dto.GoalProgress {
	out := make([]dto.GoalProgress, 0, len(goals))
	for _, g := range goals {
		out = append(out, dto.GoalProgress{
			GoalID:   g.ID,
			Title:    g.Title,
			Status:   g.Status,
			Progress: GoalProgress(g.Status),
		})
	}
	return out
}

// DashboardInputs is whatever subset of dashboard snapshots has arrived so far.
// A section whose Loaded flag is false is reported as pending, not as empty.
type DashboardInputs struct {
	Activities         []models.Activity
	ActivitiesLoaded   bool
	Certificates       []models.Certificate
	CertificatesLoaded bool
	Goals              []models.Goal
	GoalsLoaded        bool
	Events             []models.Event
	EventsLoaded       bool
}

// BuildDashboardSummary computes the student dashboard aggregates. It is a pure
// function of its inputs and today.
func BuildDashboardSummary(in DashboardInputs, today models.Date) dto.DashboardSummary {
	summary := dto.DashboardSummary{
		ActivityMix:      []dto.ActivityShare{},
		RecentActivities: []models.Activity{},
		GoalProgress:     []dto.GoalProgress{},
		UpcomingEvents:   []models.Event{},
		Pending:          []models.Collection{},
	}

	if in.ActivitiesLoaded {
		summary.TotalActivities = len(in.Activities)
		for _, a := range in.Activities {
			if !a.Date.Before(today) {
				summary.UpcomingActivities++
			}
			switch a.Type {
			case models.ActivityAcademic:
				summary.AcademicCount++
			case models.ActivityCoCurricular:
				summary.CoCurricularCount++
			}
		}
		summary.ActivityMix = []dto.ActivityShare{
			share(models.ActivityAcademic, summary.AcademicCount, summary.TotalActivities),
			share(models.ActivityCoCurricular, summary.CoCurricularCount, summary.TotalActivities),
		}
		summary.RecentActivities = recentActivities(in.Activities, recentActivityCount)
	} else {
		summary.Pending = append(summary.Pending, models.CollectionActivities)
	}

	if in.CertificatesLoaded {
		summary.CertificateCount = len(in.Certificates)
	} else {
		summary.Pending = append(summary.Pending, models.CollectionCertificates)
	}

	if in.GoalsLoaded {
		summary.GoalProgress = GoalProgressList(in.Goals)
	} else {
		summary.Pending = append(summary.Pending, models.CollectionGoals)
	}

	if in.EventsLoaded {
		for _, e := range in.Events {
			if !e.Date.Before(today) {
				summary.UpcomingEvents = append(summary.UpcomingEvents, e)
			}
		}
	} else {
		summary.Pending = append(summary.Pending, models.CollectionEvents)
	}

	return summary
}

func share(kind models.ActivityType, n, total int) dto.ActivityShare {
	out := dto.ActivityShare{Type: kind, Count: n}
	if total > 0 {
		out.Percent = math.Round(float64(n)*10000/float64(total)) / 100
	}
	return out
}

func recentActivities(activities []models.Activity, n int) []models.Activity {
	sorted := append([]models.Activity(nil), activities...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Date.Equal(sorted[j].Date.Time) {
			return sorted[i].Date.After(sorted[j].Date.Time)
		}
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

package dto

import "github.com/noah-isme/scholarbridge-api/internal/models"

// DashboardSummary is the derived data of the student dashboard. Sections that
// have not loaded yet are reported in Pending and contribute zero.
type DashboardSummary struct {
	TotalActivities    int                 `json:"totalActivities"`
	UpcomingActivities int                 `json:"upcomingActivities"`
	AcademicCount      int                 `json:"academicCount"`
	CoCurricularCount  int                 `json:"coCurricularCount"`
	ActivityMix        []ActivityShare     `json:"activityMix"`
	RecentActivities   []models.Activity   `json:"recentActivities"`
	CertificateCount   int                 `json:"certificateCount"`
	GoalProgress       []GoalProgress      `json:"goalProgress"`
	UpcomingEvents     []models.Event      `json:"upcomingEvents"`
	Pending            []models.Collection `json:"pending,omitempty"`
}

// ActivityShare is one slice of the activity type pie.
type ActivityShare struct {
	Type    models.ActivityType `json:"type"`
	Count   int                 `json:"count"`
	Percent float64             `json:"percent"`
}

// GoalProgress pairs a goal with its completion percentage.
type GoalProgress struct {
	GoalID   string            `json:"goalId"`
	Title    string            `json:"title"`
	Status   models.GoalStatus `json:"status"`
	Progress int               `json:"progress"`
}

package models

import "time"

type GoalPriority string

const (
	GoalPriorityHigh   GoalPriority = "High"
	GoalPriorityMedium GoalPriority = "Medium"
	GoalPriorityLow    GoalPriority = "Low"
)

type GoalStatus string

const (
	GoalStatusPending    GoalStatus = "Pending"
	GoalStatusInProgress GoalStatus = "In Progress"
	GoalStatusCompleted  GoalStatus = "Completed"
)

// Progress maps the status to a percentage; unknown statuses count as 0.
func (s GoalStatus) Progress() int {
	switch s {
	case GoalStatusInProgress:
		return 50
	case GoalStatusCompleted:
		return 100
	default:
		return 0
	}
}

// Goal is a student's personal goal.
type Goal struct {
	ID          string       `db:"id" json:"id"`
	OwnerID     string       `db:"user_id" json:"userId"`
	Title       string       `db:"title" json:"title"`
	Description string       `db:"description" json:"description"`
	TargetDate  Date         `db:"target_date" json:"targetDate"`
	Priority    GoalPriority `db:"priority" json:"priority"`
	Status      GoalStatus   `db:"status" json:"status"`
	CreatedAt   time.Time    `db:"created_at" json:"createdAt"`
}

// GoalInput is the writable part of a goal. Empty priority and status take defaults.
type GoalInput struct {
	Title       string       `json:"title" validate:"required,max=200"`
	Description string       `json:"description" validate:"max=2000"`
	TargetDate  Date         `json:"targetDate" validate:"required"`
	Priority    GoalPriority `json:"priority" validate:"omitempty,oneof=High Medium Low"`
	Status      GoalStatus   `json:"status" validate:"omitempty,oneof=Pending 'In Progress' Completed"`
}

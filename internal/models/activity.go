package models

import "time"

// ActivityType classifies an activity record.
type ActivityType string

const (
	ActivityAcademic     ActivityType = "academic"
	ActivityCoCurricular ActivityType = "co-curricular"
)

// Activity is a student's logged activity, private to its owner.
type Activity struct {
	ID          string       `db:"id" json:"id"`
	OwnerID     string       `db:"user_id" json:"userId"`
	Type        ActivityType `db:"type" json:"type"`
	Title       string       `db:"title" json:"title"`
	Description *string      `db:"description" json:"description,omitempty"`
	Date        Date         `db:"date" json:"date"`
	CreatedAt   time.Time    `db:"created_at" json:"createdAt"`
}

// ActivityInput is the writable part of an activity.
type ActivityInput struct {
	Type        ActivityType `json:"type" validate:"required,oneof=academic co-curricular"`
	Title       string       `json:"title" validate:"required,max=200"`
	Description *string      `json:"description" validate:"omitempty,max=2000"`
	Date        Date         `json:"date" validate:"required"`
}

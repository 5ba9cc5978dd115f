package models

import "time"

// Event is a school-wide event visible to every user.
type Event struct {
	ID          string    `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Date        Date      `db:"date" json:"date"`
	Description string    `db:"description" json:"description"`
	ClubName    *string   `db:"club_name" json:"clubName,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

type EventInput struct {
	Title       string  `json:"title" validate:"required,max=200"`
	Date        Date    `json:"date" validate:"required"`
	Description string  `json:"description" validate:"max=2000"`
	ClubName    *string `json:"clubName" validate:"omitempty,max=120"`
}

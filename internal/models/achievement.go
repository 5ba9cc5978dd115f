package models

import "time"

// Achievement is a school-wide achievement with an attached file.
type Achievement struct {
	ID          string    `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	StudentName string    `db:"student_name" json:"studentName"`
	Description *string   `db:"description" json:"description,omitempty"`
	Date        Date      `db:"date" json:"date"`
	FileRef     string    `db:"file_ref" json:"-"`
	FileURL     string    `db:"-" json:"fileUrl,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// AchievementInput is the metadata sent with an achievement upload.
type AchievementInput struct {
	Title       string  `json:"title" form:"title" validate:"required,max=200"`
	StudentName string  `json:"studentName" form:"studentName" validate:"required,max=120"`
	Description *string `json:"description" form:"description" validate:"omitempty,max=2000"`
	Date        Date    `json:"date" form:"-"`
}

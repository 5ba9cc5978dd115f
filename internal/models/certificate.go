package models

import "time"

// Certificate is uploaded by a student; FileRef is the blob locator.
type Certificate struct {
	ID        string    `db:"id" json:"id"`
	OwnerID   string    `db:"user_id" json:"userId"`
	Title     string    `db:"title" json:"title"`
	FileRef   string    `db:"file_ref" json:"-"`
	FileURL   string    `db:"-" json:"fileUrl,omitempty"`
	FileName  string    `db:"file_name" json:"fileName"`
	MimeType  string    `db:"mime_type" json:"mimeType"`
	SizeBytes int64     `db:"size_bytes" json:"sizeBytes"`
	IssuedAt  time.Time `db:"issued_at" json:"issuedAt"`
}

// TeacherCertificate is a certificate as seen on the teacher screen.
type TeacherCertificate struct {
	Certificate
	OwnerEmail string `db:"owner_email" json:"userEmail"`
}

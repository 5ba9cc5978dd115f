package dto

import (
	"github.com/noah-isme/scholarbridge-api/internal/models"
	appErrors "github.com/noah-isme/scholarbridge-api/pkg/errors"
)

// Client frame types on the live channel.
const (
	FrameAuth     = "auth"
	FrameNavigate = "navigate"
	FrameMount    = "mount"
	FrameUnmount  = "unmount"
	FrameRetry    = "retry"
)

// Server frame types on the live channel.
const (
	FrameSession  = "session"
	FrameRoute    = "route"
	FrameSnapshot = "snapshot"
	FrameView     = "view"
	FrameError    = "error"
)

// ClientFrame is a message from the browser.
type ClientFrame struct {
	Type       string `json:"type"`
	RequestID  string `json:"requestId,omitempty"`
	Token      string `json:"token,omitempty"`
	Path       string `json:"path,omitempty"`
	Screen     string `json:"screen,omitempty"`
	ViewID     string `json:"viewId,omitempty"`
	Collection string `json:"collection,omitempty"`
}

// ServerFrame is a message to the browser. Payload depends on Type.
type ServerFrame struct {
	Type      string           `json:"type"`
	RequestID string           `json:"requestId,omitempty"`
	Payload   interface{}      `json:"payload,omitempty"`
	Error     *appErrors.Error `json:"error,omitempty"`
}

// SessionPayload carries the current session; nil means signed out.
type SessionPayload struct {
	Session *models.Session `json:"session"`
}

// View lifecycle statuses.
const (
	ViewMounted   = "mounted"
	ViewUnmounted = "unmounted"
)

// ViewEvent acknowledges a mount or reports an unmount.
type ViewEvent struct {
	ViewID string `json:"viewId"`
	Screen string `json:"screen"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// ViewState is everything a mounted screen shows. Only the collections the
// screen subscribes to are populated; Loading lists those with no snapshot yet.
type ViewState struct {
	ViewID              string                                 `json:"viewId"`
	Screen              string                                 `json:"screen"`
	Seq                 uint64                                 `json:"seq"`
	Activities          []models.Activity                      `json:"activities,omitempty"`
	Certificates        []models.Certificate                   `json:"certificates,omitempty"`
	TeacherCertificates []models.TeacherCertificate            `json:"teacherCertificates,omitempty"`
	Goals               []models.Goal                          `json:"goals,omitempty"`
	GoalProgress        []GoalProgress                         `json:"goalProgress,omitempty"`
	Events              []models.Event                         `json:"events,omitempty"`
	Achievements        []models.Achievement                   `json:"achievements,omitempty"`
	Summary             *DashboardSummary                      `json:"summary,omitempty"`
	Loading             []models.Collection                    `json:"loading,omitempty"`
	Errors              map[models.Collection]*appErrors.Error `json:"errors,omitempty"`
}

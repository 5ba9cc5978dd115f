package models

// Session is the resolved identity of the connected user. Readers only ever
// receive copies.
type Session struct {
	UserID      string `json:"userId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Role        Role   `json:"role"`
}

// Identity is what the identity provider knows about a signed-in user before
// the profile role is attached.
type Identity struct {
	UserID      string
	Email       string
	DisplayName string
	SessionID   string
}

// SessionEventKind enumerates identity provider notifications.
type SessionEventKind string

const (
	SessionSignedIn       SessionEventKind = "signed_in"
	SessionSignedOut      SessionEventKind = "signed_out"
	SessionTokenRefreshed SessionEventKind = "token_refreshed"
)

// SessionEvent is published by the identity provider whenever a session
// starts, ends or has its token refreshed.
type SessionEvent struct {
	Kind     SessionEventKind
	Identity Identity
}

// Package navigation decides which screen a session may see. Resolve is pure:
// the same session and path always produce the same decision.
package navigation

import (
	"path"
	"strings"

	"github.com/noah-isme/scholarbridge-api/internal/models"
)

// State is the router state derived from a session.
type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateRoleUnresolved  State = "role_unresolved"
	StateStudent         State = "student"
	StateTeacher         State = "teacher"
)

const (
	PathLogin    = "/login"
	PathRegister = "/register"
	PathLoading  = "/loading"

	PathDashboard        = "/dashboard"
	PathActivityRecords  = "/activity-records"
	PathCertificates     = "/certificates"
	PathAchievements     = "/achievements"
	PathEvents           = "/events"
	PathGoals            = "/goals"
	PathTeacherCerts     = "/teacher-certificates"
	PathTeacherAchieve   = "/teacher-achievements"
	pathTeacherDashboard = "/teacher-dashboard"
)

var (
	publicRoutes  = []string{PathLogin, PathRegister}
	studentRoutes = []string{PathDashboard, PathActivityRecords, PathCertificates, PathAchievements, PathEvents, PathGoals}
	teacherRoutes = []string{PathTeacherCerts, PathTeacherAchieve}

	aliases = map[string]string{
		pathTeacherDashboard: PathTeacherCerts,
	}
)

// Decision is the outcome of resolving a requested path.
type Decision struct {
	State      State    `json:"state"`
	Requested  string   `json:"requested"`
	Path       string   `json:"path"`
	Redirected bool     `json:"redirected"`
	Routes     []string `json:"routes"`
}

// StateOf derives the router state. A nil session is unauthenticated.
func StateOf(s *models.Session) State {
	switch {
	case s == nil || s.UserID == "":
		return StateUnauthenticated
	case s.Role == models.RoleStudent:
		return StateStudent
	case s.Role == models.RoleTeacher:
		return StateTeacher
	default:
		return StateRoleUnresolved
	}
}

// Routes lists the paths reachable in state. The role-unresolved state only
// reaches the loading screen.
func Routes(state State) []string {
	switch state {
	case StateStudent:
		return append([]string(nil), studentRoutes...)
	case StateTeacher:
		return append([]string(nil), teacherRoutes...)
	case StateRoleUnresolved:
		return []string{PathLoading}
	default:
		return append([]string(nil), publicRoutes...)
	}
}

// DefaultRoute is where state lands for "/" and for paths outside its set.
func DefaultRoute(state State) string {
	switch state {
	case StateStudent:
		return PathDashboard
	case StateTeacher:
		return PathTeacherCerts
	case StateRoleUnresolved:
		return PathLoading
	default:
		return PathLogin
	}
}

// Resolve maps a requested path to the path the session is allowed to show.
func Resolve(s *models.Session, requested string) Decision {
	state := StateOf(s)
	normalized := Normalize(requested)
	lookup := normalized
	if target, ok := aliases[normalized]; ok && state == StateTeacher {
		lookup = target
	}

	d := Decision{State: state, Requested: requested, Routes: Routes(state)}
	if contains(d.Routes, lookup) {
		d.Path = lookup
	} else {
		d.Path = DefaultRoute(state)
	}
	d.Redirected = d.Path != normalized
	return d
}

// Allowed reports whether the session may show path without a redirect.
func Allowed(s *models.Session, p string) bool {
	d := Resolve(s, p)
	return !d.Redirected && d.Path == Normalize(p)
}

// Normalize strips query and fragment, collapses dot segments and removes any
// trailing slash. The empty path becomes "/".
func Normalize(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return strings.ToLower(path.Clean(p))
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

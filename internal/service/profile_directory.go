package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/scholarbridge-api/internal/models"
	appErrors "github.com/noah-isme/scholarbridge-api/pkg/errors"
)

// UnknownEmail labels certificates whose owner has no profile.
const UnknownEmail = "Unknown"

type profileRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	EmailsByIDs(ctx context.Context, ids []string) (map[string]string, error)
}

// ProfileDirectory reads profile records: the role behind a session and the
// owner emails shown to teachers.
type ProfileDirectory struct {
	repo   profileRepository
	cache  *CacheService
	ttl    time.Duration
	logger *zap.Logger
}

func NewProfileDirectory(repo profileRepository, cache *CacheService, ttl time.Duration, logger *zap.Logger) *ProfileDirectory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileDirectory{repo: repo, cache: cache, ttl: ttl, logger: logger}
}

// SessionFor builds the session for identity from its profile. When the
// profile cannot be read the session is still returned, with an unresolved
// role, together with a PROFILE_FETCH_FAILED error.
func (d *ProfileDirectory) SessionFor(ctx context.Context, identity models.Identity) (models.Session, error) {
	session := models.Session{
		UserID:      identity.UserID,
		Email:       identity.Email,
		DisplayName: models.DisplayName(identity.DisplayName, identity.Email),
		Role:        models.RoleUnresolved,
	}

	profile, err := d.repo.FindByID(ctx, identity.UserID)
	if err != nil {
		msg := "unable to load profile"
		if errors.Is(err, sql.ErrNoRows) {
			msg = "profile not found"
		}
		return session, appErrors.WrapAs(appErrors.ErrProfileFetch, err, msg)
	}
	if profile.Email != "" {
		session.Email = profile.Email
	}
	session.DisplayName = models.DisplayName(profile.Name, session.Email)
	if profile.Role.Valid() {
		session.Role = profile.Role
	}
	return session, nil
}

// EmailsFor maps each owner id to its email, using UnknownEmail for ids with
// no profile. Lookups go through the cache first.
func (d *ProfileDirectory) EmailsFor(ctx context.Context, ids []string) (map[string]string, error) {
	unique := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	out := make(map[string]string, len(unique))
	keys := make([]string, len(unique))
	for i, id := range unique {
		keys[i] = emailCacheKey(id)
	}
	cached := d.cache.GetStrings(ctx, keys)

	missing := make([]string, 0)
	for i, id := range unique {
		if email, ok := cached[keys[i]]; ok {
			out[id] = email
			continue
		}
		missing = append(missing, id)
	}

	if len(missing) > 0 {
		found, err := d.repo.EmailsByIDs(ctx, missing)
		if err != nil {
			return nil, appErrors.WrapAs(appErrors.ErrProfileFetch, err, "unable to load owner emails")
		}
		for _, id := range missing {
			email, ok := found[id]
			if !ok {
				out[id] = UnknownEmail
				continue
			}
			out[id] = email
			d.cache.Set(ctx, emailCacheKey(id), email, d.ttl)
		}
	}
	return out, nil
}

func emailCacheKey(userID string) string {
	return "profile:email:" + userID
}

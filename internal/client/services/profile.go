package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/dares/internal/client/datastore"
	"github.com/dmitrijs2005/dares/internal/client/models"
	"github.com/dmitrijs2005/dares/internal/common"
	"github.com/dmitrijs2005/dares/internal/logging"
)

// SyncResult is the outcome of a profile sync. Profile is nil on failure.
type SyncResult struct {
	Profile *models.Profile
	Created bool
	Err     error
}

// OK reports whether the profile row was written.
func (r SyncResult) OK() bool { return r.Err == nil && r.Profile != nil }

// ProfileService keeps the profiles table in step with the identity
// provider and serves profile reads and edits.
type ProfileService struct {
	store  datastore.Accessor
	users  Principals
	logger logging.Logger
	clock  clock
}

func NewProfileService(store datastore.Accessor, users Principals, logger logging.Logger) *ProfileService {
	if logger == nil {
		logger = logging.Discard()
	}
	return &ProfileService{store: store, users: users, logger: logger.With("service", "profile")}
}

// Sync upserts the signed-in principal's profile keyed by firebase_uid.
// created_at is only sent when no row exists yet.
func (s *ProfileService) Sync(ctx context.Context) SyncResult {
	p := s.users.Current()
	if p == nil || p.UID == "" {
		return SyncResult{Err: common.ErrNotSignedIn}
	}
	now := common.Timestamp(s.clock.now())
	client := s.store.Current()

	payload := datastore.Row{
		"firebase_uid": p.UID,
		"email":        nullable(p.Email),
		"updated_at":   now,
		"last_seen":    now,
	}

	_, err := datastore.Single(client.Select(ctx, models.TableProfiles, datastore.Query{
		Columns: []string{"id"},
		Filters: []datastore.Filter{datastore.Eq("firebase_uid", p.UID)},
	}))
	created := false
	if err != nil {
		if !datastore.IsNoRows(err) {
			s.logger.Warn(ctx, "profile lookup failed, treating as absent", "uid", p.UID, "error", err)
		}
		payload["created_at"] = now
		created = true
	}

	row, err := datastore.Single(client.Upsert(ctx, models.TableProfiles, payload, "firebase_uid"))
	if err != nil {
		s.logger.Warn(ctx, "profile sync failed", "uid", p.UID, "error", err)
		return SyncResult{Err: fmt.Errorf("upsert profile: %w", err)}
	}
	var out models.Profile
	if err := row.Decode(&out); err != nil {
		return SyncResult{Err: err}
	}
	s.logger.Debug(ctx, "profile synced", "uid", p.UID, "created", created)
	return SyncResult{Profile: &out, Created: created}
}

// SyncProfile runs Sync and reports only the error.
func (s *ProfileService) SyncProfile(ctx context.Context) error {
	return s.Sync(ctx).Err
}

// TouchLastSeen bumps last_seen. Nothing happens when signed out.
func (s *ProfileService) TouchLastSeen(ctx context.Context) error {
	uid, err := currentUID(s.users)
	if err != nil {
		return nil
	}
	_, err = s.store.Current().Update(ctx, models.TableProfiles,
		datastore.Row{"last_seen": common.Timestamp(s.clock.now())},
		datastore.Eq("firebase_uid", uid))
	if err != nil {
		return fmt.Errorf("update last_seen: %w", err)
	}
	return nil
}

// Current fetches the signed-in principal's profile.
func (s *ProfileService) Current(ctx context.Context) (*models.Profile, error) {
	uid, err := currentUID(s.users)
	if err != nil {
		return nil, err
	}
	row, err := datastore.Single(s.store.Current().Select(ctx, models.TableProfiles,
		datastore.Query{}.Where(datastore.Eq("firebase_uid", uid))))
	if err != nil {
		if datastore.IsNoRows(err) {
			return nil, fmt.Errorf("profile %s: %w", uid, common.ErrorNotFound)
		}
		return nil, err
	}
	var p models.Profile
	if err := row.Decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Update applies a username and/or avatar change.
func (s *ProfileService) Update(ctx context.Context, edit models.ProfileEdit) (*models.Profile, error) {
	edit, err := models.NormalizeProfileEdit(edit)
	if err != nil {
		return nil, err
	}
	uid, err := currentUID(s.users)
	if err != nil {
		return nil, err
	}

	values := datastore.Row{"updated_at": common.Timestamp(s.clock.now())}
	if edit.Username != nil {
		values["username"] = *edit.Username
	}
	if edit.AvatarURL != nil {
		values["avatar_url"] = nullable(*edit.AvatarURL)
	}

	row, err := datastore.Single(s.store.Current().Update(ctx, models.TableProfiles, values, datastore.Eq("firebase_uid", uid)))
	if err != nil {
		if datastore.IsNoRows(err) {
			return nil, fmt.Errorf("profile %s: %w", uid, common.ErrorNotFound)
		}
		if datastore.CodeOf(err) == datastore.CodeUniqueViolation {
			return nil, fmt.Errorf("%w: username is taken", common.ErrValidation)
		}
		return nil, err
	}
	var p models.Profile
	if err := row.Decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ByUIDs loads the public part of several profiles keyed by firebase_uid.
func (s *ProfileService) ByUIDs(ctx context.Context, uids []string) (map[string]models.Profile, error) {
	uids = uniqueStrings(uids)
	out := make(map[string]models.Profile, len(uids))
	if len(uids) == 0 {
		return out, nil
	}
	rows, err := s.store.Current().Select(ctx, models.TableProfiles, datastore.Query{
		Columns: []string{"firebase_uid", "email", "username", "avatar_url"},
		Filters: []datastore.Filter{datastore.In("firebase_uid", uids)},
	})
	if err != nil {
		return nil, err
	}
	var ps []models.Profile
	if err := rows.Decode(&ps); err != nil {
		return nil, err
	}
	for _, p := range ps {
		out[p.FirebaseUID] = p
	}
	return out, nil
}

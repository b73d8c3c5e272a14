package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/dares/internal/client/datastore"
	"github.com/dmitrijs2005/dares/internal/client/models"
	"github.com/dmitrijs2005/dares/internal/common"
	"github.com/dmitrijs2005/dares/internal/logging"
)

// LocationService publishes the user's position for the friends map.
type LocationService struct {
	store    datastore.Accessor
	users    Principals
	profiles *ProfileService
	logger   logging.Logger
	clock    clock
}

func NewLocationService(store datastore.Accessor, users Principals, profiles *ProfileService, logger logging.Logger) *LocationService {
	if logger == nil {
		logger = logging.Discard()
	}
	return &LocationService{store: store, users: users, profiles: profiles, logger: logger.With("service", "location")}
}

// Share upserts the signed-in user's position with sharing switched on.
func (s *LocationService) Share(ctx context.Context, lat, lng float64) (*models.Location, error) {
	if err := models.ValidateCoordinates(lat, lng); err != nil {
		return nil, err
	}
	uid, err := currentUID(s.users)
	if err != nil {
		return nil, err
	}
	loc := models.Location{
		FirebaseUID: uid,
		Latitude:    lat,
		Longitude:   lng,
		Sharing:     true,
		UpdatedAt:   s.clock.now(),
	}
	_, err = s.store.Current().Upsert(ctx, models.TableLocations, datastore.Row{
		"firebase_uid": loc.FirebaseUID,
		"latitude":     loc.Latitude,
		"longitude":    loc.Longitude,
		"sharing":      loc.Sharing,
		"updated_at":   common.Timestamp(loc.UpdatedAt),
	}, "firebase_uid")
	if err != nil {
		return nil, fmt.Errorf("share location: %w", err)
	}
	return &loc, nil
}

// StopSharing hides the user from the map. The last position is kept.
func (s *LocationService) StopSharing(ctx context.Context) error {
	uid, err := currentUID(s.users)
	if err != nil {
		return err
	}
	_, err = s.store.Current().Update(ctx, models.TableLocations, datastore.Row{
		"sharing":    false,
		"updated_at": common.Timestamp(s.clock.now()),
	}, datastore.Eq("firebase_uid", uid))
	if err != nil {
		return fmt.Errorf("stop sharing: %w", err)
	}
	return nil
}

// List returns other users' shared positions with their display names.
func (s *LocationService) List(ctx context.Context) ([]models.Location, error) {
	uid, err := currentUID(s.users)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.Current().Select(ctx, models.TableLocations, datastore.Query{
		Columns: []string{"firebase_uid", "latitude", "longitude", "sharing", "updated_at"},
		Filters: []datastore.Filter{datastore.Eq("sharing", true), datastore.Neq("firebase_uid", uid)},
		Order:   []datastore.Order{{Column: "updated_at", Descending: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	var out []models.Location
	if err := rows.Decode(&out); err != nil {
		return nil, err
	}
	if s.profiles == nil || len(out) == 0 {
		return out, nil
	}

	uids := make([]string, 0, len(out))
	for _, l := range out {
		uids = append(uids, l.FirebaseUID)
	}
	profiles, err := s.profiles.ByUIDs(ctx, uids)
	if err != nil {
		s.logger.Warn(ctx, "location profile lookup failed", "error", err)
		return out, nil
	}
	for i := range out {
		p, ok := profiles[out[i].FirebaseUID]
		if !ok {
			p = models.Profile{FirebaseUID: out[i].FirebaseUID}
		}
		out[i].Username = p.DisplayName()
	}
	return out, nil
}

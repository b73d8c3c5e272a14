package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/dmitrijs2005/dares/internal/client/datastore"
	"github.com/dmitrijs2005/dares/internal/client/models"
	"github.com/dmitrijs2005/dares/internal/logging"
)

// LeaderboardService ranks users by the points of their approved
// completions.
type LeaderboardService struct {
	store    datastore.Accessor
	profiles *ProfileService
	logger   logging.Logger
}

func NewLeaderboardService(store datastore.Accessor, profiles *ProfileService, logger logging.Logger) *LeaderboardService {
	if logger == nil {
		logger = logging.Discard()
	}
	return &LeaderboardService{store: store, profiles: profiles, logger: logger.With("service", "leaderboard")}
}

// Top returns up to limit entries; limit <= 0 returns everyone. Ranks are
// dense: equal points share a rank, ties are listed by username.
func (s *LeaderboardService) Top(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	client := s.store.Current()
	rows, err := client.Select(ctx, models.TableCompletions, datastore.Query{
		Columns: []string{"challenge_id", "completed_by"},
		Filters: []datastore.Filter{datastore.Eq("status", string(models.StatusApproved))},
	})
	if err != nil {
		return nil, fmt.Errorf("load approved completions: %w", err)
	}
	var done []models.Completion
	if err := rows.Decode(&done); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(done))
	for _, c := range done {
		ids = append(ids, c.ChallengeID)
	}
	challenges, err := challengeSummaries(ctx, client, ids)
	if err != nil {
		return nil, err
	}

	byUser := make(map[string]*models.LeaderboardEntry)
	var uids []string
	for _, c := range done {
		e, ok := byUser[c.CompletedBy]
		if !ok {
			e = &models.LeaderboardEntry{UID: c.CompletedBy}
			byUser[c.CompletedBy] = e
			uids = append(uids, c.CompletedBy)
		}
		e.Completed++
		e.Points += challenges[c.ChallengeID].Points
	}

	if s.profiles != nil && len(uids) > 0 {
		profiles, err := s.profiles.ByUIDs(ctx, uids)
		if err != nil {
			s.logger.Warn(ctx, "leaderboard profile lookup failed", "error", err)
		}
		for uid, e := range byUser {
			p, ok := profiles[uid]
			if !ok {
				p = models.Profile{FirebaseUID: uid}
			}
			e.Username = p.DisplayName()
			e.AvatarURL = p.AvatarURL
		}
	} else {
		for uid, e := range byUser {
			e.Username = uid
		}
	}

	out := make([]models.LeaderboardEntry, 0, len(byUser))
	for _, e := range byUser {
		out = append(out, *e)
	}
	return rank(out, limit), nil
}

func rank(entries []models.LeaderboardEntry, limit int) []models.LeaderboardEntry {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		if a.Username != b.Username {
			return a.Username < b.Username
		}
		return a.UID < b.UID
	})
	r := 0
	for i := range entries {
		if i == 0 || entries[i].Points != entries[i-1].Points {
			r++
		}
		entries[i].Rank = r
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

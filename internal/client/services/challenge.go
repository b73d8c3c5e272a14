package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/dares/internal/client/datastore"
	"github.com/dmitrijs2005/dares/internal/client/models"
	"github.com/dmitrijs2005/dares/internal/common"
	"github.com/dmitrijs2005/dares/internal/logging"
	"github.com/google/uuid"
)

// ChallengeService lists and manages challenges.
type ChallengeService struct {
	sess     Session
	users    Principals
	profiles *ProfileService
	logger   logging.Logger
	clock    clock
}

func NewChallengeService(sess Session, users Principals, profiles *ProfileService, logger logging.Logger) *ChallengeService {
	if logger == nil {
		logger = logging.Discard()
	}
	return &ChallengeService{sess: sess, users: users, profiles: profiles, logger: logger.With("service", "challenge")}
}

var newChallengeID = func() string { return uuid.NewString() }

// Active returns challenges whose deadline has not passed, newest first.
// Targeted ones carry their target's username and avatar when the lookup
// succeeds.
func (s *ChallengeService) Active(ctx context.Context) ([]models.Challenge, error) {
	if _, err := currentUID(s.users); err != nil {
		return nil, err
	}
	list, err := s.list(ctx, datastore.Gt("deadline", s.clock.now()))
	if err != nil {
		return nil, err
	}

	var targets []string
	for _, c := range list {
		if c.Type == models.ChallengeTargeted {
			targets = append(targets, c.TargetUID)
		}
	}
	if len(targets) == 0 || s.profiles == nil {
		return list, nil
	}
	profiles, err := s.profiles.ByUIDs(ctx, targets)
	if err != nil {
		s.logger.Warn(ctx, "target profile lookup failed", "error", err)
		return list, nil
	}
	for i := range list {
		if p, ok := profiles[list[i].TargetUID]; ok && list[i].Type == models.ChallengeTargeted {
			list[i].TargetUsername = p.DisplayName()
			list[i].TargetAvatarURL = p.AvatarURL
		}
	}
	return list, nil
}

// Mine returns challenges created by the signed-in user.
func (s *ChallengeService) Mine(ctx context.Context) ([]models.Challenge, error) {
	uid, err := currentUID(s.users)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, datastore.Eq("created_by", uid))
}

// TargetingMe returns active challenges aimed at the signed-in user.
func (s *ChallengeService) TargetingMe(ctx context.Context) ([]models.Challenge, error) {
	uid, err := currentUID(s.users)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, datastore.Eq("target_uid", uid), datastore.Gt("deadline", s.clock.now()))
}

// Get loads one challenge.
func (s *ChallengeService) Get(ctx context.Context, id string) (*models.Challenge, error) {
	row, err := datastore.Single(s.sess.Current().Select(ctx, models.TableChallenges,
		datastore.Query{}.Where(datastore.Eq("id", id))))
	if err != nil {
		return nil, notFound("challenge", id, err)
	}
	return decodeChallenge(row)
}

// Create validates d, refreshes the bearer and inserts the challenge.
func (s *ChallengeService) Create(ctx context.Context, d models.ChallengeDraft) (*models.Challenge, error) {
	now := s.clock.now()
	d, err := models.NormalizeChallengeDraft(d, now)
	if err != nil {
		return nil, err
	}
	uid, err := currentUID(s.users)
	if err != nil {
		return nil, err
	}

	res := s.sess.Refresh(ctx)
	if !res.OK() {
		if res.Err != nil {
			return nil, fmt.Errorf("refresh token before create: %w", res.Err)
		}
		return nil, common.ErrNotSignedIn
	}

	row := draftRow(d)
	row["id"] = newChallengeID()
	row["created_at"] = common.Timestamp(now)
	row["created_by"] = uid

	out, err := datastore.Single(s.sess.Current().Insert(ctx, models.TableChallenges, row))
	if err != nil {
		return nil, fmt.Errorf("create challenge: %w", err)
	}
	s.logger.Info(ctx, "challenge created", "id", row["id"], "type", d.Type)
	return decodeChallenge(out)
}

// Update rewrites a challenge owned by the signed-in user.
func (s *ChallengeService) Update(ctx context.Context, id string, d models.ChallengeDraft) (*models.Challenge, error) {
	d, err := models.NormalizeChallengeDraft(d, s.clock.now())
	if err != nil {
		return nil, err
	}
	uid, err := currentUID(s.users)
	if err != nil {
		return nil, err
	}
	out, err := datastore.Single(s.sess.Current().Update(ctx, models.TableChallenges, draftRow(d),
		datastore.Eq("id", id), datastore.Eq("created_by", uid)))
	if err != nil {
		return nil, notFound("challenge", id, err)
	}
	return decodeChallenge(out)
}

// Delete removes a challenge owned by the signed-in user.
func (s *ChallengeService) Delete(ctx context.Context, id string) error {
	uid, err := currentUID(s.users)
	if err != nil {
		return err
	}
	rows, err := s.sess.Current().Delete(ctx, models.TableChallenges,
		datastore.Eq("id", id), datastore.Eq("created_by", uid))
	if err != nil {
		return fmt.Errorf("delete challenge: %w", err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("challenge %s: %w", id, common.ErrorNotFound)
	}
	return nil
}

func (s *ChallengeService) list(ctx context.Context, filters ...datastore.Filter) ([]models.Challenge, error) {
	q := datastore.Query{}.Where(filters...).OrderBy("created_at", true)
	rows, err := s.sess.Current().Select(ctx, models.TableChallenges, q)
	if err != nil {
		return nil, fmt.Errorf("list challenges: %w", err)
	}
	var out []models.Challenge
	if err := rows.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func draftRow(d models.ChallengeDraft) datastore.Row {
	return datastore.Row{
		"title":       d.Title,
		"description": d.Description,
		"points":      d.Points,
		"type":        string(d.Type),
		"target_uid":  nullable(d.TargetUID),
		"deadline":    common.Timestamp(d.Deadline),
	}
}

func decodeChallenge(row datastore.Row) (*models.Challenge, error) {
	var c models.Challenge
	if err := row.Decode(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

// notFound turns a no-rows lookup into common.ErrorNotFound.
func notFound(kind, id string, err error) error {
	if datastore.IsNoRows(err) {
		return fmt.Errorf("%s %s: %w", kind, id, common.ErrorNotFound)
	}
	return err
}

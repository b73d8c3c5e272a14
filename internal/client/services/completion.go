package services

import (
	"context"
	"fmt"
	"io"

	"github.com/dmitrijs2005/dares/internal/client/datastore"
	"github.com/dmitrijs2005/dares/internal/client/models"
	"github.com/dmitrijs2005/dares/internal/common"
	"github.com/dmitrijs2005/dares/internal/logging"
	"github.com/google/uuid"
)

// ProofUploader stores a proof file and returns its URL.
type ProofUploader interface {
	UploadProof(ctx context.Context, uid, challengeID, filename string, body io.Reader) (string, error)
}

// Proof is a file attached to a completion.
type Proof struct {
	Filename string
	Body     io.Reader
}

// CompletionService submits and reviews challenge completions.
type CompletionService struct {
	store  datastore.Accessor
	users  Principals
	proofs ProofUploader
	logger logging.Logger
	clock  clock
}

// NewCompletionService builds the service. proofs may be nil, in which case
// submissions with a proof fail with a configuration error.
func NewCompletionService(store datastore.Accessor, users Principals, proofs ProofUploader, logger logging.Logger) *CompletionService {
	if logger == nil {
		logger = logging.Discard()
	}
	return &CompletionService{store: store, users: users, proofs: proofs, logger: logger.With("service", "completion")}
}

var newCompletionID = func() string { return uuid.NewString() }

// Submit records a pending completion, uploading proof first when given.
func (s *CompletionService) Submit(ctx context.Context, challengeID string, proof *Proof) (*models.Completion, error) {
	if challengeID == "" {
		return nil, fmt.Errorf("%w: challenge id is required", common.ErrValidation)
	}
	uid, err := currentUID(s.users)
	if err != nil {
		return nil, err
	}

	var proofURL string
	if proof != nil {
		if s.proofs == nil {
			return nil, fmt.Errorf("%w: proof storage is not configured", common.ErrConfiguration)
		}
		proofURL, err = s.proofs.UploadProof(ctx, uid, challengeID, proof.Filename, proof.Body)
		if err != nil {
			return nil, err
		}
	}

	row := datastore.Row{
		"id":           newCompletionID(),
		"challenge_id": challengeID,
		"completed_by": uid,
		"proof_url":    nullable(proofURL),
		"completed_at": common.Timestamp(s.clock.now()),
		"status":       string(models.StatusPending),
	}
	out, err := datastore.Single(s.store.Current().Insert(ctx, models.TableCompletions, row))
	if err != nil {
		return nil, fmt.Errorf("submit completion: %w", err)
	}
	s.logger.Info(ctx, "completion submitted", "challenge", challengeID, "with_proof", proofURL != "")
	return decodeCompletion(out)
}

// ForChallenge lists a challenge's completions, newest first.
func (s *CompletionService) ForChallenge(ctx context.Context, challengeID string) ([]models.Completion, error) {
	return s.list(ctx, datastore.Eq("challenge_id", challengeID))
}

// Mine lists the signed-in user's completions with their challenge's
// title, points and type attached.
func (s *CompletionService) Mine(ctx context.Context) ([]models.Completion, error) {
	uid, err := currentUID(s.users)
	if err != nil {
		return nil, err
	}
	list, err := s.list(ctx, datastore.Eq("completed_by", uid))
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(list))
	for _, c := range list {
		ids = append(ids, c.ChallengeID)
	}
	summaries, err := challengeSummaries(ctx, s.store.Current(), ids)
	if err != nil {
		return nil, err
	}
	for i := range list {
		if sum, ok := summaries[list[i].ChallengeID]; ok {
			list[i].Challenge = &sum
		}
	}
	return list, nil
}

// UpdateStatus approves or rejects a completion. Only the creator of the
// completion's challenge may do so.
func (s *CompletionService) UpdateStatus(ctx context.Context, completionID string, status models.CompletionStatus) (*models.Completion, error) {
	if _, err := models.ParseReviewStatus(string(status)); err != nil {
		return nil, err
	}
	uid, err := currentUID(s.users)
	if err != nil {
		return nil, err
	}
	client := s.store.Current()

	row, err := datastore.Single(client.Select(ctx, models.TableCompletions, datastore.Query{
		Columns: []string{"id", "challenge_id"},
		Filters: []datastore.Filter{datastore.Eq("id", completionID)},
	}))
	if err != nil {
		return nil, notFound("completion", completionID, err)
	}
	challengeID, _ := row["challenge_id"].(string)

	owner, err := datastore.Single(client.Select(ctx, models.TableChallenges, datastore.Query{
		Columns: []string{"created_by"},
		Filters: []datastore.Filter{datastore.Eq("id", challengeID)},
	}))
	if err != nil {
		return nil, notFound("challenge", challengeID, err)
	}
	if createdBy, _ := owner["created_by"].(string); createdBy != uid {
		return nil, fmt.Errorf("%w: only the challenge creator can review completions", common.ErrForbidden)
	}

	out, err := datastore.Single(client.Update(ctx, models.TableCompletions,
		datastore.Row{"status": string(status)}, datastore.Eq("id", completionID)))
	if err != nil {
		return nil, notFound("completion", completionID, err)
	}
	return decodeCompletion(out)
}

func (s *CompletionService) list(ctx context.Context, filters ...datastore.Filter) ([]models.Completion, error) {
	q := datastore.Query{}.Where(filters...).OrderBy("completed_at", true)
	rows, err := s.store.Current().Select(ctx, models.TableCompletions, q)
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	var out []models.Completion
	if err := rows.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// challengeSummaries loads id, title, points and type of the given
// challenges.
func challengeSummaries(ctx context.Context, client datastore.Client, ids []string) (map[string]models.ChallengeSummary, error) {
	ids = uniqueStrings(ids)
	out := make(map[string]models.ChallengeSummary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := client.Select(ctx, models.TableChallenges, datastore.Query{
		Columns: []string{"id", "title", "points", "type"},
		Filters: []datastore.Filter{datastore.In("id", ids)},
	})
	if err != nil {
		return nil, fmt.Errorf("load challenges: %w", err)
	}
	var list []models.ChallengeSummary
	if err := rows.Decode(&list); err != nil {
		return nil, err
	}
	for _, c := range list {
		out[c.ID] = c
	}
	return out, nil
}

func decodeCompletion(row datastore.Row) (*models.Completion, error) {
	var c models.Completion
	if err := row.Decode(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

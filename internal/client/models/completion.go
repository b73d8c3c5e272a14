package models

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/dares/internal/common"
)

// CompletionStatus is the review state of a completion.
type CompletionStatus string

const (
	StatusPending  CompletionStatus = "pending"
	StatusApproved CompletionStatus = "approved"
	StatusRejected CompletionStatus = "rejected"
)

// ParseReviewStatus accepts the two statuses a reviewer may set.
func ParseReviewStatus(s string) (CompletionStatus, error) {
	switch CompletionStatus(s) {
	case StatusApproved, StatusRejected:
		return CompletionStatus(s), nil
	}
	return "", fmt.Errorf("%w: status must be %q or %q", common.ErrValidation, StatusApproved, StatusRejected)
}

// Completion is a row of the completions table.
type Completion struct {
	ID          string           `json:"id"`
	ChallengeID string           `json:"challenge_id"`
	CompletedBy string           `json:"completed_by"`
	ProofURL    string           `json:"proof_url"`
	CompletedAt time.Time        `json:"completed_at"`
	Status      CompletionStatus `json:"status"`

	// Challenge is attached by listings that join the parent challenge.
	Challenge *ChallengeSummary `json:"-"`
}

// ChallengeSummary is the part of a challenge shown next to a completion.
type ChallengeSummary struct {
	ID     string        `json:"id"`
	Title  string        `json:"title"`
	Points int           `json:"points"`
	Type   ChallengeType `json:"type"`
}

package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/dares/internal/common"
)

// ChallengeType is either general (anyone may complete) or targeted at one
// user.
type ChallengeType string

const (
	ChallengeGeneral  ChallengeType = "general"
	ChallengeTargeted ChallengeType = "targeted"
)

const (
	MinPoints         = 10
	MaxPoints         = 100
	maxTitleLength    = 120
	maxDescLength     = 2000
	DefaultDeadlineIn = 7 * 24 * time.Hour
)

// Challenge is a row of the challenges table. Target* fields are filled in
// from the target's profile when listing.
type Challenge struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Points      int           `json:"points"`
	Type        ChallengeType `json:"type"`
	TargetUID   string        `json:"target_uid"`
	Deadline    time.Time     `json:"deadline"`
	CreatedAt   time.Time     `json:"created_at"`
	CreatedBy   string        `json:"created_by"`

	TargetUsername  string `json:"-"`
	TargetAvatarURL string `json:"-"`
}

// Active reports whether the deadline is still ahead of now.
func (c Challenge) Active(now time.Time) bool {
	return c.Deadline.After(now)
}

// ChallengeDraft is the user input for creating or editing a challenge.
type ChallengeDraft struct {
	Title       string
	Description string
	Points      int
	Type        ChallengeType
	TargetUID   string
	Deadline    time.Time
}

// NormalizeChallengeDraft trims and validates d against now.
func NormalizeChallengeDraft(d ChallengeDraft, now time.Time) (ChallengeDraft, error) {
	d.Title = strings.TrimSpace(d.Title)
	d.Description = strings.TrimSpace(d.Description)
	d.TargetUID = strings.TrimSpace(d.TargetUID)

	if d.Title == "" {
		return d, fmt.Errorf("%w: title is required", common.ErrValidation)
	}
	if utf8.RuneCountInString(d.Title) > maxTitleLength {
		return d, fmt.Errorf("%w: title must be at most %d characters", common.ErrValidation, maxTitleLength)
	}
	if utf8.RuneCountInString(d.Description) > maxDescLength {
		return d, fmt.Errorf("%w: description must be at most %d characters", common.ErrValidation, maxDescLength)
	}
	if d.Points < MinPoints || d.Points > MaxPoints {
		return d, fmt.Errorf("%w: points must be between %d and %d", common.ErrValidation, MinPoints, MaxPoints)
	}
	if d.Type == "" {
		d.Type = ChallengeGeneral
	}
	switch d.Type {
	case ChallengeGeneral:
		d.TargetUID = ""
	case ChallengeTargeted:
		if d.TargetUID == "" {
			return d, fmt.Errorf("%w: targeted challenge requires a target user", common.ErrValidation)
		}
	default:
		return d, fmt.Errorf("%w: unknown challenge type %q", common.ErrValidation, d.Type)
	}
	if d.Deadline.IsZero() {
		d.Deadline = now.Add(DefaultDeadlineIn)
	}
	if !d.Deadline.After(now) {
		return d, fmt.Errorf("%w: deadline must be in the future", common.ErrValidation)
	}
	return d, nil
}

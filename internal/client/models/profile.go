package models

import (
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/dmitrijs2005/dares/internal/common"
)

const (
	minUsernameLength = 3
	maxUsernameLength = 32
)

// Profile is a row of the profiles table.
type Profile struct {
	ID          int64      `json:"id"`
	FirebaseUID string     `json:"firebase_uid"`
	Email       string     `json:"email"`
	Username    string     `json:"username"`
	AvatarURL   string     `json:"avatar_url"`
	CreatedAt   *time.Time `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at"`
	LastSeen    *time.Time `json:"last_seen"`
}

// DisplayName is the username, or the local part of the email when the
// user has not picked one.
func (p Profile) DisplayName() string {
	if p.Username != "" {
		return p.Username
	}
	if local, _, ok := strings.Cut(p.Email, "@"); ok && local != "" {
		return local
	}
	if p.FirebaseUID != "" {
		return p.FirebaseUID
	}
	return "unknown"
}

// ProfileEdit is a user-initiated change; nil fields are left alone.
type ProfileEdit struct {
	Username  *string
	AvatarURL *string
}

// NormalizeProfileEdit trims and validates an edit. An empty avatar clears it.
func NormalizeProfileEdit(e ProfileEdit) (ProfileEdit, error) {
	var out ProfileEdit
	if e.Username == nil && e.AvatarURL == nil {
		return out, fmt.Errorf("%w: nothing to update", common.ErrValidation)
	}
	if e.Username != nil {
		name := strings.TrimSpace(*e.Username)
		n := utf8.RuneCountInString(name)
		if n < minUsernameLength || n > maxUsernameLength {
			return out, fmt.Errorf("%w: username must be %d to %d characters", common.ErrValidation, minUsernameLength, maxUsernameLength)
		}
		for _, r := range name {
			if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '.' && r != '-' {
				return out, fmt.Errorf("%w: username may contain only letters, digits, '_', '.' and '-'", common.ErrValidation)
			}
		}
		out.Username = &name
	}
	if e.AvatarURL != nil {
		avatar := strings.TrimSpace(*e.AvatarURL)
		if avatar != "" {
			u, err := url.Parse(avatar)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				return out, fmt.Errorf("%w: avatar must be an absolute http(s) URL", common.ErrValidation)
			}
		}
		out.AvatarURL = &avatar
	}
	return out, nil
}

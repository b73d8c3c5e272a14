package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/dares/internal/client/models"
)

// Profile prints the signed-in user's profile row.
func (a *App) Profile(ctx context.Context) error {
	p, err := a.profiles.Current(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Username:     %s\n", p.DisplayName())
	fmt.Fprintf(a.out, "Email:        %s\n", orDash(p.Email))
	fmt.Fprintf(a.out, "Avatar:       %s\n", orDash(p.AvatarURL))
	fmt.Fprintf(a.out, "Member since: %s\n", formatTimePtr(p.CreatedAt))
	fmt.Fprintf(a.out, "Last seen:    %s\n", formatTimePtr(p.LastSeen))
	return nil
}

// EditProfile prompts for a new username and avatar. An empty answer keeps
// the current value; "-" clears the avatar.
func (a *App) EditProfile(ctx context.Context) error {
	var edit models.ProfileEdit

	name, err := getSimpleText(a.reader, "New username (empty to keep)", a.out)
	if err != nil {
		return err
	}
	if name != "" {
		edit.Username = &name
	}

	avatar, err := getSimpleText(a.reader, "New avatar URL (empty to keep, - to clear)", a.out)
	if err != nil {
		return err
	}
	switch avatar {
	case "":
	case "-":
		cleared := ""
		edit.AvatarURL = &cleared
	default:
		edit.AvatarURL = &avatar
	}

	p, err := a.profiles.Update(ctx, edit)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Profile updated: %s\n", p.DisplayName())
	return nil
}

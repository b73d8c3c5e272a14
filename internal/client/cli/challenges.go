package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/dares/internal/client/models"
	"github.com/dmitrijs2005/dares/internal/common"
)

// Challenges lists every active challenge, newest first.
func (a *App) Challenges(ctx context.Context) error {
	list, err := a.challenges.Active(ctx)
	if err != nil {
		return err
	}
	return a.printChallenges(list)
}

// MyChallenges lists the challenges the user created.
func (a *App) MyChallenges(ctx context.Context) error {
	list, err := a.challenges.Mine(ctx)
	if err != nil {
		return err
	}
	return a.printChallenges(list)
}

// TargetingMe lists active challenges aimed at the user.
func (a *App) TargetingMe(ctx context.Context) error {
	list, err := a.challenges.TargetingMe(ctx)
	if err != nil {
		return err
	}
	return a.printChallenges(list)
}

func (a *App) printChallenges(list []models.Challenge) error {
	if len(list) == 0 {
		fmt.Fprintln(a.out, "No challenges")
		return nil
	}
	rows := make([][]string, 0, len(list))
	for _, c := range list {
		target := "-"
		if c.Type == models.ChallengeTargeted {
			target = c.TargetUsername
			if target == "" {
				target = c.TargetUID
			}
		}
		rows = append(rows, []string{c.ID, c.Title, strconv.Itoa(c.Points), string(c.Type), target, formatTime(c.Deadline)})
	}
	return table(a.out, []string{"ID", "TITLE", "POINTS", "TYPE", "TARGET", "DEADLINE"}, rows)
}

// CreateChallenge prompts for a new challenge and saves it.
func (a *App) CreateChallenge(ctx context.Context) error {
	var d models.ChallengeDraft
	var err error

	if d.Title, err = getSimpleText(a.reader, "Title", a.out); err != nil {
		return err
	}
	if d.Description, err = GetMultiline(a.reader, "Description", a.out); err != nil {
		return err
	}
	points, err := getSimpleText(a.reader, fmt.Sprintf("Points (%d-%d)", models.MinPoints, models.MaxPoints), a.out)
	if err != nil {
		return err
	}
	if d.Points, err = parsePoints(points); err != nil {
		return err
	}
	kind, err := GetChoice(a.reader, "Type", []string{string(models.ChallengeGeneral), string(models.ChallengeTargeted)}, a.out)
	if err != nil {
		return err
	}
	d.Type = models.ChallengeType(kind)
	if d.Type == models.ChallengeTargeted {
		if d.TargetUID, err = getSimpleText(a.reader, "Target user id", a.out); err != nil {
			return err
		}
	}
	deadline, err := getSimpleText(a.reader, "Deadline: YYYY-MM-DD [HH:MM] or a duration like 48h (empty for 7 days)", a.out)
	if err != nil {
		return err
	}
	if d.Deadline, err = parseDeadline(deadline, nowFn()); err != nil {
		return err
	}

	c, err := a.challenges.Create(ctx, d)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Created challenge %s, due %s\n", c.ID, formatTime(c.Deadline))
	return nil
}

// EditChallenge prompts for new values of one of the user's challenges.
// Empty answers keep the current values.
func (a *App) EditChallenge(ctx context.Context, id string) error {
	c, err := a.challenges.Get(ctx, id)
	if err != nil {
		return err
	}
	d := models.ChallengeDraft{
		Title:       c.Title,
		Description: c.Description,
		Points:      c.Points,
		Type:        c.Type,
		TargetUID:   c.TargetUID,
		Deadline:    c.Deadline,
	}

	if d.Title, err = a.promptDefault("Title", d.Title); err != nil {
		return err
	}
	if d.Description, err = a.promptDefault("Description", d.Description); err != nil {
		return err
	}
	points, err := a.promptDefault("Points", strconv.Itoa(d.Points))
	if err != nil {
		return err
	}
	if d.Points, err = parsePoints(points); err != nil {
		return err
	}
	deadline, err := a.promptDefault("Deadline", formatTime(d.Deadline))
	if err != nil {
		return err
	}
	if deadline != formatTime(c.Deadline) {
		if d.Deadline, err = parseDeadline(deadline, nowFn()); err != nil {
			return err
		}
	}

	updated, err := a.challenges.Update(ctx, id, d)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Updated challenge %s\n", updated.ID)
	return nil
}

// DeleteChallenge removes one of the user's challenges.
func (a *App) DeleteChallenge(ctx context.Context, id string) error {
	if err := a.challenges.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Deleted challenge %s\n", id)
	return nil
}

func (a *App) promptDefault(label, current string) (string, error) {
	v, err := getSimpleText(a.reader, fmt.Sprintf("%s [%s]", label, current), a.out)
	if err != nil {
		return "", err
	}
	if v == "" {
		return current, nil
	}
	return v, nil
}

func parsePoints(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: points must be a whole number", common.ErrValidation)
	}
	return n, nil
}

// parseDeadline accepts a date, a date and time (local zone) or a duration
// from now. Empty input yields the zero time, which the service replaces
// with its default deadline.
func parseDeadline(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return now.Add(d), nil
	}
	if t, err := time.ParseInLocation(timeLayout, s, time.Local); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, s, time.Local); err == nil {
		return t.Add(24*time.Hour - time.Minute), nil
	}
	return time.Time{}, fmt.Errorf("%w: cannot read deadline %q", common.ErrValidation, s)
}

package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/dares/internal/client/models"
	"github.com/dmitrijs2005/dares/internal/client/services"
)

// Complete submits a completion for challengeID, uploading the file at
// proofPath first when one is given.
func (a *App) Complete(ctx context.Context, challengeID, proofPath string) error {
	var proof *services.Proof
	if proofPath != "" {
		f, err := os.Open(proofPath)
		if err != nil {
			return fmt.Errorf("open proof: %w", err)
		}
		defer f.Close()
		proof = &services.Proof{Filename: filepath.Base(proofPath), Body: f}
	}

	c, err := a.completions.Submit(ctx, challengeID, proof)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Submitted completion %s (%s)\n", c.ID, c.Status)
	if c.ProofURL != "" {
		fmt.Fprintf(a.out, "Proof: %s\n", c.ProofURL)
	}
	return nil
}

// Completions lists everyone's completions of one challenge.
func (a *App) Completions(ctx context.Context, challengeID string) error {
	list, err := a.completions.ForChallenge(ctx, challengeID)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(a.out, "No completions")
		return nil
	}
	rows := make([][]string, 0, len(list))
	for _, c := range list {
		rows = append(rows, []string{c.ID, c.CompletedBy, string(c.Status), orDash(c.ProofURL), formatTime(c.CompletedAt)})
	}
	return table(a.out, []string{"ID", "BY", "STATUS", "PROOF", "COMPLETED"}, rows)
}

// MyCompletions lists the user's own completions with their challenges.
func (a *App) MyCompletions(ctx context.Context) error {
	list, err := a.completions.Mine(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(a.out, "No completions")
		return nil
	}
	rows := make([][]string, 0, len(list))
	for _, c := range list {
		title, points := c.ChallengeID, "-"
		if c.Challenge != nil {
			title, points = c.Challenge.Title, strconv.Itoa(c.Challenge.Points)
		}
		rows = append(rows, []string{c.ID, title, points, string(c.Status), formatTime(c.CompletedAt)})
	}
	return table(a.out, []string{"ID", "CHALLENGE", "POINTS", "STATUS", "COMPLETED"}, rows)
}

// Review approves or rejects a completion of one of the user's challenges.
func (a *App) Review(ctx context.Context, completionID, status string) error {
	c, err := a.completions.UpdateStatus(ctx, completionID, models.CompletionStatus(strings.ToLower(status)))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Completion %s is now %s\n", c.ID, c.Status)
	return nil
}

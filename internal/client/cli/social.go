package cli

import (
	"context"
	"fmt"
	"strconv"
)

// leaderboardSize is how many users the leaderboard command shows.
const leaderboardSize = 10

// Leaderboard prints users ranked by approved points.
func (a *App) Leaderboard(ctx context.Context) error {
	top, err := a.leaderboard.Top(ctx, leaderboardSize)
	if err != nil {
		return err
	}
	if len(top) == 0 {
		fmt.Fprintln(a.out, "Nobody has scored yet")
		return nil
	}
	rows := make([][]string, 0, len(top))
	for _, e := range top {
		rows = append(rows, []string{strconv.Itoa(e.Rank), e.Username, strconv.Itoa(e.Points), strconv.Itoa(e.Completed), e.UID})
	}
	return table(a.out, []string{"RANK", "USER", "POINTS", "COMPLETED", "UID"}, rows)
}

// Share publishes the user's position on the friends map.
func (a *App) Share(ctx context.Context, lat, lng float64) error {
	loc, err := a.locations.Share(ctx, lat, lng)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Sharing location %s\n", formatCoords(loc.Latitude, loc.Longitude))
	return nil
}

// Unshare hides the user from the friends map.
func (a *App) Unshare(ctx context.Context) error {
	if err := a.locations.StopSharing(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Location sharing stopped")
	return nil
}

// Locations prints the friends map as a list.
func (a *App) Locations(ctx context.Context) error {
	list, err := a.locations.List(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(a.out, "Nobody is sharing a location")
		return nil
	}
	rows := make([][]string, 0, len(list))
	for _, l := range list {
		rows = append(rows, []string{orDash(l.Username), formatCoords(l.Latitude, l.Longitude), formatTime(l.UpdatedAt)})
	}
	return table(a.out, []string{"USER", "POSITION", "UPDATED"}, rows)
}

func formatCoords(lat, lng float64) string {
	return fmt.Sprintf("%.5f, %.5f", lat, lng)
}

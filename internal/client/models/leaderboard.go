package models

// LeaderboardEntry is one ranked user.
type LeaderboardEntry struct {
	Rank      int
	UID       string
	Username  string
	AvatarURL string
	Points    int
	Completed int
}

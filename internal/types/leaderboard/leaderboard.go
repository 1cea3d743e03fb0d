package leaderboard

type LeaderboardEntry struct {
	UserID       string `json:"user_id"`
	Username     string `json:"username"`
	ImageURL     string `json:"image_url,omitempty"`
	CurrentScore int    `json:"current_score"`
	HasFailed    bool   `json:"has_failed"`
	HasWon       bool   `json:"has_won"`
	Rank         int    `json:"rank"`
}

type Leaderboard struct {
	ChallengeID  string              `json:"challenge_id"`
	TargetScore  int                 `json:"target_score"`
	Entries      []*LeaderboardEntry `json:"entries"`
	UserPosition *LeaderboardEntry   `json:"user_position"`
	TotalUsers   int                 `json:"total_users"`
}

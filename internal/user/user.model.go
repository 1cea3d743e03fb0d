package user

import "time"

type Profile struct {
	ID            string    `json:"id" db:"id" firestore:"-"`
	Email         string    `json:"email" db:"email" firestore:"email"`
	Username      string    `json:"username" db:"username" firestore:"username"`
	Avatar        string    `json:"avatar,omitempty" db:"avatar" firestore:"avatar"`
	TotalXP       int       `json:"totalXP" db:"total_xp" firestore:"totalXP"`
	Level         int       `json:"level" db:"level" firestore:"level"`
	StreakShields int       `json:"streakShields" db:"streak_shields" firestore:"streakShields"`
	PushTokens    []string  `json:"-" db:"push_tokens" firestore:"pushTokens"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at" firestore:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt" db:"updated_at" firestore:"updatedAt"`
}

func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := *p
	c.PushTokens = append([]string(nil), p.PushTokens...)
	return &c
}

type LevelInfo struct {
	Level       int     `json:"level"`
	Title       string  `json:"title"`
	Color       string  `json:"color"`
	CurrentXP   int     `json:"currentXP"`
	NextLevelXP int     `json:"nextLevelXP"`
	Progress    float64 `json:"progress"`
	XPNeeded    int     `json:"xpNeeded"`
}

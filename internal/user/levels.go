package user

// Rank is one step of the level table.
type Rank struct {
	Level int
	XP    int
	Title string
	Color string
}

var Ranks = []Rank{
	{Level: 1, XP: 0, Title: "Novice", Color: "#B0BEC5"},
	{Level: 2, XP: 100, Title: "Initiate", Color: "#90A4AE"},
	{Level: 3, XP: 300, Title: "Apprentice", Color: "#78909C"},
	{Level: 4, XP: 600, Title: "Explorer", Color: "#607D8B"},
	{Level: 5, XP: 1000, Title: "Consistent", Color: "#4DB6AC"},
	{Level: 10, XP: 2500, Title: "Disciplined", Color: "#009688"},
	{Level: 20, XP: 6000, Title: "Warrior", Color: "#42A5F5"},
	{Level: 30, XP: 12000, Title: "Veteran", Color: "#1565C0"},
	{Level: 40, XP: 25000, Title: "Master", Color: "#7E57C2"},
	{Level: 50, XP: 50000, Title: "Legend", Color: "#FFD700"},
}

// rankIndex returns the index of the highest rank reached with totalXP.
func rankIndex(totalXP int) int {
	idx := 0
	for i, r := range Ranks {
		if totalXP < r.XP {
			break
		}
		idx = i
	}
	return idx
}

// RanksCrossed counts the table steps between two XP totals.
func RanksCrossed(fromXP, toXP int) int {
	n := rankIndex(toXP) - rankIndex(fromXP)
	if n < 0 {
		return 0
	}
	return n
}

// LevelFor computes the level and the progress towards the next one.
// At the top rank progress is 1 and nothing more is needed.
func LevelFor(totalXP int) LevelInfo {
	if totalXP < 0 {
		totalXP = 0
	}
	idx := rankIndex(totalXP)
	cur := Ranks[idx]

	info := LevelInfo{
		Level:       cur.Level,
		Title:       cur.Title,
		Color:       cur.Color,
		CurrentXP:   totalXP,
		NextLevelXP: totalXP,
		Progress:    1,
	}
	if idx+1 < len(Ranks) {
		next := Ranks[idx+1]
		info.NextLevelXP = next.XP
		info.Progress = float64(totalXP-cur.XP) / float64(next.XP-cur.XP)
		info.XPNeeded = next.XP - totalXP
	}
	return info
}

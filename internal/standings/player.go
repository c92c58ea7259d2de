package standings

import "time"

// PlayerStats is the cumulative player ledger state as of one day.
type PlayerStats struct {
	MatchesPlayed int `json:"matchesPlayed"`
	Goals         int `json:"totalGoals"`
	Assists       int `json:"assists"`
	YellowCards   int `json:"yellowCards"`
	RedCards      int `json:"redCards"`
}

func (s PlayerStats) Apply(f Fixture, playerID uint) PlayerStats {
	if !f.Scored() || !f.Participated(playerID) {
		return s
	}
	s.MatchesPlayed++
	for _, g := range f.Goals {
		if g.PlayerID == playerID && g.Type != GoalOwn {
			s.Goals++
		}
		if g.AssistPlayerID != nil && *g.AssistPlayerID == playerID {
			s.Assists++
		}
	}
	for _, c := range f.Cards {
		if c.PlayerID != playerID {
			continue
		}
		switch c.Color {
		case CardYellow:
			s.YellowCards++
		case CardRed:
			s.RedCards++
		}
	}
	return s
}

type PlayerSnapshot struct {
	Date  time.Time
	Stats PlayerStats
}

// ReplayPlayer folds the fixtures of the player's team into base. A snapshot
// is produced for every day the team played a scored fixture, carrying the
// totals forward unchanged when the player did not take part.
func ReplayPlayer(base PlayerStats, playerID, teamID uint, fixtures []Fixture) []PlayerSnapshot {
	days := groupByDay(fixtures, func(f Fixture) bool { return f.Scored() && f.Involves(teamID) })

	snapshots := make([]PlayerSnapshot, 0, len(days))
	current := base
	for _, d := range days {
		for _, f := range d.fixtures {
			current = current.Apply(f, playerID)
		}
		snapshots = append(snapshots, PlayerSnapshot{Date: d.date, Stats: current})
	}
	return snapshots
}

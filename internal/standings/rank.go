package standings

import (
	"fmt"
	"sort"
)

type TeamEntry struct {
	TeamID uint
	Stats  TeamStats
	Rank   int
}

// compare returns >0 when a ranks above b on criterion c.
func (c Criterion) compare(a, b TeamEntry) (int, error) {
	switch c {
	case CriterionPoints:
		return a.Stats.Points - b.Stats.Points, nil
	case CriterionGoalsDifference:
		return a.Stats.GoalsDifference - b.Stats.GoalsDifference, nil
	case CriterionGoalsForAway:
		return a.Stats.GoalsForAway - b.Stats.GoalsForAway, nil
	case CriterionHeadToHead:
		return a.Stats.HeadToHead[b.TeamID] - b.Stats.HeadToHead[a.TeamID], nil
	}
	return 0, fmt.Errorf("%w: unknown ranking criterion %q", ErrInvalidInput, c)
}

// RankTeams orders entries by criteria, highest first, and assigns ranks
// 1..N. Entries tied on every criterion keep ascending team id order.
func RankTeams(entries []TeamEntry, criteria []Criterion) ([]TeamEntry, error) {
	if len(criteria) == 0 {
		return nil, fmt.Errorf("%w: no ranking criteria", ErrPreconditionFailed)
	}
	for _, c := range criteria {
		if _, err := c.compare(TeamEntry{}, TeamEntry{}); err != nil {
			return nil, err
		}
	}

	out := make([]TeamEntry, len(entries))
	copy(out, entries)
	sort.Slice(out, func(i, j int) bool { return out[i].TeamID < out[j].TeamID })
	sort.SliceStable(out, func(i, j int) bool {
		for _, c := range criteria {
			d, _ := c.compare(out[i], out[j])
			if d != 0 {
				return d > 0
			}
		}
		return false
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out, nil
}

type PlayerEntry struct {
	PlayerID uint
	Stats    PlayerStats
	Rank     int
}

// RankPlayers orders top scorers: most goals first, then fewer matches
// played, then ascending player id.
func RankPlayers(entries []PlayerEntry) []PlayerEntry {
	out := make([]PlayerEntry, len(entries))
	copy(out, entries)
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Stats.Goals != b.Stats.Goals {
			return a.Stats.Goals > b.Stats.Goals
		}
		if a.Stats.MatchesPlayed != b.Stats.MatchesPlayed {
			return a.Stats.MatchesPlayed < b.Stats.MatchesPlayed
		}
		return a.PlayerID < b.PlayerID
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

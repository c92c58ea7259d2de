package standings

import (
	"sort"
	"time"
)

// HeadToHead maps an opponent team id to the points earned against it.
type HeadToHead map[uint]int

func (h HeadToHead) Clone() HeadToHead {
	out := make(HeadToHead, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// TeamStats is the cumulative team ledger state as of one day.
type TeamStats struct {
	MatchesPlayed   int        `json:"matchesPlayed"`
	Wins            int        `json:"wins"`
	Draws           int        `json:"draws"`
	Losses          int        `json:"losses"`
	GoalsFor        int        `json:"goalsFor"`
	GoalsAgainst    int        `json:"goalsAgainst"`
	GoalsDifference int        `json:"goalsDifference"`
	Points          int        `json:"points"`
	GoalsForAway    int        `json:"goalsForAway"`
	HeadToHead      HeadToHead `json:"headToHeadPoints"`
}

// Apply returns s plus the deltas of one scored fixture for teamID. The
// receiver is never mutated. Unscored fixtures and fixtures teamID did not
// play leave the stats unchanged.
func (s TeamStats) Apply(f Fixture, teamID uint, rules RankingRules) TeamStats {
	out := s
	out.HeadToHead = s.HeadToHead.Clone()
	if !f.Scored() || !f.Involves(teamID) {
		return out
	}

	scored, conceded, away := f.goalsOf(teamID)
	opponent := f.Opponent(teamID)

	out.MatchesPlayed++
	out.GoalsFor += scored
	out.GoalsAgainst += conceded
	out.GoalsDifference = out.GoalsFor - out.GoalsAgainst
	if away {
		out.GoalsForAway += scored
	}

	var earned int
	switch {
	case scored > conceded:
		out.Wins++
		earned = rules.WinPoints
	case scored == conceded:
		out.Draws++
		earned = rules.DrawPoints
	default:
		out.Losses++
		earned = rules.LosePoints
	}
	out.Points += earned
	out.HeadToHead[opponent] += earned
	return out
}

// TeamSnapshot is one materialized ledger row.
type TeamSnapshot struct {
	Date  time.Time
	Stats TeamStats
}

// ReplayTeam folds fixtures into base, producing one snapshot per day on
// which teamID played a scored fixture. Fixtures need not be sorted.
func ReplayTeam(base TeamStats, teamID uint, fixtures []Fixture, rules RankingRules) []TeamSnapshot {
	days := groupByDay(fixtures, func(f Fixture) bool { return f.Scored() && f.Involves(teamID) })

	snapshots := make([]TeamSnapshot, 0, len(days))
	current := base
	for _, d := range days {
		for _, f := range d.fixtures {
			current = current.Apply(f, teamID, rules)
		}
		snapshots = append(snapshots, TeamSnapshot{Date: d.date, Stats: current})
	}
	return snapshots
}

type fixtureDay struct {
	date     time.Time
	fixtures []Fixture
}

func groupByDay(fixtures []Fixture, keep func(Fixture) bool) []fixtureDay {
	byDay := make(map[time.Time][]Fixture)
	for _, f := range fixtures {
		if !keep(f) {
			continue
		}
		d := Day(f.Date)
		byDay[d] = append(byDay[d], f)
	}

	days := make([]fixtureDay, 0, len(byDay))
	for d, fs := range byDay {
		sort.Slice(fs, func(i, j int) bool {
			if !fs[i].Date.Equal(fs[j].Date) {
				return fs[i].Date.Before(fs[j].Date)
			}
			return fs[i].ID < fs[j].ID
		})
		days = append(days, fixtureDay{date: d, fixtures: fs})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].date.Before(days[j].date) })
	return days
}

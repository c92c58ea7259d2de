package standings

import (
	"fmt"
	"time"
)

type GoalEvent struct {
	PlayerID       uint     `json:"playerId"`
	TeamID         uint     `json:"teamId"`
	Minute         int      `json:"minute"`
	Type           GoalType `json:"type"`
	AssistPlayerID *uint    `json:"assistPlayerId,omitempty"`
}

type CardColor string

const (
	CardYellow CardColor = "yellow"
	CardRed    CardColor = "red"
)

type CardEvent struct {
	PlayerID uint      `json:"playerId"`
	TeamID   uint      `json:"teamId"`
	Minute   int       `json:"minute"`
	Color    CardColor `json:"color"`
}

// Fixture is a match as the ledger sees it. The home side is the first team,
// the away side the second.
type Fixture struct {
	ID         uint
	SeasonID   uint
	HomeTeamID uint
	AwayTeamID uint
	Date       time.Time
	Score      *Score
	Goals      []GoalEvent
	Cards      []CardEvent
	HomeLineup []uint
	AwayLineup []uint
}

func (f Fixture) Scored() bool {
	return f.Score != nil
}

func (f Fixture) Involves(teamID uint) bool {
	return f.HomeTeamID == teamID || f.AwayTeamID == teamID
}

func (f Fixture) Opponent(teamID uint) uint {
	if f.HomeTeamID == teamID {
		return f.AwayTeamID
	}
	return f.HomeTeamID
}

// goalsOf returns (scored, conceded, away) from teamID's point of view.
func (f Fixture) goalsOf(teamID uint) (int, int, bool) {
	if teamID == f.HomeTeamID {
		return f.Score.Home, f.Score.Away, false
	}
	return f.Score.Away, f.Score.Home, true
}

// Participated reports whether playerID took part: listed in a lineup or
// involved in any goal or card event.
func (f Fixture) Participated(playerID uint) bool {
	for _, id := range f.HomeLineup {
		if id == playerID {
			return true
		}
	}
	for _, id := range f.AwayLineup {
		if id == playerID {
			return true
		}
	}
	for _, g := range f.Goals {
		if g.PlayerID == playerID || (g.AssistPlayerID != nil && *g.AssistPlayerID == playerID) {
			return true
		}
	}
	for _, c := range f.Cards {
		if c.PlayerID == playerID {
			return true
		}
	}
	return false
}

// ValidateResult checks a scored fixture's events against the season's goal
// rules. rosters maps player id to the id of the team the player belongs to.
func ValidateResult(f Fixture, rules GoalRules, rosters map[uint]uint) error {
	if f.Score == nil {
		if len(f.Goals) > 0 || len(f.Cards) > 0 {
			return fmt.Errorf("%w: unscored match cannot carry goal or card events", ErrInvalidInput)
		}
		return nil
	}

	side := func(playerID uint) (uint, error) {
		teamID, ok := rosters[playerID]
		if !ok || !f.Involves(teamID) {
			return 0, fmt.Errorf("%w: player %d does not play for either team", ErrInvalidInput, playerID)
		}
		return teamID, nil
	}

	credited := map[uint]int{}
	for i, g := range f.Goals {
		if !f.Involves(g.TeamID) {
			return fmt.Errorf("%w: goal %d credited to team %d outside the match", ErrInvalidInput, i, g.TeamID)
		}
		scorerTeam, err := side(g.PlayerID)
		if err != nil {
			return err
		}
		if g.Minute < rules.GoalTimeLimit.MinMinute || g.Minute > rules.GoalTimeLimit.MaxMinute {
			return fmt.Errorf("%w: goal %d at minute %d outside %d-%d", ErrInvalidInput, i, g.Minute,
				rules.GoalTimeLimit.MinMinute, rules.GoalTimeLimit.MaxMinute)
		}
		if !rules.Allows(g.Type) {
			return fmt.Errorf("%w: goal type %q not allowed this season", ErrInvalidInput, g.Type)
		}
		if g.Type == GoalOwn {
			if g.TeamID == scorerTeam {
				return fmt.Errorf("%w: own goal by player %d must credit the opposing team", ErrInvalidInput, g.PlayerID)
			}
		} else if g.TeamID != scorerTeam {
			return fmt.Errorf("%w: goal by player %d must credit their own team", ErrInvalidInput, g.PlayerID)
		}
		if g.AssistPlayerID != nil {
			if *g.AssistPlayerID == g.PlayerID {
				return fmt.Errorf("%w: player %d cannot assist their own goal", ErrInvalidInput, g.PlayerID)
			}
			assistTeam, err := side(*g.AssistPlayerID)
			if err != nil {
				return err
			}
			if g.Type == GoalOwn || assistTeam != g.TeamID {
				return fmt.Errorf("%w: invalid assist by player %d", ErrInvalidInput, *g.AssistPlayerID)
			}
		}
		credited[g.TeamID]++
	}
	if credited[f.HomeTeamID] != f.Score.Home || credited[f.AwayTeamID] != f.Score.Away {
		return fmt.Errorf("%w: goal events (%d-%d) do not add up to score %s", ErrInvalidInput,
			credited[f.HomeTeamID], credited[f.AwayTeamID], f.Score)
	}

	for _, c := range f.Cards {
		teamID, err := side(c.PlayerID)
		if err != nil {
			return err
		}
		if c.TeamID != teamID {
			return fmt.Errorf("%w: card for player %d booked against the wrong team", ErrInvalidInput, c.PlayerID)
		}
		if c.Minute < 0 || c.Minute > rules.GoalTimeLimit.MaxMinute {
			return fmt.Errorf("%w: card at minute %d", ErrInvalidInput, c.Minute)
		}
		if c.Color != CardYellow && c.Color != CardRed {
			return fmt.Errorf("%w: unknown card color %q", ErrInvalidInput, c.Color)
		}
	}

	for _, lineup := range []struct {
		team    uint
		players []uint
	}{{f.HomeTeamID, f.HomeLineup}, {f.AwayTeamID, f.AwayLineup}} {
		for _, p := range lineup.players {
			if rosters[p] != lineup.team {
				return fmt.Errorf("%w: player %d is not on team %d", ErrInvalidInput, p, lineup.team)
			}
		}
	}
	return nil
}

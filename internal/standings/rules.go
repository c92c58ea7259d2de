package standings

import "fmt"

// RuleSet names a season-scoped regulation.
type RuleSet string

const (
	RuleSetAge     RuleSet = "Age Rules"
	RuleSetMatch   RuleSet = "Match Rules"
	RuleSetGoal    RuleSet = "Goal Rules"
	RuleSetRanking RuleSet = "Ranking Rules"
)

var ruleSets = map[RuleSet]bool{
	RuleSetAge:     true,
	RuleSetMatch:   true,
	RuleSetGoal:    true,
	RuleSetRanking: true,
}

func ParseRuleSet(name string) (RuleSet, error) {
	rs := RuleSet(name)
	if !ruleSets[rs] {
		return "", fmt.Errorf("%w: unknown regulation %q", ErrInvalidInput, name)
	}
	return rs, nil
}

type AgeRules struct {
	MinAge            int `json:"minAge"`
	MaxAge            int `json:"maxAge"`
	MinPlayersPerTeam int `json:"minPlayersPerTeam"`
	MaxPlayersPerTeam int `json:"maxPlayersPerTeam"`
	MaxForeignPlayers int `json:"maxForeignPlayers"`
}

func (r AgeRules) Validate() error {
	switch {
	case r.MinAge <= 0 || r.MaxAge <= 0:
		return fmt.Errorf("%w: ages must be positive", ErrInvalidInput)
	case r.MinAge > r.MaxAge:
		return fmt.Errorf("%w: minAge %d exceeds maxAge %d", ErrInvalidInput, r.MinAge, r.MaxAge)
	case r.MinPlayersPerTeam < 0 || r.MaxPlayersPerTeam <= 0:
		return fmt.Errorf("%w: roster limits must be positive", ErrInvalidInput)
	case r.MinPlayersPerTeam > r.MaxPlayersPerTeam:
		return fmt.Errorf("%w: minPlayersPerTeam exceeds maxPlayersPerTeam", ErrInvalidInput)
	case r.MaxForeignPlayers < 0 || r.MaxForeignPlayers > r.MaxPlayersPerTeam:
		return fmt.Errorf("%w: maxForeignPlayers must be within roster size", ErrInvalidInput)
	}
	return nil
}

// MatchRules.MatchRounds caps how many times two teams meet in a season.
// With HomeTeamRule set a match is played at the home team's stadium.
type MatchRules struct {
	MatchRounds  int  `json:"matchRounds"`
	HomeTeamRule bool `json:"homeTeamRule"`
}

func (r MatchRules) Validate() error {
	if r.MatchRounds < 1 {
		return fmt.Errorf("%w: matchRounds must be at least 1", ErrInvalidInput)
	}
	return nil
}

type GoalType string

const (
	GoalNormal  GoalType = "normal"
	GoalPenalty GoalType = "penalty"
	GoalOwn     GoalType = "ownGoal"
)

type TimeLimit struct {
	MinMinute int `json:"minMinute"`
	MaxMinute int `json:"maxMinute"`
}

type GoalRules struct {
	GoalTypes     []GoalType `json:"goalTypes"`
	GoalTimeLimit TimeLimit  `json:"goalTimeLimit"`
}

func (r GoalRules) Validate() error {
	if len(r.GoalTypes) == 0 {
		return fmt.Errorf("%w: goalTypes must not be empty", ErrInvalidInput)
	}
	for _, gt := range r.GoalTypes {
		switch gt {
		case GoalNormal, GoalPenalty, GoalOwn:
		default:
			return fmt.Errorf("%w: unknown goal type %q", ErrInvalidInput, gt)
		}
	}
	if r.GoalTimeLimit.MinMinute < 0 || r.GoalTimeLimit.MinMinute > r.GoalTimeLimit.MaxMinute {
		return fmt.Errorf("%w: goal time window %d-%d", ErrInvalidInput, r.GoalTimeLimit.MinMinute, r.GoalTimeLimit.MaxMinute)
	}
	return nil
}

func (r GoalRules) Allows(gt GoalType) bool {
	for _, allowed := range r.GoalTypes {
		if allowed == gt {
			return true
		}
	}
	return false
}

// Criterion is one key of the team ranking comparator.
type Criterion string

const (
	CriterionPoints          Criterion = "points"
	CriterionGoalsDifference Criterion = "goalsDifference"
	CriterionHeadToHead      Criterion = "headToHeadPoints"
	CriterionGoalsForAway    Criterion = "goalsForAway"
)

type RankingRules struct {
	WinPoints       int         `json:"winPoints"`
	DrawPoints      int         `json:"drawPoints"`
	LosePoints      int         `json:"losePoints"`
	RankingCriteria []Criterion `json:"rankingCriteria"`
}

func (r RankingRules) Validate() error {
	if !(r.WinPoints > r.DrawPoints && r.DrawPoints > r.LosePoints) {
		return fmt.Errorf("%w: points must satisfy win > draw > lose (%d/%d/%d)",
			ErrInvalidInput, r.WinPoints, r.DrawPoints, r.LosePoints)
	}
	if len(r.RankingCriteria) == 0 {
		return fmt.Errorf("%w: rankingCriteria must not be empty", ErrInvalidInput)
	}
	seen := make(map[Criterion]bool, len(r.RankingCriteria))
	for _, c := range r.RankingCriteria {
		switch c {
		case CriterionPoints, CriterionGoalsDifference, CriterionHeadToHead, CriterionGoalsForAway:
		default:
			return fmt.Errorf("%w: unknown ranking criterion %q", ErrInvalidInput, c)
		}
		if seen[c] {
			return fmt.Errorf("%w: duplicate ranking criterion %q", ErrInvalidInput, c)
		}
		seen[c] = true
	}
	return nil
}

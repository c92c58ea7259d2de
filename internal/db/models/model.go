package models

import (
	"time"

	"gorm.io/datatypes"

	"leagueserver/internal/standings"
)

type Season struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"size:100;not null;uniqueIndex" json:"name"`
	StartDate time.Time `gorm:"not null" json:"startDate"`
	EndDate   time.Time `gorm:"not null" json:"endDate"`
	Active    bool      `gorm:"default:false" json:"active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// Regulation holds one named rule set of a season; Rules is the JSON payload
// of the matching standings.*Rules type.
type Regulation struct {
	ID        uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	SeasonID  uint           `gorm:"not null;uniqueIndex:idx_regulation_season_name" json:"seasonId"`
	Season    Season         `gorm:"foreignKey:SeasonID;constraint:OnDelete:CASCADE" json:"-"`
	Name      string         `gorm:"size:50;not null;uniqueIndex:idx_regulation_season_name" json:"name"`
	Rules     datatypes.JSON `gorm:"not null" json:"rules"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updatedAt"`
}

type Team struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	SeasonID  uint      `gorm:"not null;uniqueIndex:idx_team_season_name" json:"seasonId"`
	Season    Season    `gorm:"foreignKey:SeasonID;constraint:OnDelete:CASCADE" json:"-"`
	Name      string    `gorm:"size:100;not null;uniqueIndex:idx_team_season_name" json:"name"`
	Stadium   string    `gorm:"size:100" json:"stadium"`
	Coach     string    `gorm:"size:100" json:"coach"`
	Logo      string    `gorm:"size:255" json:"logo"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

type Player struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	TeamID      uint      `gorm:"not null;uniqueIndex:idx_player_team_number" json:"teamId"`
	Team        Team      `gorm:"foreignKey:TeamID;constraint:OnDelete:CASCADE" json:"-"`
	Name        string    `gorm:"size:100;not null" json:"name"`
	Number      int       `gorm:"not null;uniqueIndex:idx_player_team_number" json:"number"`
	DateOfBirth time.Time `gorm:"not null" json:"dateOfBirth"`
	Nationality string    `gorm:"size:100" json:"nationality"`
	Position    string    `gorm:"size:50" json:"position"`
	Foreign     bool      `gorm:"column:is_foreign;default:false" json:"isForeign"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// AgeOn returns the player's age in whole years on day.
func (p Player) AgeOn(day time.Time) int {
	age := day.Year() - p.DateOfBirth.Year()
	if day.Month() < p.DateOfBirth.Month() ||
		(day.Month() == p.DateOfBirth.Month() && day.Day() < p.DateOfBirth.Day()) {
		age--
	}
	return age
}

type Match struct {
	ID         uint                     `gorm:"primaryKey;autoIncrement" json:"id"`
	SeasonID   uint                     `gorm:"not null;index" json:"seasonId"`
	Season     Season                   `gorm:"foreignKey:SeasonID;constraint:OnDelete:CASCADE" json:"-"`
	HomeTeamID uint                     `gorm:"not null;index" json:"team1"`
	AwayTeamID uint                     `gorm:"not null;index" json:"team2"`
	Date       time.Time                `gorm:"not null;index" json:"date"`
	Stadium    string                   `gorm:"size:100" json:"stadium"`
	Score      *string                  `gorm:"size:10" json:"score"`
	HomeLineup datatypes.JSONSlice[uint] `json:"team1Lineup"`
	AwayLineup datatypes.JSONSlice[uint] `json:"team2Lineup"`
	Goals      []Goal                   `gorm:"constraint:OnDelete:CASCADE" json:"goalDetails"`
	Cards      []Card                   `gorm:"constraint:OnDelete:CASCADE" json:"cardDetails"`
	CreatedAt  time.Time                `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt  time.Time                `gorm:"autoUpdateTime" json:"updatedAt"`
}

type Goal struct {
	ID             uint               `gorm:"primaryKey;autoIncrement" json:"-"`
	MatchID        uint               `gorm:"not null;index" json:"-"`
	PlayerID       uint               `gorm:"not null" json:"playerId"`
	TeamID         uint               `gorm:"not null" json:"teamId"`
	Minute         int                `gorm:"not null" json:"minute"`
	Type           standings.GoalType `gorm:"size:20;not null" json:"goalType"`
	AssistPlayerID *uint              `json:"assistPlayerId,omitempty"`
}

type Card struct {
	ID       uint                `gorm:"primaryKey;autoIncrement" json:"-"`
	MatchID  uint                `gorm:"not null;index" json:"-"`
	PlayerID uint                `gorm:"not null" json:"playerId"`
	TeamID   uint                `gorm:"not null" json:"teamId"`
	Minute   int                 `gorm:"not null" json:"minute"`
	Color    standings.CardColor `gorm:"size:10;not null" json:"color"`
}

// TeamResult is one Team Result Ledger row: cumulative totals of a team up to
// and including Date.
type TeamResult struct {
	ID               uint                 `gorm:"primaryKey;autoIncrement" json:"id"`
	SeasonID         uint                 `gorm:"not null;uniqueIndex:idx_team_result_day" json:"seasonId"`
	TeamID           uint                 `gorm:"not null;uniqueIndex:idx_team_result_day" json:"teamId"`
	Date             time.Time            `gorm:"not null;uniqueIndex:idx_team_result_day" json:"date"`
	MatchesPlayed    int                  `gorm:"not null;default:0" json:"matchesPlayed"`
	Wins             int                  `gorm:"not null;default:0" json:"wins"`
	Draws            int                  `gorm:"not null;default:0" json:"draws"`
	Losses           int                  `gorm:"not null;default:0" json:"losses"`
	GoalsFor         int                  `gorm:"not null;default:0" json:"goalsFor"`
	GoalsAgainst     int                  `gorm:"not null;default:0" json:"goalsAgainst"`
	GoalsDifference  int                  `gorm:"not null;default:0" json:"goalsDifference"`
	Points           int                  `gorm:"not null;default:0" json:"points"`
	GoalsForAway     int                  `gorm:"not null;default:0" json:"goalsForAway"`
	HeadToHeadPoints standings.HeadToHead `gorm:"serializer:json" json:"headToHeadPoints"`
	CreatedAt        time.Time            `gorm:"autoCreateTime" json:"-"`
	UpdatedAt        time.Time            `gorm:"autoUpdateTime" json:"-"`
}

func (r TeamResult) Stats() standings.TeamStats {
	return standings.TeamStats{
		MatchesPlayed:   r.MatchesPlayed,
		Wins:            r.Wins,
		Draws:           r.Draws,
		Losses:          r.Losses,
		GoalsFor:        r.GoalsFor,
		GoalsAgainst:    r.GoalsAgainst,
		GoalsDifference: r.GoalsDifference,
		Points:          r.Points,
		GoalsForAway:    r.GoalsForAway,
		HeadToHead:      r.HeadToHeadPoints.Clone(),
	}
}

func NewTeamResult(seasonID, teamID uint, date time.Time, s standings.TeamStats) TeamResult {
	h2h := s.HeadToHead.Clone()
	return TeamResult{
		SeasonID:         seasonID,
		TeamID:           teamID,
		Date:             standings.Day(date),
		MatchesPlayed:    s.MatchesPlayed,
		Wins:             s.Wins,
		Draws:            s.Draws,
		Losses:           s.Losses,
		GoalsFor:         s.GoalsFor,
		GoalsAgainst:     s.GoalsAgainst,
		GoalsDifference:  s.GoalsDifference,
		Points:           s.Points,
		GoalsForAway:     s.GoalsForAway,
		HeadToHeadPoints: h2h,
	}
}

// PlayerResult is one Player Result Ledger row.
type PlayerResult struct {
	ID            uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	SeasonID      uint      `gorm:"not null;uniqueIndex:idx_player_result_day" json:"seasonId"`
	PlayerID      uint      `gorm:"not null;uniqueIndex:idx_player_result_day" json:"playerId"`
	TeamID        uint      `gorm:"not null;index" json:"teamId"`
	Date          time.Time `gorm:"not null;uniqueIndex:idx_player_result_day" json:"date"`
	MatchesPlayed int       `gorm:"not null;default:0" json:"matchesPlayed"`
	TotalGoals    int       `gorm:"not null;default:0" json:"totalGoals"`
	Assists       int       `gorm:"not null;default:0" json:"assists"`
	YellowCards   int       `gorm:"not null;default:0" json:"yellowCards"`
	RedCards      int       `gorm:"not null;default:0" json:"redCards"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"-"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"-"`
}

func (r PlayerResult) Stats() standings.PlayerStats {
	return standings.PlayerStats{
		MatchesPlayed: r.MatchesPlayed,
		Goals:         r.TotalGoals,
		Assists:       r.Assists,
		YellowCards:   r.YellowCards,
		RedCards:      r.RedCards,
	}
}

func NewPlayerResult(seasonID, playerID, teamID uint, date time.Time, s standings.PlayerStats) PlayerResult {
	return PlayerResult{
		SeasonID:      seasonID,
		PlayerID:      playerID,
		TeamID:        teamID,
		Date:          standings.Day(date),
		MatchesPlayed: s.MatchesPlayed,
		TotalGoals:    s.Goals,
		Assists:       s.Assists,
		YellowCards:   s.YellowCards,
		RedCards:      s.RedCards,
	}
}

// TeamRanking is the rank of a team on Date, computed from the ledger row
// TeamResultID (dated on or before Date). Rank 0 means not yet ranked.
type TeamRanking struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	SeasonID     uint      `gorm:"not null;uniqueIndex:idx_team_ranking_day" json:"seasonId"`
	TeamID       uint      `gorm:"not null;uniqueIndex:idx_team_ranking_day" json:"teamId"`
	Date         time.Time `gorm:"not null;uniqueIndex:idx_team_ranking_day" json:"date"`
	TeamResultID uint      `gorm:"not null;index" json:"teamResultId"`
	Rank         int       `gorm:"not null;default:0" json:"rank"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"-"`
}

type PlayerRanking struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	SeasonID       uint      `gorm:"not null;uniqueIndex:idx_player_ranking_day" json:"seasonId"`
	PlayerID       uint      `gorm:"not null;uniqueIndex:idx_player_ranking_day" json:"playerId"`
	Date           time.Time `gorm:"not null;uniqueIndex:idx_player_ranking_day" json:"date"`
	PlayerResultID uint      `gorm:"not null;index" json:"playerResultId"`
	Rank           int       `gorm:"not null;default:0" json:"rank"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"-"`
}

// RecordLog is an audit trail of mutations that touched the ledger.
type RecordLog struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	SeasonID  uint      `gorm:"index"`
	Entity    string    `gorm:"size:100;not null"`
	Action    string    `gorm:"size:100;not null"`
	RecordID  uint      `gorm:"not null"`
	Detail    string    `gorm:"size:255"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func All() []interface{} {
	return []interface{}{
		&Season{}, &Regulation{}, &Team{}, &Player{},
		&Match{}, &Goal{}, &Card{},
		&TeamResult{}, &PlayerResult{}, &TeamRanking{}, &PlayerRanking{},
		&RecordLog{},
	}
}

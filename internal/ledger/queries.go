package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"leagueserver/internal/db"
	"leagueserver/internal/db/models"
	"leagueserver/internal/standings"
)

type TeamStanding struct {
	Rank   int               `json:"rank"`
	Team   models.Team       `json:"team"`
	Result models.TeamResult `json:"result"`
}

type PlayerStanding struct {
	Rank   int                 `json:"rank"`
	Player models.Player       `json:"player"`
	Result models.PlayerResult `json:"result"`
}

// TeamStandings returns the table of the season as of date: the ledger row
// in force for every team with the rank stored for that row. Teams that
// were never ranked get rank 0 and sort last.
func (l *Ledger) TeamStandings(ctx context.Context, seasonID uint, date time.Time) ([]TeamStanding, error) {
	conn := db.Conn(ctx, l.db)
	if _, err := l.season(conn, seasonID); err != nil {
		return nil, err
	}
	day := standings.Day(date)

	rows, err := latestTeamRows(conn, seasonID, day)
	if err != nil {
		return nil, err
	}
	ranks, err := rankingsAsOf(conn, seasonID, day, func(r models.TeamRanking) (uint, int) { return r.TeamID, r.Rank })
	if err != nil {
		return nil, err
	}
	var teams []models.Team
	if err := conn.Where("season_id = ?", seasonID).Find(&teams).Error; err != nil {
		return nil, fmt.Errorf("loading teams of season %d: %w", seasonID, err)
	}
	byID := make(map[uint]models.Team, len(teams))
	for _, t := range teams {
		byID[t.ID] = t
	}

	out := make([]TeamStanding, 0, len(rows))
	for _, r := range rows {
		out = append(out, TeamStanding{Rank: ranks[r.TeamID], Team: byID[r.TeamID], Result: r})
	}
	sort.Slice(out, func(i, j int) bool {
		return byRank(out[i].Rank, out[j].Rank, out[i].Team.ID, out[j].Team.ID)
	})
	return out, nil
}

// PlayerStandings returns the season's top scorers as of date.
func (l *Ledger) PlayerStandings(ctx context.Context, seasonID uint, date time.Time) ([]PlayerStanding, error) {
	conn := db.Conn(ctx, l.db)
	if _, err := l.season(conn, seasonID); err != nil {
		return nil, err
	}
	day := standings.Day(date)

	rows, err := latestPlayerRows(conn, seasonID, day)
	if err != nil {
		return nil, err
	}
	ranks, err := rankingsAsOf(conn, seasonID, day, func(r models.PlayerRanking) (uint, int) { return r.PlayerID, r.Rank })
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.PlayerID)
	}
	var players []models.Player
	if len(ids) > 0 {
		if err := conn.Where("id IN ?", ids).Find(&players).Error; err != nil {
			return nil, fmt.Errorf("loading players of season %d: %w", seasonID, err)
		}
	}
	byID := make(map[uint]models.Player, len(players))
	for _, p := range players {
		byID[p.ID] = p
	}

	out := make([]PlayerStanding, 0, len(rows))
	for _, r := range rows {
		out = append(out, PlayerStanding{Rank: ranks[r.PlayerID], Player: byID[r.PlayerID], Result: r})
	}
	sort.Slice(out, func(i, j int) bool {
		return byRank(out[i].Rank, out[j].Rank, out[i].Player.ID, out[j].Player.ID)
	})
	return out, nil
}

// TeamHistory returns every materialized ledger row of a team, oldest first.
func (l *Ledger) TeamHistory(ctx context.Context, teamID uint) ([]models.TeamResult, error) {
	conn := db.Conn(ctx, l.db)
	var team models.Team
	if err := conn.First(&team, teamID).Error; err != nil {
		return nil, db.Translate(err, fmt.Sprintf("team %d", teamID))
	}
	var rows []models.TeamResult
	if err := conn.Where("team_id = ?", teamID).Order("date").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("loading history of team %d: %w", teamID, err)
	}
	return rows, nil
}

// rankingsAsOf reads the ranking stored on the latest ranked day on or
// before day, keyed by entity id.
func rankingsAsOf[T any](conn *gorm.DB, seasonID uint, day time.Time, rankOf func(T) (uint, int)) (map[uint]int, error) {
	var latest []time.Time
	err := conn.Model(new(T)).Where("season_id = ? AND date <= ?", seasonID, day).
		Order("date DESC").Limit(1).Pluck("date", &latest).Error
	if err != nil {
		return nil, fmt.Errorf("loading rankings of season %d: %w", seasonID, err)
	}
	ranks := make(map[uint]int)
	if len(latest) == 0 {
		return ranks, nil
	}

	var rows []T
	err = conn.Where("season_id = ? AND date = ?", seasonID, standings.Day(latest[0])).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("loading rankings of season %d: %w", seasonID, err)
	}
	for _, r := range rows {
		id, rank := rankOf(r)
		ranks[id] = rank
	}
	return ranks, nil
}

func byRank(a, b int, idA, idB uint) bool {
	switch {
	case a == b:
		return idA < idB
	case a == 0:
		return false
	case b == 0:
		return true
	}
	return a < b
}

package ledger

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"leagueserver/internal/db/models"
	"leagueserver/internal/standings"
)

func (l *Ledger) rankDates(conn *gorm.DB, season models.Season, rules standings.RankingRules, dates []time.Time, teams, players bool) error {
	for _, d := range dates {
		if teams {
			if err := rankTeamsOn(conn, season.ID, rules, d); err != nil {
				return err
			}
		}
		if players {
			if err := rankPlayersOn(conn, season.ID, d); err != nil {
				return err
			}
		}
	}
	return nil
}

// latestTeamRows resolves, for every team still in the season, the ledger row
// in force on day: the latest one dated on or before it.
func latestTeamRows(conn *gorm.DB, seasonID uint, day time.Time) ([]models.TeamResult, error) {
	var rows []models.TeamResult
	err := conn.Where("season_id = ? AND date <= ?", seasonID, day).
		Where("team_id IN (?)", conn.Model(&models.Team{}).Select("id").Where("season_id = ?", seasonID)).
		Order("team_id").Order("date DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("loading team ledger of season %d: %w", seasonID, err)
	}
	return firstPerKey(rows, func(r models.TeamResult) uint { return r.TeamID }), nil
}

func latestPlayerRows(conn *gorm.DB, seasonID uint, day time.Time) ([]models.PlayerResult, error) {
	var rows []models.PlayerResult
	err := conn.Where("season_id = ? AND date <= ?", seasonID, day).
		Where("player_id IN (?)", conn.Model(&models.Player{}).Select("players.id").
			Joins("JOIN teams ON teams.id = players.team_id").Where("teams.season_id = ?", seasonID)).
		Order("player_id").Order("date DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("loading player ledger of season %d: %w", seasonID, err)
	}
	return firstPerKey(rows, func(r models.PlayerResult) uint { return r.PlayerID }), nil
}

// firstPerKey keeps the first row of every run of equal keys.
func firstPerKey[T any](rows []T, key func(T) uint) []T {
	out := make([]T, 0, len(rows))
	seen := make(map[uint]bool, len(rows))
	for _, r := range rows {
		k := key(r)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, r)
	}
	return out
}

func rankTeamsOn(conn *gorm.DB, seasonID uint, rules standings.RankingRules, day time.Time) error {
	day = standings.Day(day)
	rows, err := latestTeamRows(conn, seasonID, day)
	if err != nil || len(rows) == 0 {
		return err
	}

	entries := make([]standings.TeamEntry, 0, len(rows))
	resultIDs := make(map[uint]uint, len(rows))
	for _, r := range rows {
		entries = append(entries, standings.TeamEntry{TeamID: r.TeamID, Stats: r.Stats()})
		resultIDs[r.TeamID] = r.ID
	}
	ranked, err := standings.RankTeams(entries, rules.RankingCriteria)
	if err != nil {
		return err
	}

	rankings := make([]models.TeamRanking, 0, len(ranked))
	for _, e := range ranked {
		rankings = append(rankings, models.TeamRanking{
			SeasonID:     seasonID,
			TeamID:       e.TeamID,
			Date:         day,
			TeamResultID: resultIDs[e.TeamID],
			Rank:         e.Rank,
		})
	}
	err = conn.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "season_id"}, {Name: "team_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"team_result_id", "rank", "updated_at"}),
	}).Create(&rankings).Error
	if err != nil {
		return fmt.Errorf("writing team ranking of season %d on %s: %w", seasonID, day.Format(time.DateOnly), err)
	}
	return nil
}

func rankPlayersOn(conn *gorm.DB, seasonID uint, day time.Time) error {
	day = standings.Day(day)
	rows, err := latestPlayerRows(conn, seasonID, day)
	if err != nil || len(rows) == 0 {
		return err
	}

	entries := make([]standings.PlayerEntry, 0, len(rows))
	resultIDs := make(map[uint]uint, len(rows))
	for _, r := range rows {
		entries = append(entries, standings.PlayerEntry{PlayerID: r.PlayerID, Stats: r.Stats()})
		resultIDs[r.PlayerID] = r.ID
	}
	ranked := standings.RankPlayers(entries)

	rankings := make([]models.PlayerRanking, 0, len(ranked))
	for _, e := range ranked {
		rankings = append(rankings, models.PlayerRanking{
			SeasonID:       seasonID,
			PlayerID:       e.PlayerID,
			Date:           day,
			PlayerResultID: resultIDs[e.PlayerID],
			Rank:           e.Rank,
		})
	}
	err = conn.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "season_id"}, {Name: "player_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"player_result_id", "rank", "updated_at"}),
	}).Create(&rankings).Error
	if err != nil {
		return fmt.Errorf("writing player ranking of season %d on %s: %w", seasonID, day.Format(time.DateOnly), err)
	}
	return nil
}

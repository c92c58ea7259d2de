package ledger

import (
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"leagueserver/internal/db/models"
	"leagueserver/internal/standings"
)

// scope describes one replay: which ledgers are rebuilt, for which teams,
// from which day on.
type scope struct {
	from     time.Time
	teamIDs  []uint
	excluded *uint
	teams    bool
	players  bool
}

func (sc scope) start(season models.Season) time.Time {
	start := standings.Day(season.StartDate)
	from := standings.Day(sc.from)
	if from.Before(start) {
		return start
	}
	return from
}

// replay discards the ledger rows inside the scope dated on or after its
// start day and re-derives them from the last surviving row. It returns the
// days whose rankings need recomputing.
func (l *Ledger) replay(conn *gorm.DB, season models.Season, rules standings.RankingRules, sc scope) ([]time.Time, error) {
	seasonStart := standings.Day(season.StartDate)
	from := sc.start(season)

	if sc.excluded != nil {
		if err := purgeTeam(conn, season.ID, *sc.excluded); err != nil {
			return nil, err
		}
	}

	fixtures, err := seasonFixtures(conn, season.ID, sc.excluded)
	if err != nil {
		return nil, err
	}
	teamIDs := sc.teamIDs
	if teamIDs == nil {
		if teamIDs, err = seasonTeamIDs(conn, season.ID); err != nil {
			return nil, err
		}
	}

	dates, err := ledgerDates(conn, season.ID, from)
	if err != nil {
		return nil, err
	}
	affected := newDaySet(dates...)
	for _, f := range fixtures {
		if d := standings.Day(f.Date); f.Scored() && !d.Before(from) {
			affected.add(d)
		}
	}

	pending := fixturesFrom(fixtures, from)
	if sc.teams {
		for _, teamID := range teamIDs {
			if err := replayTeam(conn, season.ID, seasonStart, from, teamID, pending, rules); err != nil {
				return nil, err
			}
		}
	}
	if sc.players {
		var players []models.Player
		if err := conn.Where("team_id IN ?", teamIDs).Order("id").Find(&players).Error; err != nil {
			return nil, fmt.Errorf("loading players of season %d: %w", season.ID, err)
		}
		for _, p := range players {
			if err := replayPlayer(conn, season.ID, seasonStart, from, p, pending); err != nil {
				return nil, err
			}
		}
	}
	return affected.sorted(), nil
}

func replayTeam(conn *gorm.DB, seasonID uint, seasonStart, from time.Time, teamID uint, fixtures []standings.Fixture, rules standings.RankingRules) error {
	err := conn.Where("season_id = ? AND team_id = ? AND date >= ?", seasonID, teamID, from).
		Delete(&models.TeamResult{}).Error
	if err != nil {
		return fmt.Errorf("clearing ledger of team %d: %w", teamID, err)
	}

	var prev []models.TeamResult
	err = conn.Where("season_id = ? AND team_id = ? AND date < ?", seasonID, teamID, from).
		Order("date DESC").Limit(1).Find(&prev).Error
	if err != nil {
		return fmt.Errorf("loading ledger of team %d: %w", teamID, err)
	}

	base := standings.TeamStats{HeadToHead: standings.HeadToHead{}}
	if len(prev) > 0 {
		base = prev[0].Stats()
	}
	snapshots := standings.ReplayTeam(base, teamID, fixtures, rules)

	rows := make([]models.TeamResult, 0, len(snapshots)+1)
	if len(prev) == 0 && (len(snapshots) == 0 || !snapshots[0].Date.Equal(seasonStart)) {
		rows = append(rows, models.NewTeamResult(seasonID, teamID, seasonStart, base))
	}
	for _, s := range snapshots {
		rows = append(rows, models.NewTeamResult(seasonID, teamID, s.Date, s.Stats))
	}
	if len(rows) == 0 {
		return nil
	}
	if err := conn.Create(&rows).Error; err != nil {
		return fmt.Errorf("writing ledger of team %d: %w", teamID, err)
	}
	return nil
}

func replayPlayer(conn *gorm.DB, seasonID uint, seasonStart, from time.Time, p models.Player, fixtures []standings.Fixture) error {
	err := conn.Where("season_id = ? AND player_id = ? AND date >= ?", seasonID, p.ID, from).
		Delete(&models.PlayerResult{}).Error
	if err != nil {
		return fmt.Errorf("clearing ledger of player %d: %w", p.ID, err)
	}

	var prev []models.PlayerResult
	err = conn.Where("season_id = ? AND player_id = ? AND date < ?", seasonID, p.ID, from).
		Order("date DESC").Limit(1).Find(&prev).Error
	if err != nil {
		return fmt.Errorf("loading ledger of player %d: %w", p.ID, err)
	}

	var base standings.PlayerStats
	if len(prev) > 0 {
		base = prev[0].Stats()
	}
	snapshots := standings.ReplayPlayer(base, p.ID, p.TeamID, fixtures)

	rows := make([]models.PlayerResult, 0, len(snapshots)+1)
	if len(prev) == 0 && (len(snapshots) == 0 || !snapshots[0].Date.Equal(seasonStart)) {
		rows = append(rows, models.NewPlayerResult(seasonID, p.ID, p.TeamID, seasonStart, base))
	}
	for _, s := range snapshots {
		rows = append(rows, models.NewPlayerResult(seasonID, p.ID, p.TeamID, s.Date, s.Stats))
	}
	if len(rows) == 0 {
		return nil
	}
	if err := conn.Create(&rows).Error; err != nil {
		return fmt.Errorf("writing ledger of player %d: %w", p.ID, err)
	}
	return nil
}

// purgeTeam drops every ledger and ranking row of a team leaving the season,
// together with the rows of its players.
func purgeTeam(conn *gorm.DB, seasonID, teamID uint) error {
	steps := []struct {
		model interface{}
		query string
	}{
		{&models.TeamRanking{}, "season_id = ? AND team_id = ?"},
		{&models.TeamResult{}, "season_id = ? AND team_id = ?"},
		{&models.PlayerRanking{}, "season_id = ? AND player_id IN (SELECT player_id FROM player_results WHERE team_id = ?)"},
		{&models.PlayerResult{}, "season_id = ? AND team_id = ?"},
	}
	for _, s := range steps {
		if err := conn.Where(s.query, seasonID, teamID).Delete(s.model).Error; err != nil {
			return fmt.Errorf("purging team %d: %w", teamID, err)
		}
	}
	return nil
}

func seasonTeamIDs(conn *gorm.DB, seasonID uint) ([]uint, error) {
	var ids []uint
	if err := conn.Model(&models.Team{}).Where("season_id = ?", seasonID).Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("loading teams of season %d: %w", seasonID, err)
	}
	return ids, nil
}

// seasonFixtures loads every match of the season except those of the
// excluded team.
func seasonFixtures(conn *gorm.DB, seasonID uint, excluded *uint) ([]standings.Fixture, error) {
	q := conn.Preload("Goals").Preload("Cards").Where("season_id = ?", seasonID)
	if excluded != nil {
		q = q.Where("home_team_id <> ? AND away_team_id <> ?", *excluded, *excluded)
	}
	var matches []models.Match
	if err := q.Order("id").Find(&matches).Error; err != nil {
		return nil, fmt.Errorf("loading matches of season %d: %w", seasonID, err)
	}

	fixtures := make([]standings.Fixture, 0, len(matches))
	for _, m := range matches {
		f, err := m.Fixture()
		if err != nil {
			return nil, fmt.Errorf("match %d: %w", m.ID, err)
		}
		fixtures = append(fixtures, f)
	}
	return fixtures, nil
}

func fixturesFrom(fixtures []standings.Fixture, from time.Time) []standings.Fixture {
	out := make([]standings.Fixture, 0, len(fixtures))
	for _, f := range fixtures {
		if !standings.Day(f.Date).Before(from) {
			out = append(out, f)
		}
	}
	return out
}

// ledgerDates returns the distinct days on or after from that carry a team
// or player ledger row in the season.
func ledgerDates(conn *gorm.DB, seasonID uint, from time.Time) ([]time.Time, error) {
	set := newDaySet()
	for _, model := range []interface{}{&models.TeamResult{}, &models.PlayerResult{}} {
		var dates []time.Time
		err := conn.Model(model).Where("season_id = ? AND date >= ?", seasonID, from).
			Distinct().Pluck("date", &dates).Error
		if err != nil {
			return nil, fmt.Errorf("loading ledger dates of season %d: %w", seasonID, err)
		}
		set.add(dates...)
	}
	return set.sorted(), nil
}

type daySet map[string]time.Time

func newDaySet(days ...time.Time) daySet {
	s := make(daySet)
	s.add(days...)
	return s
}

func (s daySet) add(days ...time.Time) {
	for _, d := range days {
		d = standings.Day(d)
		s[d.Format(time.DateOnly)] = d
	}
}

func (s daySet) sorted() []time.Time {
	out := make([]time.Time, 0, len(s))
	for _, d := range s {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// Package ledger persists the Team and Player Result Ledgers and their
// rankings, and rebuilds them when match history changes.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"leagueserver/internal/db"
	"leagueserver/internal/db/models"
	"leagueserver/internal/standings"
)

type Ledger struct {
	db *gorm.DB

	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

func New(gormDB *gorm.DB) *Ledger {
	return &Ledger{db: gormDB, locks: make(map[uint]*sync.Mutex)}
}

type seasonKey struct{}

func (l *Ledger) seasonLock(seasonID uint) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[seasonID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[seasonID] = m
	}
	return m
}

// WithSeason runs fn as the season's critical section: serialized with every
// other ledger write of the same season and inside one transaction whose
// context fn receives. Calls nested inside fn for the same season reuse both.
func (l *Ledger) WithSeason(ctx context.Context, seasonID uint, fn func(ctx context.Context) error) error {
	if held, ok := ctx.Value(seasonKey{}).(uint); ok && held == seasonID {
		return fn(ctx)
	}

	m := l.seasonLock(seasonID)
	m.Lock()
	defer m.Unlock()

	ctx = context.WithValue(ctx, seasonKey{}, seasonID)
	return db.Transaction(ctx, l.db, func(ctx context.Context) error {
		var season models.Season
		err := db.Conn(ctx, l.db).Clauses(clause.Locking{Strength: "UPDATE"}).First(&season, seasonID).Error
		if err != nil {
			return db.Translate(err, fmt.Sprintf("season %d", seasonID))
		}
		return fn(ctx)
	})
}

func (l *Ledger) season(conn *gorm.DB, seasonID uint) (models.Season, error) {
	var season models.Season
	err := conn.First(&season, seasonID).Error
	return season, db.Translate(err, fmt.Sprintf("season %d", seasonID))
}

func (l *Ledger) match(conn *gorm.DB, matchID uint) (models.Match, error) {
	var m models.Match
	err := conn.Preload("Goals").Preload("Cards").First(&m, matchID).Error
	return m, db.Translate(err, fmt.Sprintf("match %d", matchID))
}

// UpdateTeamResultsForMatch rewrites the ledger rows of both teams of the
// match from the match day forward and re-ranks every affected date. Calling
// it again with the match unchanged yields the same rows.
func (l *Ledger) UpdateTeamResultsForMatch(ctx context.Context, matchID uint) error {
	return l.updateForMatch(ctx, matchID, true, false)
}

// UpdatePlayerResultsForMatch does the same for the players of both teams.
func (l *Ledger) UpdatePlayerResultsForMatch(ctx context.Context, matchID uint) error {
	return l.updateForMatch(ctx, matchID, false, true)
}

func (l *Ledger) updateForMatch(ctx context.Context, matchID uint, teams, players bool) error {
	m, err := l.match(db.Conn(ctx, l.db), matchID)
	if err != nil {
		return err
	}
	return l.WithSeason(ctx, m.SeasonID, func(ctx context.Context) error {
		conn := db.Conn(ctx, l.db)
		m, err := l.match(conn, matchID)
		if err != nil {
			return err
		}
		season, err := l.season(conn, m.SeasonID)
		if err != nil {
			return err
		}
		rules, err := RankingRulesFor(conn, season.ID)
		if err != nil {
			return err
		}
		sc := scope{
			from:    m.Date,
			teamIDs: []uint{m.HomeTeamID, m.AwayTeamID},
			teams:   teams,
			players: players,
		}
		dates, err := l.replay(conn, season, rules, sc)
		if err != nil {
			return err
		}
		return l.rankDates(conn, season, rules, dates, teams, players)
	})
}

// UpdateRanking upserts the team and player rankings of the season on date.
func (l *Ledger) UpdateRanking(ctx context.Context, seasonID uint, date time.Time) error {
	return l.WithSeason(ctx, seasonID, func(ctx context.Context) error {
		conn := db.Conn(ctx, l.db)
		season, err := l.season(conn, seasonID)
		if err != nil {
			return err
		}
		rules, err := RankingRulesFor(conn, seasonID)
		if err != nil {
			return err
		}
		return l.rankDates(conn, season, rules, []time.Time{standings.Day(date)}, true, true)
	})
}

// RecalculateSeasonData discards and replays every ledger row of the season
// from its start date, dropping excludedTeamID (a team being removed) from
// the ledger and every ranking.
func (l *Ledger) RecalculateSeasonData(ctx context.Context, seasonID uint, excludedTeamID *uint) error {
	return l.recalculate(ctx, seasonID, time.Time{}, excludedTeamID)
}

// RecalculateFrom replays every team and player of the season from the day
// of from. Used when a match is edited, moved, cleared or deleted.
func (l *Ledger) RecalculateFrom(ctx context.Context, seasonID uint, from time.Time) error {
	return l.recalculate(ctx, seasonID, from, nil)
}

func (l *Ledger) recalculate(ctx context.Context, seasonID uint, from time.Time, excluded *uint) error {
	return l.WithSeason(ctx, seasonID, func(ctx context.Context) error {
		conn := db.Conn(ctx, l.db)
		season, err := l.season(conn, seasonID)
		if err != nil {
			return err
		}
		rules, err := RankingRulesFor(conn, seasonID)
		if err != nil {
			return err
		}
		sc := scope{from: from, excluded: excluded, teams: true, players: true}
		dates, err := l.replay(conn, season, rules, sc)
		if err != nil {
			return err
		}
		if err := l.rankDates(conn, season, rules, dates, true, true); err != nil {
			return err
		}
		log.Printf("Recalculated season %d from %s: %d dates replayed",
			seasonID, sc.start(season).Format("2006-01-02"), len(dates))
		return nil
	})
}

// SeedTeam writes the all-zero row a new team carries from the season start
// and, when the season already has Ranking Rules, re-ranks existing dates so
// the team shows up in them.
func (l *Ledger) SeedTeam(ctx context.Context, seasonID, teamID uint) error {
	return l.WithSeason(ctx, seasonID, func(ctx context.Context) error {
		conn := db.Conn(ctx, l.db)
		season, err := l.season(conn, seasonID)
		if err != nil {
			return err
		}
		var count int64
		if err := conn.Model(&models.TeamResult{}).Where("team_id = ?", teamID).Count(&count).Error; err != nil {
			return fmt.Errorf("checking ledger of team %d: %w", teamID, err)
		}
		if count > 0 {
			return fmt.Errorf("%w: team %d already has ledger rows", standings.ErrConflict, teamID)
		}
		seed := models.NewTeamResult(seasonID, teamID, season.StartDate, standings.TeamStats{})
		if err := conn.Create(&seed).Error; err != nil {
			return db.Translate(err, fmt.Sprintf("seed row of team %d", teamID))
		}
		return l.refreshRankings(conn, season)
	})
}

func (l *Ledger) SeedPlayer(ctx context.Context, seasonID, playerID, teamID uint) error {
	return l.WithSeason(ctx, seasonID, func(ctx context.Context) error {
		conn := db.Conn(ctx, l.db)
		season, err := l.season(conn, seasonID)
		if err != nil {
			return err
		}
		var count int64
		if err := conn.Model(&models.PlayerResult{}).Where("player_id = ?", playerID).Count(&count).Error; err != nil {
			return fmt.Errorf("checking ledger of player %d: %w", playerID, err)
		}
		if count > 0 {
			return fmt.Errorf("%w: player %d already has ledger rows", standings.ErrConflict, playerID)
		}
		seed := models.NewPlayerResult(seasonID, playerID, teamID, season.StartDate, standings.PlayerStats{})
		if err := conn.Create(&seed).Error; err != nil {
			return db.Translate(err, fmt.Sprintf("seed row of player %d", playerID))
		}
		return l.refreshRankings(conn, season)
	})
}

// PurgePlayer removes a deleted player's ledger and ranking rows.
func (l *Ledger) PurgePlayer(ctx context.Context, seasonID, playerID uint) error {
	return l.WithSeason(ctx, seasonID, func(ctx context.Context) error {
		conn := db.Conn(ctx, l.db)
		if err := conn.Where("player_id = ?", playerID).Delete(&models.PlayerRanking{}).Error; err != nil {
			return fmt.Errorf("purging rankings of player %d: %w", playerID, err)
		}
		if err := conn.Where("player_id = ?", playerID).Delete(&models.PlayerResult{}).Error; err != nil {
			return fmt.Errorf("purging ledger of player %d: %w", playerID, err)
		}
		season, err := l.season(conn, seasonID)
		if err != nil {
			return err
		}
		return l.refreshRankings(conn, season)
	})
}

// refreshRankings re-ranks every materialized date of the season. Without
// Ranking Rules there is nothing to rank yet; the first match result will
// fail loudly instead.
func (l *Ledger) refreshRankings(conn *gorm.DB, season models.Season) error {
	rules, err := RankingRulesFor(conn, season.ID)
	if errors.Is(err, standings.ErrPreconditionFailed) {
		return nil
	}
	if err != nil {
		return err
	}
	dates, err := ledgerDates(conn, season.ID, standings.Day(season.StartDate))
	if err != nil {
		return err
	}
	return l.rankDates(conn, season, rules, dates, true, true)
}

// RemoveTeam drops a team that left the season from the ledgers. With
// Ranking Rules in place this is the full cascade; without them no match
// was ever applied and dropping the team's seed rows is enough.
func (l *Ledger) RemoveTeam(ctx context.Context, seasonID, teamID uint) error {
	return l.WithSeason(ctx, seasonID, func(ctx context.Context) error {
		conn := db.Conn(ctx, l.db)
		_, err := RankingRulesFor(conn, seasonID)
		if errors.Is(err, standings.ErrPreconditionFailed) {
			return purgeTeam(conn, seasonID, teamID)
		}
		if err != nil {
			return err
		}
		return l.RecalculateSeasonData(ctx, seasonID, &teamID)
	})
}

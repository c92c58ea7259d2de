// Package league holds the services that own seasons, regulations, teams,
// players and matches, and trigger the ledger cascade when results change.
package league

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"leagueserver/internal/db"
	"leagueserver/internal/db/models"
	"leagueserver/internal/ledger"
)

// Match actions published after a committed mutation.
const (
	ActionFinalized = "finalized"
	ActionEdited    = "edited"
	ActionCleared   = "cleared"
	ActionDeleted   = "deleted"
)

type Publisher interface {
	PublishMatch(action string, m models.Match) error
	PublishStandings(seasonID uint, from time.Time) error
}

type Service struct {
	db     *gorm.DB
	ledger *ledger.Ledger
	events Publisher
}

func NewService(gormDB *gorm.DB, l *ledger.Ledger, events Publisher) *Service {
	return &Service{db: gormDB, ledger: l, events: events}
}

func (s *Service) Ledger() *ledger.Ledger {
	return s.ledger
}

func (s *Service) conn(ctx context.Context) *gorm.DB {
	return db.Conn(ctx, s.db)
}

// record appends an audit entry inside the caller's transaction.
func (s *Service) record(ctx context.Context, seasonID uint, entity, action string, id uint, detail string) error {
	entry := models.RecordLog{
		SeasonID: seasonID,
		Entity:   entity,
		Action:   action,
		RecordID: id,
		Detail:   detail,
	}
	if err := s.conn(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("recording %s %s %d: %w", entity, action, id, err)
	}
	return nil
}

// Publish failures never undo a committed change; they are only logged.
func (s *Service) publishMatch(action string, m models.Match) {
	if err := s.events.PublishMatch(action, m); err != nil {
		log.Printf("Error publishing match %s event for match %d: %v", action, m.ID, err)
	}
}

func (s *Service) publishStandings(seasonID uint, from time.Time) {
	if err := s.events.PublishStandings(seasonID, from); err != nil {
		log.Printf("Error publishing standings update for season %d: %v", seasonID, err)
	}
}

func (s *Service) RecordLogs(ctx context.Context, seasonID uint) ([]models.RecordLog, error) {
	var logs []models.RecordLog
	if err := s.conn(ctx).Where("season_id = ?", seasonID).Order("id").Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("loading record log of season %d: %w", seasonID, err)
	}
	return logs, nil
}

func notFound(err error, what string, id uint) error {
	return db.Translate(err, fmt.Sprintf("%s %d", what, id))
}

// RebuildSeason replays the whole season from its start date. It backs the
// administrative rebuild, whether run inline or as a workflow activity.
func (s *Service) RebuildSeason(ctx context.Context, seasonID uint) (models.Season, error) {
	season, err := s.GetSeason(ctx, seasonID)
	if err != nil {
		return models.Season{}, err
	}
	err = s.ledger.WithSeason(ctx, seasonID, func(ctx context.Context) error {
		if err := s.ledger.RecalculateSeasonData(ctx, seasonID, nil); err != nil {
			return err
		}
		return s.record(ctx, seasonID, "season", "rebuild", seasonID, "")
	})
	return season, err
}

// AnnounceStandings publishes a standings update for the season.
func (s *Service) AnnounceStandings(seasonID uint, from time.Time) {
	s.publishStandings(seasonID, from)
}

package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"leagueserver/config"
	"leagueserver/internal/db/models"
	"leagueserver/internal/standings"
)

const defaultSeasonStatusSpec = "0 5 0 * * *"

// SetupCron schedules the season status job and starts the cron service.
// Stop the returned cron on shutdown.
func SetupCron(cfg *config.SchedulerConfig, gormDB *gorm.DB) (*cron.Cron, error) {
	cronService := cron.New(cron.WithSeconds(), cron.WithLocation(time.UTC))

	spec := cfg.SeasonStatus
	if spec == "" {
		spec = defaultSeasonStatusSpec
	}
	_, err := cronService.AddFunc(spec, func() {
		// Flip seasons whose window opened or closed since the last run.
		n, err := UpdateSeasonStatus(context.Background(), gormDB, time.Now())
		if err != nil {
			log.Printf("Season status job failed: %v", err)
			return
		}
		log.Printf("Season status job updated %d seasons", n)
	})
	if err != nil {
		return nil, fmt.Errorf("scheduling season status job %q: %w", spec, err)
	}

	if _, err := UpdateSeasonStatus(context.Background(), gormDB, time.Now()); err != nil {
		log.Printf("Initial season status update failed: %v", err)
	}

	cronService.Start()
	return cronService, nil
}

// UpdateSeasonStatus marks seasons whose [start, end] window contains the
// day of now as active and every other season as inactive. It returns the
// number of seasons changed. Only the active flag is written and no ledger
// code reads it, so the per-season ledger lock is not taken.
func UpdateSeasonStatus(ctx context.Context, gormDB *gorm.DB, now time.Time) (int64, error) {
	today := standings.Day(now)
	var changed int64
	err := gormDB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Season{}).
			Where("active = ? AND start_date <= ? AND end_date >= ?", false, today, today).
			Update("active", true)
		if res.Error != nil {
			return res.Error
		}
		changed += res.RowsAffected

		res = tx.Model(&models.Season{}).
			Where("active = ? AND (start_date > ? OR end_date < ?)", true, today, today).
			Update("active", false)
		if res.Error != nil {
			return res.Error
		}
		changed += res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("updating season status: %w", err)
	}
	return changed, nil
}

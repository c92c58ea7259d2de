package league

import (
	"context"
	"fmt"
	"time"

	"leagueserver/internal/db"
	"leagueserver/internal/db/models"
	"leagueserver/internal/standings"
)

type SeasonInput struct {
	Name      string    `json:"name" validate:"required,max=100"`
	StartDate time.Time `json:"startDate" validate:"required"`
	EndDate   time.Time `json:"endDate" validate:"required,gtfield=StartDate"`
}

func (in SeasonInput) check() error {
	if in.Name == "" {
		return fmt.Errorf("%w: season name is required", standings.ErrInvalidInput)
	}
	if !standings.Day(in.StartDate).Before(standings.Day(in.EndDate)) {
		return fmt.Errorf("%w: season must start before it ends", standings.ErrInvalidInput)
	}
	return nil
}

func (s *Service) exists(ctx context.Context, model interface{}, query string, args ...interface{}) (bool, error) {
	var count int64
	if err := s.conn(ctx).Model(model).Where(query, args...).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Service) CreateSeason(ctx context.Context, in SeasonInput) (models.Season, error) {
	if err := in.check(); err != nil {
		return models.Season{}, err
	}
	taken, err := s.exists(ctx, &models.Season{}, "name = ?", in.Name)
	if err != nil {
		return models.Season{}, fmt.Errorf("checking season name: %w", err)
	}
	if taken {
		return models.Season{}, fmt.Errorf("%w: season %q already exists", standings.ErrConflict, in.Name)
	}

	season := models.Season{
		Name:      in.Name,
		StartDate: standings.Day(in.StartDate),
		EndDate:   standings.Day(in.EndDate),
	}
	today := standings.Day(time.Now())
	season.Active = !today.Before(season.StartDate) && !today.After(season.EndDate)
	if err := s.conn(ctx).Create(&season).Error; err != nil {
		return models.Season{}, db.Translate(err, fmt.Sprintf("season %q", in.Name))
	}
	return season, s.record(ctx, season.ID, "season", "create", season.ID, season.Name)
}

func (s *Service) GetSeason(ctx context.Context, id uint) (models.Season, error) {
	var season models.Season
	err := s.conn(ctx).First(&season, id).Error
	return season, notFound(err, "season", id)
}

func (s *Service) ListSeasons(ctx context.Context) ([]models.Season, error) {
	var seasons []models.Season
	if err := s.conn(ctx).Order("start_date").Find(&seasons).Error; err != nil {
		return nil, fmt.Errorf("listing seasons: %w", err)
	}
	return seasons, nil
}

// UpdateSeason renames a season or moves its window. The start date anchors
// every seed row, so it is frozen once teams exist; the window must keep
// covering every scheduled match.
func (s *Service) UpdateSeason(ctx context.Context, id uint, in SeasonInput) (models.Season, error) {
	if err := in.check(); err != nil {
		return models.Season{}, err
	}
	var season models.Season
	err := s.ledger.WithSeason(ctx, id, func(ctx context.Context) error {
		conn := s.conn(ctx)
		if err := conn.First(&season, id).Error; err != nil {
			return notFound(err, "season", id)
		}
		if in.Name != season.Name {
			taken, err := s.exists(ctx, &models.Season{}, "name = ? AND id <> ?", in.Name, id)
			if err != nil {
				return fmt.Errorf("checking season name: %w", err)
			}
			if taken {
				return fmt.Errorf("%w: season %q already exists", standings.ErrConflict, in.Name)
			}
		}

		start, end := standings.Day(in.StartDate), standings.Day(in.EndDate)
		if !start.Equal(standings.Day(season.StartDate)) {
			teams, err := s.exists(ctx, &models.Team{}, "season_id = ?", id)
			if err != nil {
				return fmt.Errorf("checking teams of season %d: %w", id, err)
			}
			if teams {
				return fmt.Errorf("%w: start date of season %d is fixed once teams are registered", standings.ErrConflict, id)
			}
		}
		var matches []models.Match
		if err := conn.Where("season_id = ?", id).Find(&matches).Error; err != nil {
			return fmt.Errorf("loading matches of season %d: %w", id, err)
		}
		for _, m := range matches {
			if d := standings.Day(m.Date); d.Before(start) || d.After(end) {
				return fmt.Errorf("%w: match %d on %s falls outside the new window", standings.ErrConflict, m.ID, d.Format(time.DateOnly))
			}
		}

		season.Name = in.Name
		season.StartDate = start
		season.EndDate = end
		if err := conn.Save(&season).Error; err != nil {
			return fmt.Errorf("saving season %d: %w", id, err)
		}
		return s.record(ctx, id, "season", "update", id, season.Name)
	})
	return season, err
}

// DeleteSeason removes the season and everything scoped to it in one
// transaction.
func (s *Service) DeleteSeason(ctx context.Context, id uint) error {
	return s.ledger.WithSeason(ctx, id, func(ctx context.Context) error {
		conn := s.conn(ctx)
		matchIDs := conn.Model(&models.Match{}).Select("id").Where("season_id = ?", id)
		teamIDs := conn.Model(&models.Team{}).Select("id").Where("season_id = ?", id)

		steps := []struct {
			model interface{}
			query string
			arg   interface{}
		}{
			{&models.TeamRanking{}, "season_id = ?", id},
			{&models.PlayerRanking{}, "season_id = ?", id},
			{&models.TeamResult{}, "season_id = ?", id},
			{&models.PlayerResult{}, "season_id = ?", id},
			{&models.Goal{}, "match_id IN (?)", matchIDs},
			{&models.Card{}, "match_id IN (?)", matchIDs},
			{&models.Match{}, "season_id = ?", id},
			{&models.Player{}, "team_id IN (?)", teamIDs},
			{&models.Team{}, "season_id = ?", id},
			{&models.Regulation{}, "season_id = ?", id},
		}
		for _, step := range steps {
			if err := conn.Where(step.query, step.arg).Delete(step.model).Error; err != nil {
				return fmt.Errorf("deleting season %d: %w", id, err)
			}
		}
		if err := conn.Delete(&models.Season{}, id).Error; err != nil {
			return fmt.Errorf("deleting season %d: %w", id, err)
		}
		return s.record(ctx, id, "season", "delete", id, "")
	})
}

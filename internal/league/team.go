package league

import (
	"context"
	"fmt"

	"leagueserver/internal/db"
	"leagueserver/internal/db/models"
	"leagueserver/internal/standings"
)

type TeamInput struct {
	Name    string `json:"name" validate:"required,max=100"`
	Stadium string `json:"stadium" validate:"max=100"`
	Coach   string `json:"coach" validate:"max=100"`
	Logo    string `json:"logo" validate:"omitempty,url,max=255"`
}

// CreateTeam registers a team in the season and seeds its ledger with an
// all-zero row on the season start.
func (s *Service) CreateTeam(ctx context.Context, seasonID uint, in TeamInput) (models.Team, error) {
	if in.Name == "" {
		return models.Team{}, fmt.Errorf("%w: team name is required", standings.ErrInvalidInput)
	}
	team := models.Team{SeasonID: seasonID, Name: in.Name, Stadium: in.Stadium, Coach: in.Coach, Logo: in.Logo}
	err := s.ledger.WithSeason(ctx, seasonID, func(ctx context.Context) error {
		taken, err := s.exists(ctx, &models.Team{}, "season_id = ? AND name = ?", seasonID, in.Name)
		if err != nil {
			return fmt.Errorf("checking team name: %w", err)
		}
		if taken {
			return fmt.Errorf("%w: team %q already plays in season %d", standings.ErrConflict, in.Name, seasonID)
		}
		if err := s.conn(ctx).Create(&team).Error; err != nil {
			return db.Translate(err, fmt.Sprintf("team %q", in.Name))
		}
		if err := s.ledger.SeedTeam(ctx, seasonID, team.ID); err != nil {
			return err
		}
		return s.record(ctx, seasonID, "team", "create", team.ID, team.Name)
	})
	if err != nil {
		return models.Team{}, err
	}
	return team, nil
}

func (s *Service) GetTeam(ctx context.Context, id uint) (models.Team, error) {
	var team models.Team
	err := s.conn(ctx).First(&team, id).Error
	return team, notFound(err, "team", id)
}

func (s *Service) ListTeams(ctx context.Context, seasonID uint) ([]models.Team, error) {
	if _, err := s.GetSeason(ctx, seasonID); err != nil {
		return nil, err
	}
	var teams []models.Team
	if err := s.conn(ctx).Where("season_id = ?", seasonID).Order("name").Find(&teams).Error; err != nil {
		return nil, fmt.Errorf("listing teams of season %d: %w", seasonID, err)
	}
	return teams, nil
}

func (s *Service) UpdateTeam(ctx context.Context, id uint, in TeamInput) (models.Team, error) {
	team, err := s.GetTeam(ctx, id)
	if err != nil {
		return models.Team{}, err
	}
	err = s.ledger.WithSeason(ctx, team.SeasonID, func(ctx context.Context) error {
		if in.Name != team.Name {
			taken, err := s.exists(ctx, &models.Team{}, "season_id = ? AND name = ? AND id <> ?", team.SeasonID, in.Name, id)
			if err != nil {
				return fmt.Errorf("checking team name: %w", err)
			}
			if taken {
				return fmt.Errorf("%w: team %q already plays in season %d", standings.ErrConflict, in.Name, team.SeasonID)
			}
		}
		team.Name, team.Stadium, team.Coach, team.Logo = in.Name, in.Stadium, in.Coach, in.Logo
		if err := s.conn(ctx).Save(&team).Error; err != nil {
			return fmt.Errorf("saving team %d: %w", id, err)
		}
		return s.record(ctx, team.SeasonID, "team", "update", id, team.Name)
	})
	return team, err
}

// DeleteTeam removes a team from its season together with its players and
// every match it played, then rebuilds the season without it.
func (s *Service) DeleteTeam(ctx context.Context, id uint) error {
	team, err := s.GetTeam(ctx, id)
	if err != nil {
		return err
	}
	err = s.ledger.WithSeason(ctx, team.SeasonID, func(ctx context.Context) error {
		conn := s.conn(ctx)
		matchIDs := conn.Model(&models.Match{}).Select("id").
			Where("home_team_id = ? OR away_team_id = ?", id, id)

		if err := conn.Where("match_id IN (?)", matchIDs).Delete(&models.Goal{}).Error; err != nil {
			return fmt.Errorf("deleting goals of team %d: %w", id, err)
		}
		if err := conn.Where("match_id IN (?)", matchIDs).Delete(&models.Card{}).Error; err != nil {
			return fmt.Errorf("deleting cards of team %d: %w", id, err)
		}
		if err := conn.Where("home_team_id = ? OR away_team_id = ?", id, id).Delete(&models.Match{}).Error; err != nil {
			return fmt.Errorf("deleting matches of team %d: %w", id, err)
		}
		if err := conn.Where("team_id = ?", id).Delete(&models.Player{}).Error; err != nil {
			return fmt.Errorf("deleting players of team %d: %w", id, err)
		}
		if err := conn.Delete(&models.Team{}, id).Error; err != nil {
			return fmt.Errorf("deleting team %d: %w", id, err)
		}
		if err := s.ledger.RemoveTeam(ctx, team.SeasonID, id); err != nil {
			return err
		}
		return s.record(ctx, team.SeasonID, "team", "delete", id, team.Name)
	})
	if err != nil {
		return err
	}
	season, err := s.GetSeason(ctx, team.SeasonID)
	if err == nil {
		s.publishStandings(team.SeasonID, season.StartDate)
	}
	return nil
}

package league

import (
	"context"
	"fmt"
	"time"

	"leagueserver/internal/db"
	"leagueserver/internal/db/models"
	"leagueserver/internal/standings"
)

type PlayerInput struct {
	Name        string    `json:"name" validate:"required,max=100"`
	Number      int       `json:"number" validate:"min=1,max=99"`
	DateOfBirth time.Time `json:"dateOfBirth" validate:"required"`
	Nationality string    `json:"nationality" validate:"max=100"`
	Position    string    `json:"position" validate:"max=50"`
	Foreign     bool      `json:"isForeign"`
}

// checkAgeRules enforces the season's Age Rules on a new player of team.
// A season without Age Rules accepts any player.
func (s *Service) checkAgeRules(ctx context.Context, season models.Season, teamID uint, p models.Player) error {
	var rules standings.AgeRules
	found, err := s.rules(ctx, season.ID, standings.RuleSetAge, &rules)
	if err != nil || !found {
		return err
	}

	age := p.AgeOn(standings.Day(season.StartDate))
	if age < rules.MinAge || age > rules.MaxAge {
		return fmt.Errorf("%w: player aged %d at season start, allowed %d-%d",
			standings.ErrInvalidInput, age, rules.MinAge, rules.MaxAge)
	}

	var roster, foreign int64
	conn := s.conn(ctx)
	if err := conn.Model(&models.Player{}).Where("team_id = ?", teamID).Count(&roster).Error; err != nil {
		return fmt.Errorf("counting roster of team %d: %w", teamID, err)
	}
	if rules.MaxPlayersPerTeam > 0 && int(roster) >= rules.MaxPlayersPerTeam {
		return fmt.Errorf("%w: team %d already has %d players", standings.ErrConflict, teamID, roster)
	}
	if p.Foreign {
		if err := conn.Model(&models.Player{}).Where("team_id = ? AND is_foreign = ?", teamID, true).Count(&foreign).Error; err != nil {
			return fmt.Errorf("counting foreign players of team %d: %w", teamID, err)
		}
		if int(foreign) >= rules.MaxForeignPlayers {
			return fmt.Errorf("%w: team %d already has %d foreign players", standings.ErrConflict, teamID, foreign)
		}
	}
	return nil
}

// CreatePlayer adds a player to a team's roster and seeds the player's
// ledger on the season start.
func (s *Service) CreatePlayer(ctx context.Context, teamID uint, in PlayerInput) (models.Player, error) {
	if in.Name == "" || in.Number < 1 {
		return models.Player{}, fmt.Errorf("%w: player needs a name and a shirt number", standings.ErrInvalidInput)
	}
	team, err := s.GetTeam(ctx, teamID)
	if err != nil {
		return models.Player{}, err
	}
	player := models.Player{
		TeamID:      teamID,
		Name:        in.Name,
		Number:      in.Number,
		DateOfBirth: standings.Day(in.DateOfBirth),
		Nationality: in.Nationality,
		Position:    in.Position,
		Foreign:     in.Foreign,
	}

	err = s.ledger.WithSeason(ctx, team.SeasonID, func(ctx context.Context) error {
		season, err := s.GetSeason(ctx, team.SeasonID)
		if err != nil {
			return err
		}
		if err := s.checkAgeRules(ctx, season, teamID, player); err != nil {
			return err
		}
		taken, err := s.exists(ctx, &models.Player{}, "team_id = ? AND number = ?", teamID, in.Number)
		if err != nil {
			return fmt.Errorf("checking shirt number: %w", err)
		}
		if taken {
			return fmt.Errorf("%w: shirt number %d is taken in team %d", standings.ErrConflict, in.Number, teamID)
		}
		if err := s.conn(ctx).Create(&player).Error; err != nil {
			return db.Translate(err, fmt.Sprintf("player %q", in.Name))
		}
		if err := s.ledger.SeedPlayer(ctx, team.SeasonID, player.ID, teamID); err != nil {
			return err
		}
		return s.record(ctx, team.SeasonID, "player", "create", player.ID, player.Name)
	})
	if err != nil {
		return models.Player{}, err
	}
	return player, nil
}

func (s *Service) GetPlayer(ctx context.Context, id uint) (models.Player, error) {
	var player models.Player
	err := s.conn(ctx).First(&player, id).Error
	return player, notFound(err, "player", id)
}

func (s *Service) ListPlayers(ctx context.Context, teamID uint) ([]models.Player, error) {
	if _, err := s.GetTeam(ctx, teamID); err != nil {
		return nil, err
	}
	var players []models.Player
	if err := s.conn(ctx).Where("team_id = ?", teamID).Order("number").Find(&players).Error; err != nil {
		return nil, fmt.Errorf("listing players of team %d: %w", teamID, err)
	}
	return players, nil
}

// DeletePlayer removes a player that has no recorded goal or card; such a
// player would leave match results that no longer add up.
func (s *Service) DeletePlayer(ctx context.Context, id uint) error {
	player, err := s.GetPlayer(ctx, id)
	if err != nil {
		return err
	}
	team, err := s.GetTeam(ctx, player.TeamID)
	if err != nil {
		return err
	}
	return s.ledger.WithSeason(ctx, team.SeasonID, func(ctx context.Context) error {
		involved, err := s.exists(ctx, &models.Goal{}, "player_id = ? OR assist_player_id = ?", id, id)
		if err != nil {
			return fmt.Errorf("checking goals of player %d: %w", id, err)
		}
		if !involved {
			if involved, err = s.exists(ctx, &models.Card{}, "player_id = ?", id); err != nil {
				return fmt.Errorf("checking cards of player %d: %w", id, err)
			}
		}
		if involved {
			return fmt.Errorf("%w: player %d appears in match events", standings.ErrConflict, id)
		}
		if err := s.conn(ctx).Delete(&models.Player{}, id).Error; err != nil {
			return fmt.Errorf("deleting player %d: %w", id, err)
		}
		if err := s.ledger.PurgePlayer(ctx, team.SeasonID, id); err != nil {
			return err
		}
		return s.record(ctx, team.SeasonID, "player", "delete", id, player.Name)
	})
}

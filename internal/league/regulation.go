package league

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm/clause"

	"leagueserver/internal/db/models"
	"leagueserver/internal/ledger"
	"leagueserver/internal/standings"
)

type validator interface {
	Validate() error
}

// decodeRules parses raw into the typed rule set named rs, rejecting unknown
// fields, and validates it.
func decodeRules(rs standings.RuleSet, raw []byte) (validator, error) {
	var rules validator
	switch rs {
	case standings.RuleSetAge:
		rules = &standings.AgeRules{}
	case standings.RuleSetMatch:
		rules = &standings.MatchRules{}
	case standings.RuleSetGoal:
		rules = &standings.GoalRules{}
	case standings.RuleSetRanking:
		rules = &standings.RankingRules{}
	default:
		return nil, fmt.Errorf("%w: unknown regulation %q", standings.ErrInvalidInput, rs)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(rules); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", standings.ErrInvalidInput, rs, err)
	}
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	return rules, nil
}

// SetRegulation creates or replaces a rule set of the season. New Ranking
// Rules change the points behind every ledger row, so the whole season is
// replayed in the same transaction.
func (s *Service) SetRegulation(ctx context.Context, seasonID uint, name string, raw json.RawMessage) (models.Regulation, error) {
	rs, err := standings.ParseRuleSet(name)
	if err != nil {
		return models.Regulation{}, err
	}
	rules, err := decodeRules(rs, raw)
	if err != nil {
		return models.Regulation{}, err
	}
	payload, err := json.Marshal(rules)
	if err != nil {
		return models.Regulation{}, fmt.Errorf("encoding %s: %w", rs, err)
	}

	reg := models.Regulation{SeasonID: seasonID, Name: string(rs), Rules: datatypes.JSON(payload)}
	err = s.ledger.WithSeason(ctx, seasonID, func(ctx context.Context) error {
		conn := s.conn(ctx)
		err := conn.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "season_id"}, {Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"rules", "updated_at"}),
		}).Create(&reg).Error
		if err != nil {
			return fmt.Errorf("saving %s of season %d: %w", rs, seasonID, err)
		}
		var saved models.Regulation
		if err := conn.Where("season_id = ? AND name = ?", seasonID, reg.Name).First(&saved).Error; err != nil {
			return notFound(err, string(rs)+" of season", seasonID)
		}
		reg = saved
		if err := s.record(ctx, seasonID, "regulation", "set", reg.ID, reg.Name); err != nil {
			return err
		}
		if rs == standings.RuleSetRanking {
			return s.ledger.RecalculateSeasonData(ctx, seasonID, nil)
		}
		return nil
	})
	if err != nil {
		return models.Regulation{}, err
	}
	if rs == standings.RuleSetRanking {
		season, err := s.GetSeason(ctx, seasonID)
		if err == nil {
			s.publishStandings(seasonID, season.StartDate)
		}
	}
	return reg, nil
}

func (s *Service) GetRegulation(ctx context.Context, seasonID uint, name string) (models.Regulation, error) {
	rs, err := standings.ParseRuleSet(name)
	if err != nil {
		return models.Regulation{}, err
	}
	var reg models.Regulation
	err = s.conn(ctx).Where("season_id = ? AND name = ?", seasonID, string(rs)).First(&reg).Error
	return reg, notFound(err, string(rs)+" of season", seasonID)
}

// rules loads an optional rule set; found is false when the season has none.
func (s *Service) rules(ctx context.Context, seasonID uint, rs standings.RuleSet, out interface{}) (bool, error) {
	return ledger.LoadRegulation(s.conn(ctx), seasonID, rs, out)
}

// requireRules loads a rule set the operation cannot do without.
func (s *Service) requireRules(ctx context.Context, seasonID uint, rs standings.RuleSet, out interface{}) error {
	found, err := s.rules(ctx, seasonID, rs, out)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: season %d has no %s", standings.ErrPreconditionFailed, seasonID, rs)
	}
	return nil
}

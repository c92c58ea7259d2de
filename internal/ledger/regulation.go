package ledger

import (
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"leagueserver/internal/db/models"
	"leagueserver/internal/standings"
)

// LoadRegulation decodes the season's rule set named rs into out. It reports
// false when the season has no such regulation.
func LoadRegulation(conn *gorm.DB, seasonID uint, rs standings.RuleSet, out interface{}) (bool, error) {
	var reg models.Regulation
	err := conn.Where("season_id = ? AND name = ?", seasonID, string(rs)).First(&reg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("loading %s of season %d: %w", rs, seasonID, err)
	}
	if err := json.Unmarshal(reg.Rules, out); err != nil {
		return false, fmt.Errorf("%w: stored %s of season %d: %v", standings.ErrInvalidInput, rs, seasonID, err)
	}
	return true, nil
}

// RankingRulesFor loads and validates the season's Ranking Rules. A season
// without them cannot be ranked.
func RankingRulesFor(conn *gorm.DB, seasonID uint) (standings.RankingRules, error) {
	var rules standings.RankingRules
	found, err := LoadRegulation(conn, seasonID, standings.RuleSetRanking, &rules)
	if err != nil {
		return rules, err
	}
	if !found {
		return rules, fmt.Errorf("%w: season %d has no %s", standings.ErrPreconditionFailed, seasonID, standings.RuleSetRanking)
	}
	if err := rules.Validate(); err != nil {
		return rules, err
	}
	return rules, nil
}

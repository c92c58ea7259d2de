package league

import (
	"context"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"leagueserver/internal/db"
	"leagueserver/internal/db/models"
	"leagueserver/internal/standings"
)

type MatchInput struct {
	HomeTeamID uint      `json:"team1" validate:"required"`
	AwayTeamID uint      `json:"team2" validate:"required,nefield=HomeTeamID"`
	Date       time.Time `json:"date" validate:"required"`
	Stadium    string    `json:"stadium" validate:"max=100"`
}

type ResultInput struct {
	Score      string        `json:"score" validate:"required"`
	Goals      []models.Goal `json:"goalDetails"`
	Cards      []models.Card `json:"cardDetails"`
	HomeLineup []uint        `json:"team1Lineup"`
	AwayLineup []uint        `json:"team2Lineup"`
}

type RescheduleInput struct {
	Date    time.Time `json:"date" validate:"required"`
	Stadium string    `json:"stadium" validate:"max=100"`
}

func (s *Service) loadMatch(ctx context.Context, id uint) (models.Match, error) {
	var m models.Match
	err := s.conn(ctx).Preload("Goals").Preload("Cards").First(&m, id).Error
	return m, notFound(err, "match", id)
}

func inWindow(season models.Season, date time.Time) bool {
	d := standings.Day(date)
	return !d.Before(standings.Day(season.StartDate)) && !d.After(standings.Day(season.EndDate))
}

// CreateMatch schedules an unscored match between two teams of the season.
// Match Rules, when present, cap the meetings of a pair and place the match
// at the home team's stadium.
func (s *Service) CreateMatch(ctx context.Context, seasonID uint, in MatchInput) (models.Match, error) {
	if in.HomeTeamID == in.AwayTeamID {
		return models.Match{}, fmt.Errorf("%w: a team cannot play itself", standings.ErrInvalidInput)
	}
	m := models.Match{
		SeasonID:   seasonID,
		HomeTeamID: in.HomeTeamID,
		AwayTeamID: in.AwayTeamID,
		Date:       in.Date.UTC(),
		Stadium:    in.Stadium,
	}
	err := s.ledger.WithSeason(ctx, seasonID, func(ctx context.Context) error {
		season, err := s.GetSeason(ctx, seasonID)
		if err != nil {
			return err
		}
		if !inWindow(season, in.Date) {
			return fmt.Errorf("%w: match date %s outside season %d", standings.ErrInvalidInput, in.Date.Format(time.DateOnly), seasonID)
		}
		home, err := s.GetTeam(ctx, in.HomeTeamID)
		if err != nil {
			return err
		}
		away, err := s.GetTeam(ctx, in.AwayTeamID)
		if err != nil {
			return err
		}
		if home.SeasonID != seasonID || away.SeasonID != seasonID {
			return fmt.Errorf("%w: both teams must play in season %d", standings.ErrInvalidInput, seasonID)
		}

		var rules standings.MatchRules
		found, err := s.rules(ctx, seasonID, standings.RuleSetMatch, &rules)
		if err != nil {
			return err
		}
		if found {
			var meetings int64
			err := s.conn(ctx).Model(&models.Match{}).
				Where("season_id = ? AND ((home_team_id = ? AND away_team_id = ?) OR (home_team_id = ? AND away_team_id = ?))",
					seasonID, home.ID, away.ID, away.ID, home.ID).
				Count(&meetings).Error
			if err != nil {
				return fmt.Errorf("counting meetings: %w", err)
			}
			if int(meetings) >= rules.MatchRounds {
				return fmt.Errorf("%w: teams %d and %d already met %d times", standings.ErrConflict, home.ID, away.ID, meetings)
			}
			if rules.HomeTeamRule && m.Stadium == "" {
				m.Stadium = home.Stadium
			}
		}

		if err := s.conn(ctx).Create(&m).Error; err != nil {
			return db.Translate(err, "match")
		}
		return s.record(ctx, seasonID, "match", "create", m.ID, fmt.Sprintf("%d vs %d", home.ID, away.ID))
	})
	if err != nil {
		return models.Match{}, err
	}
	return m, nil
}

func (s *Service) GetMatch(ctx context.Context, id uint) (models.Match, error) {
	return s.loadMatch(ctx, id)
}

func (s *Service) ListMatches(ctx context.Context, seasonID uint) ([]models.Match, error) {
	if _, err := s.GetSeason(ctx, seasonID); err != nil {
		return nil, err
	}
	var matches []models.Match
	err := s.conn(ctx).Preload("Goals").Preload("Cards").
		Where("season_id = ?", seasonID).Order("date").Order("id").Find(&matches).Error
	if err != nil {
		return nil, fmt.Errorf("listing matches of season %d: %w", seasonID, err)
	}
	return matches, nil
}

// rosters maps every player of the two teams to their team.
func (s *Service) rosters(ctx context.Context, m models.Match) (map[uint]uint, error) {
	var players []models.Player
	err := s.conn(ctx).Where("team_id IN ?", []uint{m.HomeTeamID, m.AwayTeamID}).Find(&players).Error
	if err != nil {
		return nil, fmt.Errorf("loading rosters of match %d: %w", m.ID, err)
	}
	out := make(map[uint]uint, len(players))
	for _, p := range players {
		out[p.ID] = p.TeamID
	}
	return out, nil
}

func (s *Service) replaceEvents(ctx context.Context, m *models.Match, goals []models.Goal, cards []models.Card) error {
	conn := s.conn(ctx)
	if err := conn.Where("match_id = ?", m.ID).Delete(&models.Goal{}).Error; err != nil {
		return fmt.Errorf("clearing goals of match %d: %w", m.ID, err)
	}
	if err := conn.Where("match_id = ?", m.ID).Delete(&models.Card{}).Error; err != nil {
		return fmt.Errorf("clearing cards of match %d: %w", m.ID, err)
	}
	m.Goals, m.Cards = nil, nil
	for _, g := range goals {
		g.ID, g.MatchID = 0, m.ID
		m.Goals = append(m.Goals, g)
	}
	for _, c := range cards {
		c.ID, c.MatchID = 0, m.ID
		m.Cards = append(m.Cards, c)
	}
	if len(m.Goals) > 0 {
		if err := conn.Create(&m.Goals).Error; err != nil {
			return fmt.Errorf("saving goals of match %d: %w", m.ID, err)
		}
	}
	if len(m.Cards) > 0 {
		if err := conn.Create(&m.Cards).Error; err != nil {
			return fmt.Errorf("saving cards of match %d: %w", m.ID, err)
		}
	}
	return nil
}

// SetResult records or corrects the result of a match. A first result is
// applied incrementally; a correction replays the season from the match day.
func (s *Service) SetResult(ctx context.Context, matchID uint, in ResultInput) (models.Match, error) {
	score, err := standings.ParseScore(in.Score)
	if err != nil {
		return models.Match{}, err
	}
	if score == nil {
		return models.Match{}, fmt.Errorf("%w: score is required", standings.ErrInvalidInput)
	}

	m, err := s.loadMatch(ctx, matchID)
	if err != nil {
		return models.Match{}, err
	}
	action := ActionFinalized
	err = s.ledger.WithSeason(ctx, m.SeasonID, func(ctx context.Context) error {
		m, err = s.loadMatch(ctx, matchID)
		if err != nil {
			return err
		}
		if m.Score != nil {
			action = ActionEdited
		}

		var goalRules standings.GoalRules
		if err := s.requireRules(ctx, m.SeasonID, standings.RuleSetGoal, &goalRules); err != nil {
			return err
		}
		rosters, err := s.rosters(ctx, m)
		if err != nil {
			return err
		}

		raw := score.String()
		m.Score = &raw
		m.HomeLineup = datatypes.JSONSlice[uint](in.HomeLineup)
		m.AwayLineup = datatypes.JSONSlice[uint](in.AwayLineup)
		m.Goals, m.Cards = in.Goals, in.Cards
		f, err := m.Fixture()
		if err != nil {
			return err
		}
		if err := standings.ValidateResult(f, goalRules, rosters); err != nil {
			return err
		}

		if err := s.replaceEvents(ctx, &m, in.Goals, in.Cards); err != nil {
			return err
		}
		err = s.conn(ctx).Model(&m).Select("score", "home_lineup", "away_lineup").Updates(&m).Error
		if err != nil {
			return fmt.Errorf("saving result of match %d: %w", matchID, err)
		}

		if action == ActionEdited {
			err = s.ledger.RecalculateFrom(ctx, m.SeasonID, m.Date)
		} else {
			err = s.applyResult(ctx, m.ID)
		}
		if err != nil {
			return err
		}
		return s.record(ctx, m.SeasonID, "match", "result", m.ID, raw)
	})
	if err != nil {
		return models.Match{}, err
	}
	s.publishMatch(action, m)
	s.publishStandings(m.SeasonID, standings.Day(m.Date))
	return m, nil
}

func (s *Service) applyResult(ctx context.Context, matchID uint) error {
	if err := s.ledger.UpdateTeamResultsForMatch(ctx, matchID); err != nil {
		return err
	}
	return s.ledger.UpdatePlayerResultsForMatch(ctx, matchID)
}

// ClearResult returns a match to unplayed and replays the season from its
// day.
func (s *Service) ClearResult(ctx context.Context, matchID uint) (models.Match, error) {
	m, err := s.loadMatch(ctx, matchID)
	if err != nil {
		return models.Match{}, err
	}
	err = s.ledger.WithSeason(ctx, m.SeasonID, func(ctx context.Context) error {
		m, err = s.loadMatch(ctx, matchID)
		if err != nil {
			return err
		}
		if m.Score == nil {
			return fmt.Errorf("%w: match %d has no result", standings.ErrConflict, matchID)
		}
		if err := s.replaceEvents(ctx, &m, nil, nil); err != nil {
			return err
		}
		m.Score, m.HomeLineup, m.AwayLineup = nil, nil, nil
		err := s.conn(ctx).Model(&m).Select("score", "home_lineup", "away_lineup").Updates(&m).Error
		if err != nil {
			return fmt.Errorf("clearing result of match %d: %w", matchID, err)
		}
		if err := s.ledger.RecalculateFrom(ctx, m.SeasonID, m.Date); err != nil {
			return err
		}
		return s.record(ctx, m.SeasonID, "match", "clear", m.ID, "")
	})
	if err != nil {
		return models.Match{}, err
	}
	s.publishMatch(ActionCleared, m)
	s.publishStandings(m.SeasonID, standings.Day(m.Date))
	return m, nil
}

// RescheduleMatch moves a match. A scored match moving across days replays
// the season from the earlier of the two days.
func (s *Service) RescheduleMatch(ctx context.Context, matchID uint, in RescheduleInput) (models.Match, error) {
	m, err := s.loadMatch(ctx, matchID)
	if err != nil {
		return models.Match{}, err
	}
	from := standings.Day(m.Date)
	err = s.ledger.WithSeason(ctx, m.SeasonID, func(ctx context.Context) error {
		m, err = s.loadMatch(ctx, matchID)
		if err != nil {
			return err
		}
		season, err := s.GetSeason(ctx, m.SeasonID)
		if err != nil {
			return err
		}
		if !inWindow(season, in.Date) {
			return fmt.Errorf("%w: match date %s outside season %d", standings.ErrInvalidInput, in.Date.Format(time.DateOnly), season.ID)
		}

		if d := standings.Day(in.Date); d.Before(from) {
			from = d
		}
		moved := !standings.Day(in.Date).Equal(standings.Day(m.Date))
		m.Date = in.Date.UTC()
		if in.Stadium != "" {
			m.Stadium = in.Stadium
		}
		if err := s.conn(ctx).Model(&m).Select("date", "stadium").Updates(&m).Error; err != nil {
			return fmt.Errorf("rescheduling match %d: %w", matchID, err)
		}
		if m.Score != nil && moved {
			if err := s.ledger.RecalculateFrom(ctx, m.SeasonID, from); err != nil {
				return err
			}
		}
		return s.record(ctx, m.SeasonID, "match", "reschedule", m.ID, m.Date.Format(time.RFC3339))
	})
	if err != nil {
		return models.Match{}, err
	}
	if m.Score != nil {
		s.publishMatch(ActionEdited, m)
		s.publishStandings(m.SeasonID, from)
	}
	return m, nil
}

// DeleteMatch removes a match; a scored one takes its contribution out of
// every ledger row from its day on.
func (s *Service) DeleteMatch(ctx context.Context, matchID uint) error {
	m, err := s.loadMatch(ctx, matchID)
	if err != nil {
		return err
	}
	err = s.ledger.WithSeason(ctx, m.SeasonID, func(ctx context.Context) error {
		m, err = s.loadMatch(ctx, matchID)
		if err != nil {
			return err
		}
		if err := s.replaceEvents(ctx, &m, nil, nil); err != nil {
			return err
		}
		if err := s.conn(ctx).Delete(&models.Match{}, matchID).Error; err != nil {
			return fmt.Errorf("deleting match %d: %w", matchID, err)
		}
		if m.Score != nil {
			if err := s.ledger.RecalculateFrom(ctx, m.SeasonID, m.Date); err != nil {
				return err
			}
		}
		return s.record(ctx, m.SeasonID, "match", "delete", matchID, "")
	})
	if err != nil {
		return err
	}
	s.publishMatch(ActionDeleted, m)
	if m.Score != nil {
		s.publishStandings(m.SeasonID, standings.Day(m.Date))
	}
	return nil
}

package league

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leagueserver/internal/db"
	"leagueserver/internal/db/models"
	"leagueserver/internal/ledger"
	"leagueserver/internal/standings"
)

type recordedEvent struct {
	action   string
	matchID  uint
	seasonID uint
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *recordingPublisher) PublishMatch(action string, m models.Match) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{action: action, matchID: m.ID, seasonID: m.SeasonID})
	return nil
}

func (p *recordingPublisher) PublishStandings(seasonID uint, from time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{action: "standings", seasonID: seasonID})
	return nil
}

func (p *recordingPublisher) actions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.action)
	}
	return out
}

type fixture struct {
	t       *testing.T
	ctx     context.Context
	svc     *Service
	events  *recordingPublisher
	season  models.Season
	home    models.Team
	away    models.Team
	scorer  models.Player
	keeper  models.Player
	striker models.Player
}

func date(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func kickoff(s string) time.Time {
	return date(s).Add(19 * time.Hour)
}

const (
	rankingRules = `{"winPoints":3,"drawPoints":1,"losePoints":0,"rankingCriteria":["points","goalsDifference"]}`
	goalRules    = `{"goalTypes":["normal","penalty","ownGoal"],"goalTimeLimit":{"minMinute":0,"maxMinute":90}}`
)

func newService(t *testing.T) (*Service, *recordingPublisher) {
	gormDB, err := db.OpenSQLite(filepath.Join(t.TempDir(), "league.db"))
	require.NoError(t, err)
	events := &recordingPublisher{}
	return NewService(gormDB, ledger.New(gormDB), events), events
}

// newFixture builds a season with Ranking and Goal Rules, two teams and a
// few players.
func newFixture(t *testing.T) *fixture {
	svc, events := newService(t)
	f := &fixture{t: t, ctx: context.Background(), svc: svc, events: events}

	var err error
	f.season, err = svc.CreateSeason(f.ctx, SeasonInput{Name: "2024/25", StartDate: date("2024-08-01"), EndDate: date("2025-05-31")})
	require.NoError(t, err)
	f.setRules(standings.RuleSetRanking, rankingRules)
	f.setRules(standings.RuleSetGoal, goalRules)

	f.home, err = svc.CreateTeam(f.ctx, f.season.ID, TeamInput{Name: "Harbour FC", Stadium: "Quayside"})
	require.NoError(t, err)
	f.away, err = svc.CreateTeam(f.ctx, f.season.ID, TeamInput{Name: "Upland Town", Stadium: "The Moor"})
	require.NoError(t, err)

	f.scorer = f.addPlayer(f.home.ID, "Scorer", 9)
	f.keeper = f.addPlayer(f.away.ID, "Keeper", 1)
	f.striker = f.addPlayer(f.away.ID, "Striker", 10)
	return f
}

func (f *fixture) setRules(rs standings.RuleSet, raw string) {
	_, err := f.svc.SetRegulation(f.ctx, f.season.ID, string(rs), json.RawMessage(raw))
	require.NoError(f.t, err)
}

func (f *fixture) addPlayer(teamID uint, name string, number int) models.Player {
	p, err := f.svc.CreatePlayer(f.ctx, teamID, PlayerInput{Name: name, Number: number, DateOfBirth: date("1998-03-14")})
	require.NoError(f.t, err)
	return p
}

func (f *fixture) addMatch(day string) models.Match {
	m, err := f.svc.CreateMatch(f.ctx, f.season.ID, MatchInput{HomeTeamID: f.home.ID, AwayTeamID: f.away.ID, Date: kickoff(day)})
	require.NoError(f.t, err)
	return m
}

func (f *fixture) table(day string) map[uint]ledger.TeamStanding {
	rows, err := f.svc.Ledger().TeamStandings(f.ctx, f.season.ID, date(day))
	require.NoError(f.t, err)
	out := make(map[uint]ledger.TeamStanding, len(rows))
	for _, r := range rows {
		out[r.Team.ID] = r
	}
	return out
}

func (f *fixture) homeWin() ResultInput {
	return ResultInput{
		Score: "2-1",
		Goals: []models.Goal{
			{PlayerID: f.scorer.ID, TeamID: f.home.ID, Minute: 10, Type: standings.GoalNormal},
			{PlayerID: f.scorer.ID, TeamID: f.home.ID, Minute: 55, Type: standings.GoalPenalty},
			{PlayerID: f.striker.ID, TeamID: f.away.ID, Minute: 80, Type: standings.GoalNormal},
		},
		Cards:      []models.Card{{PlayerID: f.keeper.ID, TeamID: f.away.ID, Minute: 33, Color: standings.CardYellow}},
		HomeLineup: []uint{f.scorer.ID},
		AwayLineup: []uint{f.keeper.ID, f.striker.ID},
	}
}

func TestSetResultUpdatesStandingsAndPublishes(t *testing.T) {
	f := newFixture(t)
	m := f.addMatch("2024-08-10")

	saved, err := f.svc.SetResult(f.ctx, m.ID, f.homeWin())
	require.NoError(t, err)
	assert.Equal(t, "2-1", *saved.Score)
	assert.Len(t, saved.Goals, 3)

	table := f.table("2024-08-10")
	assert.Equal(t, 1, table[f.home.ID].Rank)
	assert.Equal(t, 3, table[f.home.ID].Result.Points)
	assert.Equal(t, 2, table[f.away.ID].Rank)
	assert.Equal(t, 1, table[f.away.ID].Result.GoalsForAway)

	scorers, err := f.svc.Ledger().PlayerStandings(f.ctx, f.season.ID, date("2024-08-10"))
	require.NoError(t, err)
	require.NotEmpty(t, scorers)
	assert.Equal(t, f.scorer.ID, scorers[0].Player.ID)
	assert.Equal(t, 2, scorers[0].Result.TotalGoals)

	assert.Contains(t, f.events.actions(), ActionFinalized)
	assert.Contains(t, f.events.actions(), "standings")
}

func TestSetResultRejectsInconsistentEvents(t *testing.T) {
	f := newFixture(t)
	m := f.addMatch("2024-08-10")

	cases := map[string]func(in *ResultInput){
		"bad score":        func(in *ResultInput) { in.Score = "2:1" },
		"goal sum":         func(in *ResultInput) { in.Goals = in.Goals[:2] },
		"minute":           func(in *ResultInput) { in.Goals[0].Minute = 95 },
		"wrong team":       func(in *ResultInput) { in.Goals[0].TeamID = f.away.ID; in.Goals[2].TeamID = f.home.ID },
		"lineup outsider":  func(in *ResultInput) { in.HomeLineup = []uint{f.keeper.ID} },
		"own goal":         func(in *ResultInput) { in.Goals[0].Type = standings.GoalOwn },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := f.homeWin()
			mutate(&in)
			_, err := f.svc.SetResult(f.ctx, m.ID, in)
			assert.ErrorIs(t, err, standings.ErrInvalidInput)
		})
	}

	stored, err := f.svc.GetMatch(f.ctx, m.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.Score)
	assert.Empty(t, stored.Goals)
	assert.Zero(t, f.table("2024-08-10")[f.home.ID].Result.Points)
}

func TestSetResultNeedsGoalRules(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	season, err := svc.CreateSeason(ctx, SeasonInput{Name: "S", StartDate: date("2024-08-01"), EndDate: date("2025-05-31")})
	require.NoError(t, err)
	_, err = svc.SetRegulation(ctx, season.ID, string(standings.RuleSetRanking), json.RawMessage(rankingRules))
	require.NoError(t, err)
	a, err := svc.CreateTeam(ctx, season.ID, TeamInput{Name: "A"})
	require.NoError(t, err)
	b, err := svc.CreateTeam(ctx, season.ID, TeamInput{Name: "B"})
	require.NoError(t, err)
	m, err := svc.CreateMatch(ctx, season.ID, MatchInput{HomeTeamID: a.ID, AwayTeamID: b.ID, Date: kickoff("2024-08-10")})
	require.NoError(t, err)

	_, err = svc.SetResult(ctx, m.ID, ResultInput{Score: "0-0"})
	assert.ErrorIs(t, err, standings.ErrPreconditionFailed)
}

func TestEditAndClearResult(t *testing.T) {
	f := newFixture(t)
	m := f.addMatch("2024-08-10")
	_, err := f.svc.SetResult(f.ctx, m.ID, f.homeWin())
	require.NoError(t, err)

	draw := ResultInput{
		Score: "1-1",
		Goals: []models.Goal{
			{PlayerID: f.scorer.ID, TeamID: f.home.ID, Minute: 10, Type: standings.GoalNormal},
			{PlayerID: f.striker.ID, TeamID: f.away.ID, Minute: 80, Type: standings.GoalNormal},
		},
	}
	_, err = f.svc.SetResult(f.ctx, m.ID, draw)
	require.NoError(t, err)
	table := f.table("2024-08-10")
	assert.Equal(t, 1, table[f.home.ID].Result.Points)
	assert.Equal(t, 1, table[f.away.ID].Result.Points)
	assert.Contains(t, f.events.actions(), ActionEdited)

	_, err = f.svc.ClearResult(f.ctx, m.ID)
	require.NoError(t, err)
	table = f.table("2024-08-10")
	assert.Zero(t, table[f.home.ID].Result.MatchesPlayed)
	assert.Contains(t, f.events.actions(), ActionCleared)

	_, err = f.svc.ClearResult(f.ctx, m.ID)
	assert.ErrorIs(t, err, standings.ErrConflict)
}

func TestRescheduleAndDeleteMatch(t *testing.T) {
	f := newFixture(t)
	m := f.addMatch("2024-08-20")
	_, err := f.svc.SetResult(f.ctx, m.ID, f.homeWin())
	require.NoError(t, err)

	_, err = f.svc.RescheduleMatch(f.ctx, m.ID, RescheduleInput{Date: kickoff("2024-08-12")})
	require.NoError(t, err)
	assert.Equal(t, 3, f.table("2024-08-12")[f.home.ID].Result.Points)
	assert.Equal(t, 3, f.table("2024-08-25")[f.home.ID].Result.Points)

	history, err := f.svc.Ledger().TeamHistory(f.ctx, f.home.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "2024-08-12", standings.Day(history[1].Date).Format(time.DateOnly))

	_, err = f.svc.RescheduleMatch(f.ctx, m.ID, RescheduleInput{Date: kickoff("2026-01-01")})
	assert.ErrorIs(t, err, standings.ErrInvalidInput)

	require.NoError(t, f.svc.DeleteMatch(f.ctx, m.ID))
	assert.Zero(t, f.table("2024-08-25")[f.home.ID].Result.Points)
	_, err = f.svc.GetMatch(f.ctx, m.ID)
	assert.ErrorIs(t, err, standings.ErrNotFound)
}

func TestDeleteTeamRebuildsSeason(t *testing.T) {
	f := newFixture(t)
	third, err := f.svc.CreateTeam(f.ctx, f.season.ID, TeamInput{Name: "Valley Rovers"})
	require.NoError(t, err)

	m := f.addMatch("2024-08-10")
	_, err = f.svc.SetResult(f.ctx, m.ID, f.homeWin())
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteTeam(f.ctx, f.away.ID))

	table := f.table("2024-08-10")
	assert.Len(t, table, 2)
	assert.NotContains(t, table, f.away.ID)
	assert.Zero(t, table[f.home.ID].Result.Points, "the deleted team's match no longer counts")
	assert.Equal(t, 1, table[f.home.ID].Rank)
	assert.Equal(t, 2, table[third.ID].Rank)

	_, err = f.svc.GetPlayer(f.ctx, f.keeper.ID)
	assert.ErrorIs(t, err, standings.ErrNotFound)
}

func TestRankingRulesChangeReplaysSeason(t *testing.T) {
	f := newFixture(t)
	m := f.addMatch("2024-08-10")
	_, err := f.svc.SetResult(f.ctx, m.ID, f.homeWin())
	require.NoError(t, err)

	f.setRules(standings.RuleSetRanking, `{"winPoints":2,"drawPoints":1,"losePoints":0,"rankingCriteria":["points"]}`)
	assert.Equal(t, 2, f.table("2024-08-10")[f.home.ID].Result.Points)
}

func TestSetRegulationValidatesPayload(t *testing.T) {
	f := newFixture(t)
	bad := map[string]string{
		string(standings.RuleSetRanking): `{"winPoints":1,"drawPoints":1,"losePoints":0,"rankingCriteria":["points"]}`,
		string(standings.RuleSetAge):     `{"minAge":16,"maxAge":40,"shoeSize":9}`,
		string(standings.RuleSetGoal):    `{"goalTypes":["header"],"goalTimeLimit":{"minMinute":0,"maxMinute":90}}`,
		"Transfer Rules":                 `{}`,
	}
	for name, raw := range bad {
		_, err := f.svc.SetRegulation(f.ctx, f.season.ID, name, json.RawMessage(raw))
		assert.ErrorIs(t, err, standings.ErrInvalidInput, name)
	}

	reg, err := f.svc.GetRegulation(f.ctx, f.season.ID, string(standings.RuleSetRanking))
	require.NoError(t, err)
	assert.JSONEq(t, rankingRules, string(reg.Rules))
}

func TestAgeRulesGuardRoster(t *testing.T) {
	f := newFixture(t)
	f.setRules(standings.RuleSetAge, `{"minAge":16,"maxAge":40,"minPlayersPerTeam":1,"maxPlayersPerTeam":3,"maxForeignPlayers":1}`)

	_, err := f.svc.CreatePlayer(f.ctx, f.home.ID, PlayerInput{Name: "Kid", Number: 30, DateOfBirth: date("2012-01-01")})
	assert.ErrorIs(t, err, standings.ErrInvalidInput)

	_, err = f.svc.CreatePlayer(f.ctx, f.home.ID, PlayerInput{Name: "Twin", Number: f.scorer.Number, DateOfBirth: date("1999-01-01")})
	assert.ErrorIs(t, err, standings.ErrConflict)

	_, err = f.svc.CreatePlayer(f.ctx, f.home.ID, PlayerInput{Name: "Import", Number: 11, DateOfBirth: date("1999-01-01"), Foreign: true})
	require.NoError(t, err)
	_, err = f.svc.CreatePlayer(f.ctx, f.home.ID, PlayerInput{Name: "Import 2", Number: 12, DateOfBirth: date("1999-01-01"), Foreign: true})
	assert.ErrorIs(t, err, standings.ErrConflict)

	_, err = f.svc.CreatePlayer(f.ctx, f.home.ID, PlayerInput{Name: "Local", Number: 13, DateOfBirth: date("1999-01-01")})
	require.NoError(t, err)
	_, err = f.svc.CreatePlayer(f.ctx, f.home.ID, PlayerInput{Name: "One too many", Number: 14, DateOfBirth: date("1999-01-01")})
	assert.ErrorIs(t, err, standings.ErrConflict)
}

func TestMatchRules(t *testing.T) {
	f := newFixture(t)
	f.setRules(standings.RuleSetMatch, `{"matchRounds":2,"homeTeamRule":true}`)

	first := f.addMatch("2024-08-10")
	assert.Equal(t, "Quayside", first.Stadium)
	_, err := f.svc.CreateMatch(f.ctx, f.season.ID, MatchInput{HomeTeamID: f.away.ID, AwayTeamID: f.home.ID, Date: kickoff("2024-09-10")})
	require.NoError(t, err)
	_, err = f.svc.CreateMatch(f.ctx, f.season.ID, MatchInput{HomeTeamID: f.home.ID, AwayTeamID: f.away.ID, Date: kickoff("2024-10-10")})
	assert.ErrorIs(t, err, standings.ErrConflict)

	_, err = f.svc.CreateMatch(f.ctx, f.season.ID, MatchInput{HomeTeamID: f.home.ID, AwayTeamID: f.home.ID, Date: kickoff("2024-10-10")})
	assert.ErrorIs(t, err, standings.ErrInvalidInput)
	_, err = f.svc.CreateMatch(f.ctx, f.season.ID, MatchInput{HomeTeamID: f.home.ID, AwayTeamID: f.away.ID, Date: kickoff("2025-07-01")})
	assert.ErrorIs(t, err, standings.ErrInvalidInput)
}

func TestDeletePlayerWithEventsConflicts(t *testing.T) {
	f := newFixture(t)
	m := f.addMatch("2024-08-10")
	_, err := f.svc.SetResult(f.ctx, m.ID, f.homeWin())
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.DeletePlayer(f.ctx, f.scorer.ID), standings.ErrConflict)

	bench := f.addPlayer(f.home.ID, "Bench", 23)
	require.NoError(t, f.svc.DeletePlayer(f.ctx, bench.ID))
	_, err = f.svc.GetPlayer(f.ctx, bench.ID)
	assert.ErrorIs(t, err, standings.ErrNotFound)
}

func TestSeasonLifecycle(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateSeason(f.ctx, SeasonInput{Name: "2024/25", StartDate: date("2024-08-01"), EndDate: date("2025-05-31")})
	assert.ErrorIs(t, err, standings.ErrConflict)
	_, err = f.svc.CreateSeason(f.ctx, SeasonInput{Name: "Backwards", StartDate: date("2025-08-01"), EndDate: date("2025-05-31")})
	assert.ErrorIs(t, err, standings.ErrInvalidInput)

	_, err = f.svc.UpdateSeason(f.ctx, f.season.ID, SeasonInput{Name: "2024/25", StartDate: date("2024-07-01"), EndDate: date("2025-05-31")})
	assert.ErrorIs(t, err, standings.ErrConflict, "start date is fixed once teams exist")
	renamed, err := f.svc.UpdateSeason(f.ctx, f.season.ID, SeasonInput{Name: "Premier 24/25", StartDate: date("2024-08-01"), EndDate: date("2025-06-30")})
	require.NoError(t, err)
	assert.Equal(t, "Premier 24/25", renamed.Name)

	m := f.addMatch("2024-08-10")
	_, err = f.svc.SetResult(f.ctx, m.ID, f.homeWin())
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteSeason(f.ctx, f.season.ID))
	_, err = f.svc.GetSeason(f.ctx, f.season.ID)
	assert.ErrorIs(t, err, standings.ErrNotFound)
	_, err = f.svc.GetTeam(f.ctx, f.home.ID)
	assert.ErrorIs(t, err, standings.ErrNotFound)

	var leftovers int64
	for _, model := range []interface{}{&models.TeamResult{}, &models.PlayerResult{}, &models.TeamRanking{}, &models.Goal{}, &models.Regulation{}} {
		require.NoError(t, f.svc.db.Model(model).Count(&leftovers).Error)
		assert.Zero(t, leftovers, "%T", model)
	}

	logs, err := f.svc.RecordLogs(f.ctx, f.season.ID)
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	assert.Equal(t, "delete", logs[len(logs)-1].Action)
}

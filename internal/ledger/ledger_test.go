package ledger

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"leagueserver/internal/db"
	"leagueserver/internal/db/models"
	"leagueserver/internal/standings"
)

const rankingRulesJSON = `{"winPoints":3,"drawPoints":1,"losePoints":0,"rankingCriteria":["points","goalsDifference","headToHeadPoints"]}`

type env struct {
	t      *testing.T
	ctx    context.Context
	db     *gorm.DB
	ledger *Ledger
	season models.Season
	teamA  uint
	teamB  uint
	teamC  uint
}

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func newEnv(t *testing.T, withRankingRules bool) *env {
	gormDB, err := db.OpenSQLite(filepath.Join(t.TempDir(), "league.db"))
	require.NoError(t, err)

	e := &env{t: t, ctx: context.Background(), db: gormDB, ledger: New(gormDB)}
	e.season = models.Season{Name: "2024/25", StartDate: day("2024-08-01"), EndDate: day("2025-05-31")}
	require.NoError(t, gormDB.Create(&e.season).Error)

	if withRankingRules {
		reg := models.Regulation{
			SeasonID: e.season.ID,
			Name:     string(standings.RuleSetRanking),
			Rules:    datatypes.JSON(rankingRulesJSON),
		}
		require.NoError(t, gormDB.Create(&reg).Error)
	}

	e.teamA = e.addTeam("Aston")
	e.teamB = e.addTeam("Brent")
	e.teamC = e.addTeam("Crewe")
	return e
}

func (e *env) addTeam(name string) uint {
	team := models.Team{SeasonID: e.season.ID, Name: name}
	require.NoError(e.t, e.db.Create(&team).Error)
	require.NoError(e.t, e.ledger.SeedTeam(e.ctx, e.season.ID, team.ID))
	return team.ID
}

func (e *env) addPlayer(teamID uint, name string, number int) uint {
	p := models.Player{TeamID: teamID, Name: name, Number: number, DateOfBirth: day("2000-01-01")}
	require.NoError(e.t, e.db.Create(&p).Error)
	require.NoError(e.t, e.ledger.SeedPlayer(e.ctx, e.season.ID, p.ID, teamID))
	return p.ID
}

func (e *env) addMatch(home, away uint, date, score string, goals ...models.Goal) models.Match {
	m := models.Match{
		SeasonID:   e.season.ID,
		HomeTeamID: home,
		AwayTeamID: away,
		Date:       day(date).Add(18 * time.Hour),
		Goals:      goals,
	}
	if score != "" {
		m.Score = &score
	}
	require.NoError(e.t, e.db.Create(&m).Error)
	return m
}

func (e *env) update(matchID uint) {
	require.NoError(e.t, e.ledger.UpdateTeamResultsForMatch(e.ctx, matchID))
}

// row returns the ledger row of teamID in force on date.
func (e *env) row(teamID uint, date string) models.TeamResult {
	rows, err := latestTeamRows(e.db, e.season.ID, day(date))
	require.NoError(e.t, err)
	for _, r := range rows {
		if r.TeamID == teamID {
			return r
		}
	}
	e.t.Fatalf("no ledger row for team %d on %s", teamID, date)
	return models.TeamResult{}
}

type dated struct {
	Date  string
	Stats standings.TeamStats
}

func (e *env) history(teamID uint) []dated {
	rows, err := e.ledger.TeamHistory(e.ctx, teamID)
	require.NoError(e.t, err)
	out := make([]dated, 0, len(rows))
	for _, r := range rows {
		out = append(out, dated{Date: standings.Day(r.Date).Format(time.DateOnly), Stats: r.Stats()})
	}
	return out
}

func (e *env) ranks(date string) map[uint]int {
	table, err := e.ledger.TeamStandings(e.ctx, e.season.ID, day(date))
	require.NoError(e.t, err)
	out := make(map[uint]int, len(table))
	for _, s := range table {
		out[s.Team.ID] = s.Rank
	}
	return out
}

func TestSeedRowsAtSeasonStart(t *testing.T) {
	e := newEnv(t, true)

	h := e.history(e.teamA)
	require.Len(t, h, 1)
	assert.Equal(t, "2024-08-01", h[0].Date)
	assert.Zero(t, h[0].Stats.Points)

	err := e.ledger.SeedTeam(e.ctx, e.season.ID, e.teamA)
	assert.ErrorIs(t, err, standings.ErrConflict)
}

func TestSingleWin(t *testing.T) {
	e := newEnv(t, true)
	m := e.addMatch(e.teamA, e.teamB, "2024-08-10", "2-1")
	e.update(m.ID)

	a := e.row(e.teamA, "2024-08-10")
	assert.Equal(t, "2024-08-10", standings.Day(a.Date).Format(time.DateOnly))
	assert.Equal(t, 1, a.MatchesPlayed)
	assert.Equal(t, 1, a.Wins)
	assert.Equal(t, 2, a.GoalsFor)
	assert.Equal(t, 1, a.GoalsAgainst)
	assert.Equal(t, 1, a.GoalsDifference)
	assert.Equal(t, 3, a.Points)
	assert.Equal(t, 0, a.GoalsForAway)
	assert.Equal(t, 3, a.HeadToHeadPoints[e.teamB])

	b := e.row(e.teamB, "2024-08-10")
	assert.Equal(t, 1, b.Losses)
	assert.Equal(t, 0, b.Points)
	assert.Equal(t, 1, b.GoalsForAway)
	assert.Equal(t, 0, b.HeadToHeadPoints[e.teamA])

	// C has the same points as B but a better goal difference.
	assert.Equal(t, map[uint]int{e.teamA: 1, e.teamC: 2, e.teamB: 3}, e.ranks("2024-08-10"))
}

func TestDrawCreditsBothTeams(t *testing.T) {
	e := newEnv(t, true)
	m := e.addMatch(e.teamA, e.teamB, "2024-08-10", "1-1")
	e.update(m.ID)

	for _, id := range []uint{e.teamA, e.teamB} {
		r := e.row(id, "2024-08-10")
		assert.Equal(t, 1, r.Draws)
		assert.Equal(t, 1, r.Points)
	}
	assert.Equal(t, 1, e.row(e.teamA, "2024-08-10").HeadToHeadPoints[e.teamB])
	assert.Equal(t, 1, e.row(e.teamB, "2024-08-10").HeadToHeadPoints[e.teamA])
}

func TestUpdateIsIdempotent(t *testing.T) {
	e := newEnv(t, true)
	m := e.addMatch(e.teamA, e.teamB, "2024-08-10", "3-0")
	e.update(m.ID)
	first := e.history(e.teamA)
	ranks := e.ranks("2024-08-10")

	e.update(m.ID)
	assert.Equal(t, first, e.history(e.teamA))
	assert.Equal(t, ranks, e.ranks("2024-08-10"))

	var count int64
	require.NoError(t, e.db.Model(&models.TeamRanking{}).Where("season_id = ?", e.season.ID).Count(&count).Error)
	assert.EqualValues(t, 6, count, "two ranked days of three teams")

	require.NoError(t, e.ledger.UpdateRanking(e.ctx, e.season.ID, day("2024-08-10")))
	require.NoError(t, e.ledger.UpdateRanking(e.ctx, e.season.ID, day("2024-08-10")))
	require.NoError(t, e.db.Model(&models.TeamRanking{}).Where("season_id = ?", e.season.ID).Count(&count).Error)
	assert.EqualValues(t, 6, count)
	assert.Equal(t, ranks, e.ranks("2024-08-10"))
}

func TestRetroactiveInsertCascades(t *testing.T) {
	e := newEnv(t, true)
	later := e.addMatch(e.teamB, e.teamA, "2024-08-20", "1-0")
	e.update(later.ID)
	assert.Equal(t, 0, e.row(e.teamA, "2024-08-20").Points)

	earlier := e.addMatch(e.teamA, e.teamC, "2024-08-10", "2-0")
	e.update(earlier.ID)

	a := e.row(e.teamA, "2024-08-20")
	assert.Equal(t, 2, a.MatchesPlayed)
	assert.Equal(t, 1, a.Wins)
	assert.Equal(t, 1, a.Losses)
	assert.Equal(t, 2, a.GoalsFor)
	assert.Equal(t, 1, a.GoalsAgainst)
	assert.Equal(t, 3, a.Points)

	incremental := e.history(e.teamA)
	require.NoError(t, e.ledger.RecalculateSeasonData(e.ctx, e.season.ID, nil))
	assert.Equal(t, incremental, e.history(e.teamA), "incremental and full replay must agree")
}

func TestUnscoredMatchLeavesLedgerUnchanged(t *testing.T) {
	e := newEnv(t, true)
	m := e.addMatch(e.teamA, e.teamB, "2024-08-10", "")
	e.update(m.ID)

	h := e.history(e.teamA)
	require.Len(t, h, 1)
	assert.Equal(t, "2024-08-01", h[0].Date)
}

func TestUnplayedDayIsNotRanked(t *testing.T) {
	e := newEnv(t, true)
	played := e.addMatch(e.teamA, e.teamB, "2024-08-10", "2-1")
	e.addMatch(e.teamA, e.teamC, "2024-08-20", "")
	e.update(played.ID)
	require.NoError(t, e.ledger.RecalculateSeasonData(e.ctx, e.season.ID, nil))

	var dates []time.Time
	require.NoError(t, e.db.Model(&models.TeamRanking{}).Where("season_id = ?", e.season.ID).
		Distinct().Pluck("date", &dates).Error)
	got := make([]string, 0, len(dates))
	for _, d := range newDaySet(dates...).sorted() {
		got = append(got, d.Format(time.DateOnly))
	}
	assert.Equal(t, []string{"2024-08-01", "2024-08-10"}, got)
}

func TestMissingRankingRulesFailsWithoutWriting(t *testing.T) {
	e := newEnv(t, false)
	m := e.addMatch(e.teamA, e.teamB, "2024-08-10", "2-1")

	err := e.ledger.UpdateTeamResultsForMatch(e.ctx, m.ID)
	assert.ErrorIs(t, err, standings.ErrPreconditionFailed)
	assert.Len(t, e.history(e.teamA), 1, "failed update must roll back")

	err = e.ledger.UpdateRanking(e.ctx, e.season.ID, day("2024-08-10"))
	assert.ErrorIs(t, err, standings.ErrPreconditionFailed)
}

func TestCorrectedScoreEqualsFreshEntry(t *testing.T) {
	e := newEnv(t, true)
	m := e.addMatch(e.teamA, e.teamB, "2024-08-10", "2-1")
	e.update(m.ID)
	next := e.addMatch(e.teamC, e.teamA, "2024-08-17", "0-0")
	e.update(next.ID)

	corrected := "0-1"
	require.NoError(t, e.db.Model(&m).Update("score", corrected).Error)
	require.NoError(t, e.ledger.RecalculateFrom(e.ctx, e.season.ID, m.Date))
	edited := e.history(e.teamA)

	fresh := newEnv(t, true)
	f1 := fresh.addMatch(fresh.teamA, fresh.teamB, "2024-08-10", corrected)
	fresh.update(f1.ID)
	f2 := fresh.addMatch(fresh.teamC, fresh.teamA, "2024-08-17", "0-0")
	fresh.update(f2.ID)

	assert.Equal(t, fresh.history(fresh.teamA), edited)
	assert.Equal(t, 1, e.row(e.teamA, "2024-08-17").Points)
}

func TestClearedResultRevertsToPreviousRow(t *testing.T) {
	e := newEnv(t, true)
	m := e.addMatch(e.teamA, e.teamB, "2024-08-10", "2-1")
	e.update(m.ID)

	require.NoError(t, e.db.Model(&m).Update("score", nil).Error)
	require.NoError(t, e.ledger.RecalculateFrom(e.ctx, e.season.ID, m.Date))

	assert.Len(t, e.history(e.teamA), 1)
	assert.Zero(t, e.row(e.teamA, "2024-08-10").Points)
	assert.Equal(t, map[uint]int{e.teamA: 1, e.teamB: 2, e.teamC: 3}, e.ranks("2024-08-10"))
}

func TestRecalculateExcludesRemovedTeam(t *testing.T) {
	e := newEnv(t, true)
	m1 := e.addMatch(e.teamA, e.teamC, "2024-08-10", "0-2")
	e.update(m1.ID)
	m2 := e.addMatch(e.teamA, e.teamB, "2024-08-17", "1-0")
	e.update(m2.ID)

	require.NoError(t, e.db.Where("id = ?", m1.ID).Delete(&models.Match{}).Error)
	require.NoError(t, e.db.Delete(&models.Team{}, e.teamC).Error)
	require.NoError(t, e.ledger.RecalculateSeasonData(e.ctx, e.season.ID, &e.teamC))

	var count int64
	require.NoError(t, e.db.Model(&models.TeamResult{}).Where("team_id = ?", e.teamC).Count(&count).Error)
	assert.Zero(t, count)
	require.NoError(t, e.db.Model(&models.TeamRanking{}).Where("team_id = ?", e.teamC).Count(&count).Error)
	assert.Zero(t, count)

	a := e.row(e.teamA, "2024-08-17")
	assert.Equal(t, 1, a.MatchesPlayed)
	assert.Equal(t, 3, a.Points)
	assert.NotContains(t, a.HeadToHeadPoints, e.teamC)
	assert.Equal(t, map[uint]int{e.teamA: 1, e.teamB: 2}, e.ranks("2024-08-17"))
}

func TestPlayerLedgerAndTopScorers(t *testing.T) {
	e := newEnv(t, true)
	striker := e.addPlayer(e.teamA, "Striker", 9)
	winger := e.addPlayer(e.teamA, "Winger", 7)
	keeper := e.addPlayer(e.teamB, "Keeper", 1)
	forward := e.addPlayer(e.teamB, "Forward", 10)

	m := e.addMatch(e.teamA, e.teamB, "2024-08-10", "2-1",
		models.Goal{PlayerID: striker, TeamID: e.teamA, Minute: 12, Type: standings.GoalNormal, AssistPlayerID: &winger},
		models.Goal{PlayerID: striker, TeamID: e.teamA, Minute: 70, Type: standings.GoalPenalty},
		models.Goal{PlayerID: forward, TeamID: e.teamB, Minute: 88, Type: standings.GoalNormal},
	)
	require.NoError(t, e.db.Create(&models.Card{MatchID: m.ID, PlayerID: keeper, TeamID: e.teamB, Minute: 30, Color: standings.CardYellow}).Error)
	require.NoError(t, e.ledger.UpdatePlayerResultsForMatch(e.ctx, m.ID))

	table, err := e.ledger.PlayerStandings(e.ctx, e.season.ID, day("2024-08-10"))
	require.NoError(t, err)
	require.Len(t, table, 4)
	assert.Equal(t, striker, table[0].Player.ID)
	assert.Equal(t, 1, table[0].Rank)
	assert.Equal(t, 2, table[0].Result.TotalGoals)
	assert.Equal(t, forward, table[1].Player.ID)

	stats := make(map[uint]models.PlayerResult)
	for _, s := range table {
		stats[s.Player.ID] = s.Result
	}
	assert.Equal(t, 1, stats[winger].Assists)
	assert.Equal(t, 1, stats[winger].MatchesPlayed)
	assert.Equal(t, 1, stats[keeper].YellowCards)
	assert.Equal(t, 1, stats[keeper].MatchesPlayed)

	// Before the match everyone is still on the seed row.
	before, err := e.ledger.PlayerStandings(e.ctx, e.season.ID, day("2024-08-05"))
	require.NoError(t, err)
	for _, s := range before {
		assert.Zero(t, s.Result.TotalGoals)
	}
}

func TestConcurrentUpdatesMatchSequentialReplay(t *testing.T) {
	e := newEnv(t, true)
	matches := []models.Match{
		e.addMatch(e.teamA, e.teamB, "2024-08-10", "2-0"),
		e.addMatch(e.teamB, e.teamC, "2024-08-17", "1-1"),
		e.addMatch(e.teamC, e.teamA, "2024-08-24", "0-3"),
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(matches))
	for _, m := range matches {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			errs <- e.ledger.UpdateTeamResultsForMatch(e.ctx, id)
		}(m.ID)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	concurrent := map[uint][]dated{}
	for _, id := range []uint{e.teamA, e.teamB, e.teamC} {
		concurrent[id] = e.history(id)
	}
	require.NoError(t, e.ledger.RecalculateSeasonData(e.ctx, e.season.ID, nil))
	for id, h := range concurrent {
		assert.Equal(t, e.history(id), h, "team %d", id)
	}
	assert.Equal(t, 6, e.row(e.teamA, "2024-08-24").Points)
}

func TestQueriesReportMissingEntities(t *testing.T) {
	e := newEnv(t, true)

	_, err := e.ledger.TeamStandings(e.ctx, 999, day("2024-08-10"))
	assert.ErrorIs(t, err, standings.ErrNotFound)
	_, err = e.ledger.TeamHistory(e.ctx, 999)
	assert.ErrorIs(t, err, standings.ErrNotFound)
	err = e.ledger.UpdateTeamResultsForMatch(e.ctx, 999)
	assert.ErrorIs(t, err, standings.ErrNotFound)
}

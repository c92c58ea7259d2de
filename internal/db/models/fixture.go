package models

import "leagueserver/internal/standings"

// Fixture converts a stored match (with Goals and Cards preloaded) into the
// ledger's view of it.
func (m Match) Fixture() (standings.Fixture, error) {
	var raw string
	if m.Score != nil {
		raw = *m.Score
	}
	score, err := standings.ParseScore(raw)
	if err != nil {
		return standings.Fixture{}, err
	}

	f := standings.Fixture{
		ID:         m.ID,
		SeasonID:   m.SeasonID,
		HomeTeamID: m.HomeTeamID,
		AwayTeamID: m.AwayTeamID,
		Date:       m.Date,
		Score:      score,
		HomeLineup: []uint(m.HomeLineup),
		AwayLineup: []uint(m.AwayLineup),
	}
	for _, g := range m.Goals {
		f.Goals = append(f.Goals, standings.GoalEvent{
			PlayerID:       g.PlayerID,
			TeamID:         g.TeamID,
			Minute:         g.Minute,
			Type:           g.Type,
			AssistPlayerID: g.AssistPlayerID,
		})
	}
	for _, c := range m.Cards {
		f.Cards = append(f.Cards, standings.CardEvent{
			PlayerID: c.PlayerID,
			TeamID:   c.TeamID,
			Minute:   c.Minute,
			Color:    c.Color,
		})
	}
	return f, nil
}

package temporal

import (
	"context"
	"errors"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"leagueserver/internal/league"
	"leagueserver/internal/standings"
)

// ErrTypeRejected marks activity failures a retry cannot fix.
const ErrTypeRejected = "LeagueRejected"

type Activities struct {
	League *league.Service
}

func (a *Activities) RecalculateSeasonActivity(ctx context.Context, seasonID uint) (RebuildResult, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Rebuilding season", "seasonId", seasonID)

	season, err := a.League.RebuildSeason(ctx, seasonID)
	if err != nil {
		if errors.Is(err, standings.ErrNotFound) || errors.Is(err, standings.ErrPreconditionFailed) ||
			errors.Is(err, standings.ErrInvalidInput) {
			return RebuildResult{}, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeRejected, err)
		}
		return RebuildResult{}, err
	}
	return RebuildResult{SeasonID: season.ID, From: standings.Day(season.StartDate)}, nil
}

func (a *Activities) PublishStandingsActivity(ctx context.Context, result RebuildResult) error {
	activity.GetLogger(ctx).Info("Publishing standings", "seasonId", result.SeasonID)
	a.League.AnnounceStandings(result.SeasonID, result.From)
	return nil
}

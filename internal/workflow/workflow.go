package temporal

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const RebuildSeasonWorkflowName = "RebuildSeasonWorkflow"

type RebuildResult struct {
	SeasonID uint      `json:"seasonId"`
	From     time.Time `json:"from"`
}

// RebuildSeasonWorkflow replays every ledger of a season from its start
// date and then announces the new standings.
func RebuildSeasonWorkflow(ctx workflow.Context, seasonID uint) (RebuildResult, error) {
	activityOptions := workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute * 5,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        time.Second,
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{ErrTypeRejected},
		},
	}
	ctx = workflow.WithActivityOptions(ctx, activityOptions)
	logger := workflow.GetLogger(ctx)

	var a *Activities
	var result RebuildResult
	err := workflow.ExecuteActivity(ctx, a.RecalculateSeasonActivity, seasonID).Get(ctx, &result)
	if err != nil {
		logger.Error("Season rebuild failed", "seasonId", seasonID, "error", err)
		return result, err
	}

	err = workflow.ExecuteActivity(ctx, a.PublishStandingsActivity, result).Get(ctx, nil)
	if err != nil {
		return result, err
	}

	logger.Info("Season rebuilt", "seasonId", seasonID)
	return result, nil
}

package temporal

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"leagueserver/config"
)

func Dial(cfg *config.TemporalConfig) (client.Client, error) {
	c, err := client.Dial(client.Options{
		HostPort: cfg.HostPort,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Temporal client: %w", err)
	}
	return c, nil
}

func NewWorker(c client.Client, taskQueue string, acts *Activities) worker.Worker {
	w := worker.New(c, taskQueue, worker.Options{})
	w.RegisterWorkflowWithOptions(RebuildSeasonWorkflow, workflow.RegisterOptions{Name: RebuildSeasonWorkflowName})
	w.RegisterActivity(acts)
	return w
}

// StartWorker runs the worker in the background until the process is
// interrupted.
func StartWorker(w worker.Worker) {
	go func() {
		if err := w.Run(worker.InterruptCh()); err != nil {
			log.Fatalf("Failed to start worker: %v", err)
		}
	}()
}

// Starter launches rebuild workflows on a task queue.
type Starter struct {
	Client    client.Client
	TaskQueue string
}

func (s *Starter) Rebuild(ctx context.Context, seasonID uint) (string, error) {
	options := client.StartWorkflowOptions{
		ID:        fmt.Sprintf("rebuild-season-%d-%s", seasonID, uuid.NewString()),
		TaskQueue: s.TaskQueue,
	}
	run, err := s.Client.ExecuteWorkflow(ctx, options, RebuildSeasonWorkflowName, seasonID)
	if err != nil {
		return "", fmt.Errorf("failed to start rebuild of season %d: %w", seasonID, err)
	}
	log.Printf("Started rebuild workflow %s for season %d", run.GetID(), seasonID)
	return run.GetID(), nil
}

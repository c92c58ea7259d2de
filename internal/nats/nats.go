package nats

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"leagueserver/config"
)

func Connect(cfg *config.Config) (*nats.Conn, nats.JetStreamContext, error) {
	address := fmt.Sprintf("%s:%d", cfg.NATS.Host, cfg.NATS.Port)
	nc, err := nats.Connect(address, nats.Name("leagueServer"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return nc, js, nil
}

// ConfigureStream creates the league stream, or updates it when it already
// exists. The duplicate window backs message-id de-duplication of events.
func ConfigureStream(js nats.JetStreamContext, streamCfg *config.StreamConfig) error {
	sc := &nats.StreamConfig{
		Name:       streamCfg.Name,
		Subjects:   streamCfg.Subjects,
		Storage:    nats.FileStorage,
		Duplicates: 2 * time.Minute,
	}
	if _, err := js.StreamInfo(streamCfg.Name); err == nil {
		if _, err := js.UpdateStream(sc); err != nil {
			return fmt.Errorf("failed to update stream: %w", err)
		}
		return nil
	}
	if _, err := js.AddStream(sc); err != nil {
		return fmt.Errorf("failed to add stream: %w", err)
	}
	return nil
}

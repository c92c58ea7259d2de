package nats

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"leagueserver/internal/db/models"
)

const subjectPrefix = "league"

type MatchEvent struct {
	EventID  string    `json:"eventId"`
	Action   string    `json:"action"`
	MatchID  uint      `json:"matchId"`
	SeasonID uint      `json:"seasonId"`
	Date     time.Time `json:"date"`
	Score    *string   `json:"score,omitempty"`
}

type StandingsEvent struct {
	EventID  string    `json:"eventId"`
	SeasonID uint      `json:"seasonId"`
	FromDate time.Time `json:"fromDate"`
}

// msgPublisher is the part of nats.JetStreamContext the publisher needs.
type msgPublisher interface {
	PublishMsg(m *nats.Msg, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// Publisher sends league events to JetStream. Every event carries a fresh id
// used as the JetStream message id, so a retried publish is stored once.
type Publisher struct {
	js msgPublisher
}

func NewPublisher(js nats.JetStreamContext) *Publisher {
	return &Publisher{js: js}
}

// PublishMatch announces a committed match mutation on
// league.match.<action>.
func (p *Publisher) PublishMatch(action string, m models.Match) error {
	event := MatchEvent{
		EventID:  uuid.NewString(),
		Action:   action,
		MatchID:  m.ID,
		SeasonID: m.SeasonID,
		Date:     m.Date,
		Score:    m.Score,
	}
	return p.publish(fmt.Sprintf("%s.match.%s", subjectPrefix, action), event.EventID, event)
}

// PublishStandings announces that the ledgers of a season changed from
// the given day on.
func (p *Publisher) PublishStandings(seasonID uint, from time.Time) error {
	event := StandingsEvent{
		EventID:  uuid.NewString(),
		SeasonID: seasonID,
		FromDate: from,
	}
	return p.publish(subjectPrefix+".standings.updated", event.EventID, event)
}

func (p *Publisher) publish(subject, id string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event for %s: %w", subject, err)
	}
	msg := nats.NewMsg(subject)
	msg.Header.Set(nats.MsgIdHdr, id)
	msg.Data = data
	if _, err := p.js.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish message to JetStream on %s: %w", subject, err)
	}
	return nil
}

// Nop stands in for the publisher when NATS is not configured.
type Nop struct{}

func (Nop) PublishMatch(action string, m models.Match) error {
	log.Printf("NATS disabled, dropping match %s event for match %d", action, m.ID)
	return nil
}

func (Nop) PublishStandings(seasonID uint, from time.Time) error {
	return nil
}

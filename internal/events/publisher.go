package events

import (
	"context"
	"time"

	"dcaadvisor/internal/agent"
	"dcaadvisor/pkg/logger"
)

// Producer is the part of the Kafka producer the publisher needs
type Producer interface {
	Publish(ctx context.Context, topic string, key string, event any) error
}

// TurnPublisher publishes a TurnCompleted event for every finished turn.
// Publishing failures are logged and never fail the turn.
type TurnPublisher struct {
	producer Producer
	topic    string
	timeout  time.Duration
	log      *logger.Logger
}

var _ agent.Observer = (*TurnPublisher)(nil)

// NewTurnPublisher creates a publisher writing to topic
func NewTurnPublisher(producer Producer, topic string) *TurnPublisher {
	return &TurnPublisher{
		producer: producer,
		topic:    topic,
		timeout:  5 * time.Second,
		log:      logger.Get().With("component", "turn_publisher", "topic", topic),
	}
}

// TurnFinished implements agent.Observer
func (p *TurnPublisher) TurnFinished(ctx context.Context, res *agent.TurnResult, err error) {
	ev := NewTurnCompleted(TurnContextFrom(ctx), res, err)

	// the turn context may already be canceled; the event should still go out
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	key := ev.SessionID
	if key == "" {
		key = ev.RunID
	}
	if perr := p.producer.Publish(pubCtx, p.topic, key, ev); perr != nil {
		p.log.Warnw("Failed to publish turn event", "run_id", ev.RunID, "error", perr)
		return
	}
	p.log.Debugw("Turn event published", "run_id", ev.RunID, "status", ev.Status)
}

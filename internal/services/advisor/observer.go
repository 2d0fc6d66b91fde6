package advisor

import (
	"context"

	"dcaadvisor/internal/agent"
	"dcaadvisor/internal/events"
	"dcaadvisor/internal/metrics"
)

// MetricsObserver records turn outcomes and state transitions
type MetricsObserver struct{}

var _ agent.Observer = MetricsObserver{}

func (MetricsObserver) TurnFinished(_ context.Context, res *agent.TurnResult, err error) {
	if res == nil {
		return
	}
	for _, tr := range res.Trace.Transitions {
		metrics.RecordTransition(string(tr.From), string(tr.To))
	}

	var reason string
	if err != nil {
		reason = events.Reason(err)
	}
	metrics.RecordTurn(reason, res.Iterations, res.Duration)
}

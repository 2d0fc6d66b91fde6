package middleware

import (
	"context"
	"time"

	"dcaadvisor/internal/metrics"
	"dcaadvisor/internal/tools"
	"dcaadvisor/pkg/errors"
)

// MetricsMiddleware records tool executions in Prometheus.
type MetricsMiddleware struct{}

// Wrap times every execution and labels it with the error reason.
func (MetricsMiddleware) Wrap(t tools.Tool) tools.Tool {
	name := t.Schema().Name

	return tools.New(t.Schema(), func(ctx context.Context, args tools.Args) (any, error) {
		start := time.Now()
		result, err := t.Execute(ctx, args)
		metrics.RecordToolExecution(name, time.Since(start), errors.Code(err))
		return result, err
	})
}

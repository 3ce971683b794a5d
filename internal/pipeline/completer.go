package pipeline

import (
	"context"
	"time"

	"github.com/cloudwright/cloudwright/internal/extract"
	"github.com/cloudwright/cloudwright/internal/metrics"
	"github.com/cloudwright/cloudwright/internal/provider"
)

// InstrumentCompleter wraps a model client so every extraction call is
// counted and timed under the model it was asked for. With the failover
// controller underneath, the label is the requested primary; a fallback
// that served still counts against it.
func InstrumentCompleter(inner extract.Completer, m *metrics.Metrics) extract.Completer {
	if m == nil {
		return inner
	}
	return &measuredCompleter{inner: inner, metrics: m}
}

type measuredCompleter struct {
	inner   extract.Completer
	metrics *metrics.Metrics
}

func (c *measuredCompleter) Complete(ctx context.Context, req *provider.CompletionRequest) (*provider.CompletionResponse, error) {
	start := time.Now()
	resp, err := c.inner.Complete(ctx, req)
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.metrics.RecordExtraction(req.Model, status, time.Since(start))
	return resp, err
}

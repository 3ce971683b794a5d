// Package failover routes extraction calls through a chain of models,
// cooling down credentials that misbehave and falling back to the
// next model when a call cannot succeed where it is.
package failover

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cloudwright/cloudwright/internal/auth"
	"github.com/cloudwright/cloudwright/internal/logging"
	"github.com/cloudwright/cloudwright/internal/provider"
)

// How long a credential sits out after the provider rejects it
// outright. A cooldown will not fix a revoked key, but the operator
// may rotate it without restarting.
const authDisableDuration = 24 * time.Hour

type Controller struct {
	registry  *provider.Registry
	store     *auth.Store
	backoff   auth.Backoff
	fallbacks []provider.ModelRef
	log       *logrus.Entry
}

func NewController(
	registry *provider.Registry,
	store *auth.Store,
	backoff auth.Backoff,
	fallbacks []provider.ModelRef,
	logger *logrus.Logger,
) *Controller {
	return &Controller{
		registry:  registry,
		store:     store,
		backoff:   backoff,
		fallbacks: fallbacks,
		log:       logging.ForComponent(logger, "failover"),
	}
}

// Complete runs req against the model named in req.Model, then the
// configured fallbacks, until one answers. req.Model must be a
// provider/model ref; each attempt is sent with the bare model id its
// provider expects.
func (c *Controller) Complete(ctx context.Context, req *provider.CompletionRequest) (*provider.CompletionResponse, error) {
	primary, err := provider.ParseModelRef(req.Model)
	if err != nil {
		return nil, err
	}

	chain := append([]provider.ModelRef{primary}, c.fallbacks...)
	attempted := make([]string, 0, len(chain))
	var lastErr error

	for _, ref := range chain {
		if containsRef(attempted, ref.String()) {
			continue
		}
		attempted = append(attempted, ref.String())

		p, err := c.registry.GetForModel(ref)
		if err != nil {
			lastErr = err
			continue
		}

		now := time.Now()
		profile := c.store.Get(ref.Provider())
		if profile != nil && !profile.Available(now) {
			c.log.WithField("model", ref.String()).Debug("credential cooling down, skipping")
			continue
		}

		attempt := *req
		attempt.Model = ref.Model()
		resp, err := p.Complete(ctx, &attempt)
		if err == nil {
			if profile != nil {
				profile.MarkHealthy(now)
			}
			return resp, nil
		}
		lastErr = err

		if profile != nil {
			switch {
			case IsAuthError(err):
				profile.Disable(now, authDisableDuration)
			case IsRateLimitError(err):
				profile.MarkFailed(c.backoff, now)
			}
		}

		if !IsRetryable(err) {
			return nil, err
		}
		c.log.WithError(err).WithField("model", ref.String()).Warn("model call failed, trying next in chain")
	}

	return nil, &AllExhaustedError{Attempted: attempted, Last: lastErr}
}

func containsRef(slice []string, s string) bool {
	for _, item := range slice {
		if item == s {
			return true
		}
	}
	return false
}

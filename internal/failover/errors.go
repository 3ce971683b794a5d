package failover

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwright/cloudwright/internal/provider"
)

// IsRateLimitError reports whether err is the provider telling us to
// slow down.
func IsRateLimitError(err error) bool {
	var apiErr *provider.APIError
	return errors.As(err, &apiErr) && apiErr.Status == 429
}

// IsAuthError reports whether err means the credential itself was
// rejected.
func IsAuthError(err error) bool {
	var apiErr *provider.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status == 401 || apiErr.Status == 403
}

// IsRetryable reports whether the next model in the chain is worth
// trying. Context cancellation stops the chain. Rejected credentials,
// rate limits, timeouts and server faults all fall through, since the
// fallback runs on a different provider and key. Other client errors
// mean the request itself is bad and no model will accept it.
func IsRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *provider.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Status == 401, apiErr.Status == 403:
			return true
		case apiErr.Status == 408, apiErr.Status == 429:
			return true
		case apiErr.Status >= 500:
			return true
		default:
			return false
		}
	}
	// Transport failures never reached the API; a different endpoint
	// may well work.
	return true
}

// AllExhaustedError reports that every model in the chain failed or
// was skipped.
type AllExhaustedError struct {
	Attempted []string
	Last      error
}

func (e *AllExhaustedError) Error() string {
	msg := fmt.Sprintf("all models exhausted (attempted: %s)", strings.Join(e.Attempted, ", "))
	if e.Last != nil {
		msg += ": " + e.Last.Error()
	}
	return msg
}

func (e *AllExhaustedError) Unwrap() error { return e.Last }

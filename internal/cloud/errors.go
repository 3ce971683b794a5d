package cloud

import (
	"context"
	"errors"
	"net"

	"github.com/aws/smithy-go"

	"github.com/cloudwright/cloudwright/internal/engine"
)

// Error-code buckets for the provider's API errors. Codes not listed
// fall back to the fault kind reported by the provider: server faults
// retry, client faults do not.
var permissionCodes = []string{
	"UnauthorizedOperation",
	"AuthFailure",
	"AccessDenied",
	"AccessDeniedException",
	"InvalidClientTokenId",
	"OptInRequired",
	"ExpiredToken",
}

var notFoundCodes = []string{
	"InvalidInstanceID.NotFound",
	"InvalidAMIID.NotFound",
	"InvalidGroup.NotFound",
	"InvalidSubnetID.NotFound",
	"InvalidKeyPair.NotFound",
	"NoSuchBucket",
	"NotFound",
}

var validationCodes = []string{
	"InvalidParameterValue",
	"InvalidParameterCombination",
	"MissingParameter",
	"ValidationError",
	"InvalidAMIID.Malformed",
	"InvalidInstanceID.Malformed",
	"IncorrectInstanceState",
	"InstanceLimitExceeded",
	"UnsupportedOperation",
	"InvalidBucketName",
	"BucketAlreadyExists",
	"BucketAlreadyOwnedByYou",
	"BucketNotEmpty",
	"IllegalLocationConstraintException",
}

var transientCodes = []string{
	"RequestLimitExceeded",
	"Throttling",
	"ThrottlingException",
	"RequestThrottled",
	"SlowDown",
	"ServiceUnavailable",
	"Unavailable",
	"InternalError",
	"InternalFailure",
	"RequestTimeout",
	"RequestTimeoutException",
	"InsufficientInstanceCapacity",
}

func hasCode(codes []string, code string) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}

// translateError maps a provider failure onto the engine's classes.
// mutating picks the bucket for ambiguous transport failures: once a
// state-changing request may have been sent, a timeout means the
// outcome is unknown, while the same timeout on a read is merely
// transient.
func translateError(err error, mutating bool) error {
	if err == nil {
		return nil
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		msg := code + ": " + apiErr.ErrorMessage()
		switch {
		case hasCode(permissionCodes, code):
			return engine.NewError(engine.ClassPermanentPermission, msg, err)
		case hasCode(notFoundCodes, code):
			return engine.NewError(engine.ClassPermanentNotFound, msg, err)
		case hasCode(validationCodes, code):
			return engine.NewError(engine.ClassPermanentValidation, msg, err)
		case hasCode(transientCodes, code):
			return engine.NewError(engine.ClassTransient, msg, err)
		}
		if apiErr.ErrorFault() == smithy.FaultServer {
			return engine.NewError(engine.ClassTransient, msg, err)
		}
		return engine.NewError(engine.ClassPermanentValidation, msg, err)
	}

	// Dial failures happen before the request leaves, so even a
	// mutating call is safe to retry.
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return engine.NewError(engine.ClassTransient, "connection failed", err)
	}

	if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
		if mutating {
			return engine.NewError(engine.ClassOutcomeUnknown, "request timed out", err)
		}
		return engine.NewError(engine.ClassTransient, "request timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		if mutating {
			return engine.NewError(engine.ClassOutcomeUnknown, "request canceled in flight", err)
		}
		return engine.NewError(engine.ClassTransient, "request canceled", err)
	}

	// Remaining transport failures: the request may or may not have
	// been delivered.
	if mutating {
		return engine.NewError(engine.ClassOutcomeUnknown, "transport failure", err)
	}
	return engine.NewError(engine.ClassTransient, "transport failure", err)
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

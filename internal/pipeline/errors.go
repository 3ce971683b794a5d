package pipeline

import (
	"fmt"
	"strings"

	"github.com/cloudwright/cloudwright/internal/router"
)

// RoutingError reports a prompt the router refused to resolve. For an
// ambiguous prompt Candidates holds the tied services, sorted.
type RoutingError struct {
	Kind       router.Kind
	Candidates []string
}

func (e *RoutingError) Error() string {
	if e.Kind == router.KindAmbiguous {
		return fmt.Sprintf("prompt is ambiguous between services: %s", strings.Join(e.Candidates, ", "))
	}
	return "prompt does not match any supported service"
}

// UnsupportedError reports a routed pair with no registered schema,
// such as a service the router knows but the catalog does not cover.
type UnsupportedError struct {
	Service   string
	Operation string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%s/%s is not a supported operation", e.Service, e.Operation)
}

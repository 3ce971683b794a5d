// Package router maps a free-form prompt to a (service, operation) pair by
// keyword scoring. It refuses to guess: tied top services come back as
// Ambiguous for re-prompting, and a prompt matching no service keyword at
// all comes back as Unrecognized.
package router

import (
	"regexp"
	"sort"
	"strings"
)

type Kind int

const (
	KindResolved Kind = iota
	KindAmbiguous
	KindUnrecognized
)

func (k Kind) String() string {
	switch k {
	case KindResolved:
		return "resolved"
	case KindAmbiguous:
		return "ambiguous"
	case KindUnrecognized:
		return "unrecognized"
	default:
		return "unknown"
	}
}

// Decision is the routing outcome. Candidates holds the tied services when
// Kind is KindAmbiguous, sorted for stable re-prompt wording.
type Decision struct {
	Kind       Kind
	Service    string
	Operation  string
	Candidates []string
}

var instanceIDPattern = regexp.MustCompile(`i-[a-z0-9]{8,17}`)

type Router struct{}

func New() *Router {
	return &Router{}
}

// Route scores every known service against the prompt and resolves the
// operation within the winner. The minimum confidence bar is a single
// keyword match; below it the prompt is Unrecognized.
func (r *Router) Route(prompt string) Decision {
	lower := strings.ToLower(prompt)

	scores := make(map[string]int, len(serviceKeywords))
	top := 0
	for service, keywords := range serviceKeywords {
		score := 0
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				score++
			}
		}
		scores[service] = score
		if score > top {
			top = score
		}
	}

	if top == 0 {
		return Decision{Kind: KindUnrecognized}
	}

	var leaders []string
	for service, score := range scores {
		if score == top {
			leaders = append(leaders, service)
		}
	}
	if len(leaders) > 1 {
		sort.Strings(leaders)
		return Decision{Kind: KindAmbiguous, Candidates: leaders}
	}

	service := leaders[0]
	return Decision{
		Kind:      KindResolved,
		Service:   service,
		Operation: r.resolveOperation(lower, service),
	}
}

// resolveOperation picks the operation for the chosen service. An EC2 prompt
// that clearly targets an existing machine (an instance ID, or a lifecycle
// verb next to an instance word) is a lifecycle operation regardless of
// other verb matches; otherwise the highest-scoring operation type wins,
// ties broken by precedence order, zero matches defaulting to read.
func (r *Router) resolveOperation(lower, service string) string {
	if service == "ec2" && isLifecyclePrompt(lower) {
		return "lifecycle"
	}

	best := ""
	bestScore := 0
	for _, op := range operationOrder {
		score := 0
		for _, kw := range operationKeywords[op] {
			if strings.Contains(lower, kw) {
				score++
			}
		}
		if score > bestScore {
			best = op
			bestScore = score
		}
	}
	if bestScore == 0 {
		return "read"
	}
	return best
}

// isLifecyclePrompt reports whether the prompt addresses an existing
// instance: either an i-xxxxxxxx identifier appears anywhere, or a
// lifecycle verb sits within proximityWindow characters of an instance
// word.
func isLifecyclePrompt(lower string) bool {
	for _, kw := range operationKeywords["lifecycle"] {
		idx := strings.Index(lower, kw)
		if idx < 0 {
			continue
		}
		if instanceIDPattern.MatchString(lower) {
			return true
		}
		for _, iw := range instanceWords {
			iwIdx := strings.Index(lower, iw)
			if iwIdx < 0 {
				continue
			}
			dist := idx - iwIdx
			if dist < 0 {
				dist = -dist
			}
			if dist < proximityWindow {
				return true
			}
		}
	}
	return false
}

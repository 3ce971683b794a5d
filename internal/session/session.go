// Package session tracks one operation request from routing through
// confirmation to its terminal outcome. A session is owned by a single
// logical thread of control; the store, not the session, serializes
// persistence.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cloudwright/cloudwright/internal/catalog"
	"github.com/cloudwright/cloudwright/internal/validate"
)

type State string

const (
	StateRouted               State = "routed"
	StateExtracted            State = "extracted"
	StateValidated            State = "validated"
	StateAwaitingConfirmation State = "awaiting_confirmation"
	StateConfirmed            State = "confirmed"
	StateExecuting            State = "executing"
	StateSucceeded            State = "succeeded"
	StateFailed               State = "failed"
	StateCancelled            State = "cancelled"
)

// Terminal reports whether the state archives the session.
func (s State) Terminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateCancelled:
		return true
	}
	return false
}

// TransitionError marks an illegal state change. It signals a defect in
// the orchestrating caller and is never retried or absorbed.
type TransitionError struct {
	SessionID string
	From, To  State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("session %s: illegal transition %s -> %s", e.SessionID, e.From, e.To)
}

// ErrClarificationExhausted is returned when a clarification round would
// exceed the ceiling; the session is already Cancelled when it surfaces.
var ErrClarificationExhausted = errors.New("clarification rounds exhausted")

// ErrBlockingFindings is returned when confirmation is requested while a
// blocking finding is still attached.
var ErrBlockingFindings = errors.New("blocking findings present")

// Result is the execution outcome attached to a terminal session.
// Immutable once attached.
type Result struct {
	Status      State    `json:"status"`
	ResourceIDs []string `json:"resource_ids,omitempty"`
	ErrorClass  string   `json:"error_class,omitempty"`
	ErrorText   string   `json:"error,omitempty"`
}

// Event records one state transition for the audit trail.
type Event struct {
	At   time.Time `json:"at"`
	From State     `json:"from"`
	To   State     `json:"to"`
	Note string    `json:"note,omitempty"`
}

type Session struct {
	ID        string `json:"id"`
	Requester string `json:"requester,omitempty"`
	Prompt    string `json:"prompt"`
	Service   string `json:"service"`
	Operation string `json:"operation"`

	State     State                `json:"state"`
	Params    catalog.ParameterSet `json:"params,omitempty"`
	Findings  []validate.Finding   `json:"findings,omitempty"`
	Confirmed bool                 `json:"confirmed"`

	// Attempts counts execution attempts; ClarificationRound counts
	// re-entries from Validated back to Extracted.
	Attempts           int `json:"attempts"`
	ClarificationRound int `json:"clarification_round"`

	Result *Result `json:"result,omitempty"`
	Events []Event `json:"events,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates a session in the Routed state. Routing must already have
// resolved the (service, operation) pair; unrouted prompts never get a
// session.
func New(requester, prompt, service, operation string) *Session {
	now := time.Now()
	return &Session{
		ID:        uuid.NewString(),
		Requester: requester,
		Prompt:    prompt,
		Service:   service,
		Operation: operation,
		State:     StateRouted,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *Session) transition(to State, note string) {
	s.Events = append(s.Events, Event{At: time.Now(), From: s.State, To: to, Note: note})
	s.State = to
	s.UpdatedAt = time.Now()
}

func (s *Session) illegal(to State) error {
	return &TransitionError{SessionID: s.ID, From: s.State, To: to}
}

// MarkExtracted attaches the extractor's output. Extraction always fires
// exactly once from Routed; re-entries go through Reextract first.
func (s *Session) MarkExtracted(params catalog.ParameterSet, findings []validate.Finding) error {
	if s.State != StateRouted && s.State != StateExtracted {
		return s.illegal(StateExtracted)
	}
	s.Params = params
	s.Findings = findings
	if s.State == StateRouted {
		s.transition(StateExtracted, "")
	}
	return nil
}

// MarkValidated attaches the complete finding list, extraction findings
// included, replacing whatever a previous round attached.
func (s *Session) MarkValidated(findings []validate.Finding) error {
	if s.State != StateExtracted {
		return s.illegal(StateValidated)
	}
	s.Findings = findings
	s.transition(StateValidated, "")
	return nil
}

// RequestConfirmation moves a clean session to AwaitingConfirmation. A
// blocking finding makes this a contract violation, not a no-op.
func (s *Session) RequestConfirmation() error {
	if s.State != StateValidated {
		return s.illegal(StateAwaitingConfirmation)
	}
	if validate.HasBlocking(s.Findings) {
		return fmt.Errorf("session %s: %w", s.ID, ErrBlockingFindings)
	}
	s.transition(StateAwaitingConfirmation, "")
	return nil
}

// Reextract re-enters Extracted for another clarification round. When the
// round would exceed the ceiling the session is abandoned as Cancelled
// and ErrClarificationExhausted comes back.
func (s *Session) Reextract(ceiling int) error {
	if s.State != StateValidated {
		return s.illegal(StateExtracted)
	}
	if s.ClarificationRound >= ceiling {
		s.cancel(fmt.Sprintf("unresolved after %d clarification attempts", ceiling))
		return ErrClarificationExhausted
	}
	s.ClarificationRound++
	s.transition(StateExtracted, fmt.Sprintf("clarification round %d", s.ClarificationRound))
	return nil
}

// Confirm records the explicit affirmative signal.
func (s *Session) Confirm() error {
	if s.State != StateAwaitingConfirmation {
		return s.illegal(StateConfirmed)
	}
	s.Confirmed = true
	s.transition(StateConfirmed, "")
	return nil
}

// Cancel abandons the session. Legal from any state before execution
// starts; an in-flight execution must settle as Failed instead, so the
// outcome is never left ambiguous.
func (s *Session) Cancel(reason string) error {
	if s.State.Terminal() || s.State == StateExecuting {
		return s.illegal(StateCancelled)
	}
	s.cancel(reason)
	return nil
}

func (s *Session) cancel(reason string) {
	s.Result = &Result{Status: StateCancelled, ErrorText: reason}
	s.transition(StateCancelled, reason)
}

// BeginExecution moves Confirmed to Executing. Any other starting state
// is a programming error in the caller.
func (s *Session) BeginExecution() error {
	if s.State != StateConfirmed {
		return s.illegal(StateExecuting)
	}
	s.transition(StateExecuting, "")
	return nil
}

// RecordAttempt counts one execution attempt against the session.
func (s *Session) RecordAttempt() {
	s.Attempts++
	s.UpdatedAt = time.Now()
}

// Succeed attaches the returned resource identifiers and archives the
// session as Succeeded.
func (s *Session) Succeed(resourceIDs []string) error {
	if s.State != StateExecuting {
		return s.illegal(StateSucceeded)
	}
	s.Result = &Result{Status: StateSucceeded, ResourceIDs: resourceIDs}
	s.transition(StateSucceeded, "")
	return nil
}

// Fail archives the session as Failed with the last error attached.
func (s *Session) Fail(errorClass, message string) error {
	if s.State != StateExecuting {
		return s.illegal(StateFailed)
	}
	s.Result = &Result{Status: StateFailed, ErrorClass: errorClass, ErrorText: message}
	s.transition(StateFailed, message)
	return nil
}

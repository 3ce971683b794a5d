// Package engine executes confirmed operations against the provider
// with bounded retries. Classification happens at the provider boundary;
// the engine only applies policy per failure class.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cloudwright/cloudwright/internal/logging"
	"github.com/cloudwright/cloudwright/internal/session"
)

type Config struct {
	// MaxAttempts is the total number of attempts including the first.
	MaxAttempts int
	// InitialBackoff is the wait before the second attempt; subsequent
	// waits double up to MaxBackoff.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// AttemptTimeout bounds each individual provider call.
	AttemptTimeout time.Duration

	// OnAttempt, when set, is called after every attempt with the
	// failure class, or "ok" on success.
	OnAttempt func(service, operation, class string)
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 500 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 10 * time.Second
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = 60 * time.Second
	}
	return c
}

type Engine struct {
	registry *Registry
	tokens   TokenSource
	cfg      Config
	log      *logrus.Entry
}

func New(registry *Registry, tokens TokenSource, cfg Config, logger *logrus.Logger) *Engine {
	return &Engine{
		registry: registry,
		tokens:   tokens,
		cfg:      cfg.withDefaults(),
		log:      logging.ForComponent(logger, "engine"),
	}
}

// Execute drives the session's operation to a terminal state. Calling it
// on anything but a Confirmed session is a contract violation and comes
// back as a TransitionError. Provider failures are not errors here; they
// land in the session result.
func (e *Engine) Execute(ctx context.Context, sess *session.Session) (*session.Result, error) {
	if err := sess.BeginExecution(); err != nil {
		return nil, err
	}
	reg, ok := e.registry.Lookup(sess.Service, sess.Operation)
	if !ok {
		return e.fail(sess, &Error{
			Class:   ClassInternal,
			Message: fmt.Sprintf("no handler registered for %s/%s", sess.Service, sess.Operation),
		})
	}

	inv := Invocation{
		SessionID: sess.ID,
		Service:   sess.Service,
		Operation: sess.Operation,
		Params:    sess.Params,
	}
	if reg.AcceptsToken && e.tokens != nil {
		token, err := e.tokens.Token(ctx, sess.ID)
		if err != nil {
			e.log.WithError(err).WithField("session_id", sess.ID).Warn("idempotency token unavailable")
		} else {
			inv.Token = token
		}
	}

	log := e.log.WithFields(logrus.Fields{
		"session_id": sess.ID,
		"route":      routeKey(sess.Service, sess.Operation),
	})

	delay := e.cfg.InitialBackoff
	var last *Error
	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		sess.RecordAttempt()
		outcome, err := e.attempt(ctx, reg, inv)
		if err == nil {
			e.observe(sess, "ok")
			var ids []string
			if outcome != nil {
				ids = outcome.ResourceIDs
			}
			if err := sess.Succeed(ids); err != nil {
				return nil, err
			}
			log.WithFields(logrus.Fields{"attempts": attempt, "resource_ids": ids}).Info("operation succeeded")
			return sess.Result, nil
		}

		last = Classify(err)
		e.observe(sess, last.Class)
		log.WithFields(logrus.Fields{"attempt": attempt, "class": last.Class}).WithError(err).Warn("attempt failed")

		if !e.shouldRetry(reg, inv, last) {
			return e.fail(sess, last)
		}
		if attempt == e.cfg.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return e.fail(sess, &Error{Class: last.Class, Message: "execution interrupted", Cause: ctx.Err()})
		case <-time.After(delay):
		}
		delay *= 2
		if delay > e.cfg.MaxBackoff {
			delay = e.cfg.MaxBackoff
		}
	}

	return e.fail(sess, &Error{
		Class:   last.Class,
		Message: fmt.Sprintf("retry ceiling of %d attempts reached: %s", e.cfg.MaxAttempts, last.Message),
		Cause:   last.Cause,
	})
}

func (e *Engine) attempt(ctx context.Context, reg Registration, inv Invocation) (*Outcome, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, e.cfg.AttemptTimeout)
	defer cancel()
	return reg.Handler.Execute(attemptCtx, inv)
}

// shouldRetry applies the class policy. An ambiguous outcome is retried
// only when a repeat provably cannot double-apply: read-only calls,
// naturally idempotent calls, or calls that carried an idempotency
// token.
func (e *Engine) shouldRetry(reg Registration, inv Invocation, opErr *Error) bool {
	if Retryable(opErr) {
		return true
	}
	if opErr.Class == ClassOutcomeUnknown {
		if !reg.Mutating || reg.Idempotent {
			return true
		}
		return reg.AcceptsToken && inv.Token != ""
	}
	return false
}

func (e *Engine) fail(sess *session.Session, opErr *Error) (*session.Result, error) {
	text := opErr.Message
	if opErr.Cause != nil {
		text = fmt.Sprintf("%s: %v", text, opErr.Cause)
	}
	if opErr.Class == ClassOutcomeUnknown {
		text += "; verify the provider state before retrying"
	}
	if err := sess.Fail(opErr.Class, text); err != nil {
		return nil, err
	}
	return sess.Result, nil
}

func (e *Engine) observe(sess *session.Session, class string) {
	if e.cfg.OnAttempt != nil {
		e.cfg.OnAttempt(sess.Service, sess.Operation, class)
	}
}

// Package pipeline drives a request from prompt to terminal state:
// route, extract, validate, confirmation gate, execute. Each stage
// persists the session, so a crash never loses more than the stage in
// flight. The pipeline owns sequencing; the caller owns the
// conversation with the requester.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cloudwright/cloudwright/internal/catalog"
	"github.com/cloudwright/cloudwright/internal/logging"
	"github.com/cloudwright/cloudwright/internal/metrics"
	"github.com/cloudwright/cloudwright/internal/notify"
	"github.com/cloudwright/cloudwright/internal/router"
	"github.com/cloudwright/cloudwright/internal/session"
	"github.com/cloudwright/cloudwright/internal/validate"
)

// Extractor is the slice of the extraction stage the pipeline needs.
type Extractor interface {
	Extract(ctx context.Context, prompt string, schema *catalog.OperationSchema) (catalog.ParameterSet, []validate.Finding, error)
}

// Executor runs a confirmed session to a terminal state.
type Executor interface {
	Execute(ctx context.Context, sess *session.Session) (*session.Result, error)
}

// Store persists session snapshots.
type Store interface {
	Save(sess *session.Session) error
}

// Publisher receives events for the states worth alerting on.
type Publisher interface {
	Publish(ctx context.Context, ev notify.Event)
}

type Config struct {
	// ClarificationCeiling caps the Validated -> Extracted loop.
	ClarificationCeiling int
}

// Deps carries the pipeline's collaborators. Metrics, Notifier, and
// Observer are optional; everything else is required.
type Deps struct {
	Router    *router.Router
	Catalog   *catalog.Registry
	Extractor Extractor
	Validator *validate.Validator
	Engine    Executor
	Store     Store

	Metrics  *metrics.Metrics
	Notifier Publisher
	// Observer sees every state the session passes through; the ops
	// event feed hangs off it.
	Observer func(ev notify.Event)
}

type Pipeline struct {
	deps Deps
	cfg  Config
	log  *logrus.Entry
}

func New(deps Deps, cfg Config, logger *logrus.Logger) *Pipeline {
	if cfg.ClarificationCeiling <= 0 {
		cfg.ClarificationCeiling = 3
	}
	return &Pipeline{
		deps: deps,
		cfg:  cfg,
		log:  logging.ForComponent(logger, "pipeline"),
	}
}

// Begin routes the prompt and opens a session. Prompts the router
// cannot resolve come back as a RoutingError and never get a session;
// routed operations with no registered schema come back as an
// UnsupportedError.
func (p *Pipeline) Begin(requester, prompt string) (*session.Session, error) {
	dec := p.deps.Router.Route(prompt)
	switch dec.Kind {
	case router.KindUnrecognized:
		return nil, &RoutingError{Kind: dec.Kind}
	case router.KindAmbiguous:
		return nil, &RoutingError{Kind: dec.Kind, Candidates: dec.Candidates}
	}

	if _, err := p.deps.Catalog.Lookup(dec.Service, dec.Operation); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, &UnsupportedError{Service: dec.Service, Operation: dec.Operation}
		}
		return nil, fmt.Errorf("schema lookup for %s/%s: %w", dec.Service, dec.Operation, err)
	}

	sess := session.New(requester, prompt, dec.Service, dec.Operation)
	if err := p.deps.Store.Save(sess); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}
	if p.deps.Metrics != nil {
		p.deps.Metrics.RecordSessionStart()
	}
	p.emit(sess)
	p.sessionLog(sess).Info("session opened")
	return sess, nil
}

// Prepare runs extraction and validation. Afterwards the session is
// Validated; whether it can move on to confirmation depends on the
// findings, which the caller inspects via validate.HasBlocking. A model
// call failure leaves the session where it was, safe to retry.
func (p *Pipeline) Prepare(ctx context.Context, sess *session.Session) error {
	schema, err := p.deps.Catalog.Lookup(sess.Service, sess.Operation)
	if err != nil {
		return fmt.Errorf("schema for %s/%s: %w", sess.Service, sess.Operation, err)
	}

	params, extFindings, err := p.deps.Extractor.Extract(ctx, sess.Prompt, schema)
	if err != nil {
		return fmt.Errorf("extracting parameters: %w", err)
	}
	if err := sess.MarkExtracted(params, extFindings); err != nil {
		return err
	}
	p.emit(sess)

	findings := make([]validate.Finding, 0, len(extFindings))
	findings = append(findings, extFindings...)
	findings = append(findings, p.deps.Validator.Validate(sess.Params, schema)...)
	if err := sess.MarkValidated(findings); err != nil {
		return err
	}
	if p.deps.Metrics != nil {
		for _, f := range findings {
			p.deps.Metrics.RecordFinding(string(f.Severity))
		}
	}
	if err := p.deps.Store.Save(sess); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	p.emit(sess)

	p.sessionLog(sess).WithFields(logrus.Fields{
		"fields":   len(sess.Params),
		"findings": len(findings),
		"blocking": len(validate.Blocking(findings)),
	}).Info("session validated")
	return nil
}

// Clarify folds the requester's supplement into the prompt and runs
// the extraction stage again. At the ceiling the session cancels and
// session.ErrClarificationExhausted comes back.
func (p *Pipeline) Clarify(ctx context.Context, sess *session.Session, supplement string) error {
	if err := sess.Reextract(p.cfg.ClarificationCeiling); err != nil {
		if errors.Is(err, session.ErrClarificationExhausted) {
			p.sessionLog(sess).Warn("clarification ceiling reached, session cancelled")
			p.finish(ctx, sess)
		}
		return err
	}
	if p.deps.Metrics != nil {
		p.deps.Metrics.RecordClarification()
	}
	if supplement != "" {
		sess.Prompt = sess.Prompt + "\n" + supplement
	}
	return p.Prepare(ctx, sess)
}

// RequestConfirmation moves a clean session in front of the requester.
// Blocking findings make this a session.ErrBlockingFindings error.
func (p *Pipeline) RequestConfirmation(ctx context.Context, sess *session.Session) error {
	if err := sess.RequestConfirmation(); err != nil {
		return err
	}
	if err := p.deps.Store.Save(sess); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	p.emit(sess)
	p.publish(ctx, sess)
	return nil
}

// Approve records the requester's explicit affirmative.
func (p *Pipeline) Approve(sess *session.Session) error {
	if err := sess.Confirm(); err != nil {
		return err
	}
	if err := p.deps.Store.Save(sess); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	p.emit(sess)
	p.sessionLog(sess).Info("operation confirmed")
	return nil
}

// Cancel abandons the session: decline, timeout, or interrupt before
// execution. Reason lands in the session result.
func (p *Pipeline) Cancel(ctx context.Context, sess *session.Session, reason string) error {
	if err := sess.Cancel(reason); err != nil {
		return err
	}
	p.sessionLog(sess).WithField("reason", reason).Info("session cancelled")
	p.finish(ctx, sess)
	return nil
}

// Execute runs the confirmed operation. Provider failures settle the
// session as Failed and come back in the result, not as an error; an
// error here means a contract violation.
func (p *Pipeline) Execute(ctx context.Context, sess *session.Session) (*session.Result, error) {
	start := time.Now()
	result, err := p.deps.Engine.Execute(ctx, sess)
	if err != nil {
		return nil, err
	}
	if p.deps.Metrics != nil {
		p.deps.Metrics.ObserveOperation(sess.Service, sess.Operation, time.Since(start))
	}
	p.finish(ctx, sess)
	return result, nil
}

// finish persists a settled session and feeds the terminal state to
// the outcome metric and both event sinks.
func (p *Pipeline) finish(ctx context.Context, sess *session.Session) {
	if err := p.deps.Store.Save(sess); err != nil {
		p.sessionLog(sess).WithError(err).Error("saving settled session failed")
	}
	if p.deps.Metrics != nil && sess.State.Terminal() {
		p.deps.Metrics.RecordOutcome(string(sess.State))
	}
	p.emit(sess)
	p.publish(ctx, sess)
}

func (p *Pipeline) emit(sess *session.Session) {
	if p.deps.Observer != nil {
		p.deps.Observer(notify.FromSession(sess))
	}
}

func (p *Pipeline) publish(ctx context.Context, sess *session.Session) {
	if p.deps.Notifier != nil {
		p.deps.Notifier.Publish(ctx, notify.FromSession(sess))
	}
}

func (p *Pipeline) sessionLog(sess *session.Session) *logrus.Entry {
	return p.log.WithFields(logrus.Fields{
		"session_id": sess.ID,
		"service":    sess.Service,
		"operation":  sess.Operation,
	})
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/cloudwright/cloudwright/internal/actor"
	"github.com/cloudwright/cloudwright/internal/catalog"
	"github.com/cloudwright/cloudwright/internal/confirm"
	"github.com/cloudwright/cloudwright/internal/engine"
	"github.com/cloudwright/cloudwright/internal/pipeline"
	"github.com/cloudwright/cloudwright/internal/session"
	"github.com/cloudwright/cloudwright/internal/validate"
)

// Replies that are neither a clear yes nor a clear no are re-asked this
// many times before the session cancels.
const maxConfirmRetries = 3

// conductor drives one prompt through the pipeline while holding the
// conversation with the operator: clarification rounds for blocking
// findings, the plan summary, and the confirmation prompt.
type conductor struct {
	pipe           *pipeline.Pipeline
	catalog        *catalog.Registry
	in             *console
	out            io.Writer
	interactive    bool
	confirmTimeout time.Duration
}

// handle runs prompt to a terminal outcome and returns the process
// exit code for it. The requester identity comes from the context.
func (c *conductor) handle(ctx context.Context, prompt string) int {
	sess, err := c.pipe.Begin(actor.Requester(ctx), prompt)
	if err != nil {
		return c.reportBeginFailure(err)
	}

	if err := c.pipe.Prepare(ctx, sess); err != nil {
		fmt.Fprintf(c.out, "Extraction failed: %v\nThe request was not executed; try again.\n", err)
		return exitFailed
	}

	code, ok := c.resolveBlocking(ctx, sess)
	if !ok {
		return code
	}

	c.printPlan(sess)

	if err := c.pipe.RequestConfirmation(ctx, sess); err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return exitFailed
	}
	code, ok = c.awaitConfirmation(ctx, sess)
	if !ok {
		return code
	}

	result, err := c.pipe.Execute(ctx, sess)
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return exitFailed
	}
	return c.reportResult(sess, result)
}

func (c *conductor) reportBeginFailure(err error) int {
	var routeErr *pipeline.RoutingError
	if errors.As(err, &routeErr) {
		fmt.Fprintf(c.out, "%s\n", routeErr.Error())
		fmt.Fprintln(c.out, "Try naming the service and action, e.g. \"create an ec2 instance\" or \"list my s3 buckets\".")
		return exitRouting
	}
	var unsupported *pipeline.UnsupportedError
	if errors.As(err, &unsupported) {
		fmt.Fprintf(c.out, "%s\n", unsupported.Error())
		return exitRouting
	}
	fmt.Fprintf(c.out, "Error: %v\n", err)
	return exitFailed
}

// resolveBlocking loops clarification rounds until the session is clean.
// The bool result is true when the flow may continue to confirmation.
func (c *conductor) resolveBlocking(ctx context.Context, sess *session.Session) (int, bool) {
	for validate.HasBlocking(sess.Findings) {
		fmt.Fprintf(c.out, "The request cannot proceed yet (%s/%s):\n", sess.Service, sess.Operation)
		for _, f := range validate.Blocking(sess.Findings) {
			fmt.Fprintf(c.out, "  - %s\n", f.Message)
		}

		if !c.interactive {
			_ = c.pipe.Cancel(ctx, sess, "blocking findings and no interactive input")
			return exitBlocked, false
		}

		fmt.Fprint(c.out, "Add the missing details (empty line cancels): ")
		line, err := c.in.ReadLine(ctx, 0)
		if err != nil || strings.TrimSpace(line) == "" {
			_ = c.pipe.Cancel(ctx, sess, "clarification declined")
			fmt.Fprintln(c.out, "Request cancelled.")
			return exitCancelled, false
		}

		if err := c.pipe.Clarify(ctx, sess, line); err != nil {
			if errors.Is(err, session.ErrClarificationExhausted) {
				fmt.Fprintf(c.out, "Still incomplete after %d rounds; request cancelled.\n", sess.ClarificationRound)
				return exitBlocked, false
			}
			fmt.Fprintf(c.out, "Extraction failed: %v\nThe request was not executed; try again.\n", err)
			return exitFailed, false
		}
	}
	return 0, true
}

// printPlan shows the operator exactly what will be sent before asking
// for confirmation: every resolved parameter, defaults marked as such,
// and any non-blocking findings.
func (c *conductor) printPlan(sess *session.Session) {
	fmt.Fprintf(c.out, "\nPlanned operation: %s/%s\n", sess.Service, sess.Operation)

	schema, err := c.catalog.Lookup(sess.Service, sess.Operation)
	if err != nil {
		schema = nil
	}

	names := make([]string, 0, len(sess.Params))
	for name := range sess.Params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		suffix := ""
		if schema != nil {
			if f, ok := schema.Field(name); ok && f.Default != nil && fmt.Sprint(f.Default) == fmt.Sprint(sess.Params[name]) {
				suffix = " (default)"
			}
		}
		fmt.Fprintf(c.out, "  %-28s %v%s\n", name, sess.Params[name], suffix)
	}
	if len(names) == 0 {
		fmt.Fprintln(c.out, "  (no parameters)")
	}

	for _, f := range sess.Findings {
		switch f.Severity {
		case validate.SeverityWarning:
			fmt.Fprintf(c.out, "  warning: %s\n", f.Message)
		case validate.SeverityInfo:
			fmt.Fprintf(c.out, "  note: %s\n", f.Message)
		}
	}
	if count, ok := sess.Params.Int("MaxCount"); ok && count > 1 {
		fmt.Fprintf(c.out, "  cost: this launches %d instances\n", count)
	}
}

// awaitConfirmation asks until it gets a clear yes or no. Timeouts,
// closed input, and exhausted retries all cancel; nothing executes
// without an explicit affirmative.
func (c *conductor) awaitConfirmation(ctx context.Context, sess *session.Session) (int, bool) {
	interp := confirm.NewInterpreter()
	for i := 0; i < maxConfirmRetries; i++ {
		fmt.Fprint(c.out, "\nApply this operation? [yes/no]: ")
		line, err := c.in.ReadLine(ctx, c.confirmTimeout)
		switch {
		case errors.Is(err, errReplyTimeout):
			fmt.Fprintln(c.out, "\nNo reply; request cancelled.")
			_ = c.pipe.Cancel(ctx, sess, "confirmation timed out")
			return exitCancelled, false
		case err != nil:
			fmt.Fprintln(c.out, "\nRequest cancelled.")
			_ = c.pipe.Cancel(ctx, sess, "input closed before confirmation")
			return exitCancelled, false
		}

		switch interp.Interpret(line) {
		case confirm.Affirmative:
			if err := c.pipe.Approve(sess); err != nil {
				fmt.Fprintf(c.out, "Error: %v\n", err)
				return exitFailed, false
			}
			return 0, true
		case confirm.Negative:
			fmt.Fprintln(c.out, "Understood; nothing was executed.")
			_ = c.pipe.Cancel(ctx, sess, "operator declined")
			return exitCancelled, false
		default:
			fmt.Fprintln(c.out, "Please answer yes or no.")
		}
	}
	fmt.Fprintln(c.out, "No clear confirmation; request cancelled.")
	_ = c.pipe.Cancel(ctx, sess, "no clear confirmation")
	return exitCancelled, false
}

func (c *conductor) reportResult(sess *session.Session, result *session.Result) int {
	switch result.Status {
	case session.StateSucceeded:
		fmt.Fprintln(c.out, "Operation succeeded.")
		for _, id := range result.ResourceIDs {
			fmt.Fprintf(c.out, "  %s\n", id)
		}
		return exitSucceeded
	case session.StateCancelled:
		fmt.Fprintln(c.out, "Operation cancelled.")
		return exitCancelled
	default:
		fmt.Fprintf(c.out, "Operation failed (%s): %s\n", result.ErrorClass, result.ErrorText)
		switch result.ErrorClass {
		case engine.ClassTransient:
			fmt.Fprintln(c.out, "The failure was transient; it is safe to retry the request.")
		case engine.ClassOutcomeUnknown:
			fmt.Fprintln(c.out, "Outcome unknown: verify in the provider console before retrying.")
		default:
			fmt.Fprintln(c.out, "Fix the reported problem before retrying.")
		}
		return exitFailed
	}
}

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloudwright/cloudwright/internal/session"
	"github.com/cloudwright/cloudwright/internal/session/store"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions that have not settled",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, sessions, err := openSessions()
		if err != nil {
			return failf(exitFailed, "%v", err)
		}
		defer db.Close()
		if err := printActiveSessions(sessions, cmd.OutOrStdout()); err != nil {
			return failf(exitFailed, "%v", err)
		}
		return nil
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show one session's parameters, findings, and transitions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, sessions, err := openSessions()
		if err != nil {
			return failf(exitFailed, "%v", err)
		}
		defer db.Close()

		sess, err := sessions.Get(args[0])
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return failf(exitFailed, "no session %s", args[0])
			}
			return failf(exitFailed, "%v", err)
		}
		printSession(sess, cmd.OutOrStdout())
		return nil
	},
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
}

// openSessions opens just the session store, without the providers and
// cloud clients the full app needs.
func openSessions() (*store.DB, *store.SessionStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if cfg.Storage.DataDir != "" {
		if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("data dir %s: %w", cfg.Storage.DataDir, err)
		}
	}
	db, err := store.Open(cfg.Storage.Driver, cfg.Storage.DSN)
	if err != nil {
		return nil, nil, err
	}
	return db, store.NewSessionStore(db), nil
}

func printActiveSessions(sessions *store.SessionStore, out io.Writer) error {
	active, err := sessions.Active()
	if err != nil {
		return err
	}
	if len(active) == 0 {
		fmt.Fprintln(out, "No active sessions.")
		return nil
	}
	for _, s := range active {
		fmt.Fprintf(out, "%s  %-21s  %s/%s  %q\n", s.ID, s.State, s.Service, s.Operation, truncate(s.Prompt, 48))
	}
	return nil
}

func printSession(sess *session.Session, out io.Writer) {
	fmt.Fprintf(out, "Session    %s\n", sess.ID)
	fmt.Fprintf(out, "State      %s\n", sess.State)
	fmt.Fprintf(out, "Operation  %s/%s\n", sess.Service, sess.Operation)
	if sess.Requester != "" {
		fmt.Fprintf(out, "Requester  %s\n", sess.Requester)
	}
	fmt.Fprintf(out, "Prompt     %s\n", sess.Prompt)
	fmt.Fprintf(out, "Created    %s\n", sess.CreatedAt.Format(time.RFC3339))

	if len(sess.Params) > 0 {
		fmt.Fprintln(out, "Parameters:")
		names := make([]string, 0, len(sess.Params))
		for name := range sess.Params {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(out, "  %-28s %v\n", name, sess.Params[name])
		}
	}
	if len(sess.Findings) > 0 {
		fmt.Fprintln(out, "Findings:")
		for _, f := range sess.Findings {
			fmt.Fprintf(out, "  %s\n", f)
		}
	}
	if sess.Result != nil {
		fmt.Fprintf(out, "Result     %s", sess.Result.Status)
		if sess.Result.ErrorClass != "" {
			fmt.Fprintf(out, " (%s)", sess.Result.ErrorClass)
		}
		fmt.Fprintln(out)
		for _, id := range sess.Result.ResourceIDs {
			fmt.Fprintf(out, "  %s\n", id)
		}
		if sess.Result.ErrorText != "" {
			fmt.Fprintf(out, "  %s\n", sess.Result.ErrorText)
		}
	}
	if len(sess.Events) > 0 {
		fmt.Fprintln(out, "Transitions:")
		for _, ev := range sess.Events {
			note := ""
			if ev.Note != "" {
				note = "  " + ev.Note
			}
			fmt.Fprintf(out, "  %s  %s -> %s%s\n", ev.At.Format(time.RFC3339), ev.From, ev.To, note)
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

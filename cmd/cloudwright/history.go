package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloudwright/cloudwright/internal/session/store"
)

const defaultHistoryLimit = 20

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show settled operations for the current requester",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, sessions, err := openSessions()
		if err != nil {
			return failf(exitFailed, "%v", err)
		}
		defer db.Close()
		if err := printHistory(sessions, resolveRequester(), historyLimit, cmd.OutOrStdout()); err != nil {
			return failf(exitFailed, "%v", err)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", defaultHistoryLimit, "maximum entries to show")
}

func printHistory(sessions *store.SessionStore, requesterID string, limit int, out io.Writer) error {
	past, err := sessions.History(requesterID, limit)
	if err != nil {
		return err
	}
	if len(past) == 0 {
		fmt.Fprintln(out, "No history.")
		return nil
	}
	for _, s := range past {
		outcome := string(s.State)
		if s.Result != nil && s.Result.ErrorClass != "" {
			outcome += " (" + s.Result.ErrorClass + ")"
		}
		fmt.Fprintf(out, "%s  %-22s  %s/%s  %q\n",
			s.UpdatedAt.Format(time.RFC3339), outcome, s.Service, s.Operation, truncate(s.Prompt, 48))
	}
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cloudwright/cloudwright/internal/actor"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Interactive request loop",
	Long: `Repl reads one request per line and drives each through the full
pipeline, including clarification rounds and the confirmation prompt.
"sessions", "history", and "exit" are handled in place; everything
else is treated as a new request.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return failf(exitFailed, "%v", err)
		}
		a, err := buildApp(cmd.Context(), cfg)
		if err != nil {
			return failf(exitFailed, "%v", err)
		}
		defer a.Close()

		if err := a.startBackground(); err != nil {
			return failf(exitFailed, "%v", err)
		}
		defer a.stopBackground()

		runREPL(cmd.Context(), a, cmd.InOrStdin(), cmd.OutOrStdout())
		return nil
	},
}

func runREPL(ctx context.Context, a *app, in io.Reader, out io.Writer) {
	con := newConsole(in)
	c := &conductor{
		pipe:           a.pipeline,
		catalog:        a.catalog,
		in:             con,
		out:            out,
		interactive:    true,
		confirmTimeout: a.confirmTimeout,
	}
	requesterID := resolveRequester()
	ctx = actor.WithRequester(ctx, requesterID)

	fmt.Fprintln(out, "cloudwright: describe an operation, or \"exit\" to quit.")
	for {
		fmt.Fprint(out, "\n> ")
		line, err := con.ReadLine(ctx, 0)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, context.Canceled) {
				fmt.Fprintf(out, "read error: %v\n", err)
			}
			fmt.Fprintln(out, "bye")
			return
		}

		switch strings.ToLower(strings.TrimSpace(line)) {
		case "":
			continue
		case "exit", "quit":
			fmt.Fprintln(out, "bye")
			return
		case "sessions":
			if err := printActiveSessions(a.sessions, out); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
			continue
		case "history":
			if err := printHistory(a.sessions, requesterID, defaultHistoryLimit, out); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
			continue
		}

		c.handle(ctx, line)
		if ctx.Err() != nil {
			fmt.Fprintln(out, "bye")
			return
		}
	}
}

package main

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/cloudwright/cloudwright/internal/actor"
)

var runCmd = &cobra.Command{
	Use:   "run <prompt>",
	Short: "Run a single natural-language request",
	Long: `Run routes the prompt, extracts and validates its parameters,
shows the resulting operation, and executes it after you confirm.
Without a terminal on stdin, a request that needs clarification is
cancelled instead of waiting.`,
	Args: cobra.ExactArgs(1),
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

		c := &conductor{
			pipe:           a.pipeline,
			catalog:        a.catalog,
			in:             newConsole(cmd.InOrStdin()),
			out:            cmd.OutOrStdout(),
			interactive:    isatty.IsTerminal(os.Stdin.Fd()),
			confirmTimeout: a.confirmTimeout,
		}
		ctx := actor.WithRequester(cmd.Context(), resolveRequester())
		if code := c.handle(ctx, args[0]); code != exitSucceeded {
			return &exitError{code: code}
		}
		return nil
	},
}

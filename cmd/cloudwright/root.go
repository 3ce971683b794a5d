package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"os/user"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cloudwright/cloudwright/internal/config"
)

// Exit codes. Scripts branch on these, so cancellation and routing
// failures are distinguishable from an operation that actually failed.
const (
	exitSucceeded = 0
	exitFailed    = 1
	exitUsage     = 2
	exitCancelled = 3
	exitRouting   = 4
	exitBlocked   = 5
)

// exitError carries the process exit code out of a command. err may be
// nil when the command already printed its own diagnostics.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func failf(code int, format string, args ...any) *exitError {
	return &exitError{code: code, err: fmt.Errorf(format, args...)}
}

var (
	configPath string
	requester  string
)

var rootCmd = &cobra.Command{
	Use:   "cloudwright",
	Short: "Cloudwright - natural language cloud operations with a confirmation gate",
	Long: `Cloudwright turns plain-language infrastructure requests into
validated cloud API operations. Every request is routed to a service,
its parameters extracted and checked against the operation's schema,
and nothing executes until you explicitly confirm it.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command with SIGINT/SIGTERM cancelling the
// context, so an interrupt mid-session settles as Cancelled instead of
// tearing the process down mid-write.
func Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default $CLOUDWRIGHT_CONFIG or ~/.cloudwright/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&requester, "requester", "", "requester identity recorded on sessions (default current OS user)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(replCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	if env := os.Getenv("CLOUDWRIGHT_CONFIG"); env != "" {
		return env
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".cloudwright", "config.yaml")
}

// loadConfig reads the config file when present and falls back to the
// built-in defaults when it is not. An explicitly given path that does
// not exist is an error; a missing default path is not.
func loadConfig() (*config.Config, error) {
	path := resolveConfigPath()
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && configPath == "" && os.Getenv("CLOUDWRIGHT_CONFIG") == "" {
			return config.Parse(nil)
		}
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func resolveRequester() string {
	if requester != "" {
		return requester
	}
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return os.Getenv("USER")
}

package main

import (
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Work with the configuration file",
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Load the configuration and report what it wires up",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return failf(exitFailed, "%v", err)
		}
		cmd.Printf("Config OK (%s)\n", resolveConfigPath())
		cmd.Printf("  providers:     %d\n", len(cfg.Models.Providers))
		cmd.Printf("  primary model: %s\n", orNone(cfg.Models.Primary))
		cmd.Printf("  aws region:    %s\n", cfg.AWS.Region)
		cmd.Printf("  storage:       %s\n", cfg.Storage.Driver)
		cmd.Printf("  redis:         %s\n", orNone(cfg.Redis.Addr))
		cmd.Printf("  rulepacks:     %d\n", len(cfg.Rulepacks.Packs))
		cmd.Printf("  webhooks:      %d\n", len(cfg.Notify.Webhooks))
		return nil
	},
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func init() {
	configCmd.AddCommand(configCheckCmd)
}

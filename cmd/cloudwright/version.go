package main

import (
	"github.com/spf13/cobra"

	"github.com/cloudwright/cloudwright/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println(version.Get())
	},
}

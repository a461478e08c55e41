package cmd

import (
	"github.com/spf13/cobra"
)

// auditCmd groups audit-related subcommands.
var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the audit trail",
}

func init() {
	rootCmd.AddCommand(auditCmd)
}

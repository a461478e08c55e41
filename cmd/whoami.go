package cmd

import (
	"strings"

	"github.com/spf13/cobra"
)

// whoamiCmd shows the profile behind the saved token.
var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the authenticated account",
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := getClient()
		if err != nil {
			return err
		}

		me, correlationID, err := cli.Me(cmd.Context())
		if err != nil {
			return logError(err, correlationID, "could not fetch profile")
		}

		logSuccess("signed in as %s", bold(me.User.Email))
		cmd.Printf("  id:     %s\n", me.User.ID)
		cmd.Printf("  tenant: %s\n", me.User.TenantID)
		cmd.Printf("  role:   %s\n", me.User.Role)
		cmd.Printf("  scopes: %s\n", strings.Join(me.Scopes, ", "))
		if me.User.MFAEnabled {
			cmd.Printf("  mfa:    enabled\n")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
}

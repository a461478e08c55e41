package cmd

import (
	"github.com/spf13/cobra"
)

// infoCmd fetches build information from a remote server.
var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show build information of a remote AidDiag server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := getClient()
		if err != nil {
			return err
		}

		info, correlationID, err := cli.Info(cmd.Context())
		if err != nil {
			return logError(err, correlationID, "could not fetch server info")
		}

		cmd.Printf("service: %s\n", info.Service)
		cmd.Printf("version: %s\n", info.Version)
		cmd.Printf("commit:  %s\n", info.CommitHash)
		cmd.Printf("about:   %s\n", info.About)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

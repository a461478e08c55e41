package cmd

import (
	"encoding/json"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// auditLogCmd represents the audit log command
var auditLogCmd = &cobra.Command{
	Use:   "log",
	Short: "Retrieve and display tenant audit events",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, err := cmd.Flags().GetInt("limit")
		if err != nil {
			return err
		}

		cli, err := getClient()
		if err != nil {
			return err
		}

		log.Info().Msg("Fetching audit events...")
		events, correlationID, err := cli.ListAuditEvents(cmd.Context(), uint(limit))
		if err != nil {
			return logError(err, correlationID, "could not fetch audit events")
		}

		log.Info().Msgf("Retrieved %d audit events", len(events))

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{
			"Time", "Action", "Actor", "Entity", "Entity ID", "Meta",
		})

		for _, e := range events {
			meta := ""
			if len(e.Meta) > 0 {
				if raw, err := json.Marshal(e.Meta); err == nil {
					meta = truncate(string(raw), 60)
				}
			}

			t.AppendRow(table.Row{
				e.Time.Format(time.RFC3339),
				e.Action,
				truncate(e.ActorSub.String(), 35),
				e.Entity,
				truncate(e.EntityID, 35),
				meta,
			})
		}

		t.SetStyle(table.StyleLight)
		t.Render()
		return nil
	},
}

func init() {
	auditCmd.AddCommand(auditLogCmd)

	auditLogCmd.Flags().IntP("limit", "n", 25, "Number of audit events to retrieve")
}

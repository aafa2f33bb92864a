package main

import (
	"strings"

	"github.com/spf13/cobra"

	"transmit/internal/api"
	"transmit/internal/config"
)

func newInfoCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show server, database and archive settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.GetInfo(cmd.Context())
				if err != nil {
					return err
				}

				if *jsonOutput {
					return writeJSON(resp)
				}

				statuses := make([]string, 0, len(resp.Statuses))
				for _, status := range resp.Statuses {
					statuses = append(statuses, string(status))
				}
				_ = writePlain("db_path: %s\n", resp.DBPath)
				_ = writePlain("project: %s\n", cfg.ProjectID)
				_ = writePlain("schema_version: %d\n", resp.SchemaVersion)
				_ = writePlain("archive_concurrency: %d\n", resp.ArchiveConcurrency)
				_ = writePlain("fetch_timeout: %s\n", resp.FetchTimeout)
				_ = writePlain("notifier: %s\n", resp.Notifier)
				return writePlain("statuses: %s\n", strings.Join(statuses, ", "))
			})
		},
	}
}

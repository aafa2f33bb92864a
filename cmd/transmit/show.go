package main

import (
	"github.com/spf13/cobra"

	"transmit/internal/api"
	"transmit/internal/config"
)

func newShowCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show transmittal details",
		Args:  requireTransmittalID,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.GetTransmittal(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				return writeTransmittalDetail(resp)
			})
		},
	}
}

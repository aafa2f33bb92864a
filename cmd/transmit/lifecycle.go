package main

import (
	"context"

	"github.com/spf13/cobra"

	"transmit/internal/api"
	"transmit/internal/config"
	"transmit/internal/models"
)

type transitionFunc func(*api.Client, context.Context, string) (models.Transmittal, error)

func newSendCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return newTransitionCmd(cfg, jsonOutput, "send <id>", "Send a draft transmittal to its recipients", (*api.Client).Send)
}

func newCancelCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return newTransitionCmd(cfg, jsonOutput, "cancel <id>", "Cancel a transmittal", (*api.Client).Cancel)
}

func newTransitionCmd(cfg *config.Config, jsonOutput *bool, use, short string, transition transitionFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  requireTransmittalID,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				resp, err := transition(client, cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				return writePlain("%s %s\n", resp.ID, resp.Status)
			})
		},
	}
}

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"transmit/internal/api"
	"transmit/internal/config"
)

type ackFunc func(*api.Client, context.Context, string, api.AcknowledgeRequest) (api.AcknowledgeResponse, error)

func newViewedCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return newAckCmd(cfg, jsonOutput, "viewed", "Record that a recipient viewed a transmittal", (*api.Client).MarkViewed)
}

func newDownloadedCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return newAckCmd(cfg, jsonOutput, "downloaded", "Record that a recipient downloaded a transmittal", (*api.Client).MarkDownloaded)
}

func newAckCmd(cfg *config.Config, jsonOutput *bool, name, short string, ack ackFunc) *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   name + " <id> <email>",
		Short: short,
		Args:  requireExactlyArgs(2, "transmittal id and recipient email are required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := api.AcknowledgeRequest{Email: args[1]}
			if at != "" {
				parsed, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("invalid --at %q: expected RFC 3339", at)
				}
				req.At = &parsed
			}
			return withClient(cfg, func(client *api.Client) error {
				resp, err := ack(client, cmd.Context(), args[0], req)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				return writePlain("%s %s (transmittal %s)\n", resp.Recipient.Email, name, resp.Status)
			})
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "event time in RFC 3339 (defaults to server time)")
	return cmd
}

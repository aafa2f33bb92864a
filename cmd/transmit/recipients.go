package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"transmit/internal/api"
	"transmit/internal/config"
)

func newRecipientsCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var add []string

	cmd := &cobra.Command{
		Use:   "recipients <id>",
		Short: "List or add the recipients of a transmittal",
		Long:  "List recipients grouped into project members and others. With --add, add addresses first; use email=Name to set a display name.",
		Args:  requireTransmittalID,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				id := args[0]
				if len(add) > 0 {
					recipients, err := parseRecipients(add)
					if err != nil {
						return err
					}
					resp, err := client.AddRecipients(cmd.Context(), id, recipients)
					if err != nil {
						return err
					}
					if *jsonOutput {
						return writeJSON(resp)
					}
					return writePlain("added %d\n", resp.AddedCount)
				}

				resp, err := client.ListRecipients(cmd.Context(), id)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				return writeTable(recipientTable(resp))
			})
		},
	}

	cmd.Flags().StringSliceVar(&add, "add", nil, "recipient email to add, optionally email=Name (repeatable)")
	return cmd
}

func parseRecipients(values []string) ([]api.RecipientInput, error) {
	out := make([]api.RecipientInput, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		email, name, _ := strings.Cut(value, "=")
		if strings.TrimSpace(email) == "" {
			return nil, fmt.Errorf("invalid recipient %q", value)
		}
		out = append(out, api.RecipientInput{Email: strings.TrimSpace(email), Name: strings.TrimSpace(name)})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("at least one recipient is required")
	}
	return out, nil
}

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"transmit/internal/api"
	"transmit/internal/config"
)

func newDocsCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var add []string

	cmd := &cobra.Command{
		Use:   "docs <id>",
		Short: "List or add the documents of a transmittal",
		Long:  "List the documents of a transmittal. With --add, append references first; use urn@version to pin a version.",
		Args:  requireTransmittalID,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				id := args[0]
				if len(add) > 0 {
					refs, err := parseDocumentRefs(add)
					if err != nil {
						return err
					}
					resp, err := client.AddDocuments(cmd.Context(), id, refs)
					if err != nil {
						return err
					}
					if *jsonOutput {
						return writeJSON(resp)
					}
					return writePlain("added %d\n", resp.AddedCount)
				}

				refs, err := client.ListDocuments(cmd.Context(), id)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(refs)
				}
				return writeTable(documentRefTable(refs))
			})
		},
	}

	cmd.Flags().StringSliceVar(&add, "add", nil, "document urn to add, optionally urn@version (repeatable)")
	return cmd
}

// parseDocumentRefs splits "urn@version" values. A urn without a version is
// resolved to its latest version at download time.
func parseDocumentRefs(values []string) ([]api.DocumentRefInput, error) {
	refs := make([]api.DocumentRefInput, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		urn, version, _ := strings.Cut(value, "@")
		if strings.TrimSpace(urn) == "" {
			return nil, fmt.Errorf("invalid document reference %q", value)
		}
		refs = append(refs, api.DocumentRefInput{DocumentURN: strings.TrimSpace(urn), VersionTag: strings.TrimSpace(version)})
	}
	if len(refs) == 0 {
		return nil, fmt.Errorf("at least one document is required")
	}
	return refs, nil
}

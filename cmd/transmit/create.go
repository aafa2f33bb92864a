package main

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"transmit/internal/api"
	"transmit/internal/config"
)

type createCmdOptions struct {
	message      string
	createdBy    string
	documents    []string
	recipients   []string
	manifestPath string
	send         bool
}

func newCreateCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	opts := &createCmdOptions{}
	cmd := &cobra.Command{
		Use:   "create [title]",
		Short: "Create a draft transmittal",
		Long:  "Create a draft transmittal from flags or from a YAML manifest (--manifest). With --send, it is sent right away.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(cmd, cfg, opts, jsonOutput, args)
		},
	}

	bindCreateFlags(cmd, opts)
	return cmd
}

func runCreate(cmd *cobra.Command, cfg *config.Config, opts *createCmdOptions, jsonOutput *bool, args []string) error {
	req, err := buildCreateRequest(opts, args)
	if err != nil {
		return err
	}

	return withClient(cfg, func(client *api.Client) error {
		resp, err := client.CreateTransmittal(cmd.Context(), cfg.ProjectID, req)
		if err != nil {
			return err
		}
		created := resp.Transmittal
		if opts.send {
			created, err = client.Send(cmd.Context(), resp.TransmittalID)
			if err != nil {
				return err
			}
		}
		if *jsonOutput {
			return writeJSON(created)
		}
		return writePlain("%s\n", created.ID)
	})
}

func buildCreateRequest(opts *createCmdOptions, args []string) (api.TransmittalCreateRequest, error) {
	var req api.TransmittalCreateRequest
	if opts.manifestPath != "" {
		manifest, err := readManifest(opts.manifestPath)
		if err != nil {
			return req, err
		}
		req = manifest
	}

	if title := strings.TrimSpace(strings.Join(args, " ")); title != "" {
		req.Title = title
	}
	if opts.message != "" {
		req.Message = opts.message
	}
	if opts.createdBy != "" {
		req.CreatedBy = opts.createdBy
	}
	if len(opts.documents) > 0 {
		refs, err := parseDocumentRefs(opts.documents)
		if err != nil {
			return req, err
		}
		req.Documents = append(req.Documents, refs...)
	}
	if len(opts.recipients) > 0 {
		recipients, err := parseRecipients(opts.recipients)
		if err != nil {
			return req, err
		}
		req.Recipients = append(req.Recipients, recipients...)
	}
	if opts.send && (len(req.Documents) == 0 || len(req.Recipients) == 0) {
		return req, errors.New("--send needs at least one document and one recipient")
	}
	return req, nil
}

func bindCreateFlags(cmd *cobra.Command, opts *createCmdOptions) {
	cmd.Flags().StringVarP(&opts.message, "message", "m", "", "cover message")
	cmd.Flags().StringVar(&opts.createdBy, "created-by", "", "author email or name")
	cmd.Flags().StringSliceVarP(&opts.documents, "doc", "d", nil, "document urn, optionally urn@version (repeatable)")
	cmd.Flags().StringSliceVarP(&opts.recipients, "to", "r", nil, "recipient email, optionally email=Name (repeatable)")
	cmd.Flags().StringVarP(&opts.manifestPath, "manifest", "f", "", "YAML manifest with title, message, documents and recipients")
	cmd.Flags().BoolVar(&opts.send, "send", false, "send immediately after creating")
}

package main

import (
	"github.com/spf13/cobra"

	"transmit/internal/api"
	"transmit/internal/config"
)

func newMembersCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "members",
		Short: "List project members",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				members, err := client.ListMembers(cmd.Context(), cfg.ProjectID)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(members)
				}
				return writeTable(memberTable(members))
			})
		},
	}

	cmd.AddCommand(newMembersAddCmd(cfg, jsonOutput))
	return cmd
}

func newMembersAddCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var req api.MemberRequest

	cmd := &cobra.Command{
		Use:   "add <email>",
		Short: "Register a project member",
		Args:  requireExactlyArgs(1, "member email is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Email = args[0]
			return withClient(cfg, func(client *api.Client) error {
				member, err := client.RegisterMember(cmd.Context(), cfg.ProjectID, req)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(member)
				}
				return writePlain("%s\n", member.Email)
			})
		},
	}

	cmd.Flags().StringVar(&req.Name, "name", "", "display name")
	cmd.Flags().StringVar(&req.Company, "company", "", "company")
	return cmd
}

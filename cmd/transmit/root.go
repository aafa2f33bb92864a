package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"transmit/internal/config"
)

func newRootCmd(cfg *config.Config) *cobra.Command {
	var (
		jsonOutput bool
		logLevel   string
		projectID  string
	)

	cmd := &cobra.Command{
		Use:           "transmit",
		Short:         "Transmit distributes document packages to project recipients and tracks their receipt",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logging, err := setupCLILogging(cmd.CommandPath(), logLevel, cfg.LogLevel, jsonOutput)
			if err != nil {
				return err
			}
			if logging.Warning != "" {
				fmt.Fprintln(os.Stderr, logging.Warning)
			}
			if value := strings.TrimSpace(projectID); value != "" {
				cfg.ProjectID = value
			}
			return nil
		},
	}

	cmd.Version = version
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output JSON")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVarP(&projectID, "project", "P", "", "project id (defaults to project_id config)")

	cmd.AddCommand(
		newSrvCmd(cfg),
		newInfoCmd(cfg, &jsonOutput),
		newMigrateCmd(cfg, &jsonOutput),
		newConfigCmd(cfg),
		newListCmd(cfg, &jsonOutput),
		newCreateCmd(cfg, &jsonOutput),
		newShowCmd(cfg, &jsonOutput),
		newSendCmd(cfg, &jsonOutput),
		newCancelCmd(cfg, &jsonOutput),
		newDocsCmd(cfg, &jsonOutput),
		newRecipientsCmd(cfg, &jsonOutput),
		newViewedCmd(cfg, &jsonOutput),
		newDownloadedCmd(cfg, &jsonOutput),
		newDownloadCmd(cfg, &jsonOutput),
		newUploadCmd(cfg, &jsonOutput),
		newVersionsCmd(cfg, &jsonOutput),
		newSearchCmd(cfg, &jsonOutput),
		newFoldersCmd(cfg, &jsonOutput),
		newMembersCmd(cfg, &jsonOutput),
	)

	return cmd
}

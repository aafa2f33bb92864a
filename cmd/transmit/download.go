package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"transmit/internal/api"
	"transmit/internal/config"
)

func newDownloadCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var (
		email  string
		output string
	)

	cmd := &cobra.Command{
		Use:   "download <id>",
		Short: "Download a transmittal as a zip archive",
		Long:  "Download every retrievable document of a transmittal as one zip archive. Documents that cannot be fetched are skipped and reported. With --email, the download is recorded for that recipient.",
		Args:  requireTransmittalID,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				path, dl, err := downloadArchive(cmd.Context(), client, args[0], email, output)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(struct {
						Path string `json:"path"`
						api.ArchiveDownload
					}{Path: path, ArchiveDownload: dl})
				}
				return writeArchiveSummary(path, dl)
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "recipient email to record the download for")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file or directory (defaults to the server-provided name in the current directory)")
	return cmd
}

// downloadArchive spools the archive next to its destination and renames it
// into place once the body is complete.
func downloadArchive(ctx context.Context, client *api.Client, id, email, output string) (string, api.ArchiveDownload, error) {
	dir, target := resolveDownloadTarget(output)

	tmp, err := os.CreateTemp(dir, ".transmit-download-*")
	if err != nil {
		return "", api.ArchiveDownload{}, err
	}
	tmpPath := tmp.Name()
	keep := false
	defer func() {
		if !keep {
			_ = os.Remove(tmpPath)
		}
	}()

	dl, err := client.DownloadArchive(ctx, id, email, tmp)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if api.IsEmptyArchive(err) {
		return "", dl, fmt.Errorf("transmittal %s has no retrievable documents: %w", id, err)
	}
	if err != nil {
		return "", dl, err
	}

	if target == "" {
		target = filepath.Join(dir, archiveFileName(dl.Filename))
	}
	if err := os.Rename(tmpPath, target); err != nil {
		return "", dl, fmt.Errorf("save archive: %w", err)
	}
	keep = true
	return target, dl, nil
}

// resolveDownloadTarget returns the directory to spool in and, when output
// names a file, the final path.
func resolveDownloadTarget(output string) (string, string) {
	output = strings.TrimSpace(output)
	if output == "" {
		return ".", ""
	}
	if info, err := os.Stat(output); err == nil && info.IsDir() {
		return output, ""
	}
	return filepath.Dir(output), output
}

func archiveFileName(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "download.zip"
	}
	return name
}

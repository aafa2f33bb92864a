package main

import (
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"transmit/internal/api"
	"transmit/internal/config"
	"transmit/internal/format"
)

func newUploadCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var in api.DocumentUploadRequest

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a file to the project's document index",
		Long:  "Upload a file as a new document, or as a new version of an existing document with --urn.",
		Args:  requireExactlyArgs(1, "file path is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			req := in
			if req.Name == "" {
				req.Name = filepath.Base(args[0])
			}
			if req.MediaType == "" {
				req.MediaType = mime.TypeByExtension(filepath.Ext(args[0]))
			}

			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.UploadDocument(cmd.Context(), cfg.ProjectID, req, f)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				return writePlain("%s %s (%s)\n", resp.Document.URN, resp.Version.VersionTag, format.Size(resp.Version.SizeBytes))
			})
		},
	}

	cmd.Flags().StringVar(&in.Name, "name", "", "document name (defaults to the file name)")
	cmd.Flags().StringVar(&in.Folder, "folder", "", "folder path within the project")
	cmd.Flags().StringVar(&in.URN, "urn", "", "existing document urn to add a version to")
	cmd.Flags().StringVar(&in.MediaType, "type", "", "media type (detected when omitted)")
	return cmd
}

func newVersionsCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "versions <urn>",
		Short: "List the versions of a document, newest first",
		Args:  requireExactlyArgs(1, "document urn is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				versions, err := client.ListDocumentVersions(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(versions)
				}
				return writeTable(versionTable(versions))
			})
		},
	}
}

func newSearchCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var folder string

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search project documents by name and folder",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			return withClient(cfg, func(client *api.Client) error {
				docs, err := client.SearchDocuments(cmd.Context(), cfg.ProjectID, query, folder)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(docs)
				}
				return writeTable(documentTable(docs))
			})
		},
	}

	cmd.Flags().StringVar(&folder, "folder", "", "only documents in this folder or below")
	return cmd
}

func newFoldersCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "folders [folder]",
		Short: "Show the project folder tree with document counts",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			under := ""
			if len(args) == 1 {
				under = args[0]
			}
			return withClient(cfg, func(client *api.Client) error {
				folders, err := client.ListFolders(cmd.Context(), cfg.ProjectID, under)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(folders)
				}
				return writeTable(folderTable(folders))
			})
		},
	}
}

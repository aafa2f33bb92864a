package main

import (
	"fmt"
	"io"
	"os"
	"path"
	"strconv"
	"strings"

	"transmit/internal/api"
	"transmit/internal/format"
	"transmit/internal/models"
)

var (
	stdout          io.Writer        = os.Stdout
	outputFormatter format.Formatter = format.JSONFormatter{}
	tableFormatter  format.Formatter = format.TableFormatter{Styled: format.IsTerminal(os.Stdout)}
)

func writeJSON(payload any) error {
	return outputFormatter.Write(stdout, payload)
}

func writePlain(pattern string, args ...any) error {
	_, err := fmt.Fprintf(stdout, pattern, args...)
	return err
}

func writeTable(t format.Table) error {
	return tableFormatter.Write(stdout, t)
}

func transmittalTable(items []models.Transmittal) format.Table {
	t := format.Table{Header: []string{"ID", "STATUS", "DOCS", "RECIPIENTS", "CREATED", "TITLE"}}
	for _, item := range items {
		t.Append(
			item.ID,
			string(item.Status),
			strconv.Itoa(item.DocumentCount),
			strconv.Itoa(item.RecipientCount),
			format.Ago(item.CreatedAt),
			item.Title,
		)
	}
	return t
}

func writeTransmittalDetail(t models.Transmittal) error {
	lines := [][2]string{
		{"id", t.ID},
		{"project", t.ProjectID},
		{"title", t.Title},
		{"status", string(t.Status)},
		{"documents", strconv.Itoa(t.DocumentCount)},
		{"recipients", strconv.Itoa(t.RecipientCount)},
		{"created_at", format.Time(t.CreatedAt)},
		{"updated_at", format.Time(t.UpdatedAt)},
	}
	if t.CreatedBy != "" {
		lines = append(lines, [2]string{"created_by", t.CreatedBy})
	}
	if t.SentAt != nil {
		lines = append(lines, [2]string{"sent_at", format.OptionalTime(t.SentAt)})
	}
	if t.CompletedAt != nil {
		lines = append(lines, [2]string{"completed_at", format.OptionalTime(t.CompletedAt)})
	}
	if t.CancelledAt != nil {
		lines = append(lines, [2]string{"cancelled_at", format.OptionalTime(t.CancelledAt)})
	}
	if t.Message != "" {
		lines = append(lines, [2]string{"message", t.Message})
	}
	for _, line := range lines {
		if err := writePlain("%s: %s\n", line[0], line[1]); err != nil {
			return err
		}
	}
	return nil
}

func documentRefTable(refs []models.DocumentRef) format.Table {
	t := format.Table{Header: []string{"#", "URN", "VERSION", "ADDED"}}
	for _, ref := range refs {
		version := ref.VersionTag
		if version == "" {
			version = "latest"
		}
		t.Append(strconv.Itoa(ref.Position+1), ref.DocumentURN, version, format.Time(ref.AddedAt))
	}
	return t
}

func recipientTable(resp api.RecipientsResponse) format.Table {
	t := format.Table{Header: []string{"EMAIL", "KIND", "NAME", "VIEWED", "DOWNLOADED"}}
	for _, group := range [][]models.Recipient{resp.Members, resp.NonMembers} {
		for _, r := range group {
			t.Append(r.Email, string(r.Kind), r.Name, format.OptionalTime(r.ViewedAt), format.OptionalTime(r.DownloadedAt))
		}
	}
	return t
}

func documentTable(docs []models.Document) format.Table {
	t := format.Table{Header: []string{"URN", "FOLDER", "NAME", "LATEST", "UPDATED"}}
	for _, doc := range docs {
		t.Append(doc.URN, doc.Folder, doc.Name, doc.LatestVersion, format.Ago(doc.UpdatedAt))
	}
	return t
}

// folderTable indents each folder under its parent; the root prints as "/".
func folderTable(folders []models.Folder) format.Table {
	t := format.Table{Header: []string{"FOLDER", "DOCUMENTS", "TOTAL"}}
	for _, f := range folders {
		label := "/"
		if f.Path != "" {
			depth := strings.Count(f.Path, "/")
			label = strings.Repeat("  ", depth+1) + path.Base(f.Path)
		}
		t.Append(label, strconv.Itoa(f.Documents), strconv.Itoa(f.Total))
	}
	return t
}

func versionTable(versions []models.DocumentVersion) format.Table {
	t := format.Table{Header: []string{"VERSION", "SIZE", "TYPE", "SHA256", "CREATED"}}
	for _, v := range versions {
		t.Append(v.VersionTag, format.Size(v.SizeBytes), v.MediaType, v.SHA256, format.Time(v.CreatedAt))
	}
	return t
}

func memberTable(members []models.Member) format.Table {
	t := format.Table{Header: []string{"EMAIL", "NAME", "COMPANY"}}
	for _, m := range members {
		t.Append(m.Email, m.Name, m.Company)
	}
	return t
}

func writeArchiveSummary(path string, dl api.ArchiveDownload) error {
	if err := writePlain("saved %s (%d files, %s)\n", path, dl.FileCount, format.Size(dl.TotalSize)); err != nil {
		return err
	}
	for _, failed := range dl.FailedFiles {
		if err := writePlain("skipped %s: %s\n", failed.DocumentURN, failed.Reason); err != nil {
			return err
		}
	}
	return nil
}

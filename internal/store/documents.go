package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"transmit/internal/models"
)

const documentColumns = "urn, project_id, name, folder, latest_version, created_at, updated_at"
const versionColumns = "document_urn, number, version_tag, sha256, size_bytes, media_type, blob_key, created_at"

// CreateDocument inserts a document together with its first version.
func (s *Store) CreateDocument(ctx context.Context, doc *models.Document, version *models.DocumentVersion) (err error) {
	if doc == nil || version == nil {
		return fmt.Errorf("document and version are required")
	}
	if doc.URN == "" || doc.ProjectID == "" || strings.TrimSpace(doc.Name) == "" {
		return fmt.Errorf("document urn, project id and name are required")
	}

	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = doc.CreatedAt

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			rollback(tx)
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (urn, project_id, name, folder, latest_version, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?)
	`, doc.URN, doc.ProjectID, doc.Name, doc.Folder, formatTime(doc.CreatedAt), formatTime(doc.UpdatedAt))
	if err != nil {
		return err
	}

	version.DocumentURN = doc.URN
	if err = insertVersionTx(ctx, tx, version, doc.CreatedAt); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	doc.LatestVersion = version.VersionTag
	return nil
}

// AddDocumentVersion appends the next version of an existing document.
func (s *Store) AddDocumentVersion(ctx context.Context, urn string, version *models.DocumentVersion) (err error) {
	if version == nil {
		return fmt.Errorf("version is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			rollback(tx)
		}
	}()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM documents WHERE urn = ?", urn).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrDocumentNotFound
		return err
	}
	if err != nil {
		return err
	}

	version.DocumentURN = urn
	if err = insertVersionTx(ctx, tx, version, time.Now().UTC()); err != nil {
		return err
	}
	return tx.Commit()
}

// GetDocument returns a document by urn.
func (s *Store) GetDocument(ctx context.Context, urn string) (*models.Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE urn = ?`, urn)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDocumentNotFound
	}
	return doc, err
}

// GetDocuments returns the known documents among urns keyed by urn.
func (s *Store) GetDocuments(ctx context.Context, urns []string) (map[string]models.Document, error) {
	out := make(map[string]models.Document, len(urns))
	if len(urns) == 0 {
		return out, nil
	}
	args := make([]any, 0, len(urns))
	for _, urn := range urns {
		args = append(args, urn)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE urn IN (`+placeholders(len(urns))+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out[doc.URN] = *doc
	}
	return out, rows.Err()
}

// ListDocumentVersions lists versions of a document, newest first.
func (s *Store) ListDocumentVersions(ctx context.Context, urn string) ([]models.DocumentVersion, error) {
	if _, err := s.GetDocument(ctx, urn); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+versionColumns+` FROM document_versions WHERE document_urn = ? ORDER BY number DESC`, urn)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	versions := []models.DocumentVersion{}
	for rows.Next() {
		version, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, *version)
	}
	return versions, rows.Err()
}

// ResolveDocument pins a document reference to a concrete version. An empty
// versionTag selects the latest version at call time.
func (s *Store) ResolveDocument(ctx context.Context, urn, versionTag string) (models.ResolvedDocument, error) {
	var zero models.ResolvedDocument
	doc, err := s.GetDocument(ctx, urn)
	if err != nil {
		return zero, err
	}

	var row *sql.Row
	if versionTag == "" {
		row = s.db.QueryRowContext(ctx, `
			SELECT `+versionColumns+` FROM document_versions
			WHERE document_urn = ? ORDER BY number DESC LIMIT 1
		`, urn)
	} else {
		row = s.db.QueryRowContext(ctx, `SELECT `+versionColumns+` FROM document_versions WHERE document_urn = ? AND version_tag = ?`, urn, versionTag)
	}
	version, err := scanVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, fmt.Errorf("%w: %s version %q", ErrDocumentNotFound, urn, versionTag)
	}
	if err != nil {
		return zero, err
	}
	return models.ResolvedDocument{Document: *doc, Version: *version}, nil
}

// DocumentFilter narrows SearchDocuments.
type DocumentFilter struct {
	ProjectID string
	Query     string
	Folder    string
	Limit     int
	Offset    int
}

// SearchDocuments lists project documents by name substring and folder prefix.
func (s *Store) SearchDocuments(ctx context.Context, filter DocumentFilter) ([]models.Document, error) {
	where := []string{"project_id = ?"}
	args := []any{filter.ProjectID}

	if q := strings.TrimSpace(filter.Query); q != "" {
		where = append(where, "name LIKE ? ESCAPE '\\'")
		args = append(args, "%"+escapeLike(q)+"%")
	}
	if folder := strings.Trim(strings.TrimSpace(filter.Folder), "/"); folder != "" {
		where = append(where, "(folder = ? OR folder LIKE ? ESCAPE '\\')")
		args = append(args, folder, escapeLike(folder)+"/%")
	}

	query := `SELECT ` + documentColumns + ` FROM documents WHERE ` + strings.Join(where, " AND ") + ` ORDER BY folder ASC, name ASC, urn ASC`
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := []models.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// CountDocumentsByFolder returns the number of documents directly inside each
// folder that holds at least one document.
func (s *Store) CountDocumentsByFolder(ctx context.Context, projectID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT folder, COUNT(*) FROM documents
		WHERE project_id = ?
		GROUP BY folder
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var folder string
		var n int
		if err := rows.Scan(&folder, &n); err != nil {
			return nil, err
		}
		counts[folder] = n
	}
	return counts, rows.Err()
}

func insertVersionTx(ctx context.Context, tx *sql.Tx, version *models.DocumentVersion, at time.Time) error {
	var latest int
	if err := tx.QueryRowContext(ctx, "SELECT latest_version FROM documents WHERE urn = ?", version.DocumentURN).Scan(&latest); err != nil {
		return err
	}

	version.Number = latest + 1
	version.VersionTag = versionTag(version.Number)
	if version.CreatedAt.IsZero() {
		version.CreatedAt = at
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO document_versions (document_urn, number, version_tag, sha256, size_bytes, media_type, blob_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, version.DocumentURN, version.Number, version.VersionTag, version.SHA256, version.SizeBytes,
		nullIfEmpty(version.MediaType), version.BlobKey, formatTime(version.CreatedAt))
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, "UPDATE documents SET latest_version = ?, updated_at = ? WHERE urn = ?",
		version.Number, formatTime(version.CreatedAt), version.DocumentURN)
	return err
}

func versionTag(number int) string {
	return fmt.Sprintf("v%d", number)
}

func scanDocument(scanner rowScanner) (*models.Document, error) {
	var doc models.Document
	var latest int
	var createdAt, updatedAt string
	if err := scanner.Scan(&doc.URN, &doc.ProjectID, &doc.Name, &doc.Folder, &latest, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if latest > 0 {
		doc.LatestVersion = versionTag(latest)
	}
	var err error
	if doc.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if doc.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &doc, nil
}

func scanVersion(scanner rowScanner) (*models.DocumentVersion, error) {
	var v models.DocumentVersion
	var mediaType sql.NullString
	var createdAt string
	if err := scanner.Scan(&v.DocumentURN, &v.Number, &v.VersionTag, &v.SHA256, &v.SizeBytes, &mediaType, &v.BlobKey, &createdAt); err != nil {
		return nil, err
	}
	v.MediaType = mediaType.String
	var err error
	if v.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &v, nil
}

func placeholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimRight(strings.Repeat("?,", count), ",")
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}

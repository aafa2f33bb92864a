package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"transmit/internal/models"
)

const transmittalColumns = `t.id, t.project_id, t.title, t.message, t.created_by, t.status,
	t.created_at, t.updated_at, t.sent_at, t.completed_at, t.cancelled_at,
	(SELECT COUNT(*) FROM transmittal_documents d WHERE d.transmittal_id = t.id),
	(SELECT COUNT(*) FROM transmittal_recipients r WHERE r.transmittal_id = t.id)`

const recipientColumns = "email, name, kind, viewed_at, downloaded_at, added_at"

// CreateTransmittal inserts a draft transmittal with optional initial documents
// and recipients in one transaction.
func (s *Store) CreateTransmittal(ctx context.Context, t *models.Transmittal, docs []models.DocumentRef, recipients []models.Recipient) (err error) {
	if t == nil {
		return fmt.Errorf("transmittal is required")
	}
	if t.ID == "" || t.ProjectID == "" {
		return fmt.Errorf("transmittal id and project id are required")
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.CreatedAt
	}
	t.Status = models.StatusDraft

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
		INSERT INTO transmittals (id, project_id, title, message, created_by, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		t.ID,
		t.ProjectID,
		t.Title,
		nullIfEmpty(t.Message),
		nullIfEmpty(t.CreatedBy),
		string(t.Status),
		formatTime(t.CreatedAt),
		formatTime(t.UpdatedAt),
	)
	if err != nil {
		return err
	}

	docCount, err := insertDocumentRefsTx(ctx, tx, t.ID, docs, t.CreatedAt)
	if err != nil {
		return err
	}
	recipientCount, err := insertRecipientsTx(ctx, tx, t.ID, recipients, t.CreatedAt)
	if err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return err
	}
	t.DocumentCount = docCount
	t.RecipientCount = recipientCount
	return nil
}

// GetTransmittal returns one transmittal with document and recipient counts.
func (s *Store) GetTransmittal(ctx context.Context, id string) (*models.Transmittal, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+transmittalColumns+` FROM transmittals t WHERE t.id = ?`, id)
	t, err := scanTransmittal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransmittalNotFound
	}
	return t, err
}

// ListTransmittals returns one page of a project's transmittals, newest first,
// and the total number of transmittals in the project.
func (s *Store) ListTransmittals(ctx context.Context, projectID string, limit, offset int) ([]models.Transmittal, int, error) {
	if limit <= 0 {
		return nil, 0, fmt.Errorf("limit must be positive")
	}
	if offset < 0 {
		return nil, 0, fmt.Errorf("offset must be >= 0")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transmittals WHERE project_id = ?", projectID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+transmittalColumns+`
		FROM transmittals t
		WHERE t.project_id = ?
		ORDER BY t.created_at DESC, t.id DESC
		LIMIT ? OFFSET ?
	`, projectID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := []models.Transmittal{}
	for rows.Next() {
		t, err := scanTransmittal(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// AddDocuments appends document references in the given order. References
// already attached are ignored and not counted.
func (s *Store) AddDocuments(ctx context.Context, id string, refs []models.DocumentRef) (_ int, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			rollback(tx)
		}
	}()

	if err = requireMutableTx(ctx, tx, id); err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	added, err := insertDocumentRefsTx(ctx, tx, id, refs, now)
	if err != nil {
		return 0, err
	}
	if err = touchTx(ctx, tx, id, now, added); err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return added, nil
}

// AddRecipients adds recipient entries. Emails already present are ignored
// and not counted.
func (s *Store) AddRecipients(ctx context.Context, id string, recipients []models.Recipient) (_ int, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			rollback(tx)
		}
	}()

	if err = requireMutableTx(ctx, tx, id); err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	added, err := insertRecipientsTx(ctx, tx, id, recipients, now)
	if err != nil {
		return 0, err
	}
	if err = touchTx(ctx, tx, id, now, added); err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return added, nil
}

// ListDocuments returns a transmittal's document references in attachment order.
func (s *Store) ListDocuments(ctx context.Context, id string) ([]models.DocumentRef, error) {
	if err := s.requireTransmittal(ctx, id); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT document_urn, version_tag, position, added_at
		FROM transmittal_documents
		WHERE transmittal_id = ?
		ORDER BY position ASC
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	refs := []models.DocumentRef{}
	for rows.Next() {
		var ref models.DocumentRef
		var addedAt string
		if err := rows.Scan(&ref.DocumentURN, &ref.VersionTag, &ref.Position, &addedAt); err != nil {
			return nil, err
		}
		if ref.AddedAt, err = parseTime(addedAt); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// ListRecipients returns a transmittal's recipients in the order they were added.
func (s *Store) ListRecipients(ctx context.Context, id string) ([]models.Recipient, error) {
	if err := s.requireTransmittal(ctx, id); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recipientColumns+`
		FROM transmittal_recipients
		WHERE transmittal_id = ?
		ORDER BY added_at ASC, rowid ASC
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recipients := []models.Recipient{}
	for rows.Next() {
		recipient, err := scanRecipient(rows)
		if err != nil {
			return nil, err
		}
		recipients = append(recipients, *recipient)
	}
	return recipients, rows.Err()
}

// MarkRecipient records a view or download acknowledgement. The first recorded
// timestamp wins; repeated calls leave it untouched.
func (s *Store) MarkRecipient(ctx context.Context, id, email string, kind models.AckKind, at time.Time) (_ *models.Recipient, err error) {
	var column string
	switch kind {
	case models.AckViewed:
		column = "viewed_at"
	case models.AckDownloaded:
		column = "downloaded_at"
	default:
		return nil, fmt.Errorf("invalid acknowledgement kind: %s", kind)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			rollback(tx)
		}
	}()

	if err = requireMutableTx(ctx, tx, id); err != nil {
		return nil, err
	}

	email = models.NormalizeEmail(email)
	query := fmt.Sprintf("UPDATE transmittal_recipients SET %[1]s = COALESCE(%[1]s, ?) WHERE transmittal_id = ? AND email = ?", column)
	res, err := tx.ExecContext(ctx, query, formatTime(at), id, email)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		err = ErrRecipientNotFound
		return nil, err
	}

	row := tx.QueryRowContext(ctx, `SELECT `+recipientColumns+` FROM transmittal_recipients WHERE transmittal_id = ? AND email = ?`, id, email)
	recipient, err := scanRecipient(row)
	if err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return recipient, nil
}

// UpdateStatus moves a transmittal from one status to another. It fails with
// ErrStatusConflict when the current status is not from. A move to sent also
// requires at least one document and one recipient, checked in the same
// statement so a concurrent append cannot be observed half-way.
func (s *Store) UpdateStatus(ctx context.Context, id string, from, to models.TransmittalStatus, at time.Time) error {
	var column string
	switch to {
	case models.StatusSent:
		column = "sent_at"
	case models.StatusCompleted:
		column = "completed_at"
	case models.StatusCancelled:
		column = "cancelled_at"
	default:
		return fmt.Errorf("invalid target status: %s", to)
	}

	query := fmt.Sprintf("UPDATE transmittals SET status = ?, updated_at = ?, %s = ? WHERE id = ? AND status = ?", column)
	if to == models.StatusSent {
		query += ` AND EXISTS (SELECT 1 FROM transmittal_documents WHERE transmittal_id = transmittals.id)
			AND EXISTS (SELECT 1 FROM transmittal_recipients WHERE transmittal_id = transmittals.id)`
	}

	stamp := formatTime(at)
	res, err := s.db.ExecContext(ctx, query, string(to), stamp, stamp, id, string(from))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	current, err := s.GetTransmittal(ctx, id)
	if err != nil {
		return err
	}
	if current.Status == from && to == models.StatusSent {
		return ErrTransmittalIncomplete
	}
	return fmt.Errorf("%w: %s -> %s (current %s)", ErrStatusConflict, from, to, current.Status)
}

func (s *Store) requireTransmittal(ctx context.Context, id string) error {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM transmittals WHERE id = ? LIMIT 1", id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrTransmittalNotFound
	}
	return err
}

// requireMutableTx fails when the transmittal is unknown or cancelled.
func requireMutableTx(ctx context.Context, tx *sql.Tx, id string) error {
	var status string
	err := tx.QueryRowContext(ctx, "SELECT status FROM transmittals WHERE id = ?", id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrTransmittalNotFound
	}
	if err != nil {
		return err
	}
	if models.TransmittalStatus(status).IsTerminal() {
		return ErrTransmittalCancelled
	}
	return nil
}

func touchTx(ctx context.Context, tx *sql.Tx, id string, at time.Time, changed int) error {
	if changed == 0 {
		return nil
	}
	_, err := tx.ExecContext(ctx, "UPDATE transmittals SET updated_at = ? WHERE id = ?", formatTime(at), id)
	return err
}

func insertDocumentRefsTx(ctx context.Context, tx *sql.Tx, id string, refs []models.DocumentRef, at time.Time) (int, error) {
	if len(refs) == 0 {
		return 0, nil
	}

	var next int
	if err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(position) + 1, 0) FROM transmittal_documents WHERE transmittal_id = ?", id).Scan(&next); err != nil {
		return 0, err
	}

	added := 0
	for _, ref := range refs {
		if ref.DocumentURN == "" {
			return added, fmt.Errorf("document_urn is required")
		}
		res, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO transmittal_documents (transmittal_id, position, document_urn, version_tag, added_at)
			VALUES (?, ?, ?, ?, ?)
		`, id, next, ref.DocumentURN, ref.VersionTag, formatTime(at))
		if err != nil {
			return added, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return added, err
		}
		if n > 0 {
			next++
			added++
		}
	}
	return added, nil
}

func insertRecipientsTx(ctx context.Context, tx *sql.Tx, id string, recipients []models.Recipient, at time.Time) (int, error) {
	added := 0
	for _, recipient := range recipients {
		email := models.NormalizeEmail(recipient.Email)
		if email == "" {
			return added, fmt.Errorf("recipient email is required")
		}
		kind := recipient.Kind
		if kind == "" {
			kind = models.RecipientNonMember
		}
		res, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO transmittal_recipients (transmittal_id, email, name, kind, added_at)
			VALUES (?, ?, ?, ?, ?)
		`, id, email, nullIfEmpty(recipient.Name), string(kind), formatTime(at))
		if err != nil {
			return added, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return added, err
		}
		added += int(n)
	}
	return added, nil
}

func scanTransmittal(scanner rowScanner) (*models.Transmittal, error) {
	var t models.Transmittal
	var message, createdBy sql.NullString
	var status, createdAt, updatedAt string
	var sentAt, completedAt, cancelledAt sql.NullString

	if err := scanner.Scan(
		&t.ID,
		&t.ProjectID,
		&t.Title,
		&message,
		&createdBy,
		&status,
		&createdAt,
		&updatedAt,
		&sentAt,
		&completedAt,
		&cancelledAt,
		&t.DocumentCount,
		&t.RecipientCount,
	); err != nil {
		return nil, err
	}

	t.Message = message.String
	t.CreatedBy = createdBy.String
	t.Status = models.TransmittalStatus(status)

	var err error
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if t.SentAt, err = parseNullTime(sentAt); err != nil {
		return nil, err
	}
	if t.CompletedAt, err = parseNullTime(completedAt); err != nil {
		return nil, err
	}
	if t.CancelledAt, err = parseNullTime(cancelledAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func scanRecipient(scanner rowScanner) (*models.Recipient, error) {
	var r models.Recipient
	var name sql.NullString
	var kind, addedAt string
	var viewedAt, downloadedAt sql.NullString

	if err := scanner.Scan(&r.Email, &name, &kind, &viewedAt, &downloadedAt, &addedAt); err != nil {
		return nil, err
	}
	r.Name = name.String
	r.Kind = models.RecipientKind(kind)

	var err error
	if r.ViewedAt, err = parseNullTime(viewedAt); err != nil {
		return nil, err
	}
	if r.DownloadedAt, err = parseNullTime(downloadedAt); err != nil {
		return nil, err
	}
	if r.AddedAt, err = parseTime(addedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

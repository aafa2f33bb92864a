package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"transmit/internal/models"
)

// UpsertMember registers or updates a project directory member.
func (s *Store) UpsertMember(ctx context.Context, member *models.Member) error {
	if member == nil {
		return fmt.Errorf("member is required")
	}
	member.Email = models.NormalizeEmail(member.Email)
	if member.ProjectID == "" || member.Email == "" {
		return fmt.Errorf("member project id and email are required")
	}
	if member.CreatedAt.IsZero() {
		member.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO members (project_id, email, name, company, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(project_id, email) DO UPDATE SET name = excluded.name, company = excluded.company
	`, member.ProjectID, member.Email, nullIfEmpty(member.Name), nullIfEmpty(member.Company), formatTime(member.CreatedAt))
	return err
}

// GetMember returns a member by email, or nil when the address is not in the
// project directory.
func (s *Store) GetMember(ctx context.Context, projectID, email string) (*models.Member, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT project_id, email, name, company, created_at FROM members
		WHERE project_id = ? AND email = ?
	`, projectID, models.NormalizeEmail(email))
	member, err := scanMember(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return member, err
}

// ListMembers lists a project's directory members by email.
func (s *Store) ListMembers(ctx context.Context, projectID string) ([]models.Member, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT project_id, email, name, company, created_at FROM members
		WHERE project_id = ? ORDER BY email ASC
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := []models.Member{}
	for rows.Next() {
		member, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, *member)
	}
	return members, rows.Err()
}

func scanMember(scanner rowScanner) (*models.Member, error) {
	var m models.Member
	var name, company sql.NullString
	var createdAt string
	if err := scanner.Scan(&m.ProjectID, &m.Email, &name, &company, &createdAt); err != nil {
		return nil, err
	}
	m.Name = name.String
	m.Company = company.String
	var err error
	if m.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &m, nil
}

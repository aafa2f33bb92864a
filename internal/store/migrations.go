package store

import (
	"database/sql"
	"fmt"
	"sort"
)

// Migration represents a schema migration step.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// MigrationStatus reports the current and available migration versions.
type MigrationStatus struct {
	CurrentVersion   int             `json:"current_version"`
	AvailableVersion int             `json:"available_version"`
	Pending          []MigrationInfo `json:"pending"`
}

// MigrationInfo describes a single migration.
type MigrationInfo struct {
	Version     int    `json:"version"`
	Description string `json:"description"`
}

// migrations is the ordered list of all schema migrations.
var migrations = []Migration{
	{
		Version:     1,
		Description: "transmittals with ordered document references and recipients",
		SQL: `
CREATE TABLE IF NOT EXISTS transmittals (
  id TEXT PRIMARY KEY,
  project_id TEXT NOT NULL,
  title TEXT NOT NULL,
  message TEXT,
  created_by TEXT,
  status TEXT NOT NULL,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL,
  sent_at TEXT,
  completed_at TEXT,
  cancelled_at TEXT
);

CREATE TABLE IF NOT EXISTS transmittal_documents (
  transmittal_id TEXT NOT NULL,
  position INTEGER NOT NULL,
  document_urn TEXT NOT NULL,
  version_tag TEXT NOT NULL DEFAULT '',
  added_at TEXT NOT NULL,
  UNIQUE(transmittal_id, document_urn, version_tag),
  UNIQUE(transmittal_id, position),
  FOREIGN KEY (transmittal_id) REFERENCES transmittals(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS transmittal_recipients (
  transmittal_id TEXT NOT NULL,
  email TEXT NOT NULL,
  name TEXT,
  kind TEXT NOT NULL,
  viewed_at TEXT,
  downloaded_at TEXT,
  added_at TEXT NOT NULL,
  UNIQUE(transmittal_id, email),
  FOREIGN KEY (transmittal_id) REFERENCES transmittals(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_transmittals_project_created ON transmittals(project_id, created_at DESC, id DESC);
CREATE INDEX IF NOT EXISTS idx_transmittal_documents_order ON transmittal_documents(transmittal_id, position);
`,
	},
	{
		Version:     2,
		Description: "document index: documents and immutable versions",
		SQL: `
CREATE TABLE IF NOT EXISTS documents (
  urn TEXT PRIMARY KEY,
  project_id TEXT NOT NULL,
  name TEXT NOT NULL,
  folder TEXT NOT NULL DEFAULT '',
  latest_version INTEGER NOT NULL DEFAULT 0,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS document_versions (
  document_urn TEXT NOT NULL,
  number INTEGER NOT NULL,
  version_tag TEXT NOT NULL,
  sha256 TEXT NOT NULL,
  size_bytes INTEGER NOT NULL,
  media_type TEXT,
  blob_key TEXT NOT NULL,
  created_at TEXT NOT NULL,
  UNIQUE(document_urn, number),
  UNIQUE(document_urn, version_tag),
  FOREIGN KEY (document_urn) REFERENCES documents(urn) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_documents_project_folder ON documents(project_id, folder, name);
`,
	},
	{
		Version:     3,
		Description: "recipient directory members",
		SQL: `
CREATE TABLE IF NOT EXISTS members (
  project_id TEXT NOT NULL,
  email TEXT NOT NULL,
  name TEXT,
  company TEXT,
  created_at TEXT NOT NULL,
  PRIMARY KEY (project_id, email)
);
`,
	},
}

const migrationsTableSQL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  applied_at TEXT NOT NULL
);
`

func ensureMigrationsTable(db *sql.DB) error {
	_, err := db.Exec(migrationsTableSQL)
	return err
}

// currentVersion returns the highest applied migration version, or 0 if none.
func currentVersion(db *sql.DB) (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, err
	}
	return version, nil
}

func sortedMigrations() []Migration {
	sorted := make([]Migration, len(migrations))
	copy(sorted, migrations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })
	return sorted
}

// runMigrations applies all pending migrations in order, one transaction each.
func runMigrations(db *sql.DB) error {
	if err := ensureMigrationsTable(db); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	current, err := currentVersion(db)
	if err != nil {
		return fmt.Errorf("get current version: %w", err)
	}

	for _, m := range sortedMigrations() {
		if m.Version <= current {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_migrations (version, applied_at) VALUES (?, datetime('now'))", m.Version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// MigrationPlan returns the current migration status without applying anything.
func MigrationPlan(db *sql.DB) (*MigrationStatus, error) {
	if err := ensureMigrationsTable(db); err != nil {
		return nil, err
	}

	current, err := currentVersion(db)
	if err != nil {
		return nil, err
	}

	sorted := sortedMigrations()
	available := 0
	if len(sorted) > 0 {
		available = sorted[len(sorted)-1].Version
	}

	pending := []MigrationInfo{}
	for _, m := range sorted {
		if m.Version > current {
			pending = append(pending, MigrationInfo{Version: m.Version, Description: m.Description})
		}
	}

	return &MigrationStatus{
		CurrentVersion:   current,
		AvailableVersion: available,
		Pending:          pending,
	}, nil
}

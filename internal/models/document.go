package models

import "time"

// Document is one logical file in the project document index.
type Document struct {
	URN           string    `json:"urn"`
	ProjectID     string    `json:"project_id"`
	Name          string    `json:"name"`
	Folder        string    `json:"folder,omitempty"`
	LatestVersion string    `json:"latest_version"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Folder is one logical folder of a project's document index. The root is
// the empty path.
type Folder struct {
	Path      string `json:"path"`
	Parent    string `json:"parent"`
	Documents int    `json:"documents"`
	Total     int    `json:"total"`
}

// DocumentVersion is one immutable revision of a document's bytes.
type DocumentVersion struct {
	DocumentURN string    `json:"document_urn"`
	VersionTag  string    `json:"version_tag"`
	Number      int       `json:"number"`
	SHA256      string    `json:"sha256"`
	SizeBytes   int64     `json:"size_bytes"`
	MediaType   string    `json:"media_type,omitempty"`
	BlobKey     string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

// ResolvedDocument is a document pinned to the concrete version that will be
// fetched.
type ResolvedDocument struct {
	Document Document
	Version  DocumentVersion
}

// Member is a project directory identity.
type Member struct {
	ProjectID string    `json:"project_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	Company   string    `json:"company,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

package models

import "time"

// Transmittal is a tracked bundle of project documents sent to recipients.
type Transmittal struct {
	ID             string            `json:"id"`
	ProjectID      string            `json:"project_id"`
	Title          string            `json:"title"`
	Message        string            `json:"message,omitempty"`
	CreatedBy      string            `json:"created_by,omitempty"`
	Status         TransmittalStatus `json:"status"`
	DocumentCount  int               `json:"document_count"`
	RecipientCount int               `json:"recipient_count"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	SentAt         *time.Time        `json:"sent_at,omitempty"`
	CompletedAt    *time.Time        `json:"completed_at,omitempty"`
	CancelledAt    *time.Time        `json:"cancelled_at,omitempty"`
}

// DocumentRef is a late-bound pointer to an index document. An empty
// VersionTag resolves to the latest version when content is fetched.
type DocumentRef struct {
	DocumentURN string    `json:"document_urn"`
	VersionTag  string    `json:"version_tag,omitempty"`
	Position    int       `json:"position"`
	AddedAt     time.Time `json:"added_at"`
}

// Recipient is one addressee of a transmittal with acknowledgement state.
type Recipient struct {
	Email        string        `json:"email"`
	Name         string        `json:"name,omitempty"`
	Kind         RecipientKind `json:"kind"`
	ViewedAt     *time.Time    `json:"viewed_at,omitempty"`
	DownloadedAt *time.Time    `json:"downloaded_at,omitempty"`
	AddedAt      time.Time     `json:"added_at"`
}

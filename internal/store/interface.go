package store

import (
	"context"
	"time"

	"transmit/internal/models"
)

// TransmittalStore is the durable owner of transmittals, their document
// references and recipient acknowledgement state.
type TransmittalStore interface {
	CreateTransmittal(ctx context.Context, t *models.Transmittal, docs []models.DocumentRef, recipients []models.Recipient) error
	GetTransmittal(ctx context.Context, id string) (*models.Transmittal, error)
	ListTransmittals(ctx context.Context, projectID string, limit, offset int) ([]models.Transmittal, int, error)
	AddDocuments(ctx context.Context, id string, refs []models.DocumentRef) (int, error)
	AddRecipients(ctx context.Context, id string, recipients []models.Recipient) (int, error)
	ListDocuments(ctx context.Context, id string) ([]models.DocumentRef, error)
	ListRecipients(ctx context.Context, id string) ([]models.Recipient, error)
	MarkRecipient(ctx context.Context, id, email string, kind models.AckKind, at time.Time) (*models.Recipient, error)
	UpdateStatus(ctx context.Context, id string, from, to models.TransmittalStatus, at time.Time) error
}

// DocumentIndexStore is the metadata surface of the project document index.
//
// Bytes live in a blobstore.BlobStore; this interface only tracks documents
// and their versions.
type DocumentIndexStore interface {
	CreateDocument(ctx context.Context, doc *models.Document, version *models.DocumentVersion) error
	AddDocumentVersion(ctx context.Context, urn string, version *models.DocumentVersion) error
	GetDocument(ctx context.Context, urn string) (*models.Document, error)
	GetDocuments(ctx context.Context, urns []string) (map[string]models.Document, error)
	ListDocumentVersions(ctx context.Context, urn string) ([]models.DocumentVersion, error)
	ResolveDocument(ctx context.Context, urn, versionTag string) (models.ResolvedDocument, error)
	SearchDocuments(ctx context.Context, filter DocumentFilter) ([]models.Document, error)
	CountDocumentsByFolder(ctx context.Context, projectID string) (map[string]int, error)
}

// DirectoryStore resolves recipient identities against project members.
type DirectoryStore interface {
	UpsertMember(ctx context.Context, member *models.Member) error
	GetMember(ctx context.Context, projectID, email string) (*models.Member, error)
	ListMembers(ctx context.Context, projectID string) ([]models.Member, error)
}

var (
	_ TransmittalStore   = (*Store)(nil)
	_ DocumentIndexStore = (*Store)(nil)
	_ DirectoryStore     = (*Store)(nil)
)

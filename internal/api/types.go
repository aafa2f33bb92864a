package api

import (
	"time"

	"transmit/internal/models"
)

// Archive download response headers.
const (
	HeaderFileCount   = "X-File-Count"
	HeaderTotalSize   = "X-Total-Size"
	HeaderFailedFiles = "X-Failed-Files"
)

// ErrorResponse is a generic JSON error wrapper.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// InfoResponse describes the running server.
type InfoResponse struct {
	DBPath             string                     `json:"db_path"`
	SchemaVersion      int                        `json:"schema_version"`
	ArchiveConcurrency int                        `json:"archive_concurrency"`
	FetchTimeout       string                     `json:"fetch_timeout"`
	Notifier           string                     `json:"notifier"`
	Statuses           []models.TransmittalStatus `json:"statuses"`
}

// DocumentRefInput names a document to attach. An empty version tag means the
// latest version at download time.
type DocumentRefInput struct {
	DocumentURN string `json:"document_urn" yaml:"urn"`
	VersionTag  string `json:"version_tag,omitempty" yaml:"version,omitempty"`
}

// RecipientInput names one addressee.
type RecipientInput struct {
	Email string `json:"email" yaml:"email"`
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`
}

// TransmittalCreateRequest creates a draft transmittal.
type TransmittalCreateRequest struct {
	Title      string             `json:"title" yaml:"title"`
	Message    string             `json:"message,omitempty" yaml:"message,omitempty"`
	CreatedBy  string             `json:"created_by,omitempty" yaml:"created_by,omitempty"`
	Documents  []DocumentRefInput `json:"documents,omitempty" yaml:"documents,omitempty"`
	Recipients []RecipientInput   `json:"recipients,omitempty" yaml:"recipients,omitempty"`
}

// TransmittalCreateResponse is returned by a successful create.
type TransmittalCreateResponse struct {
	TransmittalID string             `json:"transmittal_id"`
	Transmittal   models.Transmittal `json:"transmittal"`
}

// TransmittalListResponse is one page of a project's transmittals.
type TransmittalListResponse struct {
	Items  []models.Transmittal `json:"items"`
	Total  int                  `json:"total"`
	Limit  int                  `json:"limit"`
	Offset int                  `json:"offset"`
}

// AddDocumentsRequest appends document references.
type AddDocumentsRequest struct {
	Documents []DocumentRefInput `json:"documents"`
}

// AddRecipientsRequest adds recipients.
type AddRecipientsRequest struct {
	Recipients []RecipientInput `json:"recipients"`
}

// AddedResponse reports how many new entries were attached.
type AddedResponse struct {
	AddedCount int `json:"added_count"`
}

// RecipientsResponse groups recipients by directory membership.
type RecipientsResponse struct {
	Members    []models.Recipient `json:"members"`
	NonMembers []models.Recipient `json:"non_members"`
}

// AcknowledgeRequest records a view or download by one recipient.
type AcknowledgeRequest struct {
	Email string     `json:"email"`
	At    *time.Time `json:"at,omitempty"`
}

// AcknowledgeResponse reports the transmittal status after an acknowledgement.
type AcknowledgeResponse struct {
	OK        bool                     `json:"ok"`
	Status    models.TransmittalStatus `json:"status"`
	Recipient models.Recipient         `json:"recipient"`
}

// DownloadRequest asks for a transmittal archive. A non-empty email records a
// download acknowledgement for that recipient.
type DownloadRequest struct {
	Email string `json:"email,omitempty"`
}

// ArchiveDownload is the metadata of a downloaded archive.
type ArchiveDownload struct {
	Filename    string              `json:"filename"`
	FileCount   int                 `json:"file_count"`
	TotalSize   int64               `json:"total_size"`
	FailedFiles []models.FailedFile `json:"failed_files"`
	Written     int64               `json:"written_bytes"`
}

// DocumentUploadRequest describes one multipart upload. A non-empty URN adds
// a new version to an existing document.
type DocumentUploadRequest struct {
	Name      string
	Folder    string
	URN       string
	MediaType string
}

// DocumentUploadResponse is the document and the version just stored.
type DocumentUploadResponse struct {
	Document models.Document        `json:"document"`
	Version  models.DocumentVersion `json:"version"`
}

// MemberRequest registers a directory member.
type MemberRequest struct {
	Email   string `json:"email"`
	Name    string `json:"name,omitempty"`
	Company string `json:"company,omitempty"`
}

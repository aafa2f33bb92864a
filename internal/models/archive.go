package models

// FailureReason classifies why one document could not be packaged.
type FailureReason string

const (
	FailureNotFound         FailureReason = "not_found"
	FailurePermissionDenied FailureReason = "permission_denied"
	FailureTimeout          FailureReason = "timeout"
	FailureUnknown          FailureReason = "unknown"
)

// FailedFile is one document left out of an archive.
type FailedFile struct {
	DocumentURN string        `json:"documentUrn"`
	Reason      FailureReason `json:"reason"`
}

// ArchiveEntry is one packaged document.
type ArchiveEntry struct {
	DocumentURN string `json:"document_urn"`
	VersionTag  string `json:"version_tag"`
	Name        string `json:"name"`
	SizeBytes   int64  `json:"size_bytes"`
}

// ArchiveResult summarizes one archive assembly. It is never persisted.
type ArchiveResult struct {
	FileCount   int            `json:"file_count"`
	TotalSize   int64          `json:"total_size"`
	FailedFiles []FailedFile   `json:"failed_files"`
	Entries     []ArchiveEntry `json:"entries,omitempty"`
}

// Accounts reports whether every attached document is either packaged or failed.
func (r ArchiveResult) Accounts(documentCount int) bool {
	return r.FileCount+len(r.FailedFiles) == documentCount
}

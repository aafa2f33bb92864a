package server

const (
	// Validation (1xxx)
	ErrCodeInvalidArgument = 1000
	ErrCodeInvalidJSON     = 1001
	ErrCodeRequestTooLarge = 1002
	ErrCodeInvalidQuery    = 1003
	ErrCodeInvalidID       = 1004
	ErrCodeInvalidEmail    = 1005
	ErrCodeInvalidURN      = 1006
	ErrCodeInvalidProject  = 1007
	ErrCodeMissingRequired = 1009
	ErrCodeInvalidUpload   = 1010

	// Domain state (2xxx)
	ErrCodeTransmittalNotFound = 2001
	ErrCodeRecipientNotFound   = 2002
	ErrCodeDocumentNotFound    = 2003
	ErrCodeFolderNotFound      = 2004
	ErrCodeInvalidState        = 2101
	ErrCodePreconditionFailed  = 2102
	ErrCodeEmptyArchive        = 2103

	// Limits (3xxx)
	ErrCodeResourceExhausted = 3003

	// Internal/system (4xxx)
	ErrCodeInternal       = 4001
	ErrCodeStoreFailure   = 4002
	ErrCodeArchiveFailure = 4003
	ErrCodeBlobFailure    = 4004
)

func defaultErrorCodeByStatus(status int) int {
	switch status {
	case 400:
		return ErrCodeInvalidArgument
	case 404:
		return ErrCodeTransmittalNotFound
	case 409:
		return ErrCodeInvalidState
	case 412:
		return ErrCodePreconditionFailed
	case 422:
		return ErrCodeEmptyArchive
	case 429:
		return ErrCodeResourceExhausted
	case 500:
		return ErrCodeInternal
	default:
		return 0
	}
}

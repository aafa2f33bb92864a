package store

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const documentURNPrefix = "urn:transmit:doc:"

// NewTransmittalID returns a new random transmittal id.
func NewTransmittalID() string {
	return uuid.NewString()
}

// NewDocumentURN returns a new document urn.
func NewDocumentURN() string {
	return documentURNPrefix + uuid.NewString()
}

// ParseTransmittalID validates and canonicalizes a transmittal id.
func ParseTransmittalID(raw string) (string, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("invalid transmittal id")
	}
	return parsed.String(), nil
}

// IsDocumentURN reports whether value looks like a document urn.
func IsDocumentURN(value string) bool {
	value = strings.TrimSpace(value)
	if value == "" || len(value) > 512 {
		return false
	}
	if strings.ContainsAny(value, " \t\r\n") {
		return false
	}
	return strings.HasPrefix(value, "urn:")
}

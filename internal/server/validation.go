package server

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode"

	"transmit/internal/api"
	"transmit/internal/models"
	"transmit/internal/store"
)

const (
	maxTitleLength        = 200
	maxMessageLength      = 10000
	maxDocumentNameLength = 255
	maxFolderLength       = 1024
)

var projectIDRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._ -]{0,127}$`)

func normalizeProjectID(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", badRequestCode(fmt.Errorf("project is required"), ErrCodeInvalidProject)
	}
	if !projectIDRegex.MatchString(value) {
		return "", badRequestCode(fmt.Errorf("invalid project: %s", value), ErrCodeInvalidProject)
	}
	return value, nil
}

// normalizeEmail accepts a bare address and returns its lower-case form.
func normalizeEmail(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", badRequestCode(fmt.Errorf("email is required"), ErrCodeMissingRequired)
	}
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value || addr.Name != "" {
		return "", badRequestCode(fmt.Errorf("invalid email: %s", value), ErrCodeInvalidEmail)
	}
	return models.NormalizeEmail(addr.Address), nil
}

func normalizeDocumentURN(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", badRequestCode(fmt.Errorf("document_urn is required"), ErrCodeMissingRequired)
	}
	if !store.IsDocumentURN(value) {
		return "", badRequestCode(fmt.Errorf("invalid document urn: %s", value), ErrCodeInvalidURN)
	}
	return value, nil
}

func normalizeDocumentRefs(inputs []api.DocumentRefInput) ([]models.DocumentRef, error) {
	refs := make([]models.DocumentRef, 0, len(inputs))
	for _, in := range inputs {
		urn, err := normalizeDocumentURN(in.DocumentURN)
		if err != nil {
			return nil, err
		}
		tag := strings.TrimSpace(in.VersionTag)
		if strings.ContainsAny(tag, " \t\r\n") {
			return nil, badRequest(fmt.Errorf("invalid version_tag: %q", tag))
		}
		refs = append(refs, models.DocumentRef{DocumentURN: urn, VersionTag: tag})
	}
	return refs, nil
}

// normalizeRecipients validates addresses and drops in-request duplicates,
// keeping the first occurrence.
func normalizeRecipients(inputs []api.RecipientInput) ([]models.Recipient, error) {
	recipients := make([]models.Recipient, 0, len(inputs))
	seen := map[string]struct{}{}
	for _, in := range inputs {
		email, err := normalizeEmail(in.Email)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[email]; ok {
			continue
		}
		seen[email] = struct{}{}
		recipients = append(recipients, models.Recipient{Email: email, Name: strings.TrimSpace(in.Name)})
	}
	return recipients, nil
}

func normalizeTitle(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return defaultTransmittalTitle, nil
	}
	if len(value) > maxTitleLength {
		return "", badRequest(fmt.Errorf("title must be at most %d characters", maxTitleLength))
	}
	return value, nil
}

func normalizeMessage(value string) (string, error) {
	value = strings.TrimSpace(value)
	if len(value) > maxMessageLength {
		return "", badRequest(fmt.Errorf("message must be at most %d characters", maxMessageLength))
	}
	return value, nil
}

func normalizeDocumentName(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", badRequestCode(fmt.Errorf("name is required"), ErrCodeMissingRequired)
	}
	if len(value) > maxDocumentNameLength {
		return "", badRequestCode(fmt.Errorf("name must be at most %d characters", maxDocumentNameLength), ErrCodeInvalidUpload)
	}
	for _, r := range value {
		if unicode.IsControl(r) {
			return "", badRequestCode(fmt.Errorf("name contains control characters"), ErrCodeInvalidUpload)
		}
	}
	return value, nil
}

// normalizeFolder cleans a slash-separated logical folder path.
func normalizeFolder(value string) (string, error) {
	value = strings.TrimSpace(strings.ReplaceAll(value, "\\", "/"))
	parts := strings.Split(value, "/")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		switch part {
		case "", ".":
			continue
		case "..":
			return "", badRequestCode(fmt.Errorf("folder must not contain '..'"), ErrCodeInvalidUpload)
		}
		out = append(out, part)
	}
	folder := strings.Join(out, "/")
	if len(folder) > maxFolderLength {
		return "", badRequestCode(fmt.Errorf("folder must be at most %d characters", maxFolderLength), ErrCodeInvalidUpload)
	}
	return folder, nil
}

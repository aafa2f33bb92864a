package main

import (
	"context"
	"fmt"
	"net"
	"testing"

	"transmit/internal/api"
)

func TestFormatCLIError_NetworkGuidance(t *testing.T) {
	err := &net.DNSError{Err: "dial tcp: connection refused", Name: "127.0.0.1", IsTemporary: true}
	lines := formatCLIError(err)
	if !containsLine(lines, "hint: ensure a transmit server is running at TRANSMIT_API_URL.") {
		t.Fatalf("expected connectivity guidance, got %v", lines)
	}
	if !containsLine(lines, "hint: start local server manually with: transmit srv") {
		t.Fatalf("expected manual-start guidance, got %v", lines)
	}
}

func TestFormatCLIError_APIUnknownServiceGuidance(t *testing.T) {
	err := &api.APIError{Status: 404, Message: "api error: 404 Not Found"}
	lines := formatCLIError(err)
	if !containsLine(lines, "hint: verify TRANSMIT_API_URL points to a transmit server.") {
		t.Fatalf("expected api-url guidance, got %v", lines)
	}
}

func TestFormatCLIError_DomainGuidance(t *testing.T) {
	tests := []struct {
		code string
		hint string
	}{
		{"resource_exhausted", "hint: too many archive downloads or uploads in flight; retry shortly."},
		{"precondition_failed", "hint: a transmittal needs at least one document and one recipient before it is sent."},
		{"invalid_state", "hint: cancelled transmittals are read-only; check the status with `transmit show <id>`."},
		{"empty_archive", "hint: no document in the transmittal could be fetched; check `transmit docs <id>` and the document index."},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			lines := formatCLIError(&api.APIError{Status: 400, Code: tt.code, Message: "x"})
			if !containsLine(lines, tt.hint) {
				t.Fatalf("expected %q, got %v", tt.hint, lines)
			}
		})
	}
}

func TestFormatCLIError_WrappedDownloadError(t *testing.T) {
	err := fmt.Errorf("download t1: %w", &api.APIError{Status: 422, Code: api.CodeEmptyArchive, Message: "no documents could be fetched"})
	lines := formatCLIError(err)
	if !containsLine(lines, "hint: no document in the transmittal could be fetched; check `transmit docs <id>` and the document index.") {
		t.Fatalf("expected empty-archive guidance through wrapping, got %v", lines)
	}
	if containsLine(lines, "hint: verify TRANSMIT_API_URL points to a transmit server.") {
		t.Fatalf("coded error must not suggest a wrong server, got %v", lines)
	}
}

func TestFormatCLIError_APIInternalGuidance(t *testing.T) {
	err := &api.APIError{Status: 500, Code: "internal", Message: "internal error"}
	lines := formatCLIError(err)
	if !containsLine(lines, "hint: server returned an internal error; check server logs for details.") {
		t.Fatalf("expected internal-error guidance, got %v", lines)
	}
}

func TestFormatCLIError_Timeout(t *testing.T) {
	lines := formatCLIError(fmt.Errorf("get: %w", context.DeadlineExceeded))
	if !containsLine(lines, "hint: request timed out; check server health or increase TRANSMIT_HTTP_TIMEOUT.") {
		t.Fatalf("expected timeout guidance, got %v", lines)
	}
}

func containsLine(lines []string, expected string) bool {
	for _, line := range lines {
		if line == expected {
			return true
		}
	}
	return false
}

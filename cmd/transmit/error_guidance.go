package main

import (
	"context"
	"errors"
	"net"

	"transmit/internal/api"
)

func formatCLIError(err error) []string {
	if err == nil {
		return nil
	}

	lines := []string{err.Error()}

	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		switch {
		case !apiErr.FromServer():
			lines = append(lines, "hint: verify TRANSMIT_API_URL points to a transmit server.")
		case api.IsEmptyArchive(err):
			lines = append(lines, "hint: no document in the transmittal could be fetched; check `transmit docs <id>` and the document index.")
		case api.IsInvalidState(err):
			lines = append(lines, "hint: cancelled transmittals are read-only; check the status with `transmit show <id>`.")
		case api.IsCode(err, api.CodePreconditionFailed):
			lines = append(lines, "hint: a transmittal needs at least one document and one recipient before it is sent.")
		case api.IsCode(err, api.CodeResourceExhausted):
			lines = append(lines, "hint: too many archive downloads or uploads in flight; retry shortly.")
		}
		if apiErr.Status >= 500 {
			lines = append(lines, "hint: server returned an internal error; check server logs for details.")
		}
		return uniqueLines(lines)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		lines = append(lines, "hint: request timed out; check server health or increase TRANSMIT_HTTP_TIMEOUT.")
		return uniqueLines(lines)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		lines = append(lines,
			"hint: ensure a transmit server is running at TRANSMIT_API_URL.",
			"hint: start local server manually with: transmit srv",
		)
		return uniqueLines(lines)
	}

	return uniqueLines(lines)
}

func uniqueLines(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}

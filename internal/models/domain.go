package models

import (
	"fmt"
	"strings"
)

// TransmittalStatus defines allowed lifecycle states for transmittals.
type TransmittalStatus string

const (
	StatusDraft     TransmittalStatus = "draft"
	StatusSent      TransmittalStatus = "sent"
	StatusCompleted TransmittalStatus = "completed"
	StatusCancelled TransmittalStatus = "cancelled"
)

// RecipientKind distinguishes directory members from free-form addresses.
type RecipientKind string

const (
	RecipientMember    RecipientKind = "member"
	RecipientNonMember RecipientKind = "non_member"
)

// AckKind is the kind of acknowledgement a recipient can record.
type AckKind string

const (
	AckViewed     AckKind = "viewed"
	AckDownloaded AckKind = "downloaded"
)

// Event drives the transmittal state machine.
type Event string

const (
	EventSend        Event = "send"
	EventCancel      Event = "cancel"
	EventAllReceived Event = "all_downloaded"
)

var validTransmittalStatuses = map[TransmittalStatus]struct{}{
	StatusDraft:     {},
	StatusSent:      {},
	StatusCompleted: {},
	StatusCancelled: {},
}

func IsValidTransmittalStatus(status TransmittalStatus) bool {
	_, ok := validTransmittalStatuses[status]
	return ok
}

func ParseTransmittalStatus(raw string) (TransmittalStatus, error) {
	value := TransmittalStatus(strings.ToLower(strings.TrimSpace(raw)))
	if value == "" {
		return "", fmt.Errorf("status is required")
	}
	if !IsValidTransmittalStatus(value) {
		return "", fmt.Errorf("invalid status: %s", value)
	}
	return value, nil
}

func ParseAckKind(raw string) (AckKind, error) {
	switch value := AckKind(strings.ToLower(strings.TrimSpace(raw))); value {
	case AckViewed, AckDownloaded:
		return value, nil
	case "":
		return "", fmt.Errorf("acknowledgement kind is required")
	default:
		return "", fmt.Errorf("invalid acknowledgement kind: %s", value)
	}
}

// IsTerminal reports whether no further mutation is permitted.
func (s TransmittalStatus) IsTerminal() bool {
	return s == StatusCancelled
}

// TransitionError reports an event that the current status does not accept.
type TransitionError struct {
	From  TransmittalStatus
	Event Event
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s a %s transmittal", e.Event, e.From)
}

// NextStatus applies one event to a status.
//
// draft --send--> sent --all_downloaded--> completed; cancel is accepted from
// draft and sent. Cancelled accepts nothing.
func NextStatus(current TransmittalStatus, event Event) (TransmittalStatus, error) {
	switch event {
	case EventSend:
		if current == StatusDraft {
			return StatusSent, nil
		}
	case EventCancel:
		if current == StatusDraft || current == StatusSent {
			return StatusCancelled, nil
		}
	case EventAllReceived:
		if current == StatusSent {
			return StatusCompleted, nil
		}
	}
	return current, &TransitionError{From: current, Event: event}
}

// AllDownloaded reports whether every recipient has a download acknowledgement.
// An empty recipient set is never considered fully downloaded.
func AllDownloaded(recipients []Recipient) bool {
	if len(recipients) == 0 {
		return false
	}
	for _, r := range recipients {
		if r.DownloadedAt == nil {
			return false
		}
	}
	return true
}

// NormalizeEmail lower-cases and trims an address for use as a recipient key.
func NormalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

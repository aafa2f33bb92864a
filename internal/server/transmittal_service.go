package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"transmit/internal/api"
	"transmit/internal/config"
	"transmit/internal/models"
	"transmit/internal/notify"
	"transmit/internal/store"
)

const (
	defaultTransmittalTitle = "Transmittal"
	defaultPublishTimeout   = 5 * time.Second
)

// TransmittalService owns lifecycle rules for transmittals. Every mutation of
// one transmittal runs under that transmittal's lock.
type TransmittalService struct {
	store     store.TransmittalStore
	directory store.DirectoryStore
	notifier  notify.Notifier
	logger    *slog.Logger
	locks     *keyedMutex

	defaultLimit   int
	maxLimit       int
	publishTimeout time.Duration
	now            func() time.Time
}

// NewTransmittalService constructs a TransmittalService. A nil directory
// treats every recipient as a non-member; a nil notifier drops events.
func NewTransmittalService(transmittals store.TransmittalStore, directory store.DirectoryStore, notifier notify.Notifier, logger *slog.Logger) *TransmittalService {
	if notifier == nil {
		notifier = notify.Noop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TransmittalService{
		store:        transmittals,
		directory:    directory,
		notifier:     notifier,
		logger:       logger,
		locks:        newKeyedMutex(),
		defaultLimit:   config.DefaultListLimit,
		maxLimit:       config.DefaultListMaxLimit,
		publishTimeout: defaultPublishTimeout,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// ConfigureListing overrides list paging bounds.
func (s *TransmittalService) ConfigureListing(defaultLimit, maxLimit int) {
	if defaultLimit > 0 {
		s.defaultLimit = defaultLimit
	}
	if maxLimit > 0 {
		s.maxLimit = maxLimit
	}
	if s.defaultLimit > s.maxLimit {
		s.defaultLimit = s.maxLimit
	}
}

// Create stores a draft transmittal with optional initial documents and
// recipients.
func (s *TransmittalService) Create(ctx context.Context, projectID string, req api.TransmittalCreateRequest) (api.TransmittalCreateResponse, error) {
	var resp api.TransmittalCreateResponse

	projectID, err := normalizeProjectID(projectID)
	if err != nil {
		return resp, err
	}
	title, err := normalizeTitle(req.Title)
	if err != nil {
		return resp, err
	}
	message, err := normalizeMessage(req.Message)
	if err != nil {
		return resp, err
	}
	createdBy := ""
	if strings.TrimSpace(req.CreatedBy) != "" {
		if createdBy, err = normalizeEmail(req.CreatedBy); err != nil {
			return resp, err
		}
	}
	docs, err := normalizeDocumentRefs(req.Documents)
	if err != nil {
		return resp, err
	}
	recipients, err := normalizeRecipients(req.Recipients)
	if err != nil {
		return resp, err
	}
	if err := s.resolveKinds(ctx, projectID, recipients); err != nil {
		return resp, err
	}

	now := s.now()
	t := &models.Transmittal{
		ID:        store.NewTransmittalID(),
		ProjectID: projectID,
		Title:     title,
		Message:   message,
		CreatedBy: createdBy,
		Status:    models.StatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateTransmittal(ctx, t, docs, recipients); err != nil {
		return resp, mapStoreError(err)
	}

	resp = api.TransmittalCreateResponse{TransmittalID: t.ID, Transmittal: *t}
	return resp, nil
}

// List returns one page of a project's transmittals. A zero limit selects the
// default page size; larger limits are capped.
func (s *TransmittalService) List(ctx context.Context, projectID string, limit, offset int) (api.TransmittalListResponse, error) {
	var resp api.TransmittalListResponse

	projectID, err := normalizeProjectID(projectID)
	if err != nil {
		return resp, err
	}
	if limit < 0 {
		return resp, badRequestCode(fmt.Errorf("limit must be >= 0"), ErrCodeInvalidQuery)
	}
	if offset < 0 {
		return resp, badRequestCode(fmt.Errorf("offset must be >= 0"), ErrCodeInvalidQuery)
	}
	if limit == 0 {
		limit = s.defaultLimit
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}

	items, total, err := s.store.ListTransmittals(ctx, projectID, limit, offset)
	if err != nil {
		return resp, mapStoreError(err)
	}
	resp = api.TransmittalListResponse{Items: items, Total: total, Limit: limit, Offset: offset}
	return resp, nil
}

// Get returns one transmittal.
func (s *TransmittalService) Get(ctx context.Context, id string) (models.Transmittal, error) {
	t, err := s.store.GetTransmittal(ctx, id)
	if err != nil {
		return models.Transmittal{}, mapStoreError(err)
	}
	return *t, nil
}

// AddDocuments appends document references and returns how many were new.
func (s *TransmittalService) AddDocuments(ctx context.Context, id string, inputs []api.DocumentRefInput) (int, error) {
	if len(inputs) == 0 {
		return 0, badRequestCode(fmt.Errorf("documents are required"), ErrCodeMissingRequired)
	}
	refs, err := normalizeDocumentRefs(inputs)
	if err != nil {
		return 0, err
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	added, err := s.store.AddDocuments(ctx, id, refs)
	if err != nil {
		return 0, mapStoreError(err)
	}
	return added, nil
}

// AddRecipients adds recipients, resolving each against the project
// directory, and returns how many were new.
func (s *TransmittalService) AddRecipients(ctx context.Context, id string, inputs []api.RecipientInput) (int, error) {
	if len(inputs) == 0 {
		return 0, badRequestCode(fmt.Errorf("recipients are required"), ErrCodeMissingRequired)
	}
	recipients, err := normalizeRecipients(inputs)
	if err != nil {
		return 0, err
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	t, err := s.store.GetTransmittal(ctx, id)
	if err != nil {
		return 0, mapStoreError(err)
	}
	if t.Status.IsTerminal() {
		return 0, invalidState(store.ErrTransmittalCancelled)
	}
	if err := s.resolveKinds(ctx, t.ProjectID, recipients); err != nil {
		return 0, err
	}

	added, err := s.store.AddRecipients(ctx, id, recipients)
	if err != nil {
		return 0, mapStoreError(err)
	}
	return added, nil
}

// ListDocuments returns document references in attachment order.
func (s *TransmittalService) ListDocuments(ctx context.Context, id string) ([]models.DocumentRef, error) {
	refs, err := s.store.ListDocuments(ctx, id)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return refs, nil
}

// ListRecipients returns recipients grouped by directory membership.
func (s *TransmittalService) ListRecipients(ctx context.Context, id string) (api.RecipientsResponse, error) {
	resp := api.RecipientsResponse{Members: []models.Recipient{}, NonMembers: []models.Recipient{}}
	recipients, err := s.store.ListRecipients(ctx, id)
	if err != nil {
		return resp, mapStoreError(err)
	}
	for _, r := range recipients {
		if r.Kind == models.RecipientMember {
			resp.Members = append(resp.Members, r)
			continue
		}
		resp.NonMembers = append(resp.NonMembers, r)
	}
	return resp, nil
}

// Send moves a draft with documents and recipients to sent.
func (s *TransmittalService) Send(ctx context.Context, id string) (models.Transmittal, error) {
	updated, msg, err := s.send(ctx, id)
	if err != nil {
		return models.Transmittal{}, err
	}
	s.publish(ctx, msg)
	return updated, nil
}

func (s *TransmittalService) send(ctx context.Context, id string) (models.Transmittal, *notify.Message, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	t, err := s.store.GetTransmittal(ctx, id)
	if err != nil {
		return models.Transmittal{}, nil, mapStoreError(err)
	}
	if _, err := models.NextStatus(t.Status, models.EventSend); err != nil {
		return models.Transmittal{}, nil, transitionFailure(t.Status, err)
	}
	if t.DocumentCount == 0 {
		return models.Transmittal{}, nil, preconditionFailed(fmt.Errorf("transmittal has no documents"))
	}
	if t.RecipientCount == 0 {
		return models.Transmittal{}, nil, preconditionFailed(fmt.Errorf("transmittal has no recipients"))
	}
	return s.transition(ctx, t, models.EventSend)
}

// Cancel moves a draft or sent transmittal to cancelled.
func (s *TransmittalService) Cancel(ctx context.Context, id string) (models.Transmittal, error) {
	updated, msg, err := s.cancel(ctx, id)
	if err != nil {
		return models.Transmittal{}, err
	}
	s.publish(ctx, msg)
	return updated, nil
}

func (s *TransmittalService) cancel(ctx context.Context, id string) (models.Transmittal, *notify.Message, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	t, err := s.store.GetTransmittal(ctx, id)
	if err != nil {
		return models.Transmittal{}, nil, mapStoreError(err)
	}
	if _, err := models.NextStatus(t.Status, models.EventCancel); err != nil {
		return models.Transmittal{}, nil, transitionFailure(t.Status, err)
	}
	return s.transition(ctx, t, models.EventCancel)
}

// RecordAcknowledgement stores a view or download by one recipient. The first
// timestamp for each kind is kept. A download that leaves every recipient
// acknowledged completes a sent transmittal within the same call.
func (s *TransmittalService) RecordAcknowledgement(ctx context.Context, id, email string, kind models.AckKind, at time.Time) (api.AcknowledgeResponse, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return api.AcknowledgeResponse{}, err
	}
	if at.IsZero() {
		at = s.now()
	}

	resp, msg, err := s.recordAcknowledgement(ctx, id, email, kind, at.UTC())
	if err != nil {
		return api.AcknowledgeResponse{}, err
	}
	s.publish(ctx, msg)
	return resp, nil
}

func (s *TransmittalService) recordAcknowledgement(ctx context.Context, id, email string, kind models.AckKind, at time.Time) (api.AcknowledgeResponse, *notify.Message, error) {
	var resp api.AcknowledgeResponse

	unlock := s.locks.Lock(id)
	defer unlock()

	recipient, err := s.store.MarkRecipient(ctx, id, email, kind, at)
	if err != nil {
		return resp, nil, mapStoreError(err)
	}

	t, err := s.store.GetTransmittal(ctx, id)
	if err != nil {
		return resp, nil, mapStoreError(err)
	}
	var msg *notify.Message
	if kind == models.AckDownloaded && t.Status == models.StatusSent {
		recipients, err := s.store.ListRecipients(ctx, id)
		if err != nil {
			return resp, nil, mapStoreError(err)
		}
		if models.AllDownloaded(recipients) {
			updated, completed, err := s.transition(ctx, t, models.EventAllReceived)
			if err != nil {
				return resp, nil, err
			}
			t, msg = &updated, completed
		}
	}

	resp = api.AcknowledgeResponse{OK: true, Status: t.Status, Recipient: *recipient}
	return resp, msg, nil
}

// transition applies event to t through the store's compare-and-set and
// returns the event message for the resulting status, if any. The caller
// holds the transmittal lock and publishes after releasing it.
func (s *TransmittalService) transition(ctx context.Context, t *models.Transmittal, event models.Event) (models.Transmittal, *notify.Message, error) {
	next, err := models.NextStatus(t.Status, event)
	if err != nil {
		return models.Transmittal{}, nil, transitionFailure(t.Status, err)
	}
	at := s.now()
	if err := s.store.UpdateStatus(ctx, t.ID, t.Status, next, at); err != nil {
		return models.Transmittal{}, nil, mapStoreError(err)
	}

	updated, err := s.store.GetTransmittal(ctx, t.ID)
	if err != nil {
		return models.Transmittal{}, nil, mapStoreError(err)
	}
	notifyEvent, ok := notify.EventForStatus(updated.Status)
	if !ok {
		return *updated, nil, nil
	}
	msg := notify.NewMessage(notifyEvent, *updated, at)
	return *updated, &msg, nil
}

// publish delivers msg with its own deadline; the request may already be
// finished. Failures are logged only.
func (s *TransmittalService) publish(ctx context.Context, msg *notify.Message) {
	if msg == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()
	if err := s.notifier.Publish(ctx, *msg); err != nil {
		s.logger.Warn("publish transmittal event", "event", msg.Event, "transmittal_id", msg.TransmittalID, "error", err)
	}
}

func (s *TransmittalService) resolveKinds(ctx context.Context, projectID string, recipients []models.Recipient) error {
	for i := range recipients {
		recipients[i].Kind = models.RecipientNonMember
		if s.directory == nil {
			continue
		}
		member, err := s.directory.GetMember(ctx, projectID, recipients[i].Email)
		if err != nil {
			return storeFailure(fmt.Errorf("resolve recipient %s: %w", recipients[i].Email, err))
		}
		if member != nil {
			recipients[i].Kind = models.RecipientMember
			if recipients[i].Name == "" {
				recipients[i].Name = member.Name
			}
		}
	}
	return nil
}

// transitionFailure maps a rejected event. Cancelled transmittals reject
// everything as invalid state; other rejections are failed preconditions.
func transitionFailure(current models.TransmittalStatus, err error) error {
	var transitionErr *models.TransitionError
	if !errors.As(err, &transitionErr) {
		return internalError(err)
	}
	if current.IsTerminal() {
		return invalidState(err)
	}
	return preconditionFailed(err)
}

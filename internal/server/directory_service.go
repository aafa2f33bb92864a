package server

import (
	"context"
	"strings"

	"transmit/internal/api"
	"transmit/internal/models"
	"transmit/internal/store"
)

// DirectoryService maintains project members used to classify recipients.
type DirectoryService struct {
	store store.DirectoryStore
}

func NewDirectoryService(directory store.DirectoryStore) *DirectoryService {
	return &DirectoryService{store: directory}
}

// Register adds or updates a member. Recipients added afterwards resolve as
// members; existing recipient entries keep their kind.
func (s *DirectoryService) Register(ctx context.Context, projectID string, req api.MemberRequest) (models.Member, error) {
	projectID, err := normalizeProjectID(projectID)
	if err != nil {
		return models.Member{}, err
	}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return models.Member{}, err
	}

	member := &models.Member{
		ProjectID: projectID,
		Email:     email,
		Name:      strings.TrimSpace(req.Name),
		Company:   strings.TrimSpace(req.Company),
	}
	if err := s.store.UpsertMember(ctx, member); err != nil {
		return models.Member{}, mapStoreError(err)
	}
	stored, err := s.store.GetMember(ctx, projectID, email)
	if err != nil {
		return models.Member{}, mapStoreError(err)
	}
	if stored == nil {
		return *member, nil
	}
	return *stored, nil
}

func (s *DirectoryService) List(ctx context.Context, projectID string) ([]models.Member, error) {
	projectID, err := normalizeProjectID(projectID)
	if err != nil {
		return nil, err
	}
	members, err := s.store.ListMembers(ctx, projectID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return members, nil
}

package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"sort"
	"strings"

	"transmit/internal/api"
	"transmit/internal/blobstore"
	"transmit/internal/models"
	"transmit/internal/store"
)

const fallbackDocumentMediaType = "application/octet-stream"

// DocumentService is the local document index: document metadata lives in
// the store and version bytes in the blob store.
type DocumentService struct {
	index store.DocumentIndexStore
	blobs blobstore.BlobStore
}

// NewDocumentService constructs a DocumentService.
func NewDocumentService(index store.DocumentIndexStore, blobs blobstore.BlobStore) *DocumentService {
	return &DocumentService{index: index, blobs: blobs}
}

// Upload stores content as a new document, or as the next version of an
// existing one when in.URN is set.
func (s *DocumentService) Upload(ctx context.Context, projectID string, in api.DocumentUploadRequest, content io.Reader) (api.DocumentUploadResponse, error) {
	var resp api.DocumentUploadResponse
	if content == nil {
		return resp, badRequestCode(fmt.Errorf("content is required"), ErrCodeMissingRequired)
	}

	projectID, err := normalizeProjectID(projectID)
	if err != nil {
		return resp, err
	}
	mediaType, err := normalizeMediaType(in.MediaType)
	if err != nil {
		return resp, err
	}

	var existing *models.Document
	urn := strings.TrimSpace(in.URN)
	if urn != "" {
		if urn, err = normalizeDocumentURN(urn); err != nil {
			return resp, err
		}
		existing, err = s.index.GetDocument(ctx, urn)
		if err != nil {
			return resp, mapStoreError(err)
		}
		if existing.ProjectID != projectID {
			return resp, notFoundCode(fmt.Errorf("%w: %s", store.ErrDocumentNotFound, urn), ErrCodeDocumentNotFound)
		}
	}

	var name, folder string
	if existing == nil {
		if name, err = normalizeDocumentName(in.Name); err != nil {
			return resp, err
		}
		if folder, err = normalizeFolder(in.Folder); err != nil {
			return resp, err
		}
	}

	put, err := s.blobs.Put(ctx, content)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return resp, badRequestCode(fmt.Errorf("upload too large"), ErrCodeRequestTooLarge)
		}
		return resp, internalErrorCode(fmt.Errorf("store document bytes: %w", err), ErrCodeBlobFailure)
	}
	version := &models.DocumentVersion{
		SHA256:    put.SHA256,
		SizeBytes: put.SizeBytes,
		MediaType: mediaType,
		BlobKey:   put.BlobKey,
	}

	if existing != nil {
		if err := s.index.AddDocumentVersion(ctx, existing.URN, version); err != nil {
			return resp, mapStoreError(err)
		}
		doc, err := s.index.GetDocument(ctx, existing.URN)
		if err != nil {
			return resp, mapStoreError(err)
		}
		return api.DocumentUploadResponse{Document: *doc, Version: *version}, nil
	}

	doc := &models.Document{
		URN:       store.NewDocumentURN(),
		ProjectID: projectID,
		Name:      name,
		Folder:    folder,
	}
	if err := s.index.CreateDocument(ctx, doc, version); err != nil {
		return resp, mapStoreError(err)
	}
	return api.DocumentUploadResponse{Document: *doc, Version: *version}, nil
}

// Resolve pins urn to a concrete version; an empty tag selects the latest.
func (s *DocumentService) Resolve(ctx context.Context, urn, versionTag string) (models.ResolvedDocument, error) {
	return s.index.ResolveDocument(ctx, urn, versionTag)
}

// Open returns the bytes of a resolved document version.
func (s *DocumentService) Open(ctx context.Context, doc models.ResolvedDocument) (io.ReadCloser, error) {
	if doc.Version.BlobKey == "" {
		return nil, fmt.Errorf("%w: %s has no content", blobstore.ErrBlobNotFound, doc.Document.URN)
	}
	return s.blobs.Open(ctx, doc.Version.BlobKey)
}

// Versions lists a document's versions, newest first.
func (s *DocumentService) Versions(ctx context.Context, urn string) ([]models.DocumentVersion, error) {
	urn, err := normalizeDocumentURN(urn)
	if err != nil {
		return nil, err
	}
	versions, err := s.index.ListDocumentVersions(ctx, urn)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return versions, nil
}

// Search lists project documents by name substring and folder.
func (s *DocumentService) Search(ctx context.Context, projectID, query, folder string) ([]models.Document, error) {
	projectID, err := normalizeProjectID(projectID)
	if err != nil {
		return nil, err
	}
	folder, err = normalizeFolder(folder)
	if err != nil {
		return nil, err
	}
	docs, err := s.index.SearchDocuments(ctx, store.DocumentFilter{
		ProjectID: projectID,
		Query:     strings.TrimSpace(query),
		Folder:    folder,
	})
	if err != nil {
		return nil, mapStoreError(err)
	}
	return docs, nil
}

// Folders returns the folder tree of a project at or below under, parents
// before children. Every ancestor of a folder holding documents is listed,
// and Total counts documents in the whole subtree.
func (s *DocumentService) Folders(ctx context.Context, projectID, under string) ([]models.Folder, error) {
	projectID, err := normalizeProjectID(projectID)
	if err != nil {
		return nil, err
	}
	under, err = normalizeFolder(under)
	if err != nil {
		return nil, err
	}
	counts, err := s.index.CountDocumentsByFolder(ctx, projectID)
	if err != nil {
		return nil, mapStoreError(err)
	}

	tree := map[string]*models.Folder{"": {}}
	for path, n := range counts {
		folderNode(tree, path).Documents += n
		for p := path; ; p = parentFolder(p) {
			folderNode(tree, p).Total += n
			if p == "" {
				break
			}
		}
	}

	if _, ok := tree[under]; !ok {
		return nil, notFoundCode(fmt.Errorf("folder not found: %s", under), ErrCodeFolderNotFound)
	}
	out := make([]models.Folder, 0, len(tree))
	for path, node := range tree {
		if under == "" || path == under || strings.HasPrefix(path, under+"/") {
			out = append(out, *node)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func folderNode(tree map[string]*models.Folder, path string) *models.Folder {
	node, ok := tree[path]
	if !ok {
		node = &models.Folder{Path: path, Parent: parentFolder(path)}
		tree[path] = node
	}
	return node
}

func parentFolder(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[:i]
	}
	return ""
}

func normalizeMediaType(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallbackDocumentMediaType, nil
	}
	mediaType, _, err := mime.ParseMediaType(value)
	if err != nil {
		return "", badRequestCode(fmt.Errorf("invalid media type: %s", value), ErrCodeInvalidUpload)
	}
	return strings.ToLower(mediaType), nil
}

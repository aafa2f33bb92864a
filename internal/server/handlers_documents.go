package server

import (
	"bufio"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"transmit/internal/api"
)

const (
	uploadMultipartMemory = 8 << 20 // 8 MiB
	uploadFormOverhead    = 1 << 20 // 1 MiB
)

func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	projectID, ok := s.pathProjectOrBadRequest(w, r)
	if !ok {
		return
	}

	s.withLimiter(w, r, s.uploadLimiter, "upload", func() {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Documents.MaxUploadBytes+uploadFormOverhead)
		if err := r.ParseMultipartForm(uploadMultipartMemory); err != nil {
			s.writeErrorReq(w, r, http.StatusBadRequest, classifyMultipartError(err))
			return
		}
		defer func() {
			if r.MultipartForm != nil {
				_ = r.MultipartForm.RemoveAll()
			}
		}()

		file, header, err := r.FormFile("content")
		if err != nil {
			s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(fmt.Errorf("content is required"), ErrCodeMissingRequired))
			return
		}
		defer file.Close()
		if header.Size > s.cfg.Documents.MaxUploadBytes {
			s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(fmt.Errorf("upload exceeds %d bytes", s.cfg.Documents.MaxUploadBytes), ErrCodeRequestTooLarge))
			return
		}

		buffered := bufio.NewReader(file)
		peek, _ := buffered.Peek(512)
		mediaType := strings.TrimSpace(header.Header.Get("Content-Type"))
		if (mediaType == "" || mediaType == fallbackDocumentMediaType) && len(peek) > 0 {
			mediaType = http.DetectContentType(peek)
		}

		in := api.DocumentUploadRequest{
			Name:      firstNonEmpty(r.FormValue("name"), header.Filename),
			Folder:    r.FormValue("folder"),
			URN:       r.FormValue("urn"),
			MediaType: mediaType,
		}
		resp, err := s.documents.Upload(r.Context(), projectID, in, buffered)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, resp)
	})
}

func (s *Server) handleSearchDocuments(w http.ResponseWriter, r *http.Request) {
	projectID, ok := s.pathProjectOrBadRequest(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	docs, err := s.documents.Search(r.Context(), projectID, query.Get("q"), query.Get("folder"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, docs)
}

func (s *Server) handleListFolders(w http.ResponseWriter, r *http.Request) {
	projectID, ok := s.pathProjectOrBadRequest(w, r)
	if !ok {
		return
	}
	folders, err := s.documents.Folders(r.Context(), projectID, r.URL.Query().Get("under"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, folders)
}

func (s *Server) handleDocumentVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := s.documents.Versions(r.Context(), r.PathValue("urn"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, versions)
}

func (s *Server) handleRegisterMember(w http.ResponseWriter, r *http.Request) {
	projectID, ok := s.pathProjectOrBadRequest(w, r)
	if !ok {
		return
	}
	var req api.MemberRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}
	member, err := s.directory.Register(r.Context(), projectID, req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, member)
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	projectID, ok := s.pathProjectOrBadRequest(w, r)
	if !ok {
		return
	}
	members, err := s.directory.List(r.Context(), projectID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, members)
}

func classifyMultipartError(err error) error {
	if err == nil {
		return nil
	}
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) || strings.Contains(strings.ToLower(err.Error()), "request body too large") {
		return badRequestCode(fmt.Errorf("request body too large"), ErrCodeRequestTooLarge)
	}
	return badRequestCode(err, ErrCodeInvalidUpload)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

package server

import (
	"net/http"
	"time"

	"transmit/internal/api"
	"transmit/internal/models"
)

func (s *Server) handleListTransmittals(w http.ResponseWriter, r *http.Request) {
	projectID, ok := s.pathProjectOrBadRequest(w, r)
	if !ok {
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	resp, err := s.transmittals.List(r.Context(), projectID, limit, offset)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateTransmittal(w http.ResponseWriter, r *http.Request) {
	projectID, ok := s.pathProjectOrBadRequest(w, r)
	if !ok {
		return
	}
	var req api.TransmittalCreateRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}

	resp, err := s.transmittals.Create(r.Context(), projectID, req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetTransmittal(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}
	t, err := s.transmittals.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}
	refs, err := s.transmittals.ListDocuments(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, refs)
}

func (s *Server) handleAddDocuments(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}
	var req api.AddDocumentsRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}

	added, err := s.transmittals.AddDocuments(r.Context(), id, req.Documents)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.AddedResponse{AddedCount: added})
}

func (s *Server) handleListRecipients(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}
	resp, err := s.transmittals.ListRecipients(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAddRecipients(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}
	var req api.AddRecipientsRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}

	added, err := s.transmittals.AddRecipients(r.Context(), id, req.Recipients)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.AddedResponse{AddedCount: added})
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}
	t, err := s.transmittals.Send(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}
	t, err := s.transmittals.Cancel(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleMarkViewed(w http.ResponseWriter, r *http.Request) {
	s.handleAcknowledge(w, r, models.AckViewed)
}

func (s *Server) handleMarkDownloaded(w http.ResponseWriter, r *http.Request) {
	s.handleAcknowledge(w, r, models.AckDownloaded)
}

func (s *Server) handleAcknowledge(w http.ResponseWriter, r *http.Request, kind models.AckKind) {
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}
	var req api.AcknowledgeRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}

	var at time.Time
	if req.At != nil {
		at = *req.At
	}
	resp, err := s.transmittals.RecordAcknowledgement(r.Context(), id, req.Email, kind, at)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

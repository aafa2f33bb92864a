package server

import (
	"net/http"

	"transmit/internal/api"
	"transmit/internal/models"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	status, err := s.store.MigrationStatus()
	if err != nil {
		s.writeServiceError(w, r, storeFailure(err))
		return
	}

	resp := api.InfoResponse{
		DBPath:             s.dbPath,
		SchemaVersion:      status.CurrentVersion,
		ArchiveConcurrency: s.archives.concurrency,
		FetchTimeout:       s.archives.fetchTimeout.String(),
		Notifier:           s.notifierName,
		Statuses: []models.TransmittalStatus{
			models.StatusDraft,
			models.StatusSent,
			models.StatusCompleted,
			models.StatusCancelled,
		},
	}

	s.writeJSON(w, http.StatusOK, resp)
}

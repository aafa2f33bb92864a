package server

import (
	"net/http"
)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health check and info.
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /v1/info", s.handleInfo)

	// Project transmittals.
	mux.HandleFunc("GET /v1/projects/{project}/transmittals", s.handleListTransmittals)
	mux.HandleFunc("POST /v1/projects/{project}/transmittals", s.handleCreateTransmittal)

	// Single transmittal.
	mux.HandleFunc("GET /v1/transmittals/{id}", s.handleGetTransmittal)
	mux.HandleFunc("GET /v1/transmittals/{id}/documents", s.handleListDocuments)
	mux.HandleFunc("POST /v1/transmittals/{id}/documents", s.handleAddDocuments)
	mux.HandleFunc("GET /v1/transmittals/{id}/recipients", s.handleListRecipients)
	mux.HandleFunc("POST /v1/transmittals/{id}/recipients", s.handleAddRecipients)

	// Lifecycle.
	mux.HandleFunc("POST /v1/transmittals/{id}/send", s.handleSend)
	mux.HandleFunc("POST /v1/transmittals/{id}/cancel", s.handleCancel)
	mux.HandleFunc("POST /v1/transmittals/{id}/mark-viewed", s.handleMarkViewed)
	mux.HandleFunc("POST /v1/transmittals/{id}/mark-downloaded", s.handleMarkDownloaded)

	// Archive.
	mux.HandleFunc("POST /v1/transmittals/{id}/download-zip", s.handleDownloadArchive)

	// Document index.
	mux.HandleFunc("POST /v1/projects/{project}/documents", s.handleUploadDocument)
	mux.HandleFunc("GET /v1/projects/{project}/documents", s.handleSearchDocuments)
	mux.HandleFunc("GET /v1/projects/{project}/folders", s.handleListFolders)
	mux.HandleFunc("GET /v1/documents/{urn}/versions", s.handleDocumentVersions)

	// Recipient directory.
	mux.HandleFunc("POST /v1/projects/{project}/members", s.handleRegisterMember)
	mux.HandleFunc("GET /v1/projects/{project}/members", s.handleListMembers)

	return mux
}

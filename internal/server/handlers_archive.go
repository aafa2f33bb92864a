package server

import (
	"encoding/json"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"transmit/internal/api"
)

func (s *Server) handleDownloadArchive(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}
	var req api.DownloadRequest
	if !s.decodeOptionalJSONReq(w, r, &req) {
		return
	}
	email := ""
	if strings.TrimSpace(req.Email) != "" {
		var err error
		if email, err = normalizeEmail(req.Email); err != nil {
			s.writeServiceError(w, r, err)
			return
		}
	}

	s.withLimiter(w, r, s.downloadLimiter, "archive download", func() {
		archive, err := s.archives.Assemble(r.Context(), id, email)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		defer func() {
			if err := archive.Close(); err != nil {
				s.log().Warn("remove archive spool", "transmittal_id", id, "error", err)
			}
		}()

		failed, err := json.Marshal(archive.Result.FailedFiles)
		if err != nil {
			s.writeServiceError(w, r, internalErrorCode(err, ErrCodeArchiveFailure))
			return
		}

		h := w.Header()
		h.Set("Content-Type", "application/zip")
		h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": archive.Filename}))
		h.Set(api.HeaderFileCount, strconv.Itoa(archive.Result.FileCount))
		h.Set(api.HeaderTotalSize, strconv.FormatInt(archive.Result.TotalSize, 10))
		h.Set(api.HeaderFailedFiles, string(failed))
		w.WriteHeader(http.StatusOK)

		if written, err := archive.WriteTo(w); err != nil {
			s.log().Warn("stream archive", "transmittal_id", id, "written", written, "error", err)
		}
	})
}

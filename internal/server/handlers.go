package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"transmit/internal/api"
	"transmit/internal/store"
)

const defaultJSONMaxBody = 1 << 20 // 1 MiB

func (s *Server) writeErrorReq(w http.ResponseWriter, r *http.Request, status int, err error) {
	if err == nil {
		err = errors.New(http.StatusText(status))
	}

	code := errorCode(status, err)
	numericCode := errorNumericCode(status, err)
	message := err.Error()

	fields := []any{"status", status, "code", code, "error_code", numericCode, "error", err}
	if r != nil {
		fields = append(fields, "method", r.Method, "path", r.URL.Path, "remote_addr", r.RemoteAddr)
	}

	switch {
	case status >= 500:
		s.log().Error("request error", fields...)
		message = "internal error"
	case status == http.StatusTooManyRequests:
		s.log().Warn("request rejected", fields...)
	case status >= 400:
		s.log().Debug("request rejected", fields...)
	}

	s.writeJSON(w, status, api.ErrorResponse{Error: message, Code: code, ErrorCode: numericCode})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("write json response", "status", status, "error", err)
	}
}

type apiError struct {
	status  int
	code    string
	errCode int
	err     error
}

func (e apiError) Error() string {
	if e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e apiError) Unwrap() error {
	return e.err
}

func makeAPIError(status int, code string, errCode int, err error) error {
	if err == nil {
		err = errors.New(http.StatusText(status))
	}

	var existing apiError
	if errors.As(err, &existing) {
		if existing.status != 0 {
			return existing
		}
	}

	return apiError{status: status, code: code, errCode: errCode, err: err}
}

func badRequest(err error) error {
	return badRequestCode(err, ErrCodeInvalidArgument)
}

func badRequestCode(err error, code int) error {
	return makeAPIError(http.StatusBadRequest, api.CodeInvalidArgument, code, err)
}

func notFoundCode(err error, code int) error {
	return makeAPIError(http.StatusNotFound, api.CodeNotFound, code, err)
}

func invalidState(err error) error {
	return makeAPIError(http.StatusConflict, api.CodeInvalidState, ErrCodeInvalidState, err)
}

func preconditionFailed(err error) error {
	return makeAPIError(http.StatusPreconditionFailed, api.CodePreconditionFailed, ErrCodePreconditionFailed, err)
}

func emptyArchive(err error) error {
	return makeAPIError(http.StatusUnprocessableEntity, api.CodeEmptyArchive, ErrCodeEmptyArchive, err)
}

func internalError(err error) error {
	return makeAPIError(http.StatusInternalServerError, api.CodeInternal, ErrCodeInternal, err)
}

func internalErrorCode(err error, code int) error {
	return makeAPIError(http.StatusInternalServerError, api.CodeInternal, code, err)
}

func storeFailure(err error) error {
	return makeAPIError(http.StatusInternalServerError, api.CodeInternal, ErrCodeStoreFailure, err)
}

// mapStoreError converts store sentinels into API errors. Anything it does
// not recognize becomes a store failure.
func mapStoreError(err error) error {
	if err == nil {
		return nil
	}
	var existing apiError
	if errors.As(err, &existing) {
		return existing
	}
	switch {
	case errors.Is(err, store.ErrTransmittalNotFound):
		return notFoundCode(err, ErrCodeTransmittalNotFound)
	case errors.Is(err, store.ErrRecipientNotFound):
		return notFoundCode(err, ErrCodeRecipientNotFound)
	case errors.Is(err, store.ErrDocumentNotFound):
		return notFoundCode(err, ErrCodeDocumentNotFound)
	case errors.Is(err, store.ErrTransmittalCancelled), errors.Is(err, store.ErrStatusConflict):
		return invalidState(err)
	case errors.Is(err, store.ErrTransmittalIncomplete):
		return preconditionFailed(err)
	default:
		return storeFailure(err)
	}
}

// statusClientClosedRequest is the nginx convention for a request the client
// abandoned before a response was written.
const statusClientClosedRequest = 499

func httpStatusFromError(err error) int {
	if errors.Is(err, errRequestAborted) {
		return statusClientClosedRequest
	}
	var apiErr apiError
	if errors.As(err, &apiErr) {
		return apiErr.status
	}
	return http.StatusInternalServerError
}

func errorCode(status int, err error) string {
	var apiErr apiError
	if errors.As(err, &apiErr) && apiErr.code != "" {
		return apiErr.code
	}
	switch status {
	case http.StatusBadRequest:
		return api.CodeInvalidArgument
	case http.StatusNotFound:
		return api.CodeNotFound
	case http.StatusConflict:
		return api.CodeInvalidState
	case http.StatusPreconditionFailed:
		return api.CodePreconditionFailed
	case http.StatusUnprocessableEntity:
		return api.CodeEmptyArchive
	case http.StatusTooManyRequests:
		return api.CodeResourceExhausted
	case http.StatusInternalServerError:
		return api.CodeInternal
	case statusClientClosedRequest:
		return api.CodeCanceled
	default:
		return ""
	}
}

func errorNumericCode(status int, err error) int {
	var apiErr apiError
	if errors.As(err, &apiErr) && apiErr.errCode > 0 {
		return apiErr.errCode
	}
	return defaultErrorCodeByStatus(status)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, defaultJSONMaxBody)
	return json.NewDecoder(r.Body).Decode(dst)
}

// decodeOptionalJSON accepts an empty body and leaves dst untouched.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	err := decodeJSON(w, r, dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func classifyDecodeJSONError(err error) error {
	if err == nil {
		return nil
	}

	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return badRequestCode(fmt.Errorf("request body too large"), ErrCodeRequestTooLarge)
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return badRequestCode(fmt.Errorf("invalid JSON payload"), ErrCodeInvalidJSON)
	}

	return badRequestCode(err, ErrCodeInvalidJSON)
}

func (s *Server) decodeJSONReq(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeJSON(w, r, dst); err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, classifyDecodeJSONError(err))
		return false
	}
	return true
}

func (s *Server) decodeOptionalJSONReq(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeOptionalJSON(w, r, dst); err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, classifyDecodeJSONError(err))
		return false
	}
	return true
}

// errRequestAborted marks work abandoned because the request context ended.
var errRequestAborted = errors.New("request aborted")

// writeServiceError writes err as an API error. Nothing is written once the
// client has gone away.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errRequestAborted) || (r != nil && r.Context().Err() != nil) {
		fields := []any{"error", err}
		if r != nil {
			fields = append(fields, "method", r.Method, "path", r.URL.Path)
		}
		s.log().Debug("request aborted", fields...)
		return
	}
	s.writeErrorReq(w, r, httpStatusFromError(err), err)
}

func (s *Server) withLimiter(w http.ResponseWriter, r *http.Request, limiter chan struct{}, name string, fn func()) {
	if !s.acquireLimiter(limiter, w, r, name) {
		return
	}
	defer s.releaseLimiter(limiter)
	fn()
}

func (s *Server) pathIDOrBadRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := requirePathID(r)
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, err)
		return "", false
	}
	return id, true
}

func (s *Server) pathProjectOrBadRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	projectID, err := normalizeProjectID(r.PathValue("project"))
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, err)
		return "", false
	}
	return projectID, true
}

func requirePathID(r *http.Request) (string, error) {
	id, err := store.ParseTransmittalID(r.PathValue("id"))
	if err != nil {
		return "", badRequestCode(err, ErrCodeInvalidID)
	}
	return id, nil
}

// queryInt parses a non-negative integer query parameter; absent means 0.
func queryInt(r *http.Request, key string) (int, error) {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, badRequestCode(fmt.Errorf("invalid %s", key), ErrCodeInvalidQuery)
	}
	if parsed < 0 {
		return 0, badRequestCode(fmt.Errorf("%s must be >= 0", key), ErrCodeInvalidQuery)
	}
	return parsed, nil
}

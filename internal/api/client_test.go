package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"transmit/internal/models"
)

func TestHTTPTimeoutFromEnv(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "")
		if got := httpTimeoutFromEnv(); got != defaultHTTPTimeout {
			t.Fatalf("expected default timeout %v, got %v", defaultHTTPTimeout, got)
		}
	})

	t.Run("duration format", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "45s")
		if got := httpTimeoutFromEnv(); got != 45*time.Second {
			t.Fatalf("expected 45s timeout, got %v", got)
		}
	})

	t.Run("integer seconds", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "25")
		if got := httpTimeoutFromEnv(); got != 25*time.Second {
			t.Fatalf("expected 25s timeout, got %v", got)
		}
	})

	t.Run("invalid falls back", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "invalid")
		if got := httpTimeoutFromEnv(); got != defaultHTTPTimeout {
			t.Fatalf("expected default timeout %v, got %v", defaultHTTPTimeout, got)
		}
	})
}

func TestDecodeErrorReturnsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPreconditionFailed)
		_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "transmittal has no recipients", Code: "precondition_failed", ErrorCode: 2202})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Send(context.Background(), "abc")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T %v", err, err)
	}
	if apiErr.Status != http.StatusPreconditionFailed || apiErr.Code != "precondition_failed" || apiErr.ErrorCode != 2202 {
		t.Fatalf("unexpected api error %+v", apiErr)
	}
}

func TestListFoldersSendsSubtree(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		_ = json.NewEncoder(w).Encode([]models.Folder{{Path: "drawings", Documents: 0, Total: 3}})
	}))
	defer srv.Close()

	folders, err := NewClient(srv.URL).ListFolders(context.Background(), "tower-b", "drawings")
	if err != nil {
		t.Fatalf("list folders: %v", err)
	}
	if gotPath != "/v1/projects/tower-b/folders" || gotQuery != "under=drawings" {
		t.Fatalf("unexpected request %s?%s", gotPath, gotQuery)
	}
	if len(folders) != 1 || folders[0].Total != 3 {
		t.Fatalf("unexpected folders %+v", folders)
	}
}

func TestListTransmittalsSendsPaging(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		_ = json.NewEncoder(w).Encode(TransmittalListResponse{Items: []models.Transmittal{}, Total: 0, Limit: 5, Offset: 10})
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL).ListTransmittals(context.Background(), "tower b", 5, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if gotPath != "/v1/projects/tower b/transmittals" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotQuery != "limit=5&offset=10" {
		t.Fatalf("unexpected query %q", gotQuery)
	}
	if resp.Limit != 5 || resp.Offset != 10 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestDownloadArchiveParsesHeaders(t *testing.T) {
	var gotBody DownloadRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/download-zip") {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/zip")
		w.Header().Set("Content-Disposition", `attachment; filename="ifc-set.zip"`)
		w.Header().Set(HeaderFileCount, "2")
		w.Header().Set(HeaderTotalSize, "2048")
		w.Header().Set(HeaderFailedFiles, `[{"documentUrn":"urn:doc2","reason":"not_found"}]`)
		_, _ = w.Write([]byte("PK-bytes"))
	}))
	defer srv.Close()

	var buf bytes.Buffer
	got, err := NewClient(srv.URL).DownloadArchive(context.Background(), "abc", " bob@example.com ", &buf)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if gotBody.Email != "bob@example.com" {
		t.Fatalf("expected trimmed email in body, got %q", gotBody.Email)
	}
	if got.Filename != "ifc-set.zip" || got.FileCount != 2 || got.TotalSize != 2048 {
		t.Fatalf("unexpected metadata %+v", got)
	}
	if len(got.FailedFiles) != 1 || got.FailedFiles[0].DocumentURN != "urn:doc2" || got.FailedFiles[0].Reason != models.FailureNotFound {
		t.Fatalf("unexpected failed files %+v", got.FailedFiles)
	}
	if buf.String() != "PK-bytes" || got.Written != int64(buf.Len()) {
		t.Fatalf("unexpected body %q (%d)", buf.String(), got.Written)
	}
}

func TestParseArchiveHeadersDefaults(t *testing.T) {
	got, err := parseArchiveHeaders(http.Header{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Filename != "download.zip" {
		t.Fatalf("expected fallback filename, got %q", got.Filename)
	}
	if got.FailedFiles == nil {
		t.Fatal("expected empty failed files slice")
	}

	h := http.Header{}
	h.Set(HeaderFileCount, "many")
	if _, err := parseArchiveHeaders(h); err == nil {
		t.Fatal("expected error for malformed file count")
	}
}

func TestUploadDocumentSendsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			return
		}
		file, header, err := r.FormFile("content")
		if err != nil {
			t.Errorf("form file: %v", err)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if string(data) != "drawing" || header.Filename != "A-101.pdf" {
			t.Errorf("unexpected file %q %q", header.Filename, data)
		}
		if r.FormValue("folder") != "drawings" || r.FormValue("urn") != "" {
			t.Errorf("unexpected fields folder=%q urn=%q", r.FormValue("folder"), r.FormValue("urn"))
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(DocumentUploadResponse{
			Document: models.Document{URN: "urn:transmit:doc:1", Name: "A-101.pdf"},
			Version:  models.DocumentVersion{VersionTag: "v1"},
		})
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL).UploadDocument(context.Background(), "p1", DocumentUploadRequest{
		Name:      "A-101.pdf",
		Folder:    "drawings",
		MediaType: "application/pdf",
	}, strings.NewReader("drawing"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if resp.Version.VersionTag != "v1" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestAPIErrorCodeHelpers(t *testing.T) {
	empty := fmt.Errorf("download t1: %w", &APIError{Status: http.StatusUnprocessableEntity, Code: CodeEmptyArchive, Message: "no documents could be fetched"})
	if !IsEmptyArchive(empty) || IsInvalidState(empty) || IsNotFound(empty) {
		t.Fatalf("unexpected classification of %v", empty)
	}
	if ErrorCodeOf(empty) != CodeEmptyArchive {
		t.Fatalf("unexpected code %q", ErrorCodeOf(empty))
	}

	state := &APIError{Status: http.StatusConflict, Code: CodeInvalidState, Message: "transmittal is cancelled"}
	if !IsInvalidState(state) || state.Retryable() {
		t.Fatalf("unexpected classification of %v", state)
	}
	if IsCode(errors.New("plain"), "") || ErrorCodeOf(errors.New("plain")) != "" {
		t.Fatal("plain errors carry no code")
	}

	busy := &APIError{Status: http.StatusTooManyRequests, Code: CodeResourceExhausted}
	if !busy.Retryable() || !busy.FromServer() {
		t.Fatalf("expected shed load to be retryable, got %+v", busy)
	}
	proxy := &APIError{Status: http.StatusBadGateway}
	if proxy.FromServer() || !proxy.Retryable() {
		t.Fatalf("unexpected proxy classification %+v", proxy)
	}
	if got := proxy.Error(); got != "transmit api: 502 Bad Gateway" {
		t.Fatalf("unexpected message %q", got)
	}
}

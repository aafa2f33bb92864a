package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"transmit/internal/api"
	"transmit/internal/config"
	"transmit/internal/models"
)

func TestTransmittalHTTPFlow(t *testing.T) {
	env := newTestEnv(t)
	doc := env.upload(t, testProject, "A-101.pdf", "sheet")

	w := env.do(t, http.MethodPost, "/v1/projects/"+testProject+"/transmittals", api.TransmittalCreateRequest{Title: "IFC"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	created := decodeResponse[api.TransmittalCreateResponse](t, w)
	base := "/v1/transmittals/" + created.TransmittalID

	w = env.do(t, http.MethodPost, base+"/send", nil)
	assertErrorResponse(t, w, http.StatusPreconditionFailed, "precondition_failed")

	w = env.do(t, http.MethodPost, base+"/documents", api.AddDocumentsRequest{Documents: []api.DocumentRefInput{{DocumentURN: doc.URN}, {DocumentURN: doc.URN}}})
	if w.Code != http.StatusOK {
		t.Fatalf("add documents: %d %s", w.Code, w.Body.String())
	}
	if got := decodeResponse[api.AddedResponse](t, w); got.AddedCount != 1 {
		t.Fatalf("expected 1 added, got %d", got.AddedCount)
	}

	w = env.do(t, http.MethodPost, base+"/recipients", api.AddRecipientsRequest{Recipients: []api.RecipientInput{{Email: "gc@example.com"}}})
	if got := decodeResponse[api.AddedResponse](t, w); got.AddedCount != 1 {
		t.Fatalf("expected 1 added, got %d", got.AddedCount)
	}
	w = env.do(t, http.MethodPost, base+"/recipients", api.AddRecipientsRequest{Recipients: []api.RecipientInput{{Email: "GC@example.com"}}})
	if got := decodeResponse[api.AddedResponse](t, w); got.AddedCount != 0 {
		t.Fatalf("expected existing email to be ignored, got %d", got.AddedCount)
	}

	w = env.do(t, http.MethodPost, base+"/send", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("send: %d %s", w.Code, w.Body.String())
	}

	w = env.do(t, http.MethodPost, base+"/mark-viewed", api.AcknowledgeRequest{Email: "gc@example.com"})
	ack := decodeResponse[api.AcknowledgeResponse](t, w)
	if !ack.OK || ack.Status != models.StatusSent {
		t.Fatalf("unexpected view ack %+v", ack)
	}

	w = env.do(t, http.MethodPost, base+"/mark-downloaded", api.AcknowledgeRequest{Email: "gc@example.com"})
	ack = decodeResponse[api.AcknowledgeResponse](t, w)
	if ack.Status != models.StatusCompleted {
		t.Fatalf("expected completed, got %+v", ack)
	}

	w = env.do(t, http.MethodGet, base, nil)
	got := decodeResponse[models.Transmittal](t, w)
	if got.Status != models.StatusCompleted || got.CompletedAt == nil {
		t.Fatalf("unexpected transmittal %+v", got)
	}

	w = env.do(t, http.MethodGet, base+"/documents", nil)
	refs := decodeResponse[[]models.DocumentRef](t, w)
	if len(refs) != 1 || refs[0].DocumentURN != doc.URN || refs[0].Position != 0 {
		t.Fatalf("unexpected refs %+v", refs)
	}

	w = env.do(t, http.MethodGet, base+"/recipients", nil)
	grouped := decodeResponse[api.RecipientsResponse](t, w)
	if len(grouped.NonMembers) != 1 || grouped.NonMembers[0].DownloadedAt == nil {
		t.Fatalf("unexpected recipients %+v", grouped)
	}
}

func TestListTransmittalsQueryValidation(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) { cfg.List.MaxLimit = 2 })
	for i := 0; i < 3; i++ {
		env.do(t, http.MethodPost, "/v1/projects/"+testProject+"/transmittals", api.TransmittalCreateRequest{})
	}

	w := env.do(t, http.MethodGet, "/v1/projects/"+testProject+"/transmittals?limit=-1", nil)
	assertErrorResponse(t, w, http.StatusBadRequest, "invalid_argument")

	w = env.do(t, http.MethodGet, "/v1/projects/"+testProject+"/transmittals?offset=abc", nil)
	assertErrorResponse(t, w, http.StatusBadRequest, "invalid_argument")

	w = env.do(t, http.MethodGet, "/v1/projects/"+testProject+"/transmittals?limit=50", nil)
	page := decodeResponse[api.TransmittalListResponse](t, w)
	if page.Limit != 2 || len(page.Items) != 2 || page.Total != 3 {
		t.Fatalf("unexpected capped page %+v", page)
	}

	w = env.do(t, http.MethodGet, "/v1/projects/"+testProject+"/transmittals?limit=2&offset=2", nil)
	page = decodeResponse[api.TransmittalListResponse](t, w)
	if len(page.Items) != 1 || page.Offset != 2 {
		t.Fatalf("unexpected second page %+v", page)
	}
}

func TestInvalidTransmittalID(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/v1/transmittals/not-a-uuid", nil)
	resp := assertErrorResponse(t, w, http.StatusBadRequest, "invalid_argument")
	if resp.ErrorCode != ErrCodeInvalidID {
		t.Fatalf("expected error_code %d, got %d", ErrCodeInvalidID, resp.ErrorCode)
	}

	w = env.do(t, http.MethodGet, "/v1/transmittals/0b5c8f1e-0000-4000-8000-000000000000", nil)
	resp = assertErrorResponse(t, w, http.StatusNotFound, "not_found")
	if resp.ErrorCode != ErrCodeTransmittalNotFound {
		t.Fatalf("expected error_code %d, got %d", ErrCodeTransmittalNotFound, resp.ErrorCode)
	}
}

func TestDownloadArchiveHeaders(t *testing.T) {
	env := newTestEnv(t)
	doc := env.upload(t, testProject, "A-101.pdf", "sheet")
	sent := env.createSent(t, testProject, []string{doc.URN, "urn:transmit:doc:gone"}, "gc@example.com")

	w := env.do(t, http.MethodPost, "/v1/transmittals/"+sent.ID+"/download-zip", api.DownloadRequest{Email: "gc@example.com"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/zip" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if got := w.Header().Get(api.HeaderFileCount); got != "1" {
		t.Fatalf("unexpected file count %q", got)
	}
	if got := w.Header().Get(api.HeaderTotalSize); got != strconv.Itoa(len("sheet")) {
		t.Fatalf("unexpected total size %q", got)
	}
	var failed []models.FailedFile
	if err := json.Unmarshal([]byte(w.Header().Get(api.HeaderFailedFiles)), &failed); err != nil {
		t.Fatalf("decode failed files header: %v", err)
	}
	if len(failed) != 1 || failed[0].DocumentURN != "urn:transmit:doc:gone" || failed[0].Reason != models.FailureNotFound {
		t.Fatalf("unexpected failed files %+v", failed)
	}
	_, params, err := mime.ParseMediaType(w.Header().Get("Content-Disposition"))
	if err != nil || params["filename"] != "Issue for construction.zip" {
		t.Fatalf("unexpected content disposition %q (%v)", w.Header().Get("Content-Disposition"), err)
	}
	if w.Body.Len() == 0 {
		t.Fatal("expected archive body")
	}

	w = env.do(t, http.MethodGet, "/v1/transmittals/"+sent.ID, nil)
	if got := decodeResponse[models.Transmittal](t, w); got.Status != models.StatusCompleted {
		t.Fatalf("expected download to complete transmittal, got %s", got.Status)
	}
}

func TestDownloadArchiveEmptyAndInvalid(t *testing.T) {
	env := newTestEnv(t)
	sent := env.createSent(t, testProject, []string{"urn:transmit:doc:gone"}, "gc@example.com")

	req := httptest.NewRequest(http.MethodPost, "/v1/transmittals/"+sent.ID+"/download-zip", nil)
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)
	resp := assertErrorResponse(t, w, http.StatusUnprocessableEntity, "empty_archive")
	if resp.ErrorCode != ErrCodeEmptyArchive {
		t.Fatalf("expected error_code %d, got %d", ErrCodeEmptyArchive, resp.ErrorCode)
	}
	if w.Header().Get(api.HeaderFileCount) != "" {
		t.Fatal("expected no archive headers on failure")
	}

	w = env.do(t, http.MethodPost, "/v1/transmittals/"+sent.ID+"/download-zip", api.DownloadRequest{Email: "not-an-email"})
	assertErrorResponse(t, w, http.StatusBadRequest, "invalid_argument")

	w = env.do(t, http.MethodPost, "/v1/transmittals/0b5c8f1e-0000-4000-8000-000000000000/download-zip", nil)
	assertErrorResponse(t, w, http.StatusNotFound, "not_found")
}

func TestDownloadArchiveClientGone(t *testing.T) {
	env := newTestEnv(t)
	doc := env.upload(t, testProject, "a.pdf", "a")
	sent := env.createSent(t, testProject, []string{doc.URN}, "gc@example.com")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/v1/transmittals/"+sent.ID+"/download-zip", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)

	if w.Code == http.StatusInternalServerError || w.Body.Len() != 0 {
		t.Fatalf("expected nothing written for a gone client, got %d: %q", w.Code, w.Body.String())
	}
	if w.Header().Get(api.HeaderFileCount) != "" {
		t.Fatal("expected no archive headers")
	}

	w = httptest.NewRecorder()
	env.server.writeServiceError(w, httptest.NewRequest(http.MethodGet, "/", nil), fmt.Errorf("%w: %w", errRequestAborted, context.Canceled))
	if w.Body.Len() != 0 {
		t.Fatalf("expected aborted error to be dropped, got %q", w.Body.String())
	}
	if got := httpStatusFromError(errRequestAborted); got != statusClientClosedRequest {
		t.Fatalf("expected %d, got %d", statusClientClosedRequest, got)
	}
}

func TestDownloadArchiveLimiter(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) { cfg.Archive.MaxConcurrentDownloads = 1 })
	doc := env.upload(t, testProject, "a.pdf", "a")
	sent := env.createSent(t, testProject, []string{doc.URN}, "gc@example.com")

	env.server.downloadLimiter <- struct{}{}
	w := env.do(t, http.MethodPost, "/v1/transmittals/"+sent.ID+"/download-zip", nil)
	assertErrorResponse(t, w, http.StatusTooManyRequests, "resource_exhausted")

	<-env.server.downloadLimiter
	w = env.do(t, http.MethodPost, "/v1/transmittals/"+sent.ID+"/download-zip", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 after release, got %d", w.Code)
	}
}

func TestUploadSearchAndVersions(t *testing.T) {
	env := newTestEnv(t)

	upload := func(fields map[string]string, filename, content string) *httptest.ResponseRecorder {
		t.Helper()
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		for k, v := range fields {
			if err := mw.WriteField(k, v); err != nil {
				t.Fatalf("write field: %v", err)
			}
		}
		part, err := mw.CreateFormFile("content", filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		_, _ = part.Write([]byte(content))
		if err := mw.Close(); err != nil {
			t.Fatalf("close multipart: %v", err)
		}
		req := httptest.NewRequest(http.MethodPost, "/v1/projects/"+testProject+"/documents", &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		w := httptest.NewRecorder()
		env.handler.ServeHTTP(w, req)
		return w
	}

	w := upload(map[string]string{"folder": "/drawings/arch/"}, "A-101.txt", "rev A")
	if w.Code != http.StatusCreated {
		t.Fatalf("upload: %d %s", w.Code, w.Body.String())
	}
	first := decodeResponse[api.DocumentUploadResponse](t, w)
	if first.Document.Folder != "drawings/arch" || first.Version.VersionTag != "v1" || first.Version.SizeBytes != 5 {
		t.Fatalf("unexpected upload %+v", first)
	}
	if first.Version.MediaType == "" {
		t.Fatal("expected a media type")
	}

	w = upload(map[string]string{"urn": first.Document.URN}, "A-101.txt", "rev B")
	second := decodeResponse[api.DocumentUploadResponse](t, w)
	if second.Version.VersionTag != "v2" || second.Document.LatestVersion != "v2" {
		t.Fatalf("unexpected second upload %+v", second)
	}

	w = upload(map[string]string{"urn": "urn:transmit:doc:unknown"}, "x.txt", "x")
	assertErrorResponse(t, w, http.StatusNotFound, "not_found")

	upload(map[string]string{"folder": "models"}, "Tower.ifc", "ifc")

	w = env.do(t, http.MethodGet, "/v1/projects/"+testProject+"/documents?folder=drawings", nil)
	docs := decodeResponse[[]models.Document](t, w)
	if len(docs) != 1 || docs[0].URN != first.Document.URN {
		t.Fatalf("unexpected folder search %+v", docs)
	}
	w = env.do(t, http.MethodGet, "/v1/projects/"+testProject+"/documents?q=tower", nil)
	docs = decodeResponse[[]models.Document](t, w)
	if len(docs) != 1 || docs[0].Name != "Tower.ifc" {
		t.Fatalf("unexpected name search %+v", docs)
	}

	w = env.do(t, http.MethodGet, "/v1/documents/"+first.Document.URN+"/versions", nil)
	versions := decodeResponse[[]models.DocumentVersion](t, w)
	if len(versions) != 2 || versions[0].VersionTag != "v2" {
		t.Fatalf("unexpected versions %+v", versions)
	}
}

func TestListFoldersEndpoint(t *testing.T) {
	env := newTestEnv(t)
	for _, up := range []api.DocumentUploadRequest{
		{Name: "A-101.pdf", Folder: "drawings/arch"},
		{Name: "A-102.pdf", Folder: "/drawings/arch/"},
		{Name: "S-201.pdf", Folder: "drawings/struct/level-2"},
		{Name: "Index.pdf"},
	} {
		if _, err := env.server.documents.Upload(context.Background(), testProject, up, strings.NewReader("x")); err != nil {
			t.Fatalf("upload %s: %v", up.Name, err)
		}
	}

	w := env.do(t, http.MethodGet, "/v1/projects/"+testProject+"/folders", nil)
	folders := decodeResponse[[]models.Folder](t, w)
	want := []models.Folder{
		{Path: "", Parent: "", Documents: 1, Total: 4},
		{Path: "drawings", Parent: "", Documents: 0, Total: 3},
		{Path: "drawings/arch", Parent: "drawings", Documents: 2, Total: 2},
		{Path: "drawings/struct", Parent: "drawings", Documents: 0, Total: 1},
		{Path: "drawings/struct/level-2", Parent: "drawings/struct", Documents: 1, Total: 1},
	}
	if len(folders) != len(want) {
		t.Fatalf("expected %d folders, got %+v", len(want), folders)
	}
	for i := range want {
		if folders[i] != want[i] {
			t.Fatalf("folder %d: expected %+v, got %+v", i, want[i], folders[i])
		}
	}

	w = env.do(t, http.MethodGet, "/v1/projects/"+testProject+"/folders?under=drawings/struct", nil)
	folders = decodeResponse[[]models.Folder](t, w)
	if len(folders) != 2 || folders[0].Path != "drawings/struct" || folders[1].Path != "drawings/struct/level-2" {
		t.Fatalf("unexpected subtree %+v", folders)
	}

	w = env.do(t, http.MethodGet, "/v1/projects/"+testProject+"/folders?under=specs", nil)
	resp := assertErrorResponse(t, w, http.StatusNotFound, "not_found")
	if resp.ErrorCode != ErrCodeFolderNotFound {
		t.Fatalf("expected error_code %d, got %d", ErrCodeFolderNotFound, resp.ErrorCode)
	}

	w = env.do(t, http.MethodGet, "/v1/projects/"+testProject+"/folders?under=../etc", nil)
	assertErrorResponse(t, w, http.StatusBadRequest, "invalid_argument")

	w = env.do(t, http.MethodGet, "/v1/projects/empty-project/folders", nil)
	folders = decodeResponse[[]models.Folder](t, w)
	if len(folders) != 1 || folders[0].Path != "" || folders[0].Total != 0 {
		t.Fatalf("expected only the root for an empty project, got %+v", folders)
	}
}

func TestMembersEndpoints(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/v1/projects/"+testProject+"/members", api.MemberRequest{Email: "Lead@Firm.com", Name: "Lead", Company: "Firm"})
	if w.Code != http.StatusOK {
		t.Fatalf("register: %d %s", w.Code, w.Body.String())
	}
	member := decodeResponse[models.Member](t, w)
	if member.Email != "lead@firm.com" || member.Company != "Firm" {
		t.Fatalf("unexpected member %+v", member)
	}

	w = env.do(t, http.MethodPost, "/v1/projects/"+testProject+"/members", api.MemberRequest{Email: "bad"})
	assertErrorResponse(t, w, http.StatusBadRequest, "invalid_argument")

	w = env.do(t, http.MethodGet, "/v1/projects/"+testProject+"/members", nil)
	members := decodeResponse[[]models.Member](t, w)
	if len(members) != 1 {
		t.Fatalf("unexpected members %+v", members)
	}
}

func TestInvalidJSONBody(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/projects/"+testProject+"/transmittals", bytes.NewBufferString("{"))
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)
	resp := assertErrorResponse(t, w, http.StatusBadRequest, "invalid_argument")
	if resp.ErrorCode != ErrCodeInvalidJSON {
		t.Fatalf("expected error_code %d, got %d", ErrCodeInvalidJSON, resp.ErrorCode)
	}
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"transmit/internal/models"
)

const (
	defaultHTTPTimeout     = 10 * time.Second
	httpTimeoutEnvKey      = "TRANSMIT_HTTP_TIMEOUT"
	defaultArchiveFilename = "download.zip"
	defaultUploadMediaType = "application/octet-stream"
)

// Client is a simple HTTP client for the transmit API.
type Client struct {
	baseURL string
	http    *http.Client

	// transfer has no overall timeout; archive and upload bodies may be large.
	transfer *http.Client
}

// NewClient creates a new API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: httpTimeoutFromEnv()},
		transfer: &http.Client{},
	}
}

// Ping checks whether the API server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil, nil)
}

func (c *Client) GetInfo(ctx context.Context) (InfoResponse, error) {
	var resp InfoResponse
	err := c.do(ctx, http.MethodGet, "/v1/info", nil, nil, &resp)
	return resp, err
}

func (c *Client) ListTransmittals(ctx context.Context, projectID string, limit, offset int) (TransmittalListResponse, error) {
	var resp TransmittalListResponse
	query := url.Values{}
	if limit != 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if offset != 0 {
		query.Set("offset", strconv.Itoa(offset))
	}
	err := c.do(ctx, http.MethodGet, projectPath(projectID, "transmittals"), query, nil, &resp)
	return resp, err
}

func (c *Client) CreateTransmittal(ctx context.Context, projectID string, req TransmittalCreateRequest) (TransmittalCreateResponse, error) {
	var resp TransmittalCreateResponse
	err := c.do(ctx, http.MethodPost, projectPath(projectID, "transmittals"), nil, req, &resp)
	return resp, err
}

func (c *Client) GetTransmittal(ctx context.Context, id string) (models.Transmittal, error) {
	var resp models.Transmittal
	err := c.do(ctx, http.MethodGet, transmittalPath(id, ""), nil, nil, &resp)
	return resp, err
}

func (c *Client) AddDocuments(ctx context.Context, id string, docs []DocumentRefInput) (AddedResponse, error) {
	var resp AddedResponse
	err := c.do(ctx, http.MethodPost, transmittalPath(id, "documents"), nil, AddDocumentsRequest{Documents: docs}, &resp)
	return resp, err
}

func (c *Client) ListDocuments(ctx context.Context, id string) ([]models.DocumentRef, error) {
	var resp []models.DocumentRef
	err := c.do(ctx, http.MethodGet, transmittalPath(id, "documents"), nil, nil, &resp)
	return resp, err
}

func (c *Client) AddRecipients(ctx context.Context, id string, recipients []RecipientInput) (AddedResponse, error) {
	var resp AddedResponse
	err := c.do(ctx, http.MethodPost, transmittalPath(id, "recipients"), nil, AddRecipientsRequest{Recipients: recipients}, &resp)
	return resp, err
}

func (c *Client) ListRecipients(ctx context.Context, id string) (RecipientsResponse, error) {
	var resp RecipientsResponse
	err := c.do(ctx, http.MethodGet, transmittalPath(id, "recipients"), nil, nil, &resp)
	return resp, err
}

func (c *Client) Send(ctx context.Context, id string) (models.Transmittal, error) {
	var resp models.Transmittal
	err := c.do(ctx, http.MethodPost, transmittalPath(id, "send"), nil, nil, &resp)
	return resp, err
}

func (c *Client) Cancel(ctx context.Context, id string) (models.Transmittal, error) {
	var resp models.Transmittal
	err := c.do(ctx, http.MethodPost, transmittalPath(id, "cancel"), nil, nil, &resp)
	return resp, err
}

func (c *Client) MarkViewed(ctx context.Context, id string, req AcknowledgeRequest) (AcknowledgeResponse, error) {
	var resp AcknowledgeResponse
	err := c.do(ctx, http.MethodPost, transmittalPath(id, "mark-viewed"), nil, req, &resp)
	return resp, err
}

func (c *Client) MarkDownloaded(ctx context.Context, id string, req AcknowledgeRequest) (AcknowledgeResponse, error) {
	var resp AcknowledgeResponse
	err := c.do(ctx, http.MethodPost, transmittalPath(id, "mark-downloaded"), nil, req, &resp)
	return resp, err
}

// DownloadArchive streams a transmittal archive to w and returns the metadata
// carried in the response headers.
func (c *Client) DownloadArchive(ctx context.Context, id, email string, w io.Writer) (ArchiveDownload, error) {
	var result ArchiveDownload
	payload, err := json.Marshal(DownloadRequest{Email: strings.TrimSpace(email)})
	if err != nil {
		return result, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+transmittalPath(id, "download-zip"), bytes.NewReader(payload))
	if err != nil {
		return result, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.transfer.Do(req)
	if err != nil {
		return result, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return result, decodeError(resp)
	}

	result, err = parseArchiveHeaders(resp.Header)
	if err != nil {
		return result, err
	}
	result.Written, err = io.Copy(w, resp.Body)
	return result, err
}

func parseArchiveHeaders(h http.Header) (ArchiveDownload, error) {
	result := ArchiveDownload{Filename: defaultArchiveFilename, FailedFiles: []models.FailedFile{}}
	if _, params, err := mime.ParseMediaType(h.Get("Content-Disposition")); err == nil {
		if name := strings.TrimSpace(params["filename"]); name != "" {
			result.Filename = name
		}
	}
	if raw := h.Get(HeaderFileCount); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return result, fmt.Errorf("invalid %s header: %w", HeaderFileCount, err)
		}
		result.FileCount = n
	}
	if raw := h.Get(HeaderTotalSize); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return result, fmt.Errorf("invalid %s header: %w", HeaderTotalSize, err)
		}
		result.TotalSize = n
	}
	if raw := h.Get(HeaderFailedFiles); raw != "" {
		if err := json.Unmarshal([]byte(raw), &result.FailedFiles); err != nil {
			return result, fmt.Errorf("invalid %s header: %w", HeaderFailedFiles, err)
		}
	}
	return result, nil
}

// UploadDocument streams content as a multipart upload into the project's
// document index.
func (c *Client) UploadDocument(ctx context.Context, projectID string, in DocumentUploadRequest, content io.Reader) (DocumentUploadResponse, error) {
	var resp DocumentUploadResponse
	if content == nil {
		return resp, fmt.Errorf("content is required")
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeUploadForm(mw, in, content))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+projectPath(projectID, "documents"), pr)
	if err != nil {
		_ = pr.Close()
		return resp, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	httpResp, err := c.transfer.Do(req)
	if err != nil {
		return resp, err
	}
	defer httpResp.Body.Close()
	if httpResp.StatusCode >= 400 {
		return resp, decodeError(httpResp)
	}
	err = json.NewDecoder(httpResp.Body).Decode(&resp)
	return resp, err
}

func writeUploadForm(mw *multipart.Writer, in DocumentUploadRequest, content io.Reader) error {
	fields := [][2]string{{"name", in.Name}, {"folder", in.Folder}, {"urn", in.URN}}
	for _, field := range fields {
		if strings.TrimSpace(field[1]) == "" {
			continue
		}
		if err := mw.WriteField(field[0], field[1]); err != nil {
			return err
		}
	}

	mediaType := strings.TrimSpace(in.MediaType)
	if mediaType == "" {
		mediaType = defaultUploadMediaType
	}
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", mime.FormatMediaType("form-data", map[string]string{"name": "content", "filename": in.Name}))
	header.Set("Content-Type", mediaType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, content); err != nil {
		return err
	}
	return mw.Close()
}

func (c *Client) SearchDocuments(ctx context.Context, projectID, query, folder string) ([]models.Document, error) {
	var resp []models.Document
	values := url.Values{}
	if strings.TrimSpace(query) != "" {
		values.Set("q", query)
	}
	if strings.TrimSpace(folder) != "" {
		values.Set("folder", folder)
	}
	err := c.do(ctx, http.MethodGet, projectPath(projectID, "documents"), values, nil, &resp)
	return resp, err
}

// ListFolders returns the folder tree of a project, optionally rooted at under.
func (c *Client) ListFolders(ctx context.Context, projectID, under string) ([]models.Folder, error) {
	var resp []models.Folder
	values := url.Values{}
	if strings.TrimSpace(under) != "" {
		values.Set("under", under)
	}
	err := c.do(ctx, http.MethodGet, projectPath(projectID, "folders"), values, nil, &resp)
	return resp, err
}

func (c *Client) ListDocumentVersions(ctx context.Context, urn string) ([]models.DocumentVersion, error) {
	var resp []models.DocumentVersion
	err := c.do(ctx, http.MethodGet, "/v1/documents/"+url.PathEscape(urn)+"/versions", nil, nil, &resp)
	return resp, err
}

func (c *Client) RegisterMember(ctx context.Context, projectID string, req MemberRequest) (models.Member, error) {
	var resp models.Member
	err := c.do(ctx, http.MethodPost, projectPath(projectID, "members"), nil, req, &resp)
	return resp, err
}

func (c *Client) ListMembers(ctx context.Context, projectID string) ([]models.Member, error) {
	var resp []models.Member
	err := c.do(ctx, http.MethodGet, projectPath(projectID, "members"), nil, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	var errResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
		return &APIError{
			Status:    resp.StatusCode,
			Code:      errResp.Code,
			ErrorCode: errResp.ErrorCode,
			Message:   errResp.Error,
		}
	}
	return &APIError{Status: resp.StatusCode, Message: fmt.Sprintf("api error: %s", resp.Status)}
}

func projectPath(projectID, collection string) string {
	return "/v1/projects/" + url.PathEscape(projectID) + "/" + collection
}

func transmittalPath(id, action string) string {
	path := "/v1/transmittals/" + url.PathEscape(id)
	if action != "" {
		path += "/" + action
	}
	return path
}

func httpTimeoutFromEnv() time.Duration {
	value := strings.TrimSpace(os.Getenv(httpTimeoutEnvKey))
	if value == "" {
		return defaultHTTPTimeout
	}

	if duration, err := time.ParseDuration(value); err == nil && duration > 0 {
		return duration
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	return defaultHTTPTimeout
}

package server

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"

	"transmit/internal/api"
	"transmit/internal/blobstore"
	"transmit/internal/config"
	"transmit/internal/models"
	"transmit/internal/store"
)

const (
	fallbackEntryName   = "document"
	fallbackArchiveName = "transmittal"
)

// DocumentSource resolves a document reference to a concrete version and
// opens its bytes.
type DocumentSource interface {
	Resolve(ctx context.Context, urn, versionTag string) (models.ResolvedDocument, error)
	Open(ctx context.Context, doc models.ResolvedDocument) (io.ReadCloser, error)
}

// Acknowledger records recipient acknowledgements.
type Acknowledger interface {
	RecordAcknowledgement(ctx context.Context, id, email string, kind models.AckKind, at time.Time) (api.AcknowledgeResponse, error)
}

// ArchiveService packages the current bytes of a transmittal's documents into
// one zip. Documents that cannot be fetched are reported, not fatal.
type ArchiveService struct {
	transmittals store.TransmittalStore
	source       DocumentSource
	acker        Acknowledger
	logger       *slog.Logger

	concurrency  int
	fetchTimeout time.Duration
	spoolDir     string
	now          func() time.Time
}

// NewArchiveService constructs an ArchiveService. A nil acker skips download
// acknowledgements.
func NewArchiveService(transmittals store.TransmittalStore, source DocumentSource, acker Acknowledger, logger *slog.Logger) *ArchiveService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ArchiveService{
		transmittals: transmittals,
		source:       source,
		acker:        acker,
		logger:       logger,
		concurrency:  config.DefaultArchiveConcurrency,
		fetchTimeout: config.DefaultArchiveFetchTimeout,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Configure overrides fan-out width, per-document timeout and spool location.
func (s *ArchiveService) Configure(concurrency int, fetchTimeout time.Duration, spoolDir string) {
	if concurrency > 0 {
		s.concurrency = concurrency
	}
	if fetchTimeout > 0 {
		s.fetchTimeout = fetchTimeout
	}
	s.spoolDir = strings.TrimSpace(spoolDir)
}

// Archive is an assembled, spooled archive ready to stream. Close removes the
// spooled files.
type Archive struct {
	Filename string
	Result   models.ArchiveResult

	dir   string
	files []spooledFile
}

type spooledFile struct {
	name     string
	path     string
	modified time.Time
}

type fetchResult struct {
	doc  models.ResolvedDocument
	path string
	size int64
	err  error
}

// Assemble fetches every referenced document and spools the successes. When
// requesterEmail is set, a download acknowledgement is recorded for it after
// assembly succeeds.
func (s *ArchiveService) Assemble(ctx context.Context, id, requesterEmail string) (*Archive, error) {
	t, err := s.transmittals.GetTransmittal(ctx, id)
	if err != nil {
		return nil, mapStoreError(err)
	}
	refs, err := s.transmittals.ListDocuments(ctx, id)
	if err != nil {
		return nil, mapStoreError(err)
	}
	if len(refs) == 0 {
		return nil, emptyArchive(fmt.Errorf("transmittal has no documents"))
	}

	dir, err := os.MkdirTemp(s.spoolDir, "transmit-archive-*")
	if err != nil {
		return nil, internalErrorCode(fmt.Errorf("create spool dir: %w", err), ErrCodeArchiveFailure)
	}
	archive := &Archive{Filename: archiveFilename(t.Title), dir: dir}

	results := s.fetchAll(ctx, dir, refs)
	if err := ctx.Err(); err != nil {
		_ = archive.Close()
		return nil, fmt.Errorf("%w: assembling %s: %w", errRequestAborted, id, err)
	}

	archive.Result = models.ArchiveResult{FailedFiles: []models.FailedFile{}, Entries: []models.ArchiveEntry{}}
	names := newEntryNamer()
	for i, res := range results {
		if res.err != nil {
			reason := classifyFetchError(res.err)
			archive.Result.FailedFiles = append(archive.Result.FailedFiles, models.FailedFile{DocumentURN: refs[i].DocumentURN, Reason: reason})
			s.logger.Warn("archive document skipped",
				"transmittal_id", id,
				"document_urn", refs[i].DocumentURN,
				"version_tag", refs[i].VersionTag,
				"reason", reason,
				"error", res.err,
			)
			continue
		}
		name := names.assign(res.doc.Document.Name)
		archive.files = append(archive.files, spooledFile{name: name, path: res.path, modified: res.doc.Version.CreatedAt})
		archive.Result.Entries = append(archive.Result.Entries, models.ArchiveEntry{
			DocumentURN: refs[i].DocumentURN,
			VersionTag:  res.doc.Version.VersionTag,
			Name:        name,
			SizeBytes:   res.size,
		})
		archive.Result.FileCount++
		archive.Result.TotalSize += res.size
	}

	if archive.Result.FileCount == 0 {
		_ = archive.Close()
		return nil, emptyArchive(fmt.Errorf("no documents could be retrieved (%d failed)", len(archive.Result.FailedFiles)))
	}

	s.logger.Info("archive assembled",
		"transmittal_id", id,
		"file_count", archive.Result.FileCount,
		"failed_count", len(archive.Result.FailedFiles),
		"total_size", archive.Result.TotalSize,
	)

	if requesterEmail != "" && s.acker != nil {
		if _, err := s.acker.RecordAcknowledgement(ctx, id, requesterEmail, models.AckDownloaded, s.now()); err != nil {
			s.logger.Warn("record archive download", "transmittal_id", id, "email", requesterEmail, "error", err)
		}
	}
	return archive, nil
}

// fetchAll retrieves refs concurrently. Results are indexed by attachment
// position regardless of completion order.
func (s *ArchiveService) fetchAll(ctx context.Context, dir string, refs []models.DocumentRef) []fetchResult {
	results := make([]fetchResult, len(refs))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, ref := range refs {
		g.Go(func() error {
			results[i] = s.fetch(ctx, dir, i, ref)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (s *ArchiveService) fetch(ctx context.Context, dir string, index int, ref models.DocumentRef) fetchResult {
	ctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	doc, err := s.source.Resolve(ctx, ref.DocumentURN, ref.VersionTag)
	if err != nil {
		return fetchResult{err: err}
	}
	rc, err := s.source.Open(ctx, doc)
	if err != nil {
		return fetchResult{doc: doc, err: err}
	}
	defer rc.Close()

	spoolPath := filepath.Join(dir, strconv.Itoa(index))
	f, err := os.OpenFile(spoolPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return fetchResult{doc: doc, err: err}
	}
	size, err := io.Copy(f, &contextReader{ctx: ctx, r: rc})
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(spoolPath)
		return fetchResult{doc: doc, err: err}
	}
	return fetchResult{doc: doc, path: spoolPath, size: size}
}

// contextReader stops reading once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *contextReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}

func classifyFetchError(err error) models.FailureReason {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.FailureTimeout
	case errors.Is(err, store.ErrDocumentNotFound), errors.Is(err, blobstore.ErrBlobNotFound), errors.Is(err, os.ErrNotExist):
		return models.FailureNotFound
	case errors.Is(err, blobstore.ErrBlobPermission), errors.Is(err, os.ErrPermission):
		return models.FailurePermissionDenied
	default:
		return models.FailureUnknown
	}
}

// WriteTo streams the archive as a zip in entry order.
func (a *Archive) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	zw := zip.NewWriter(cw)
	for _, file := range a.files {
		if err := copyIntoZip(zw, file); err != nil {
			return cw.n, err
		}
	}
	err := zw.Close()
	return cw.n, err
}

func copyIntoZip(zw *zip.Writer, file spooledFile) error {
	src, err := os.Open(file.path)
	if err != nil {
		return fmt.Errorf("open spooled %s: %w", file.name, err)
	}
	defer src.Close()

	header := &zip.FileHeader{Name: file.name, Method: zip.Deflate}
	if !file.modified.IsZero() {
		header.Modified = file.modified
	}
	dst, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, src)
	return err
}

// Close removes the spooled files.
func (a *Archive) Close() error {
	if a == nil || a.dir == "" {
		return nil
	}
	err := os.RemoveAll(a.dir)
	a.dir = ""
	return err
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// entryNamer hands out archive entry names that are unique ignoring case.
type entryNamer struct {
	used map[string]struct{}
}

func newEntryNamer() *entryNamer {
	return &entryNamer{used: map[string]struct{}{}}
}

func (n *entryNamer) assign(raw string) string {
	name := sanitizeEntryName(raw)
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	if base == "" {
		base, ext = name, ""
	}

	candidate := name
	for i := 2; ; i++ {
		key := strings.ToLower(candidate)
		if _, taken := n.used[key]; !taken {
			n.used[key] = struct{}{}
			return candidate
		}
		candidate = base + "-" + strconv.Itoa(i) + ext
	}
}

// sanitizeEntryName reduces a logical document name to one NFC path element.
func sanitizeEntryName(raw string) string {
	name := norm.NFC.String(strings.TrimSpace(raw))
	name = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\':
			return '_'
		case r < 0x20 || r == 0x7f:
			return -1
		default:
			return r
		}
	}, name)
	name = strings.Trim(name, ". ")
	if name == "" {
		return fallbackEntryName
	}
	return name
}

func archiveFilename(title string) string {
	name := sanitizeEntryName(title)
	if name == fallbackEntryName && strings.TrimSpace(title) == "" {
		name = fallbackArchiveName
	}
	name = strings.Map(func(r rune) rune {
		if r == '"' || r == ';' {
			return '_'
		}
		return r
	}, name)
	return name + ".zip"
}

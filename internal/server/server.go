package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"transmit/internal/api"
	"transmit/internal/blobstore"
	"transmit/internal/config"
	"transmit/internal/notify"
	"transmit/internal/store"
)

const (
	allowRemoteEnvKey = "TRANSMIT_ALLOW_REMOTE"
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 5 * time.Minute
	idleTimeout       = 60 * time.Second
	shutdownTimeout   = 10 * time.Second
	uploadConcurrency = 4
)

// Backend is the persistence the server runs on.
type Backend interface {
	store.TransmittalStore
	store.DocumentIndexStore
	store.DirectoryStore
	MigrationStatus() (*store.MigrationStatus, error)
}

// Options carries optional server dependencies.
type Options struct {
	DBPath   string
	Config   config.Config
	Notifier notify.Notifier
	Logger   *slog.Logger
}

// Server wraps HTTP handlers for the transmit API.
type Server struct {
	addr   string
	dbPath string
	store  Backend
	cfg    config.Config
	logger *slog.Logger

	notifierName string
	transmittals *TransmittalService
	archives     *ArchiveService
	documents    *DocumentService
	directory    *DirectoryService

	downloadLimiter chan struct{}
	uploadLimiter   chan struct{}
}

// New creates a new server instance.
func New(addr string, backend Backend, blobs blobstore.BlobStore, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "server")

	cfg := opts.Config
	if cfg.Archive.MaxConcurrentDownloads <= 0 {
		cfg.Archive.MaxConcurrentDownloads = config.DefaultArchiveMaxConcurrentDownloads
	}
	if cfg.Documents.MaxUploadBytes <= 0 {
		cfg.Documents.MaxUploadBytes = config.DefaultDocumentMaxUploadBytes
	}

	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.Noop{}
	}

	transmittals := NewTransmittalService(backend, backend, notifier, logger)
	transmittals.ConfigureListing(cfg.List.DefaultLimit, cfg.List.MaxLimit)
	documents := NewDocumentService(backend, blobs)
	archives := NewArchiveService(backend, documents, transmittals, logger)
	archives.Configure(cfg.Archive.Concurrency, cfg.Archive.FetchTimeout, cfg.Archive.SpoolDir)

	return &Server{
		addr:            addr,
		dbPath:          opts.DBPath,
		store:           backend,
		cfg:             cfg,
		logger:          logger,
		notifierName:    notifierName(notifier),
		transmittals:    transmittals,
		archives:        archives,
		documents:       documents,
		directory:       NewDirectoryService(backend),
		downloadLimiter: make(chan struct{}, cfg.Archive.MaxConcurrentDownloads),
		uploadLimiter:   make(chan struct{}, uploadConcurrency),
	}
}

// Handler returns the full HTTP handler including request logging.
func (s *Server) Handler() http.Handler {
	return s.withRequestLogging(s.routes())
}

// ListenAndServe starts the HTTP server and shuts it down when ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.log().Info("starting server", "addr", s.addr, "notifier", s.notifierName)
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		IdleTimeout:       idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.log().Info("stopping server", "addr", s.addr)
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

// ListenAddr converts a base API URL into a listen address.
func ListenAddr(apiURL string) (string, error) {
	if apiURL == "" {
		return "", fmt.Errorf("api url is required")
	}
	if u, err := url.Parse(apiURL); err == nil && u.Host != "" {
		host := u.Hostname()
		if !isAllowedListenHost(host) {
			return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
		}
		return u.Host, nil
	}

	host, _, err := net.SplitHostPort(apiURL)
	if err == nil && !isAllowedListenHost(host) {
		return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
	}

	return apiURL, nil
}

func isAllowedListenHost(host string) bool {
	if host == "" {
		return true
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv(allowRemoteEnvKey)), "true") {
		return true
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (s *Server) acquireLimiter(limiter chan struct{}, w http.ResponseWriter, r *http.Request, name string) bool {
	if limiter == nil {
		return true
	}
	select {
	case limiter <- struct{}{}:
		return true
	default:
		err := apiError{
			status:  http.StatusTooManyRequests,
			code:    api.CodeResourceExhausted,
			errCode: ErrCodeResourceExhausted,
			err:     fmt.Errorf("too many concurrent %s requests", name),
		}
		s.writeErrorReq(w, r, http.StatusTooManyRequests, err)
		return false
	}
}

func (s *Server) releaseLimiter(limiter chan struct{}) {
	if limiter == nil {
		return
	}
	select {
	case <-limiter:
	default:
	}
}

func (s *Server) log() *slog.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

func notifierName(n notify.Notifier) string {
	switch n.(type) {
	case *notify.KafkaNotifier:
		return "kafka"
	case *notify.LogNotifier:
		return "log"
	default:
		return "none"
	}
}

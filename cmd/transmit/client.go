package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"time"

	"transmit/internal/api"
	"transmit/internal/config"
)

const (
	pingTimeout        = 500 * time.Millisecond
	serverStartTimeout = 3 * time.Second
	serverPollInterval = 100 * time.Millisecond
	serverStopTimeout  = 2 * time.Second
)

// withClient runs fn against the configured API, starting a local server for
// the duration of the command when nothing answers there.
func withClient(cfg *config.Config, fn func(*api.Client) error) error {
	local, err := ensureServer(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer local.stop()
	return fn(api.NewClient(cfg.APIURL))
}

// localServer is a `transmit srv` child process.
type localServer struct {
	cmd  *exec.Cmd
	done chan struct{}
}

func ensureServer(ctx context.Context, cfg *config.Config) (*localServer, error) {
	client := api.NewClient(cfg.APIURL)
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	err := client.Ping(pingCtx)
	cancel()
	if err == nil {
		return nil, nil
	}
	if !isConnRefused(err) {
		return nil, fmt.Errorf("transmit server at %s: %w", cfg.APIURL, err)
	}

	local, err := startLocalServer(cfg)
	if err != nil {
		return nil, fmt.Errorf("start local server: %w", err)
	}
	if err := waitForServer(ctx, client, local.done, serverStartTimeout); err != nil {
		local.stop()
		return nil, err
	}
	slog.Debug("started local server", "api_url", cfg.APIURL, "db", cfg.DBPath, "pid", local.cmd.Process.Pid)
	return local, nil
}

func startLocalServer(cfg *config.Config) (*localServer, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(exe, "srv")
	cmd.Env = append(os.Environ(),
		"TRANSMIT_DB="+cfg.DBPath,
		"TRANSMIT_BLOB_DIR="+cfg.BlobDir,
		"TRANSMIT_API_URL="+cfg.APIURL,
	)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	local := &localServer{cmd: cmd, done: make(chan struct{})}
	go func() {
		_ = cmd.Wait()
		close(local.done)
	}()
	return local, nil
}

// stop interrupts the server so it releases the database lock, and kills it
// if it has not exited in time.
func (s *localServer) stop() {
	if s == nil {
		return
	}
	_ = s.cmd.Process.Signal(os.Interrupt)
	select {
	case <-s.done:
	case <-time.After(serverStopTimeout):
		_ = s.cmd.Process.Kill()
		<-s.done
	}
}

// waitForServer polls until the API answers. exited reports a server that
// died during startup, usually because another one holds the database.
func waitForServer(ctx context.Context, client *api.Client, exited <-chan struct{}, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(serverPollInterval)
	defer ticker.Stop()
	for {
		pingCtx, pingCancel := context.WithTimeout(ctx, 4*serverPollInterval)
		err := client.Ping(pingCtx)
		pingCancel()
		if err == nil {
			return nil
		}
		if !isConnRefused(err) && !errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("port is answered by something other than a transmit server: %w", err)
		}

		select {
		case <-exited:
			return errors.New("local server exited during startup")
		case <-ctx.Done():
			return errors.New("local server did not start in time")
		case <-ticker.C:
		}
	}
}

func isConnRefused(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

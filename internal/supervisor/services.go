// Viewguard - Learning Engagement Tracking and Progress Core
// Copyright 2026 Viewguard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/viewguard/viewguard

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// HTTPServer matches *http.Server's lifecycle methods.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPServerService adapts an HTTP server's blocking ListenAndServe to
// suture's context-aware Serve.
type HTTPServerService struct {
	server          HTTPServer
	shutdownTimeout time.Duration
}

// NewHTTPServerService wraps a server. shutdownTimeout bounds graceful
// connection draining.
func NewHTTPServerService(server HTTPServer, shutdownTimeout time.Duration) *HTTPServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPServerService{server: server, shutdownTimeout: shutdownTimeout}
}

// Serve implements suture.Service. http.ErrServerClosed is expected on
// shutdown and converted to nil.
func (h *HTTPServerService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()
		if err := h.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

func (h *HTTPServerService) String() string { return "http-server" }

// RunnerService adapts a start/wait pair, like the archive consumer,
// into a supervised service.
type RunnerService struct {
	name  string
	start func(ctx context.Context) error
	wait  func()
}

// NewRunnerService wraps the start function; wait may be nil.
func NewRunnerService(name string, start func(ctx context.Context) error, wait func()) *RunnerService {
	return &RunnerService{name: name, start: start, wait: wait}
}

// Serve implements suture.Service: start, block on the context, then
// wait for drain.
func (r *RunnerService) Serve(ctx context.Context) error {
	if err := r.start(ctx); err != nil {
		return fmt.Errorf("%s start failed: %w", r.name, err)
	}
	<-ctx.Done()
	if r.wait != nil {
		r.wait()
	}
	return ctx.Err()
}

func (r *RunnerService) String() string { return r.name }

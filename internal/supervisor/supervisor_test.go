// Viewguard - Learning Engagement Tracking and Progress Core
// Copyright 2026 Viewguard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/viewguard/viewguard

package supervisor

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/viewguard/viewguard/internal/logging"
)

// fakeHTTPServer tracks lifecycle calls.
type fakeHTTPServer struct {
	started  atomic.Bool
	shutdown atomic.Bool
	release  chan struct{}
	startErr error
}

func newFakeHTTPServer() *fakeHTTPServer {
	return &fakeHTTPServer{release: make(chan struct{})}
}

func (s *fakeHTTPServer) ListenAndServe() error {
	if s.startErr != nil {
		return s.startErr
	}
	s.started.Store(true)
	<-s.release
	return http.ErrServerClosed
}

func (s *fakeHTTPServer) Shutdown(_ context.Context) error {
	s.shutdown.Store(true)
	close(s.release)
	return nil
}

func TestHTTPServerServiceGracefulShutdown(t *testing.T) {
	srv := newFakeHTTPServer()
	svc := NewHTTPServerService(srv, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for !srv.started.Load() {
		if time.Now().After(deadline) {
			t.Fatal("server never started")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	if !srv.shutdown.Load() {
		t.Error("Shutdown was not called")
	}
}

func TestHTTPServerServiceStartFailure(t *testing.T) {
	srv := newFakeHTTPServer()
	srv.startErr = errors.New("port in use")
	svc := NewHTTPServerService(srv, time.Second)

	if err := svc.Serve(context.Background()); err == nil {
		t.Error("Serve() should surface the listen error")
	}
}

func TestRunnerService(t *testing.T) {
	var started, waited atomic.Bool
	svc := NewRunnerService("archive-consumer",
		func(ctx context.Context) error { started.Store(true); return nil },
		func() { waited.Store(true) },
	)
	if svc.String() != "archive-consumer" {
		t.Errorf("String() = %q", svc.String())
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	if !started.Load() || !waited.Load() {
		t.Errorf("started=%v waited=%v, want both true", started.Load(), waited.Load())
	}
}

func TestRunnerServiceStartError(t *testing.T) {
	svc := NewRunnerService("broken", func(ctx context.Context) error {
		return errors.New("boom")
	}, nil)
	if err := svc.Serve(context.Background()); err == nil {
		t.Error("Serve() should surface the start error")
	}
}

func TestTreeServesServices(t *testing.T) {
	tree := NewTree(logging.NewSlogLogger(), DefaultTreeConfig())

	var served atomic.Bool
	tree.AddAPIService(NewRunnerService("probe", func(ctx context.Context) error {
		served.Store(true)
		return nil
	}, nil))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for !served.Load() {
		if time.Now().After(deadline) {
			t.Fatal("service never served")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("tree error = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("tree did not stop")
	}
}

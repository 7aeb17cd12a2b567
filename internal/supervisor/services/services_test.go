// Shoprank - Marketplace Recommendation and User Behavior Modeling
// Copyright 2026 David Kim (dkim815)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dkim815/shoprank

package services

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dkim815/shoprank/internal/recommend"
	"github.com/dkim815/shoprank/internal/recommend/storage"
)

// fakeHTTPServer simulates the http.Server lifecycle.
type fakeHTTPServer struct {
	mu        sync.Mutex
	listenErr error
	shutdown  bool
	done      chan struct{}
}

func newFakeHTTPServer(listenErr error) *fakeHTTPServer {
	return &fakeHTTPServer{listenErr: listenErr, done: make(chan struct{})}
}

func (f *fakeHTTPServer) ListenAndServe() error {
	if f.listenErr != nil {
		return f.listenErr
	}
	<-f.done
	return http.ErrServerClosed
}

func (f *fakeHTTPServer) Shutdown(ctx context.Context) error {
	f.mu.Lock()
	f.shutdown = true
	f.mu.Unlock()
	close(f.done)
	return nil
}

func (f *fakeHTTPServer) wasShutdown() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shutdown
}

func TestHTTPService_ListenFailure(t *testing.T) {
	svc := NewHTTPService(newFakeHTTPServer(errors.New("bind: address in use")), time.Second)

	err := svc.Serve(context.Background())
	if err == nil {
		t.Fatal("Serve() = nil error for failed listen")
	}
	if err.Error() != "http server failed: bind: address in use" {
		t.Errorf("Serve() error = %v, want wrapped listen error", err)
	}
}

func TestHTTPService_GracefulShutdown(t *testing.T) {
	server := newFakeHTTPServer(nil)
	svc := NewHTTPService(server, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	// Let the serve goroutine start, then cancel.
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return after cancellation")
	}

	if !server.wasShutdown() {
		t.Error("Server was not shut down gracefully")
	}
}

// countingReestimator records re-estimation calls.
type countingReestimator struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (c *countingReestimator) ReestimateClusters(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.err
}

func (c *countingReestimator) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestReestimateService_TicksAndStops(t *testing.T) {
	engine := &countingReestimator{}
	svc := NewReestimateService(engine, 10*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	deadline := time.After(5 * time.Second)
	for engine.count() < 2 {
		select {
		case <-deadline:
			t.Fatalf("Only %d re-estimations ran", engine.count())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Service did not stop")
	}
}

func TestReestimateService_SurvivesFailures(t *testing.T) {
	engine := &countingReestimator{err: errors.New("not enough samples")}
	svc := NewReestimateService(engine, 10*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	// Failures are logged, not fatal; Serve keeps ticking until cancel.
	if err := svc.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Serve() error = %v, want deadline exceeded", err)
	}
	if engine.count() < 2 {
		t.Errorf("Calls = %d, want service to keep ticking past failures", engine.count())
	}
}

// fakeExporter returns a fixed engine state.
type fakeExporter struct{}

func (fakeExporter) ExportState() recommend.EngineState {
	return recommend.EngineState{SavedAt: time.Now()}
}

// recordingStore counts snapshot saves and prunes.
type recordingStore struct {
	mu     sync.Mutex
	saves  int
	prunes int
}

func (r *recordingStore) Save(ctx context.Context, name string, state recommend.EngineState) (*storage.SnapshotMetadata, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	return &storage.SnapshotMetadata{Name: name, Version: r.saves}, nil
}

func (r *recordingStore) Prune(ctx context.Context, name string, keep int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prunes++
	return nil
}

func (r *recordingStore) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves, r.prunes
}

func TestSnapshotService_PeriodicAndFinalSnapshot(t *testing.T) {
	store := &recordingStore{}
	svc := NewSnapshotService(fakeExporter{}, store, 10*time.Millisecond, 2, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	deadline := time.After(5 * time.Second)
	for {
		saves, _ := store.counts()
		if saves >= 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("Only %d snapshots written", saves)
		case <-time.After(5 * time.Millisecond):
		}
	}

	saves, _ := store.counts()
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Service did not stop")
	}

	finalSaves, prunes := store.counts()
	if finalSaves != saves+1 {
		t.Errorf("Saves = %d, want one final shutdown snapshot after %d", finalSaves, saves)
	}
	if prunes != finalSaves {
		t.Errorf("Prunes = %d, want one per save (%d)", prunes, finalSaves)
	}
}

// fakeGC counts garbage collection passes.
type fakeGC struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeGC) RunGC() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return nil
}

func (f *fakeGC) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestEventLogGCService_Ticks(t *testing.T) {
	gc := &fakeGC{}
	svc := NewEventLogGCService(gc, 10*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	deadline := time.After(5 * time.Second)
	for gc.count() < 2 {
		select {
		case <-deadline:
			t.Fatalf("Only %d GC passes ran", gc.count())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Service did not stop")
	}
}

// fakeSweeper counts dedup sweep passes.
type fakeSweeper struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeSweeper) SweepDedup() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return 1
}

func (f *fakeSweeper) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestDedupSweepService_Ticks(t *testing.T) {
	sweeper := &fakeSweeper{}
	svc := NewDedupSweepService(sweeper, 10*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	deadline := time.After(5 * time.Second)
	for sweeper.count() < 2 {
		select {
		case <-deadline:
			t.Fatalf("Only %d sweeps ran", sweeper.count())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Service did not stop")
	}
}

// fakeRouter satisfies FeedbackRouter for wiring tests.
type fakeRouter struct{}

func (fakeRouter) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (fakeRouter) Running() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

func TestFeedbackService_StopsWithContext(t *testing.T) {
	svc := NewFeedbackService(fakeRouter{}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Service did not stop")
	}
}

func TestServiceNames(t *testing.T) {
	names := map[string]interface{ String() string }{
		"http-server":     NewHTTPService(newFakeHTTPServer(nil), time.Second),
		"reestimate":      NewReestimateService(&countingReestimator{}, time.Hour, zerolog.Nop()),
		"snapshot":        NewSnapshotService(fakeExporter{}, &recordingStore{}, time.Hour, 3, zerolog.Nop()),
		"eventlog-gc":     NewEventLogGCService(&fakeGC{}, time.Hour, zerolog.Nop()),
		"dedup-sweep":     NewDedupSweepService(&fakeSweeper{}, time.Hour, zerolog.Nop()),
		"feedback-router": NewFeedbackService(fakeRouter{}, zerolog.Nop()),
	}
	for want, svc := range names {
		if got := svc.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	}
}
